package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	alertapp "github.com/wyfcoding/papertrading/internal/alert/application"
	alertdomain "github.com/wyfcoding/papertrading/internal/alert/domain"
	alertmysql "github.com/wyfcoding/papertrading/internal/alert/infrastructure/persistence/mysql"
	"github.com/wyfcoding/papertrading/internal/alert/infrastructure/sender"
	alerthttp "github.com/wyfcoding/papertrading/internal/alert/interfaces/http"
	ledgerapp "github.com/wyfcoding/papertrading/internal/ledger/application"
	ledgerdomain "github.com/wyfcoding/papertrading/internal/ledger/domain"
	ledgermysql "github.com/wyfcoding/papertrading/internal/ledger/infrastructure/persistence/mysql"
	ledgerhttp "github.com/wyfcoding/papertrading/internal/ledger/interfaces/http"
	mdapp "github.com/wyfcoding/papertrading/internal/marketdata/application"
	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	mdredis "github.com/wyfcoding/papertrading/internal/marketdata/infrastructure/persistence/redis"
	"github.com/wyfcoding/papertrading/internal/marketdata/infrastructure/provider"
	mdhttp "github.com/wyfcoding/papertrading/internal/marketdata/interfaces/http"
	watchapp "github.com/wyfcoding/papertrading/internal/watchlist/application"
	watchdomain "github.com/wyfcoding/papertrading/internal/watchlist/domain"
	watchmysql "github.com/wyfcoding/papertrading/internal/watchlist/infrastructure/persistence/mysql"
	watchhttp "github.com/wyfcoding/papertrading/internal/watchlist/interfaces/http"
	"github.com/wyfcoding/papertrading/pkg/cache"
	"github.com/wyfcoding/papertrading/pkg/config"
	"github.com/wyfcoding/papertrading/pkg/db"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
	"github.com/wyfcoding/papertrading/pkg/middleware"
	"github.com/wyfcoding/papertrading/pkg/mq"
	"github.com/wyfcoding/papertrading/pkg/ratelimit"
)

var configPath = flag.String("config", "configs/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化指标
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics server", "error", err)
		}
	}

	// 4. 初始化基础设施
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	// Auto Migrate (仅用于开发方便)
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&ledgerdomain.Account{},
			&ledgerdomain.Holding{},
			&ledgerdomain.Transaction{},
			&watchdomain.Item{},
			&alertdomain.Alert{},
			&alertdomain.Settings{},
		); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect redis", "error", err)
	}
	defer redisCache.Close()

	// 告警投递出口：Kafka 不可用时退化为日志投递
	var alertSender alertdomain.Sender
	if producer, perr := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	}); perr != nil {
		logger.Warn(ctx, "Kafka unavailable, alerts will not be delivered", "error", perr)
		alertSender = sender.NewNoopSender()
	} else {
		defer producer.Close()
		alertSender = sender.NewKafkaSender(producer, cfg.Alert.Topic)
	}

	// 5. 初始化仓储
	cacheRepo := mdredis.NewCacheRepository(redisCache)
	ledgerRepo := ledgermysql.NewRepository(database.DB)
	watchRepo := watchmysql.NewRepository(database.DB)
	alertRepo := alertmysql.NewRepository(database.DB)

	// 6. 初始化应用服务
	session, err := mddomain.NewMarketSession(
		cfg.MarketData.Session.Timezone,
		cfg.MarketData.Session.OpenHour,
		cfg.MarketData.Session.CloseHour,
	)
	if err != nil {
		logger.Fatal(ctx, "Invalid market session config", "error", err)
	}

	connectTimeout := time.Duration(cfg.MarketData.ConnectTimeout) * time.Second
	readTimeout := time.Duration(cfg.MarketData.ReadTimeout) * time.Second
	quoteProvider := provider.NewAlphaVantage(
		cfg.MarketData.AlphaVantage.BaseURL,
		cfg.MarketData.AlphaVantage.APIKey,
		connectTimeout, readTimeout,
	)
	seriesProvider := provider.NewYahoo(cfg.MarketData.Yahoo.BaseURL, connectTimeout, readTimeout)

	scheduler := mdapp.NewFetchScheduler(
		time.Duration(cfg.MarketData.RequestSpacing)*time.Second,
		cfg.MarketData.QueueSize,
		m.SchedulerQueueDepth,
	)

	defaultThreshold := decimal.NewFromFloat(cfg.Alert.DefaultThreshold)
	engine := alertapp.NewEngine(
		alertRepo, alertSender, watchRepo, m,
		time.Duration(cfg.Alert.DebounceMinutes)*time.Minute,
		defaultThreshold,
	)

	watchlistSvc := watchapp.NewWatchlistService(watchRepo, engine)

	marketSvc := mdapp.NewMarketDataService(
		cacheRepo, quoteProvider, seriesProvider, scheduler, session, engine, m,
		time.Duration(cfg.MarketData.QuoteTTL)*time.Second,
		time.Duration(cfg.MarketData.SeriesTTL)*time.Second,
	)

	initialBalance, err := decimal.NewFromString(cfg.Ledger.InitialBalance)
	if err != nil {
		logger.Fatal(ctx, "Invalid initial balance config", "error", err)
	}
	ledgerSvc := ledgerapp.NewLedgerService(ledgerRepo, engine, m, initialBalance, cfg.Ledger.MaxTradeRetries)

	// 7. 初始化接口层
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinCORSMiddleware())
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		r.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	api := r.Group("/api")
	mdhttp.NewMarketDataHandler(marketSvc).RegisterRoutes(api)
	ledgerhttp.NewLedgerHandler(ledgerSvc, marketSvc).RegisterRoutes(api)
	watchhttp.NewWatchlistHandler(watchlistSvc).RegisterRoutes(api)
	alerthttp.NewAlertHandler(engine).RegisterRoutes(api)

	// 8. 启动服务
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(rootCtx)

	g, gctx := errgroup.WithContext(rootCtx)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Service exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Service stopped")
}
