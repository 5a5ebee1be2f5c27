// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 数据库查询计数
	DBQueriesTotal prometheus.Counter
	// 数据库查询耗时
	DBQueryDuration prometheus.Histogram

	// Redis 操作计数
	RedisOpsTotal prometheus.Counter

	// 行情缓存命中
	CacheHitsTotal prometheus.Counter
	// 行情缓存未命中
	CacheMissesTotal prometheus.Counter
	// 上游行情调用计数
	ProviderCallsTotal prometheus.Counter
	// 上游行情调用失败计数
	ProviderErrorsTotal prometheus.Counter
	// 上游行情调用耗时
	ProviderCallDuration prometheus.Histogram
	// 调度队列深度
	SchedulerQueueDepth prometheus.Gauge

	// 成交计数
	TradesTotal prometheus.Counter
	// 被拒绝的交易计数
	TradesRejectedTotal prometheus.Counter
	// 告警计数
	AlertsTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "db_queries_total",
			Help:      "Total database queries",
		}),
		DBQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		RedisOpsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "redis_ops_total",
			Help:      "Total Redis operations",
		}),

		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "marketdata_cache_hits_total",
			Help:      "Market data cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "marketdata_cache_misses_total",
			Help:      "Market data cache misses",
		}),
		ProviderCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "marketdata_provider_calls_total",
			Help:      "Upstream market data provider calls",
		}),
		ProviderErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "marketdata_provider_errors_total",
			Help:      "Failed upstream market data provider calls",
		}),
		ProviderCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "marketdata_provider_call_duration_seconds",
			Help:      "Upstream provider call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SchedulerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "marketdata_scheduler_queue_depth",
			Help:      "Pending requests in the fetch scheduler queue",
		}),

		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "trades_total",
			Help:      "Total trades executed",
		}),
		TradesRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "trades_rejected_total",
			Help:      "Trades rejected by validation",
		}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrading",
			Subsystem: serviceName,
			Name:      "alerts_total",
			Help:      "Total alerts emitted",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.RedisOpsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ProviderCallsTotal,
		m.ProviderErrorsTotal,
		m.ProviderCallDuration,
		m.SchedulerQueueDepth,
		m.TradesTotal,
		m.TradesRejectedTotal,
		m.AlertsTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
