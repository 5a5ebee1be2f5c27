package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// AlertNotifier 行情刷新后的告警回调。由告警引擎实现，调用方以
// fire-and-forget 方式触发，绝不阻塞行情返回。
type AlertNotifier interface {
	HandleQuote(ctx context.Context, quote *domain.Quote)
}

// MarketDataService 行情服务：缓存优先，未命中经调度器走上游，
// 失败时按 过期缓存 -> 合成数据 的顺序降级。
type MarketDataService struct {
	cache     domain.CacheRepository
	quotes    domain.QuoteProvider
	series    domain.SeriesProvider
	scheduler *FetchScheduler
	session   *domain.MarketSession
	notifier  AlertNotifier
	metrics   *metrics.Metrics

	quoteTTL  time.Duration
	seriesTTL time.Duration

	// now 可注入，便于测试 TTL 边界
	now func() time.Time
}

// NewMarketDataService 创建行情服务。notifier 与 m 可为 nil。
func NewMarketDataService(
	cache domain.CacheRepository,
	quotes domain.QuoteProvider,
	series domain.SeriesProvider,
	scheduler *FetchScheduler,
	session *domain.MarketSession,
	notifier AlertNotifier,
	m *metrics.Metrics,
	quoteTTL, seriesTTL time.Duration,
) *MarketDataService {
	return &MarketDataService{
		cache:     cache,
		quotes:    quotes,
		series:    series,
		scheduler: scheduler,
		session:   session,
		notifier:  notifier,
		metrics:   m,
		quoteTTL:  quoteTTL,
		seriesTTL: seriesTTL,
		now:       time.Now,
	}
}

// GetQuote 获取即时报价。任何情况下都会返回一个可展示的结果，
// 真实性由 Provenance 标记，资金敏感的调用方必须检查它。
func (s *MarketDataService) GetQuote(ctx context.Context, symbol string) (*domain.QuoteResult, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.ErrBadSymbol
	}

	key := domain.CacheKey{Kind: domain.KindQuote, Symbol: symbol}
	entry := s.lookup(ctx, key)

	if cached := s.decodeQuote(ctx, entry); cached != nil {
		if s.now().Sub(entry.FetchedAt) < s.quoteTTL {
			s.hit()
			return &domain.QuoteResult{Quote: cached, Provenance: domain.ProvenanceReal}, nil
		}
	}
	s.miss()

	fresh, err := s.fetchQuote(ctx, symbol)
	if err == nil {
		if putErr := s.cache.Put(ctx, key, fresh, s.now()); putErr != nil {
			logger.Warn(ctx, "Failed to cache quote", "symbol", symbol, "error", putErr)
		}
		if s.notifier != nil {
			go s.notifier.HandleQuote(context.WithoutCancel(ctx), fresh)
		}
		return &domain.QuoteResult{Quote: fresh, Provenance: domain.ProvenanceReal}, nil
	}

	logger.Warn(ctx, "Quote fetch failed, falling back", "symbol", symbol, "error", err)

	if cached := s.decodeQuote(ctx, entry); cached != nil {
		return &domain.QuoteResult{Quote: cached, Provenance: domain.ProvenanceStale}, nil
	}

	return &domain.QuoteResult{
		Quote:      domain.NewSyntheticQuote(symbol, s.now()),
		Provenance: domain.ProvenanceSynthetic,
	}, nil
}

// GetSeries 获取时间序列。上游失败时回退过期缓存；连过期缓存都没有
// 则直接返回错误，序列不做合成。
func (s *MarketDataService) GetSeries(ctx context.Context, symbol string, tf domain.Timeframe) (*domain.SeriesResult, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.ErrBadSymbol
	}

	key := domain.CacheKey{Kind: domain.KindSeries, Symbol: symbol, Timeframe: tf}
	entry := s.lookup(ctx, key)

	if cached := s.decodeSeries(ctx, entry); cached != nil {
		if s.now().Sub(entry.FetchedAt) < s.seriesTTL {
			s.hit()
			return &domain.SeriesResult{Series: cached, Provenance: domain.ProvenanceReal}, nil
		}
	}
	s.miss()

	window := s.session.ResolveWindow(s.now(), tf)
	fresh, err := s.fetchSeries(ctx, symbol, tf, window)
	if err == nil {
		if putErr := s.cache.Put(ctx, key, fresh, s.now()); putErr != nil {
			logger.Warn(ctx, "Failed to cache series", "symbol", symbol, "timeframe", tf, "error", putErr)
		}
		return &domain.SeriesResult{Series: fresh, Provenance: domain.ProvenanceReal}, nil
	}

	logger.Warn(ctx, "Series fetch failed, falling back", "symbol", symbol, "timeframe", tf, "error", err)

	if cached := s.decodeSeries(ctx, entry); cached != nil {
		return &domain.SeriesResult{Series: cached, Provenance: domain.ProvenanceStale}, nil
	}

	return nil, err
}

// ClearCache 清空全部行情缓存
func (s *MarketDataService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *MarketDataService) fetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	value, err := s.scheduler.Submit(ctx, func(fctx context.Context) (any, error) {
		start := time.Now()
		q, ferr := s.quotes.FetchQuote(fctx, symbol)
		s.observeProvider(start, ferr)
		return q, ferr
	})
	if err != nil {
		return nil, err
	}
	q, ok := value.(*domain.Quote)
	if !ok || q == nil {
		return nil, errors.New("unexpected quote fetch result")
	}
	return q, nil
}

func (s *MarketDataService) fetchSeries(ctx context.Context, symbol string, tf domain.Timeframe, window domain.Window) (*domain.TimeSeries, error) {
	value, err := s.scheduler.Submit(ctx, func(fctx context.Context) (any, error) {
		start := time.Now()
		ts, ferr := s.series.FetchSeries(fctx, symbol, tf, window)
		s.observeProvider(start, ferr)
		return ts, ferr
	})
	if err != nil {
		return nil, err
	}
	ts, ok := value.(*domain.TimeSeries)
	if !ok || ts == nil {
		return nil, errors.New("unexpected series fetch result")
	}
	return ts, nil
}

// lookup 读缓存，缓存层故障按未命中处理
func (s *MarketDataService) lookup(ctx context.Context, key domain.CacheKey) *domain.CacheEntry {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "Cache lookup failed", "key", key.String(), "error", err)
		return nil
	}
	return entry
}

func (s *MarketDataService) decodeQuote(ctx context.Context, entry *domain.CacheEntry) *domain.Quote {
	if entry == nil {
		return nil
	}
	var q domain.Quote
	if err := json.Unmarshal(entry.Payload, &q); err != nil {
		logger.Warn(ctx, "Corrupt cached quote", "error", err)
		return nil
	}
	return &q
}

func (s *MarketDataService) decodeSeries(ctx context.Context, entry *domain.CacheEntry) *domain.TimeSeries {
	if entry == nil {
		return nil
	}
	var ts domain.TimeSeries
	if err := json.Unmarshal(entry.Payload, &ts); err != nil {
		logger.Warn(ctx, "Corrupt cached series", "error", err)
		return nil
	}
	return &ts
}

func (s *MarketDataService) hit() {
	if s.metrics != nil {
		s.metrics.CacheHitsTotal.Inc()
	}
}

func (s *MarketDataService) miss() {
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.Inc()
	}
}

func (s *MarketDataService) observeProvider(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProviderCallsTotal.Inc()
	s.metrics.ProviderCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ProviderErrorsTotal.Inc()
	}
}
