package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DatasetKind 缓存数据集类型。不同类型使用独立的 TTL 配置。
type DatasetKind string

const (
	// KindQuote 即时报价
	KindQuote DatasetKind = "quote"
	// KindSeries 时间序列
	KindSeries DatasetKind = "series"
)

// CacheKey 缓存键：标的 + 数据集类型 + 时间范围
type CacheKey struct {
	Kind      DatasetKind
	Symbol    string
	Timeframe Timeframe
}

// String 返回键的存储形态
func (k CacheKey) String() string {
	if k.Kind == KindSeries {
		return fmt.Sprintf("marketdata:%s:%s:%s", k.Kind, k.Symbol, k.Timeframe)
	}
	return fmt.Sprintf("marketdata:%s:%s", k.Kind, k.Symbol)
}

// CacheEntry 缓存条目。载荷对缓存不透明，TTL 由调用方按数据集类型判定，
// 缓存本身不做过期淘汰。
type CacheEntry struct {
	// Payload 序列化后的 Quote 或 TimeSeries
	Payload json.RawMessage `json:"payload"`
	// FetchedAt 抓取时间
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheRepository 行情缓存仓储接口。损坏的条目视为不存在，不得向调用方抛错。
type CacheRepository interface {
	// Get 读取缓存条目，不存在（或损坏）时返回 nil
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)
	// Put 写入缓存条目
	Put(ctx context.Context, key CacheKey, payload any, fetchedAt time.Time) error
	// Clear 清空全部行情缓存
	Clear(ctx context.Context) error
}

// QuoteProvider 报价数据源能力
type QuoteProvider interface {
	// FetchQuote 抓取单一标的的即时报价
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
	// Name 数据源标识
	Name() string
}

// SeriesProvider 时间序列数据源能力
type SeriesProvider interface {
	// FetchSeries 抓取指定窗口内的时间序列
	FetchSeries(ctx context.Context, symbol string, tf Timeframe, window Window) (*TimeSeries, error)
	// Name 数据源标识
	Name() string
}
