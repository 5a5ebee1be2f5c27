// Package domain 行情服务的领域模型、值对象与数据源、缓存接口
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provenance 行情数据来源标记。合成数据绝不能参与资金计算，
// 因此来源必须随行情一路透传给调用方。
type Provenance string

const (
	// ProvenanceReal 上游实时返回或 TTL 内的缓存
	ProvenanceReal Provenance = "real"
	// ProvenanceStale 上游失败后回退的过期缓存
	ProvenanceStale Provenance = "stale"
	// ProvenanceSynthetic 完全无数据时的占位行情
	ProvenanceSynthetic Provenance = "synthetic"
)

// Quote 单一标的的即时报价快照。构造后不可变，刷新行情时以新对象整体替换。
type Quote struct {
	// Symbol 标的代码（统一大写）
	Symbol string `json:"symbol"`
	// Price 最新价
	Price decimal.Decimal `json:"price"`
	// PreviousClose 前收盘价
	PreviousClose decimal.Decimal `json:"previous_close"`
	// AsOf 行情时间（最近交易日）
	AsOf time.Time `json:"as_of"`
	// Vendor 数据供应商标识
	Vendor string `json:"vendor"`
}

// ChangePercent 涨跌幅（百分比）
func (q *Quote) ChangePercent() decimal.Decimal {
	if q.PreviousClose.IsZero() {
		return decimal.Zero
	}
	return q.Price.Sub(q.PreviousClose).Div(q.PreviousClose).Mul(decimal.NewFromInt(100))
}

// Timeframe 时间序列的符号化时间范围
type Timeframe string

const (
	Timeframe1D Timeframe = "1D"
	Timeframe1W Timeframe = "1W"
	Timeframe1M Timeframe = "1M"
	Timeframe3M Timeframe = "3M"
	Timeframe1Y Timeframe = "1Y"
)

// ParseTimeframe 解析时间范围，非法输入返回 ErrInvalidTimeframe
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	switch tf {
	case Timeframe1D, Timeframe1W, Timeframe1M, Timeframe3M, Timeframe1Y:
		return tf, nil
	default:
		return "", ErrInvalidTimeframe
	}
}

// SeriesPoint 时间序列中的一个采样点
type SeriesPoint struct {
	// Timestamp 采样时间
	Timestamp time.Time `json:"timestamp"`
	// Close 收盘价
	Close decimal.Decimal `json:"close"`
}

// TimeSeries 按时间升序、无重复时间戳的收盘价序列
type TimeSeries struct {
	Symbol    string        `json:"symbol"`
	Timeframe Timeframe     `json:"timeframe"`
	Points    []SeriesPoint `json:"points"`
}

// Append 追加一个采样点，保持升序且跳过重复时间戳
func (ts *TimeSeries) Append(t time.Time, close decimal.Decimal) {
	n := len(ts.Points)
	if n > 0 && !ts.Points[n-1].Timestamp.Before(t) {
		return
	}
	ts.Points = append(ts.Points, SeriesPoint{Timestamp: t, Close: close})
}

// QuoteResult 带来源标记的报价结果
type QuoteResult struct {
	Quote      *Quote     `json:"quote"`
	Provenance Provenance `json:"provenance"`
}

// SeriesResult 带来源标记的时间序列结果
type SeriesResult struct {
	Series     *TimeSeries `json:"series"`
	Provenance Provenance  `json:"provenance"`
}

// NormalizeSymbol 规范化标的代码
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewSyntheticQuote 构造占位报价。数值刻意固定，配合 ProvenanceSynthetic
// 标记使其在下游可识别，交易入口会拒绝基于它定价。
func NewSyntheticQuote(symbol string, now time.Time) *Quote {
	return &Quote{
		Symbol:        symbol,
		Price:         decimal.RequireFromString("150.00"),
		PreviousClose: decimal.RequireFromString("148.00"),
		AsOf:          now,
		Vendor:        "synthetic",
	}
}
