package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSession(t *testing.T) *MarketSession {
	t.Helper()
	s, err := NewMarketSession("Asia/Jerusalem", 16, 23)
	require.NoError(t, err)
	return s
}

func TestNewMarketSession_InvalidInput(t *testing.T) {
	_, err := NewMarketSession("Not/AZone", 16, 23)
	assert.Error(t, err)

	_, err = NewMarketSession("Asia/Jerusalem", 23, 16)
	assert.Error(t, err)

	_, err = NewMarketSession("Asia/Jerusalem", -1, 23)
	assert.Error(t, err)
}

func TestResolveWindow_DuringSession(t *testing.T) {
	s := mustSession(t)
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 10, 18, 30, 0, 0, loc)

	w := s.ResolveWindow(now, Timeframe1D)
	assert.True(t, w.End.Equal(now))
	assert.Equal(t, time.Date(2026, 3, 9, 16, 0, 0, 0, loc), w.Start)
}

func TestResolveWindow_AfterClose(t *testing.T) {
	s := mustSession(t)
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 10, 23, 45, 0, 0, loc)

	w := s.ResolveWindow(now, Timeframe1D)
	assert.Equal(t, time.Date(2026, 3, 10, 23, 0, 0, 0, loc), w.End)
	assert.Equal(t, time.Date(2026, 3, 9, 16, 0, 0, 0, loc), w.Start)
}

func TestResolveWindow_BeforeOpen(t *testing.T) {
	s := mustSession(t)
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)

	w := s.ResolveWindow(now, Timeframe1D)
	// 开盘前：终点落到前一天的收盘
	assert.Equal(t, time.Date(2026, 3, 9, 23, 0, 0, 0, loc), w.End)
	assert.Equal(t, time.Date(2026, 3, 8, 16, 0, 0, 0, loc), w.Start)
}

func TestResolveWindow_LongerTimeframes(t *testing.T) {
	s := mustSession(t)
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, loc)

	cases := []struct {
		tf    Timeframe
		start time.Time
	}{
		{Timeframe1W, now.AddDate(0, 0, -7)},
		{Timeframe1M, now.AddDate(0, -1, 0)},
		{Timeframe3M, now.AddDate(0, -3, 0)},
		{Timeframe1Y, now.AddDate(-1, 0, 0)},
	}
	for _, c := range cases {
		w := s.ResolveWindow(now, c.tf)
		assert.True(t, w.Start.Equal(c.start), "timeframe %s", c.tf)
		assert.True(t, w.End.Equal(now), "timeframe %s", c.tf)
	}
}

func TestInterval(t *testing.T) {
	assert.Equal(t, "5m", Interval(Timeframe1D))
	assert.Equal(t, "15m", Interval(Timeframe1W))
	assert.Equal(t, "60m", Interval(Timeframe1M))
	assert.Equal(t, "1d", Interval(Timeframe3M))
	assert.Equal(t, "1d", Interval(Timeframe1Y))
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 1d ")
	require.NoError(t, err)
	assert.Equal(t, Timeframe1D, tf)

	_, err = ParseTimeframe("2D")
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestChangePercent(t *testing.T) {
	q := &Quote{
		Price:         decimal.RequireFromString("110"),
		PreviousClose: decimal.RequireFromString("100"),
	}
	assert.True(t, q.ChangePercent().Equal(decimal.RequireFromString("10")))

	zero := &Quote{Price: decimal.RequireFromString("110")}
	assert.True(t, zero.ChangePercent().IsZero())
}

func TestTimeSeriesAppend_KeepsAscendingOrder(t *testing.T) {
	ts := &TimeSeries{Symbol: "AAPL", Timeframe: Timeframe1D}
	base := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)

	ts.Append(base, decimal.RequireFromString("100"))
	ts.Append(base.Add(5*time.Minute), decimal.RequireFromString("101"))
	// 重复时间戳与乱序点都被丢弃
	ts.Append(base.Add(5*time.Minute), decimal.RequireFromString("999"))
	ts.Append(base, decimal.RequireFromString("999"))

	require.Len(t, ts.Points, 2)
	assert.True(t, ts.Points[1].Close.Equal(decimal.RequireFromString("101")))
}

func TestNewSyntheticQuote(t *testing.T) {
	now := time.Now()
	q := NewSyntheticQuote("AAPL", now)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, q.PreviousClose.Equal(decimal.RequireFromString("148.00")))
	assert.Equal(t, "synthetic", q.Vendor)
}
