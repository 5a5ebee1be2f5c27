package domain

import (
	"fmt"
	"time"
)

// MarketSession 模拟的交易时段：指定时区内的固定开收盘小时。
// "1D" 的语义是"最近一个完整交易时段"而不是"最近 24 小时"，
// 窗口计算全部以该时段为准。
type MarketSession struct {
	loc       *time.Location
	openHour  int
	closeHour int
}

// NewMarketSession 创建交易时段
func NewMarketSession(timezone string, openHour, closeHour int) (*MarketSession, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid session timezone %q: %w", timezone, err)
	}
	if openHour < 0 || openHour > 23 || closeHour < 0 || closeHour > 23 || openHour >= closeHour {
		return nil, fmt.Errorf("invalid session hours: open=%d close=%d", openHour, closeHour)
	}
	return &MarketSession{loc: loc, openHour: openHour, closeHour: closeHour}, nil
}

// Window 解析后的时间窗口
type Window struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow 将符号化时间范围解析为具体窗口。now 在交易时段之外时，
// 窗口终点回落到上一个交易时段的收盘。
func (s *MarketSession) ResolveWindow(now time.Time, tf Timeframe) Window {
	end := now.In(s.loc)
	hour := end.Hour()
	if hour < s.openHour || hour >= s.closeHour {
		if hour < s.openHour {
			end = end.AddDate(0, 0, -1)
		}
		end = time.Date(end.Year(), end.Month(), end.Day(), s.closeHour, 0, 0, 0, s.loc)
	}

	var start time.Time
	switch tf {
	case Timeframe1D:
		start = end.AddDate(0, 0, -1)
		start = time.Date(start.Year(), start.Month(), start.Day(), s.openHour, 0, 0, 0, s.loc)
	case Timeframe1W:
		start = end.AddDate(0, 0, -7)
	case Timeframe1M:
		start = end.AddDate(0, -1, 0)
	case Timeframe3M:
		start = end.AddDate(0, -3, 0)
	case Timeframe1Y:
		start = end.AddDate(-1, 0, 0)
	default:
		start = end.AddDate(0, 0, -1)
	}

	return Window{Start: start, End: end}
}

// Interval 时间范围对应的上游采样粒度
func Interval(tf Timeframe) string {
	switch tf {
	case Timeframe1D:
		return "5m"
	case Timeframe1W:
		return "15m"
	case Timeframe1M:
		return "60m"
	case Timeframe3M, Timeframe1Y:
		return "1d"
	default:
		return "5m"
	}
}
