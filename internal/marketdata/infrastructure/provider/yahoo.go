package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

// Yahoo v8 chart K 线源。close 数组中缺失的采样点以 null 出现，
// 解析时直接跳过。
type Yahoo struct {
	baseURL string
	client  *http.Client
}

// NewYahoo 创建 Yahoo 行情源
func NewYahoo(baseURL string, connectTimeout, readTimeout time.Duration) *Yahoo {
	return &Yahoo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(connectTimeout, readTimeout),
	}
}

// Name 数据源标识
func (p *Yahoo) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries 抓取指定窗口内的收盘价序列
func (p *Yahoo) FetchSeries(ctx context.Context, symbol string, tf domain.Timeframe, window domain.Window) (*domain.TimeSeries, error) {
	params := url.Values{}
	params.Set("interval", domain.Interval(tf))
	params.Set("period1", fmt.Sprintf("%d", window.Start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", window.End.Unix()))

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "papertrading/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrBadSymbol
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	var payload yahooChartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadSymbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: empty chart result", domain.ErrParseFailure)
	}

	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	if len(result.Timestamp) != len(closes) {
		return nil, fmt.Errorf("%w: timestamp/close length mismatch", domain.ErrParseFailure)
	}

	series := &domain.TimeSeries{
		Symbol:    domain.NormalizeSymbol(symbol),
		Timeframe: tf,
	}
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		series.Append(time.Unix(ts, 0).UTC(), decimal.NewFromFloat(*closes[i]))
	}

	if len(series.Points) == 0 {
		return nil, fmt.Errorf("%w: no usable data points", domain.ErrParseFailure)
	}
	return series, nil
}
