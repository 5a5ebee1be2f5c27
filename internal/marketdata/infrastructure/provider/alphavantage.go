// Package provider 上游行情数据源接入
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// newHTTPClient 数据源共用的 HTTP 客户端构造
func newHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: connectTimeout,
		},
	}
}

// AlphaVantage GLOBAL_QUOTE 报价源。免费配额极小，限流时上游以
// HTTP 200 + "Note" 字段回应，必须按响应体而不是状态码判定。
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAlphaVantage 创建 AlphaVantage 报价源
func NewAlphaVantage(baseURL, apiKey string, connectTimeout, readTimeout time.Duration) *AlphaVantage {
	return &AlphaVantage{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(connectTimeout, readTimeout),
	}
}

// Name 数据源标识
func (p *AlphaVantage) Name() string { return "alphavantage" }

type globalQuoteResponse struct {
	GlobalQuote *struct {
		Symbol           string `json:"01. symbol"`
		Price            string `json:"05. price"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// FetchQuote 抓取即时报价
func (p *AlphaVantage) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", p.apiKey)

	reqURL := p.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	var payload globalQuoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}

	if isRateLimitNote(payload.Note) || isRateLimitNote(payload.Information) {
		logger.Warn(ctx, "AlphaVantage rate limit hit", "symbol", symbol)
		return nil, domain.ErrRateLimited
	}
	if payload.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadSymbol, payload.ErrorMessage)
	}
	if payload.GlobalQuote == nil || payload.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("%w: missing global quote", domain.ErrParseFailure)
	}

	price, err := decimal.NewFromString(payload.GlobalQuote.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: bad price %q", domain.ErrParseFailure, payload.GlobalQuote.Price)
	}
	prevClose, err := decimal.NewFromString(payload.GlobalQuote.PreviousClose)
	if err != nil {
		return nil, fmt.Errorf("%w: bad previous close %q", domain.ErrParseFailure, payload.GlobalQuote.PreviousClose)
	}

	asOf := time.Now()
	if day, derr := time.Parse("2006-01-02", payload.GlobalQuote.LatestTradingDay); derr == nil {
		asOf = day
	}

	return &domain.Quote{
		Symbol:        domain.NormalizeSymbol(symbol),
		Price:         price,
		PreviousClose: prevClose,
		AsOf:          asOf,
		Vendor:        p.Name(),
	}, nil
}

// isRateLimitNote 上游限流提示文案判定
func isRateLimitNote(note string) bool {
	if note == "" {
		return false
	}
	return strings.Contains(note, "API call frequency") ||
		strings.Contains(note, "rate limit") ||
		strings.Contains(note, "premium")
}
