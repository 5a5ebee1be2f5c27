package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/papertrading/internal/ledger/application"
	"github.com/wyfcoding/papertrading/internal/ledger/infrastructure/persistence/memory"
	mdapp "github.com/wyfcoding/papertrading/internal/marketdata/application"
	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

type stubCache struct{}

func (stubCache) Get(context.Context, mddomain.CacheKey) (*mddomain.CacheEntry, error) {
	return nil, nil
}
func (stubCache) Put(context.Context, mddomain.CacheKey, any, time.Time) error { return nil }
func (stubCache) Clear(context.Context) error                                  { return nil }

type stubQuoteProvider struct {
	err error
}

func (p *stubQuoteProvider) FetchQuote(_ context.Context, symbol string) (*mddomain.Quote, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &mddomain.Quote{
		Symbol:        symbol,
		Price:         decimal.RequireFromString("150.00"),
		PreviousClose: decimal.RequireFromString("148.00"),
		AsOf:          time.Now(),
		Vendor:        "stub",
	}, nil
}
func (p *stubQuoteProvider) Name() string { return "stub" }

type stubSeriesProvider struct{}

func (stubSeriesProvider) FetchSeries(context.Context, string, mddomain.Timeframe, mddomain.Window) (*mddomain.TimeSeries, error) {
	return nil, mddomain.ErrNetwork
}
func (stubSeriesProvider) Name() string { return "stub" }

func newTestRouter(t *testing.T, providerErr error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	scheduler := mdapp.NewFetchScheduler(time.Millisecond, 16, nil)
	scheduler.Start(ctx)

	session, err := mddomain.NewMarketSession("Asia/Jerusalem", 16, 23)
	require.NoError(t, err)

	market := mdapp.NewMarketDataService(
		stubCache{}, &stubQuoteProvider{err: providerErr}, stubSeriesProvider{},
		scheduler, session, nil, nil,
		12*time.Hour, 12*time.Hour,
	)

	ledger := application.NewLedgerService(memory.New(), nil, nil, decimal.RequireFromString("100000.00"), 3)

	r := gin.New()
	NewLedgerHandler(ledger, market).RegisterRoutes(r.Group("/api"))
	return r
}

func doRequest(r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBuy_Success(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/buy", "u1", `{"symbol":"AAPL","quantity":10}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp["symbol"])
	assert.Equal(t, "BUY", resp["side"])
	assert.Equal(t, "real", resp["provenance"])
}

func TestBuy_RefusesSyntheticPricing(t *testing.T) {
	// 上游不可用且无缓存：报价降级为合成数据，交易必须被拒绝
	r := newTestRouter(t, mddomain.ErrNetwork)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/buy", "u1", `{"symbol":"AAPL","quantity":10}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "no reliable price")
}

func TestBuy_InsufficientFunds(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/buy", "u1", `{"symbol":"AAPL","quantity":10000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSell_WithoutHolding(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/sell", "u1", `{"symbol":"AAPL","quantity":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTrade_RequiresUserHeader(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/buy", "", `{"symbol":"AAPL","quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTrade_BadBody(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/buy", "u1", `{"symbol":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccountAndPortfolioAndTransactions(t *testing.T) {
	r := newTestRouter(t, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/trades/buy", "u1", `{"symbol":"AAPL","quantity":10}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/account", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var account map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.Equal(t, "98500", account["cash_balance"])

	w = doRequest(r, http.MethodGet, "/api/v1/portfolio", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var portfolio struct {
		Positions []map[string]any `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &portfolio))
	require.Len(t, portfolio.Positions, 1)
	assert.Equal(t, "AAPL", portfolio.Positions[0]["symbol"])

	w = doRequest(r, http.MethodGet, "/api/v1/transactions", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TXN-")
}
