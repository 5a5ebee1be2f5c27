package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

const globalQuoteBody = `{
	"Global Quote": {
		"01. symbol": "AAPL",
		"05. price": "189.4300",
		"07. latest trading day": "2026-03-10",
		"08. previous close": "187.1500"
	}
}`

func newAlphaVantageServer(t *testing.T, handler http.HandlerFunc) *AlphaVantage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAlphaVantage(srv.URL, "test-key", time.Second, 2*time.Second)
}

func TestAlphaVantage_FetchQuote(t *testing.T) {
	p := newAlphaVantageServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(globalQuoteBody))
	})

	q, err := p.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("189.43")))
	assert.True(t, q.PreviousClose.Equal(decimal.RequireFromString("187.15")))
	assert.Equal(t, "alphavantage", q.Vendor)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), q.AsOf)
}

func TestAlphaVantage_RateLimitNote(t *testing.T) {
	p := newAlphaVantageServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	})

	_, err := p.FetchQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestAlphaVantage_BadSymbol(t *testing.T) {
	p := newAlphaVantageServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	})

	_, err := p.FetchQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrBadSymbol)
}

func TestAlphaVantage_EmptyResponse(t *testing.T) {
	p := newAlphaVantageServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := p.FetchQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestAlphaVantage_ServerError(t *testing.T) {
	p := newAlphaVantageServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.FetchQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestAlphaVantage_HTTP429(t *testing.T) {
	p := newAlphaVantageServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.FetchQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

const yahooChartBody = `{
	"chart": {
		"result": [{
			"timestamp": [1767972600, 1767972900, 1767973200],
			"indicators": {
				"quote": [{"close": [189.43, null, 190.02]}]
			}
		}],
		"error": null
	}
}`

func newYahooServer(t *testing.T, handler http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahoo(srv.URL, time.Second, 2*time.Second)
}

func testWindow() domain.Window {
	return domain.Window{
		Start: time.Date(2026, 1, 8, 16, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC),
	}
}

func TestYahoo_FetchSeries(t *testing.T) {
	p := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		assert.NotEmpty(t, r.URL.Query().Get("period2"))
		w.Write([]byte(yahooChartBody))
	})

	series, err := p.FetchSeries(context.Background(), "AAPL", domain.Timeframe1D, testWindow())
	require.NoError(t, err)
	assert.Equal(t, "AAPL", series.Symbol)
	// null 采样点被跳过
	require.Len(t, series.Points, 2)
	assert.True(t, series.Points[0].Timestamp.Before(series.Points[1].Timestamp))
}

func TestYahoo_ChartError(t *testing.T) {
	p := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
	})

	_, err := p.FetchSeries(context.Background(), "NOPE", domain.Timeframe1D, testWindow())
	assert.ErrorIs(t, err, domain.ErrBadSymbol)
}

func TestYahoo_EmptyResult(t *testing.T) {
	p := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": null}}`))
	})

	_, err := p.FetchSeries(context.Background(), "AAPL", domain.Timeframe1D, testWindow())
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestYahoo_AllNullCloses(t *testing.T) {
	p := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{"timestamp": [1767972600], "indicators": {"quote": [{"close": [null]}]}}], "error": null}}`))
	})

	_, err := p.FetchSeries(context.Background(), "AAPL", domain.Timeframe1D, testWindow())
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestYahoo_NotFound(t *testing.T) {
	p := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := p.FetchSeries(context.Background(), "NOPE", domain.Timeframe1D, testWindow())
	assert.ErrorIs(t, err, domain.ErrBadSymbol)
}
