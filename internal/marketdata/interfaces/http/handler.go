package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/papertrading/internal/marketdata/application"
	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

type MarketDataHandler struct {
	svc *application.MarketDataService
}

func NewMarketDataHandler(svc *application.MarketDataService) *MarketDataHandler {
	return &MarketDataHandler{svc: svc}
}

func (h *MarketDataHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/market")
	{
		v1.GET("/quote/:symbol", h.GetQuote)
		v1.GET("/series/:symbol", h.GetSeries)
		v1.DELETE("/cache", h.ClearCache)
	}
}

func (h *MarketDataHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	res, err := h.svc.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrBadSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		if errors.Is(err, application.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data temporarily unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":         res.Quote.Symbol,
		"price":          res.Quote.Price,
		"previous_close": res.Quote.PreviousClose,
		"change_percent": res.Quote.ChangePercent(),
		"as_of":          res.Quote.AsOf,
		"vendor":         res.Quote.Vendor,
		"provenance":     res.Provenance,
	})
}

func (h *MarketDataHandler) GetSeries(c *gin.Context) {
	symbol := c.Param("symbol")
	tf, err := domain.ParseTimeframe(c.DefaultQuery("timeframe", "1D"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeframe"})
		return
	}

	res, err := h.svc.GetSeries(c.Request.Context(), symbol, tf)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBadSymbol):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		case errors.Is(err, application.ErrQueueFull):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data temporarily unavailable"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "series unavailable"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     res.Series.Symbol,
		"timeframe":  res.Series.Timeframe,
		"points":     res.Series.Points,
		"provenance": res.Provenance,
	})
}

func (h *MarketDataHandler) ClearCache(c *gin.Context) {
	if err := h.svc.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
}
