package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/watchlist/application"
)

type WatchlistHandler struct {
	svc *application.WatchlistService
}

func NewWatchlistHandler(svc *application.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{svc: svc}
}

func (h *WatchlistHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/watchlist")
	{
		v1.GET("", h.List)
		v1.POST("/:symbol", h.Add)
		v1.DELETE("/:symbol", h.Remove)
	}
}

func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return "", false
	}
	return id, true
}

func (h *WatchlistHandler) List(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	symbols, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (h *WatchlistHandler) Add(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.svc.Add(c.Request.Context(), uid, c.Param("symbol")); err != nil {
		if errors.Is(err, mddomain.ErrBadSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "added"})
}

func (h *WatchlistHandler) Remove(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.svc.Remove(c.Request.Context(), uid, c.Param("symbol")); err != nil {
		if errors.Is(err, mddomain.ErrBadSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}
