package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/papertrading/internal/alert/application"
	"github.com/wyfcoding/papertrading/internal/alert/domain"
)

type AlertHandler struct {
	engine *application.Engine
}

func NewAlertHandler(engine *application.Engine) *AlertHandler {
	return &AlertHandler{engine: engine}
}

func (h *AlertHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/alerts")
	{
		v1.GET("", h.List)
		v1.PUT("/:alert_id/read", h.MarkRead)
		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.UpdateSettings)
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

func (h *AlertHandler) List(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	unreadOnly := c.Query("unread") == "true"

	alerts, p, err := h.engine.ListAlerts(c.Request.Context(), uid, unreadOnly, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":     alerts,
		"pagination": p,
	})
}

func (h *AlertHandler) MarkRead(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.engine.MarkRead(c.Request.Context(), uid, c.Param("alert_id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *AlertHandler) GetSettings(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	settings, err := h.engine.GetSettings(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settingsResponse(settings))
}

type updateSettingsRequest struct {
	PriceEnabled       *bool   `json:"price_enabled"`
	TransactionEnabled *bool   `json:"transaction_enabled"`
	WatchlistEnabled   *bool   `json:"watchlist_enabled"`
	PriceThreshold     *string `json:"price_threshold"`
}

func (h *AlertHandler) UpdateSettings(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.engine.GetSettings(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.PriceEnabled != nil {
		settings.PriceEnabled = *req.PriceEnabled
	}
	if req.TransactionEnabled != nil {
		settings.TransactionEnabled = *req.TransactionEnabled
	}
	if req.WatchlistEnabled != nil {
		settings.WatchlistEnabled = *req.WatchlistEnabled
	}
	if req.PriceThreshold != nil {
		threshold, perr := decimal.NewFromString(*req.PriceThreshold)
		if perr != nil || !threshold.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price_threshold must be a positive number"})
			return
		}
		settings.PriceThreshold = threshold
	}

	if err := h.engine.UpdateSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settingsResponse(settings))
}

func settingsResponse(s *domain.Settings) gin.H {
	return gin.H{
		"price_enabled":       s.PriceEnabled,
		"transaction_enabled": s.TransactionEnabled,
		"watchlist_enabled":   s.WatchlistEnabled,
		"price_threshold":     s.PriceThreshold,
	}
}
