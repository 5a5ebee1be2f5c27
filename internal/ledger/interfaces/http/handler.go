package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/ledger/application"
	"github.com/wyfcoding/papertrading/internal/ledger/domain"
	mdapp "github.com/wyfcoding/papertrading/internal/marketdata/application"
	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

type LedgerHandler struct {
	ledger *application.LedgerService
	market *mdapp.MarketDataService
}

func NewLedgerHandler(ledger *application.LedgerService, market *mdapp.MarketDataService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, market: market}
}

func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1")
	{
		v1.POST("/trades/buy", h.Buy)
		v1.POST("/trades/sell", h.Sell)
		v1.GET("/account", h.GetAccount)
		v1.GET("/portfolio", h.GetPortfolio)
		v1.GET("/transactions", h.GetTransactions)
	}
}

type tradeRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

type executeFunc func(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal) (*domain.Transaction, error)

func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return "", false
	}
	return id, true
}

func (h *LedgerHandler) Buy(c *gin.Context) {
	h.trade(c, h.ledger.ExecuteBuy)
}

func (h *LedgerHandler) Sell(c *gin.Context) {
	h.trade(c, h.ledger.ExecuteSell)
}

// trade 以当前行情定价并执行买卖。合成行情不可用于定价，直接拒绝。
func (h *LedgerHandler) trade(c *gin.Context, execute executeFunc) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.market.GetQuote(c.Request.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, mddomain.ErrBadSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pricing unavailable"})
		return
	}
	if quote.Provenance == mddomain.ProvenanceSynthetic {
		c.JSON(http.StatusConflict, gin.H{"error": "no reliable price available for symbol"})
		return
	}

	txn, err := execute(c.Request.Context(), uid, req.Symbol, req.Quantity, quote.Quote.Price)
	if err != nil {
		h.tradeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction_id": txn.TransactionID,
		"symbol":         txn.Symbol,
		"side":           txn.Side,
		"quantity":       txn.Quantity,
		"price":          txn.Price,
		"amount":         txn.Amount,
		"executed_at":    txn.ExecutedAt,
		"provenance":     quote.Provenance,
	})
}

func (h *LedgerHandler) tradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientShares):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "trade conflicted with a concurrent update, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      account.UserID,
		"cash_balance": account.CashBalance,
	})
}

func (h *LedgerHandler) GetPortfolio(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	account, holdings, err := h.ledger.GetPortfolio(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	positions := make([]gin.H, 0, len(holdings))
	for _, holding := range holdings {
		position := gin.H{
			"symbol":   holding.Symbol,
			"quantity": holding.Quantity,
			"avg_cost": holding.AvgCost,
		}
		// 市值按当前行情估算，估算口径随行情来源标记透出
		if quote, qerr := h.market.GetQuote(c.Request.Context(), holding.Symbol); qerr == nil {
			marketValue := quote.Quote.Price.Mul(decimal.NewFromInt(holding.Quantity))
			costBasis := holding.AvgCost.Mul(decimal.NewFromInt(holding.Quantity))
			position["current_price"] = quote.Quote.Price
			position["market_value"] = marketValue
			position["unrealized_pnl"] = marketValue.Sub(costBasis)
			position["provenance"] = quote.Provenance
		}
		positions = append(positions, position)
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      account.UserID,
		"cash_balance": account.CashBalance,
		"positions":    positions,
	})
}

func (h *LedgerHandler) GetTransactions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	txns, p, err := h.ledger.GetTransactions(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"pagination":   p,
	})
}
