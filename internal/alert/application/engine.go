// Package application 告警引擎：阈值判定、去抖与投递
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/papertrading/internal/alert/domain"
	ledgerdomain "github.com/wyfcoding/papertrading/internal/ledger/domain"
	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
	"github.com/wyfcoding/papertrading/pkg/utils"
)

// WatchlistLookup 告警扇出所需的自选股查询能力
type WatchlistLookup interface {
	UsersWatching(ctx context.Context, symbol string) ([]string, error)
}

// Engine 告警引擎。行情、成交、自选变更三类事件经各自入口进入，
// 价格告警按 (用户, 标的) 去抖，落库后投递，投递失败只记日志。
type Engine struct {
	repo       domain.Repository
	sender     domain.Sender
	watchlists WatchlistLookup
	metrics    *metrics.Metrics

	debounce         time.Duration
	defaultThreshold decimal.Decimal

	mu        sync.Mutex
	lastFired map[string]time.Time

	now func() time.Time
}

// NewEngine 创建告警引擎。sender 与 m 可为 nil。
func NewEngine(repo domain.Repository, sender domain.Sender, watchlists WatchlistLookup, m *metrics.Metrics, debounce time.Duration, defaultThreshold decimal.Decimal) *Engine {
	return &Engine{
		repo:             repo,
		sender:           sender,
		watchlists:       watchlists,
		metrics:          m,
		debounce:         debounce,
		defaultThreshold: defaultThreshold,
		lastFired:        make(map[string]time.Time),
		now:              time.Now,
	}
}

// HandleQuote 行情刷新入口。向所有关注该标的且涨跌幅越过各自阈值的
// 用户扇出价格告警。
func (e *Engine) HandleQuote(ctx context.Context, quote *mddomain.Quote) {
	change := quote.ChangePercent()
	users, err := e.watchlists.UsersWatching(ctx, quote.Symbol)
	if err != nil {
		logger.Error(ctx, "Watchlist fan-out failed", "symbol", quote.Symbol, "error", err)
		return
	}

	for _, userID := range users {
		settings, err := e.settingsFor(ctx, userID)
		if err != nil {
			logger.Error(ctx, "Failed to load alert settings", "user_id", userID, "error", err)
			continue
		}
		if !settings.PriceEnabled {
			continue
		}
		if change.Abs().LessThan(settings.PriceThreshold) {
			continue
		}
		if !e.shouldFire(userID, quote.Symbol) {
			continue
		}

		direction := "up"
		if change.IsNegative() {
			direction = "down"
		}
		e.emit(ctx, &domain.Alert{
			AlertID: fmt.Sprintf("ALT-%d", utils.GenID()),
			UserID:  userID,
			Symbol:  quote.Symbol,
			Type:    domain.TypePriceChange,
			Message: fmt.Sprintf("%s moved %s %s%% (price %s)",
				quote.Symbol, direction, change.Abs().StringFixed(2), quote.Price.String()),
			TriggeredAt: e.now(),
		})
	}
}

// HandleTrade 成交回报入口
func (e *Engine) HandleTrade(ctx context.Context, txn *ledgerdomain.Transaction) {
	settings, err := e.settingsFor(ctx, txn.UserID)
	if err != nil {
		logger.Error(ctx, "Failed to load alert settings", "user_id", txn.UserID, "error", err)
		return
	}
	if !settings.TransactionEnabled {
		return
	}

	e.emit(ctx, &domain.Alert{
		AlertID: fmt.Sprintf("ALT-%d", utils.GenID()),
		UserID:  txn.UserID,
		Symbol:  txn.Symbol,
		Type:    domain.TypeTransaction,
		Message: fmt.Sprintf("%s %d %s @ %s executed",
			txn.Side, txn.Quantity, txn.Symbol, txn.Price.String()),
		TriggeredAt: e.now(),
	})
}

// HandleWatchlistChange 自选股变更入口
func (e *Engine) HandleWatchlistChange(ctx context.Context, userID, symbol, action string) {
	settings, err := e.settingsFor(ctx, userID)
	if err != nil {
		logger.Error(ctx, "Failed to load alert settings", "user_id", userID, "error", err)
		return
	}
	if !settings.WatchlistEnabled {
		return
	}

	e.emit(ctx, &domain.Alert{
		AlertID:     fmt.Sprintf("ALT-%d", utils.GenID()),
		UserID:      userID,
		Symbol:      symbol,
		Type:        domain.TypeWatchlistUpdate,
		Message:     fmt.Sprintf("%s %s your watchlist", symbol, actionVerb(action)),
		TriggeredAt: e.now(),
	})
}

// ListAlerts 按触发时间倒序分页列出告警
func (e *Engine) ListAlerts(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]*domain.Alert, *utils.Pagination, error) {
	p := utils.NewPagination(page, pageSize, 0)
	alerts, total, err := e.repo.ListAlerts(ctx, userID, unreadOnly, p.PageSize, p.Offset())
	if err != nil {
		return nil, nil, err
	}
	return alerts, utils.NewPagination(p.Page, p.PageSize, total), nil
}

// MarkRead 标记告警已读
func (e *Engine) MarkRead(ctx context.Context, userID, alertID string) error {
	return e.repo.MarkRead(ctx, userID, alertID)
}

// GetSettings 读取用户告警设置，不存在时以默认值惰性创建
func (e *Engine) GetSettings(ctx context.Context, userID string) (*domain.Settings, error) {
	return e.settingsFor(ctx, userID)
}

// UpdateSettings 保存用户告警设置
func (e *Engine) UpdateSettings(ctx context.Context, settings *domain.Settings) error {
	if !settings.PriceThreshold.IsPositive() {
		settings.PriceThreshold = e.defaultThreshold
	}
	existing, err := e.repo.GetSettings(ctx, settings.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		settings.ID = existing.ID
		settings.CreatedAt = existing.CreatedAt
	}
	return e.repo.SaveSettings(ctx, settings)
}

func (e *Engine) settingsFor(ctx context.Context, userID string) (*domain.Settings, error) {
	settings, err := e.repo.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	settings = &domain.Settings{
		UserID:             userID,
		PriceEnabled:       true,
		TransactionEnabled: true,
		WatchlistEnabled:   true,
		PriceThreshold:     e.defaultThreshold,
	}
	if err := e.repo.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// shouldFire 去抖判定。同一 (用户, 标的) 的价格告警在窗口内最多一次，
// 判定通过即记录触发时间。
func (e *Engine) shouldFire(userID, symbol string) bool {
	key := userID + "|" + symbol
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.debounce {
		return false
	}
	e.lastFired[key] = now
	return true
}

func (e *Engine) emit(ctx context.Context, alert *domain.Alert) {
	if err := e.repo.SaveAlert(ctx, alert); err != nil {
		logger.Error(ctx, "Failed to persist alert", "alert_id", alert.AlertID, "error", err)
		return
	}
	if e.metrics != nil {
		e.metrics.AlertsTotal.Inc()
	}
	logger.Info(ctx, "Alert triggered",
		"alert_id", alert.AlertID,
		"user_id", alert.UserID,
		"symbol", alert.Symbol,
		"type", alert.Type,
	)

	if e.sender == nil {
		return
	}
	if err := e.sender.Send(ctx, alert); err != nil {
		logger.Error(ctx, "Failed to deliver alert", "alert_id", alert.AlertID, "error", err)
	}
}

func actionVerb(action string) string {
	if action == "removed" {
		return "was removed from"
	}
	return "was added to"
}
