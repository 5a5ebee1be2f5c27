// Package application 自选股应用层
package application

import (
	"context"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/watchlist/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// WatchlistNotifier 自选股变更后的告警回调
type WatchlistNotifier interface {
	HandleWatchlistChange(ctx context.Context, userID, symbol, action string)
}

// WatchlistService 自选股服务
type WatchlistService struct {
	repo     domain.Repository
	notifier WatchlistNotifier
}

// NewWatchlistService 创建自选股服务。notifier 可为 nil。
func NewWatchlistService(repo domain.Repository, notifier WatchlistNotifier) *WatchlistService {
	return &WatchlistService{repo: repo, notifier: notifier}
}

// Add 添加自选，重复添加为幂等空操作
func (s *WatchlistService) Add(ctx context.Context, userID, symbol string) error {
	symbol = mddomain.NormalizeSymbol(symbol)
	if symbol == "" {
		return mddomain.ErrBadSymbol
	}
	if err := s.repo.Add(ctx, userID, symbol); err != nil {
		return err
	}
	logger.Info(ctx, "Watchlist symbol added", "user_id", userID, "symbol", symbol)
	if s.notifier != nil {
		go s.notifier.HandleWatchlistChange(context.WithoutCancel(ctx), userID, symbol, "added")
	}
	return nil
}

// Remove 移除自选
func (s *WatchlistService) Remove(ctx context.Context, userID, symbol string) error {
	symbol = mddomain.NormalizeSymbol(symbol)
	if symbol == "" {
		return mddomain.ErrBadSymbol
	}
	if err := s.repo.Remove(ctx, userID, symbol); err != nil {
		return err
	}
	if s.notifier != nil {
		go s.notifier.HandleWatchlistChange(context.WithoutCancel(ctx), userID, symbol, "removed")
	}
	return nil
}

// List 列出用户全部自选标的
func (s *WatchlistService) List(ctx context.Context, userID string) ([]string, error) {
	return s.repo.List(ctx, userID)
}

// UsersWatching 列出关注某标的的全部用户
func (s *WatchlistService) UsersWatching(ctx context.Context, symbol string) ([]string, error) {
	return s.repo.UsersWatching(ctx, mddomain.NormalizeSymbol(symbol))
}
