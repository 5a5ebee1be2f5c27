// Package mysql 自选股仓储的 MySQL 实现
package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/papertrading/internal/watchlist/domain"
)

type watchlistRepository struct {
	db *gorm.DB
}

// NewRepository 创建自选股仓储
func NewRepository(db *gorm.DB) domain.Repository {
	return &watchlistRepository{db: db}
}

// Add 添加自选，冲突时忽略以保证幂等
func (r *watchlistRepository) Add(ctx context.Context, userID, symbol string) error {
	item := &domain.Item{UserID: userID, Symbol: symbol}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item).Error
}

// Remove 移除自选
func (r *watchlistRepository) Remove(ctx context.Context, userID, symbol string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&domain.Item{}).Error
}

// List 列出用户全部自选标的
func (r *watchlistRepository) List(ctx context.Context, userID string) ([]string, error) {
	var symbols []string
	err := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("user_id = ?", userID).
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// UsersWatching 列出关注某标的的全部用户
func (r *watchlistRepository) UsersWatching(ctx context.Context, symbol string) ([]string, error) {
	var users []string
	err := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("symbol = ?", symbol).
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
