// Package mysql 账本仓储的 MySQL 实现
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/papertrading/internal/ledger/domain"
	"github.com/wyfcoding/papertrading/pkg/contextx"
)

// ledgerRepository 账本仓储实现。WithTx 将事务句柄放入 context，
// 事务内的读写经 getDB 路由到同一连接。
type ledgerRepository struct {
	db *gorm.DB
}

// NewRepository 创建账本仓储
func NewRepository(db *gorm.DB) domain.Repository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := contextx.TxFrom(ctx); tx != nil {
		return tx
	}
	return r.db
}

// WithTx 在单一事务内执行 fn
func (r *ledgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

// GetAccount 按用户查账户，不存在返回 nil
func (r *ledgerRepository) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	var account domain.Account
	err := r.getDB(ctx).WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// SaveAccount 保存账户（带乐观锁）
func (r *ledgerRepository) SaveAccount(ctx context.Context, account *domain.Account) error {
	db := r.getDB(ctx).WithContext(ctx)

	if account.ID == 0 {
		return db.Create(account).Error
	}

	currentVersion := account.Version
	result := db.Model(&domain.Account{}).
		Where("user_id = ? AND version = ?", account.UserID, currentVersion).
		Updates(map[string]any{
			"cash_balance": account.CashBalance,
			"version":      currentVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}

	account.Version = currentVersion + 1
	return nil
}

// GetHolding 按用户与标的查持仓，不存在返回 nil
func (r *ledgerRepository) GetHolding(ctx context.Context, userID, symbol string) (*domain.Holding, error) {
	var holding domain.Holding
	err := r.getDB(ctx).WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&holding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

// SaveHolding 保存持仓
func (r *ledgerRepository) SaveHolding(ctx context.Context, holding *domain.Holding) error {
	return r.getDB(ctx).WithContext(ctx).Save(holding).Error
}

// DeleteHolding 删除持仓
func (r *ledgerRepository) DeleteHolding(ctx context.Context, userID, symbol string) error {
	return r.getDB(ctx).WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&domain.Holding{}).Error
}

// ListHoldings 列出用户全部持仓
func (r *ledgerRepository) ListHoldings(ctx context.Context, userID string) ([]*domain.Holding, error) {
	var holdings []*domain.Holding
	err := r.getDB(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol ASC").
		Find(&holdings).Error
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

// SaveTransaction 追加成交流水
func (r *ledgerRepository) SaveTransaction(ctx context.Context, txn *domain.Transaction) error {
	return r.getDB(ctx).WithContext(ctx).Create(txn).Error
}

// ListTransactions 按时间倒序分页列出流水
func (r *ledgerRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, int64, error) {
	db := r.getDB(ctx).WithContext(ctx).Model(&domain.Transaction{}).Where("user_id = ?", userID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []*domain.Transaction
	err := db.Order("executed_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
