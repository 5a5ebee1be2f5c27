// Package mysql 告警仓储的 MySQL 实现
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/papertrading/internal/alert/domain"
)

type alertRepository struct {
	db *gorm.DB
}

// NewRepository 创建告警仓储
func NewRepository(db *gorm.DB) domain.Repository {
	return &alertRepository{db: db}
}

// SaveAlert 保存告警
func (r *alertRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// ListAlerts 按触发时间倒序分页列出用户告警
func (r *alertRepository) ListAlerts(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Alert, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Alert{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("`read` = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []*domain.Alert
	err := query.Order("triggered_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&alerts).Error
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// MarkRead 将告警标记为已读
func (r *alertRepository) MarkRead(ctx context.Context, userID, alertID string) error {
	result := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("user_id = ? AND alert_id = ?", userID, alertID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetSettings 读取用户告警设置，不存在返回 nil
func (r *alertRepository) GetSettings(ctx context.Context, userID string) (*domain.Settings, error) {
	var settings domain.Settings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// SaveSettings 保存用户告警设置
func (r *alertRepository) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
