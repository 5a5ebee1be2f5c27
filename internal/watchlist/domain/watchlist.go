// 包 domain 自选股的领域模型
package domain

import (
	"context"

	"gorm.io/gorm"
)

// Item 自选股条目。用户与标的的组合唯一，重复添加为幂等空操作。
type Item struct {
	gorm.Model
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_watch_user_symbol;not null" json:"user_id"`
	// 标的代码
	Symbol string `gorm:"column:symbol;type:varchar(16);uniqueIndex:idx_watch_user_symbol;not null" json:"symbol"`
}

// Repository 自选股仓储接口
type Repository interface {
	// Add 添加自选，已存在时不报错
	Add(ctx context.Context, userID, symbol string) error
	// Remove 移除自选，不存在时不报错
	Remove(ctx context.Context, userID, symbol string) error
	// List 列出用户全部自选标的
	List(ctx context.Context, userID string) ([]string, error)
	// UsersWatching 列出关注某标的的全部用户，供告警扇出
	UsersWatching(ctx context.Context, symbol string) ([]string, error)
}
