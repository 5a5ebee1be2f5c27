// 包 domain 告警服务的领域模型
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 告警类别
const (
	// TypePriceChange 价格变动告警
	TypePriceChange = "price_change"
	// TypeTransaction 成交回报告警
	TypeTransaction = "transaction"
	// TypeWatchlistUpdate 自选股变更告警
	TypeWatchlistUpdate = "watchlist_update"
)

// Alert 告警实体。投递失败不影响落库，未读列表以数据库为准。
type Alert struct {
	gorm.Model
	// 告警 ID (业务主键)
	AlertID string `gorm:"column:alert_id;type:varchar(32);uniqueIndex;not null" json:"alert_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 标的代码（成交与自选类告警亦携带）
	Symbol string `gorm:"column:symbol;type:varchar(16);not null" json:"symbol"`
	// 类别（price_change / transaction / watchlist_update）
	Type string `gorm:"column:type;type:varchar(32);not null" json:"type"`
	// 展示文案
	Message string `gorm:"column:message;type:varchar(255);not null" json:"message"`
	// 是否已读
	Read bool `gorm:"column:read;default:false;not null" json:"read"`
	// 触发时间
	TriggeredAt time.Time `gorm:"column:triggered_at;not null" json:"triggered_at"`
}

// Settings 用户级告警开关与阈值，首次读取时以默认值惰性创建
type Settings struct {
	gorm.Model
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex;not null" json:"user_id"`
	// 价格变动告警开关
	PriceEnabled bool `gorm:"column:price_enabled;default:true;not null" json:"price_enabled"`
	// 成交回报告警开关
	TransactionEnabled bool `gorm:"column:transaction_enabled;default:true;not null" json:"transaction_enabled"`
	// 自选股变更告警开关
	WatchlistEnabled bool `gorm:"column:watchlist_enabled;default:true;not null" json:"watchlist_enabled"`
	// 价格变动触发阈值（百分比）
	PriceThreshold decimal.Decimal `gorm:"column:price_threshold;type:decimal(8,4);not null" json:"price_threshold"`
}

// Repository 告警仓储接口
type Repository interface {
	// SaveAlert 保存告警
	SaveAlert(ctx context.Context, alert *Alert) error
	// ListAlerts 按触发时间倒序分页列出用户告警
	ListAlerts(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Alert, int64, error)
	// MarkRead 将告警标记为已读
	MarkRead(ctx context.Context, userID, alertID string) error

	// GetSettings 读取用户告警设置，不存在返回 nil
	GetSettings(ctx context.Context, userID string) (*Settings, error)
	// SaveSettings 保存用户告警设置
	SaveSettings(ctx context.Context, settings *Settings) error
}

// Sender 告警投递出口（Kafka 等）
type Sender interface {
	Send(ctx context.Context, alert *Alert) error
}
