package sender

import (
	"context"

	"github.com/wyfcoding/papertrading/internal/alert/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// NoopSender 只记日志的投递器，本地开发未接 Kafka 时使用
type NoopSender struct{}

// NewNoopSender 创建空投递器
func NewNoopSender() *NoopSender { return &NoopSender{} }

// Send 记录日志后丢弃
func (s *NoopSender) Send(ctx context.Context, alert *domain.Alert) error {
	logger.Debug(ctx, "Alert delivery skipped (no broker configured)",
		"alert_id", alert.AlertID, "user_id", alert.UserID, "type", alert.Type)
	return nil
}
