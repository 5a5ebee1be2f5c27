// Package sender 告警投递实现
package sender

import (
	"context"

	"github.com/wyfcoding/papertrading/internal/alert/domain"
	"github.com/wyfcoding/papertrading/pkg/mq"
)

// KafkaSender 将告警投递到 Kafka topic，key 为用户 ID 以保证
// 同一用户的告警在分区内有序。
type KafkaSender struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaSender 创建 Kafka 告警投递器
func NewKafkaSender(producer *mq.KafkaProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

// Send 投递一条告警
func (s *KafkaSender) Send(ctx context.Context, alert *domain.Alert) error {
	return s.producer.SendMessage(ctx, s.topic, alert.UserID, alert)
}
