package framework

import (
	"context"
	"time"
)

// MessageSource 消息源接口（适配不同 MQ）
type MessageSource interface {
	// Consume 消费消息（阻塞，直到拉取到消息或超时）
	// TTR 是租约：拉取后的消息在 TTR 内对其他消费者不可见
	Consume(queue string, timeout time.Duration, ttr time.Duration) (*Message, error)

	// Ack 确认消息（删除消息，结束租约）
	Ack(queue string, jobID string) error
}

// Publisher 消息发布接口（延迟重试与通知入队用）
type Publisher interface {
	// Publish 发布消息，delay 为延迟投递秒数
	Publish(queue string, data []byte, ttl uint32, delay uint32) error
}

// Proc 业务处理函数类型
type Proc func(ctx context.Context, msg *Message) *JobResp
