package notify

import (
	"context"
	"encoding/json"

	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/framework"
	"tpabridge/pkg/logger"
)

// Consumer 通知队列消费器（注入到通知 Worker 的 Processor）
type Consumer struct {
	dispatcher *Dispatcher
	logger     logger.Logger
}

// NewConsumer 创建通知消费器
func NewConsumer(dispatcher *Dispatcher, log logger.Logger) *Consumer {
	return &Consumer{dispatcher: dispatcher, logger: log}
}

// Proc 返回处理函数
func (c *Consumer) Proc() framework.Proc {
	return func(ctx context.Context, msg *framework.Message) *framework.JobResp {
		var event model.NotificationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// 信封损坏无法重试，Ack 丢弃
			c.logger.Errorf(ctx, "[NotifyConsumer] unmarshal event failed: %v, raw=%s", err, string(msg.Data))
			return &framework.JobResp{Action: framework.JobRespStatusSuccess}
		}

		ctx = context.WithValue(ctx, logger.CtxKeyRequestID, event.RequestID)

		if err := c.dispatcher.Dispatch(ctx, &event); err != nil {
			// 所有渠道都失败：不 Ack，等租约到期重投
			c.logger.Errorf(ctx, "[NotifyConsumer] dispatch failed: request=%s, err=%v", event.RequestID, err)
			return &framework.JobResp{Action: framework.JobRespStatusRelease}
		}

		c.logger.Infof(ctx, "[NotifyConsumer] notification dispatched: request=%s, event=%s", event.RequestID, event.Event)
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}
}
