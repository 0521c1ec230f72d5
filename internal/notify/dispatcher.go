package notify

import (
	"context"

	"tpabridge/internal/app/domains/model"
	"tpabridge/pkg/logger"
)

// Dispatcher 通知分发器：把终态事件推给所有已配置的渠道
// 尽力而为：单个渠道失败重试一次，仍失败只记日志，不阻塞其他渠道
type Dispatcher struct {
	senders []Sender
	logger  logger.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(senders []Sender, log logger.Logger) *Dispatcher {
	return &Dispatcher{senders: senders, logger: log}
}

// Dispatch 分发一条通知到所有渠道
// 返回 error 仅在所有渠道都失败时（供消费侧决定是否重投）
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.NotificationEvent) error {
	if len(d.senders) == 0 {
		d.logger.Warnf(ctx, "[Dispatcher] no senders configured, dropping: request=%s", event.RequestID)
		return nil
	}

	var lastErr error
	delivered := 0
	for _, sender := range d.senders {
		if err := d.sendWithRetry(ctx, sender, event); err != nil {
			d.logger.Errorf(ctx, "[Dispatcher] channel %s failed: request=%s, err=%v",
				sender.Name(), event.RequestID, err)
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return lastErr
	}
	return nil
}

// sendWithRetry 单渠道发送，失败重试一次
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender Sender, event *model.NotificationEvent) error {
	err := sender.Send(ctx, event)
	if err == nil {
		return nil
	}
	d.logger.Warnf(ctx, "[Dispatcher] channel %s first attempt failed, retrying: request=%s, err=%v",
		sender.Name(), event.RequestID, err)
	return sender.Send(ctx, event)
}
