package notify

import (
	"context"

	"tpabridge/internal/app/domains/model"
	"tpabridge/pkg/logger"
)

// 通知渠道名
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Sender 通知发送接口（渠道抽象）
type Sender interface {
	// Name 渠道名
	Name() string

	// Send 发送一条终态通知
	Send(ctx context.Context, event *model.NotificationEvent) error
}

// EmailSender 邮件渠道
// 目前只对接日志出口，真实网关接入时替换 Send 内部实现即可
type EmailSender struct {
	from   string
	logger logger.Logger
}

// NewEmailSender 创建邮件渠道
func NewEmailSender(from string, log logger.Logger) *EmailSender {
	return &EmailSender{from: from, logger: log}
}

// Name 渠道名
func (s *EmailSender) Name() string { return ChannelEmail }

// Send 发送邮件通知
func (s *EmailSender) Send(ctx context.Context, event *model.NotificationEvent) error {
	s.logger.Infof(ctx, "[EmailSender] from=%s, to_subject=%s, request=%s, kind=%s, event=%s, tag=%s",
		s.from, event.Subject, event.RequestID, event.Kind, event.Event, event.Tag)
	return nil
}

// SMSSender 短信渠道
type SMSSender struct {
	from   string
	logger logger.Logger
}

// NewSMSSender 创建短信渠道
func NewSMSSender(from string, log logger.Logger) *SMSSender {
	return &SMSSender{from: from, logger: log}
}

// Name 渠道名
func (s *SMSSender) Name() string { return ChannelSMS }

// Send 发送短信通知
func (s *SMSSender) Send(ctx context.Context, event *model.NotificationEvent) error {
	s.logger.Infof(ctx, "[SMSSender] from=%s, to_subject=%s, request=%s, kind=%s, event=%s, tag=%s",
		s.from, event.Subject, event.RequestID, event.Kind, event.Event, event.Tag)
	return nil
}
