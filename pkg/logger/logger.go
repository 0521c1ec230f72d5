package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志字段的 Context Key（由 processor/middleware 注入）
type ctxKey string

const (
	CtxKeyRequestID  ctxKey = "request_id"
	CtxKeyWorkerID   ctxKey = "worker_id"
	CtxKeyActionType ctxKey = "action_type"
)

// WithRequestID 往 Context 注入 TraceID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxKeyRequestID, requestID)
}

// Logger 日志接口
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
	Sync() error
}

// ZapLogger Zap 日志实现
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger 创建 Zap 日志实例
func NewZapLogger(level string) (Logger, error) {
	// 解析日志级别
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger}, nil
}

// extractFields 从 Context 提取日志字段
func (l *ZapLogger) extractFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0)

	if requestID, ok := ctx.Value(CtxKeyRequestID).(string); ok && requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if workerID, ok := ctx.Value(CtxKeyWorkerID).(int); ok {
		fields = append(fields, zap.Int("worker_id", workerID))
	}

	if actionType, ok := ctx.Value(CtxKeyActionType).(string); ok && actionType != "" {
		fields = append(fields, zap.String("action_type", actionType))
	}

	return fields
}

// Debugf 输出 Debug 日志
func (l *ZapLogger) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Infof 输出 Info 日志
func (l *ZapLogger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Warnf 输出 Warn 日志
func (l *ZapLogger) Warnf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Errorf 输出 Error 日志
func (l *ZapLogger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Sync 同步日志缓冲区
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// Nop 空日志实现（用于测试）
type Nop struct{}

func (Nop) Debugf(ctx context.Context, format string, args ...interface{}) {}
func (Nop) Infof(ctx context.Context, format string, args ...interface{})  {}
func (Nop) Warnf(ctx context.Context, format string, args ...interface{})  {}
func (Nop) Errorf(ctx context.Context, format string, args ...interface{}) {}
func (Nop) Sync() error                                                    { return nil }
