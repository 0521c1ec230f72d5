package ratelimit

import (
	"context"
	"time"
)

// Limiter 滑动窗口限流器接口
// subjectKey 为 "用户:端点" 组合键；窗口只随时间流逝复位，不提供显式重置
type Limiter interface {
	// Allow 原子地检查并占用一个配额槽位
	// 拒绝时返回 retryAfter（窗口剩余时间提示）
	Allow(ctx context.Context, subjectKey string, quota int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}
