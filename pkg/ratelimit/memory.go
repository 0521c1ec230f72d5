package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter 进程内滑动窗口限流器（单实例部署和测试用）
// 与 Redis 实现语义一致：检查与占位在同一临界区内完成
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter 创建内存限流器
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// NewMemoryLimiterWithClock 创建可注入时钟的内存限流器（测试用）
func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     now,
	}
}

// Allow 原子检查并占用配额
func (l *MemoryLimiter) Allow(ctx context.Context, subjectKey string, quota int, window time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	// 淘汰滑出窗口的时间戳
	stamps := l.windows[subjectKey]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= quota {
		l.windows[subjectKey] = kept
		// 最老的请求滑出窗口后才会腾出槽位
		retryAfter := window - now.Sub(kept[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	l.windows[subjectKey] = append(kept, now)
	return true, 0, nil
}
