package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 滑动窗口 Lua 脚本：清理过期成员 → 计数 → 未满则占位
// 整段脚本在 Redis 内原子执行，两个并发请求不可能同时抢到最后一个槽位
// 返回 {1, 0} 表示放行；{0, oldestScore} 表示拒绝
const slidingWindowScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[2]) then
    redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
    redis.call('PEXPIRE', KEYS[1], ARGV[5])
    return {1, 0}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {0, oldest[2]}
`

// RedisLimiter Redis ZSET 实现的滑动窗口限流器（多实例共享计数）
type RedisLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	prefix string
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		script: redis.NewScript(slidingWindowScript),
		prefix: "ratelimit:",
	}
}

// Allow 原子检查并占用配额
func (l *RedisLimiter) Allow(ctx context.Context, subjectKey string, quota int, window time.Duration) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixMilli()

	// 成员值带唯一后缀，避免同一毫秒的两个请求在 ZSET 中互相覆盖
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.New().String()[:8])

	res, err := l.script.Run(ctx, l.rdb,
		[]string{l.prefix + subjectKey},
		windowStart,
		quota,
		now.UnixMilli(),
		member,
		window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: script failed: %w", err)
	}

	allowed, _ := res[0].(int64)
	if allowed == 1 {
		return true, 0, nil
	}

	// 拒绝：最老的成员滑出窗口后才会腾出槽位
	retryAfter := window
	if oldestStr, ok := res[1].(string); ok {
		var oldestMilli int64
		if _, err := fmt.Sscanf(oldestStr, "%d", &oldestMilli); err == nil {
			elapsed := now.UnixMilli() - oldestMilli
			if remaining := window.Milliseconds() - elapsed; remaining > 0 {
				retryAfter = time.Duration(remaining) * time.Millisecond
			}
		}
	}

	return false, retryAfter, nil
}
