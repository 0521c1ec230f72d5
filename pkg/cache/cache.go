package cache

import (
	"context"
	"time"
)

// Cache TTL 状态缓存接口
// 过期读取一律视为 miss，绝不返回陈旧值
type Cache interface {
	// Get 读取缓存，miss 时 ok 为 false
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Put 写入缓存并设置过期时间
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
}
