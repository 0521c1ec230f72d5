package cache

import (
	"context"
	"sync"
	"time"
)

// entry 缓存条目
type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache 进程内 TTL 缓存（测试和单实例部署用）
// 读取时惰性检查过期，过期条目当作 miss 并顺手删除
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewMemoryCacheWithClock 创建可注入时钟的内存缓存（测试用）
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get 读取缓存，过期即 miss
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Put 写入缓存
func (c *MemoryCache) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
