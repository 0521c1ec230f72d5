package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache Redis 实现的状态缓存（SET EX / GET，过期由 Redis 负责）
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache 创建 Redis 缓存客户端，支持密码认证
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{rdb: rdb, prefix: "tpa:status:"}, nil
}

// NewRedisCacheFromClient 复用既有连接创建缓存（与限流器共享连接池）
func NewRedisCacheFromClient(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "tpa:status:"}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache: get failed: %w", err)
	}
	return val, true, nil
}

// Put 写入缓存
func (c *RedisCache) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: put failed: %w", err)
	}
	return nil
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
