package packages

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is an optional AvailabilityCache backend, enabled when
// REDIS_ADDR is configured. It caches only package-probe booleans, never
// Job state, so its absence at restart only costs a re-probe.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "pkgcache:"}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(name string) (bool, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	value, err := c.client.Get(ctx, c.prefix+name).Result()
	if err != nil {
		return false, false
	}
	return value == "1", true
}

func (c *RedisCache) Set(name string, available bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	value := "0"
	if available {
		value = "1"
	}
	_ = c.client.Set(ctx, c.prefix+name, value, c.ttl).Err()
}

// NewAvailabilityCache picks RedisCache when addr is non-empty, falling
// back to InMemoryCache on any connection failure. Mirrors the teacher's
// setupRepository fallback-to-memory pattern in cmd/api/main.go.
func NewAvailabilityCache(ctx context.Context, addr, password string, db int, ttl time.Duration, maxEntries int) (AvailabilityCache, func() error) {
	if addr == "" {
		return NewInMemoryCache(ttl, maxEntries), func() error { return nil }
	}
	redisCache, err := NewRedisCache(ctx, addr, password, db, ttl)
	if err != nil {
		return NewInMemoryCache(ttl, maxEntries), func() error { return nil }
	}
	return redisCache, redisCache.Close
}
