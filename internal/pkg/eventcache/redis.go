package eventcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares processed event ids between instances. Entries expire
// after ttl instead of being evicted by count.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	if prefix == "" {
		prefix = "webhook:event"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *RedisCache) key(id string) string {
	return c.prefix + ":" + id
}

// MarkIfAbsent implements Cache with SET NX.
func (c *RedisCache) MarkIfAbsent(ctx context.Context, id string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(id), time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", id, err)
	}
	return ok, nil
}

// Forget implements Cache.
func (c *RedisCache) Forget(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("forget event %s: %w", id, err)
	}
	return nil
}
