package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The whole read-compare-increment runs inside one script so concurrent
// attempts from several instances cannot overshoot the limit.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local current = redis.call("GET", KEYS[1])
if not current then
  redis.call("SET", KEYS[1], 1, "PX", window_ms)
  return {1, 1, window_ms}
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], window_ms)
  ttl = window_ms
end

local count = tonumber(current)
if count >= limit then
  return {0, count, ttl}
end

count = redis.call("INCR", KEYS[1])
return {1, count, ttl}
`)

// RedisLimiter shares counters between instances through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	policy Policy
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter. Keys are namespaced by prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, policy Policy) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix, policy: policy, now: time.Now}, nil
}

// Allow records an attempt for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, l.client,
		[]string{l.prefix + ":" + key},
		l.policy.Limit, l.policy.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected result %v", res)
	}

	count := int(res[1])
	remaining := l.policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   res[0] == 1,
		Remaining: remaining,
		ResetAt:   l.now().Add(time.Duration(res[2]) * time.Millisecond),
	}, nil
}
