// Package cache provides Redis-backed infrastructure for components that
// need shared state across multiple API instances. The reference module
// declares go-redis but never imports it; rate limiting is the first
// consumer, per the component design's note that Redis is the production
// recommendation for distributed rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter implements middleware.Limiter with a fixed-window
// counter in Redis: INCR the window's key, set its expiry on first
// touch, and compare against the configured limit. Unlike the in-process
// limiter, every API instance shares the same counters.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a new RedisRateLimiter.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow implements middleware.Limiter. It increments the counter for
// key's current window and allows the request if the post-increment
// count is within limit.
func (l *RedisRateLimiter) Allow(key string) (bool, int, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(l.window.Seconds()))

	count, err := l.client.Incr(ctx, windowKey).Result()
	if err != nil {
		// Fail open: a transient Redis outage should not take down the
		// API's ability to serve requests.
		return true, l.limit, l.window
	}

	if count == 1 {
		l.client.Expire(ctx, windowKey, l.window)
	}

	ttl, err := l.client.TTL(ctx, windowKey).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return int(count) <= l.limit, remaining, ttl
}

// NewClient creates a go-redis client from a RedisConfig-shaped address,
// password, and DB index. Kept as a thin constructor so container.go does
// not import go-redis directly.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
