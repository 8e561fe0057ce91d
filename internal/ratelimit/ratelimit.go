// Package ratelimit bounds authentication attempts per client address.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skaisay/capycode-frontend-sub002/internal/metrics"
)

// Limiter answers whether an auth attempt from the given key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

type redisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// Sliding window over a Redis sorted set, evaluated atomically.
const allowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, now)
		redis.call('EXPIRE', key, 120)
		return 1
	else
		return 0
	end
`

// NewRedisLimiter builds a Redis-backed sliding-window limiter allowing
// limit attempts per window.
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (Limiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}, nil
}

// NewRedisLimiterWithClient is like NewRedisLimiter but reuses an
// existing client. Used by tests against miniredis.
func NewRedisLimiterWithClient(client *redis.Client, limit int, window time.Duration) Limiter {
	return &redisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

func (r *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()

	result, err := r.client.Eval(ctx, allowScript, []string{"authlimit:" + key}, now, windowStart, r.limit).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.Inc()
	}

	return allowed, nil
}

func (r *redisLimiter) Close() error {
	return r.client.Close()
}

// NoOpLimiter always allows attempts (rate limiting disabled).
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (NoOpLimiter) Close() error {
	return nil
}
