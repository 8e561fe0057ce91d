package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiterWithClient(client, limit, window)
}

func TestAllowWithinLimit(t *testing.T) {
	limiter := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1:52000")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1:52000")
	require.NoError(t, err)
	assert.False(t, allowed, "attempt over the limit should be denied")
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "10.0.0.1:52000")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.1:52000")
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different peer has its own window.
	allowed, err = limiter.Allow(ctx, "10.0.0.2:41000")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowSlides(t *testing.T) {
	limiter := newTestLimiter(t, 1, 100*time.Millisecond)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "10.0.0.1:52000")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.1:52000")
	require.NoError(t, err)
	assert.False(t, allowed)

	time.Sleep(150 * time.Millisecond)

	allowed, err = limiter.Allow(ctx, "10.0.0.1:52000")
	require.NoError(t, err)
	assert.True(t, allowed, "attempts outside the window no longer count")
}

func TestAllowReportsRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLimiterWithClient(client, 5, time.Minute)

	mr.Close()

	_, err := limiter.Allow(context.Background(), "10.0.0.1:52000")
	assert.Error(t, err)
}

func TestNoOpLimiter(t *testing.T) {
	limiter := NoOpLimiter{}

	for i := 0; i < 100; i++ {
		allowed, err := limiter.Allow(context.Background(), "anything")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.NoError(t, limiter.Close())
}
