package repository

import (
	"context"
	"testing"
	"time"

	"clinic/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	require.NoError(t, Ping(ctx, client))

	for i := 0; i < 3; i++ {
		allowed, err := limiter.CheckRateLimit(ctx, "register:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
	}

	allowed, err := limiter.CheckRateLimit(ctx, "register:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// другой ключ считается отдельно
	allowed, err = limiter.CheckRateLimit(ctx, "register:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.True(t, s.TTL(rateLimitPrefix+"register:10.0.0.1") > 0)

	s.FastForward(time.Minute + time.Second)
	allowed, err = limiter.CheckRateLimit(ctx, "register:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "window must reset after expiry")
}

func TestRedisRateLimiter_Unavailable(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()
	s.Close()

	_, err = NewRedisRateLimiter(client).CheckRateLimit(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
	assert.Error(t, Ping(context.Background(), client))

	_, err = NewRedisRateLimiter(nil).CheckRateLimit(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
