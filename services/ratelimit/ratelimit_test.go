package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisdb "github.com/trezcool/agape/storage/redis"
)

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }
	defer func() { NowFunc = time.Now }()

	ctx := context.Background()
	l := NewMemoryLimiter(3, time.Minute)

	for i := 1; i <= 3; i++ {
		ok, err := l.Allow(ctx, "portal:login:1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}
	ok, _ := l.Allow(ctx, "portal:login:1")
	assert.False(t, ok, "4th attempt within the window")

	ok, _ = l.Allow(ctx, "portal:login:2")
	assert.True(t, ok, "keys are counted apart")

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "portal:login:1")
	assert.True(t, ok, "window elapsed")

	for i := 0; i < 5; i++ {
		_, _ = l.Allow(ctx, "portal:login:3")
	}
	require.NoError(t, l.Reset(ctx, "portal:login:3"))
	ok, _ = l.Allow(ctx, "portal:login:3")
	assert.True(t, ok, "reset")
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := redisdb.Open(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	key := "test:ratelimit:" + uuid.New().String()
	defer client.Del(ctx, key)

	l := NewRedisLimiter(client, 2, time.Minute)
	for _, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	require.NoError(t, l.Reset(ctx, key))
	ok, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
