package joblock

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

func testLocker(t *testing.T, l Locker) {
	ctx := context.Background()
	key := "notify-delinquents:" + uuid.New().String()

	var inner error
	err := l.Run(ctx, key, time.Minute, func(ctx context.Context) error {
		inner = l.Run(ctx, key, time.Minute, func(context.Context) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ErrLocked, inner, "the same key cannot run twice at once")

	ran := false
	err = l.Run(ctx, key, time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran, "the lock is released once fn returns")

	boom := assert.AnError
	assert.Equal(t, boom, l.Run(ctx, key, time.Minute, func(context.Context) error { return boom }))
}

func TestLocalLocker(t *testing.T) {
	testLocker(t, NewLocalLocker())
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	client, err := redisdb.Open(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	testLocker(t, NewRedisLocker(client))
}
