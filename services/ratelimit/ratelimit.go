// Package ratelimit counts attempts per key over a fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/agape/core/portal"
)

var NowFunc = time.Now // mockable

type redisLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

var (
	_ portal.Limiter = (*redisLimiter)(nil) // interface compliance check
	_ portal.Limiter = (*memoryLimiter)(nil)
)

// NewRedisLimiter allows `limit` attempts per key within `window`, shared by every API instance.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) portal.Limiter {
	return &redisLimiter{client: client, limit: int64(limit), window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(err, "counting attempt")
	}
	// the window starts with the first attempt
	if count == 1 {
		if err = l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, errors.Wrap(err, "setting attempt window")
		}
	}
	return count <= l.limit, nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	return errors.Wrap(l.client.Del(ctx, key).Err(), "resetting attempts")
}

type counter struct {
	count   int
	resetAt time.Time
}

type memoryLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*counter
}

// NewMemoryLimiter is the process-local limiter used when redis is not configured.
func NewMemoryLimiter(limit int, window time.Duration) portal.Limiter {
	return &memoryLimiter{limit: limit, window: window, counters: make(map[string]*counter)}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := NowFunc()
	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		l.sweep(now)
		c = &counter{resetAt: now.Add(l.window)}
		l.counters[key] = c
	}
	c.count++
	return c.count <= l.limit, nil
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, key)
	return nil
}

// sweep drops the expired counters. Must be called with the lock held.
func (l *memoryLimiter) sweep(now time.Time) {
	for key, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, key)
		}
	}
}
