// Package joblock keeps scheduled jobs from running twice at the same time.
package joblock

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the job already runs elsewhere.
var ErrLocked = errors.New("job is already running")

type Locker interface {
	// Run calls fn while holding the `key` lock. The lock expires after ttl if never released.
	Run(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redislock.Client
}

var (
	_ Locker = (*redisLocker)(nil) // interface compliance check
	_ Locker = (*localLocker)(nil)
)

// NewRedisLocker locks across processes.
func NewRedisLocker(client redis.UniversalClient) Locker {
	return &redisLocker{client: redislock.New(client)}
}

func (l *redisLocker) Run(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.client.Obtain(ctx, "lock:"+key, ttl, nil)
	if err == redislock.ErrNotObtained {
		return ErrLocked
	}
	if err != nil {
		return errors.Wrap(err, "obtaining job lock")
	}
	defer func() { _ = lock.Release(context.Background()) }()

	return fn(ctx)
}

type localLocker struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewLocalLocker only locks within the current process.
func NewLocalLocker() Locker {
	return &localLocker{running: make(map[string]bool)}
}

func (l *localLocker) Run(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.running[key] {
		l.mu.Unlock()
		return ErrLocked
	}
	l.running[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.running, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
