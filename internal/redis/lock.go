package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
)

// Locker serializes bookings per calendar day. key is the day, e.g. "2025-03-10".
type Locker interface {
	WithDayLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const retryInterval = 50 * time.Millisecond

type redisDayLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisDayLocker creates a locker that uses a per day Redis key. A contended
// lock is retried for up to wait before ErrLockNotAcquired is returned.
func NewRedisDayLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisDayLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *redisDayLocker) WithDayLock(ctx context.Context, day string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:booking-day:%s", day)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release must run even if ctx was cancelled inside fn
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisDayLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire booking lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}

// LocalLocker is the in-process fallback when no Redis is configured. It only
// serializes bookings within one api-server instance.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
	wait  time.Duration
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock), wait: wait}
}

func (l *LocalLocker) WithDayLock(ctx context.Context, day string, fn func(ctx context.Context) error) error {
	lk := l.ref(day)
	defer l.unref(day)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockNotAcquired
	}
	defer func() { <-lk.ch }()

	return fn(ctx)
}

func (l *LocalLocker) ref(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk := l.locks[key]
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}
