// Package lock serializes work per key, across processes through Redis or
// within one process through a keyed mutex.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"tle_zone_contest/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out exclusive, per-key leases. Release must be called once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type RedisLocker struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	wait       time.Duration
	retryEvery time.Duration
	logger     *slog.Logger
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		wait:       wait,
		retryEvery: 50 * time.Millisecond,
		logger:     logger,
	}
}

// Acquire polls SET NX until the lease is won, wait elapses, or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	value := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, value, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("lock.Acquire %s: %v: %w", fullKey, err, common.ErrServiceUnavailable)
		}
		if ok {
			return func() { l.release(fullKey, value) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock.Acquire %s: %w", fullKey, common.ErrJobLockFailed)
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(key, value string) {
	// The caller's context may already be gone; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.rdb, []string{key}, value).Int64()
	if err != nil {
		l.logger.Error("failed to release lock", "key", key, "error", err)
		return
	}
	if deleted == 0 {
		l.logger.Warn("lock expired before release", "key", key)
	}
}

// LocalLocker is a per-key mutex for single-process deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, fmt.Errorf("lock.Acquire %s: %v: %w", key, ctx.Err(), common.ErrJobLockFailed)
	}
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// RatingKey covers all of a user's rating writes so that each entry's old
// rating is the previous entry's new rating.
func RatingKey(userID string) string {
	return "rating:" + userID
}

func ContestFinalizationKey(contestID string) string {
	return "finalize:" + contestID
}
