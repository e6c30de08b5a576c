package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

// RedisLock obtains short-lived locks so only one monitor replica scans per tick.
type RedisLock struct {
	locker *redislock.Client
}

var _ ports.MonitorLock = (*RedisLock)(nil)

func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{locker: redislock.New(client)}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	held, err := l.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ports.ErrLockHeld
	}
	if err != nil {
		return nil, errs.Wrapf(err, "obtain lock %q", key)
	}
	return func(ctx context.Context) error {
		if err := held.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return errs.Wrapf(err, "release lock %q", key)
		}
		return nil
	}, nil
}

// Local is used when a single process runs the monitor.
type Local struct{}

var _ ports.MonitorLock = Local{}

func (Local) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
