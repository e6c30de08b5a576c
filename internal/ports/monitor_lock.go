package ports

import (
	"context"
	"errors"
	"time"
)

var ErrLockHeld = errors.New("monitor lock held by another process")

// MonitorLock keeps a single deadline monitor scanning across replicas.
type MonitorLock interface {
	// Acquire returns ErrLockHeld when another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
