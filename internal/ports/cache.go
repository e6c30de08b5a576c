package ports

import (
	"context"
	"time"
)

// Cache is a best-effort key-value store for read-mostly case state such as
// the current status and assignee. The database stays authoritative.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
