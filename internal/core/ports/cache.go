package ports

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache used for slow-changing lookups such as
// principal roles. Errors are treated as misses by callers.
type Cache interface {
	// Get reports ok=false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key; absence is not an error.
	Delete(ctx context.Context, key string) error
}
