package cache

import (
	"context"
	"time"
)

// Cache is a small JSON object cache. Implementations must treat corrupt
// entries as misses.
type Cache interface {
	// GetJSON unmarshals the cached value into dst; the bool reports a hit.
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
