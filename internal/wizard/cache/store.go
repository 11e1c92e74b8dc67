// Package cache is the scoped, expiring key/value store that holds in-progress
// aggregates and sub-record fragments between requests.
//
// There is no locking: two concurrent writes for the same key race and the
// last write wins. Every Put resets the entry's time-to-live. A missing or
// expired entry is reported as sentinel.ErrNotFound, which callers treat as
// "never started" rather than as a failure.
package cache

import (
	"context"
	"time"
)

// Store persists opaque serialized values by key.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
}
