// Package kvstore is a namespaced key-value store with TTL envelopes and
// change subscriptions. Values are JSON; every write is wrapped in an
// envelope carrying a format version and an optional expiry.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// Backend is the physical storage behind a Store. A ttl of zero means the
// entry never expires; backends may drop expired entries on their own.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")
