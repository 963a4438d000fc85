package cache

import (
	"context"
	"time"
)

// Entry is one cached value. ExpiresAt is absolute so remaining TTL can be
// reported to clients on a hit.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Store is a single cache tier. Implementations must never return an entry
// past its expiry; a miss is (nil, nil).
//
// DeleteByPrefix removes the key equal to prefix and every key extending it
// at a ":" boundary (see matchesPrefix).
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
