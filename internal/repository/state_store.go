package repository

import (
	"context"
	"time"
)

// StateStore abstracts shared ephemeral key-value state.
// Implementations: Redis (multi-instance) or in-memory (local dev / single instance).
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns nil, nil for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Incr atomically increments the integer stored at key (missing = 0)
	// and returns the new value. The key does not expire.
	Incr(ctx context.Context, key string) (int64, error)
}
