package kv

import (
	"context"
	"time"
)

// Store provides per-key maps with a TTL on the whole key.
//
// Expiry is best-effort: readers must tolerate a stale key returning an
// empty map.
type Store interface {
	// SetMapField sets field under key and refreshes the key TTL.
	SetMapField(ctx context.Context, key, field string, value []byte, ttl time.Duration) error

	// GetMap returns every field under key. A missing key yields an empty
	// map, not an error.
	GetMap(ctx context.Context, key string) (map[string][]byte, error)

	// DeleteMapField removes a single field under key.
	DeleteMapField(ctx context.Context, key, field string) error

	// DeleteMap removes the key and every field under it.
	DeleteMap(ctx context.Context, key string) error
}

// Factory produces Store handles over a shared backend connection.
// Implementations are safe for concurrent use.
type Factory interface {
	Open(ctx context.Context) (Store, error)
}
