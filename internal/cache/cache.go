// Package cache keeps upstream login sessions between fetches.
//
// Tokens and cookies are small and short lived, so the store is a local
// Ristretto cache with per-entry TTL. Mode "disabled" swaps in a store that
// keeps nothing, which forces a fresh login on every attempt.
//
//	store, err := cache.New(&cache.Config{Mode: cache.ModeMemory}, &logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	_ = store.SetWithTTL(ctx, "session:hostes:manager", token, 10*time.Minute)
//	data, err := store.Get(ctx, "session:hostes:manager")
//	if errors.Is(err, cache.ErrNotFound) {
//		// log in again
//	}
package cache

import (
	"context"
	"time"
)

// Store is a byte-value cache with TTL. It satisfies upstream.SessionCache.
// All implementations are safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound on a miss and ErrClosed after Close.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value until ttl elapses. A zero ttl never expires.
	// The value is visible to Get as soon as SetWithTTL returns.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error

	// Close releases the store. Later calls return ErrClosed.
	Close() error
}

// Stats reports store activity.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	KeyCount  uint64 `json:"key_count"`
	BytesUsed uint64 `json:"bytes_used"`
	Evictions uint64 `json:"evictions"`
}

// StatsProvider is implemented by stores that track Stats.
type StatsProvider interface {
	Stats() Stats
}
