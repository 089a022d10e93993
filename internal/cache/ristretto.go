package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"
)

// ristrettoStore implements Store on top of Ristretto.
type ristrettoStore struct {
	cache  *ristretto.Cache[string, []byte]
	log    zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

var (
	_ Store         = (*ristrettoStore)(nil)
	_ StatsProvider = (*ristrettoStore)(nil)
)

func newRistrettoStore(cfg RistrettoConfig, log zerolog.Logger) (*ristrettoStore, error) {
	log = log.With().Str("backend", "ristretto").Logger()

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("num_counters", cfg.NumCounters).
		Int64("max_cost", cfg.MaxCost).
		Msg("session store created")

	return &ristrettoStore{cache: cache, log: log}, nil
}

// use runs fn under the read lock unless the store is closed or ctx is done.
func (r *ristrettoStore) use(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	fn()
	return nil
}

func (r *ristrettoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value []byte
		found bool
	)
	if err := r.use(ctx, func() { value, found = r.cache.Get(key) }); err != nil {
		return nil, err
	}
	r.log.Debug().Str("key", key).Bool("hit", found).Msg("session lookup")
	if !found {
		return nil, ErrNotFound
	}
	return slices.Clone(value), nil
}

func (r *ristrettoStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.use(ctx, func() {
		if !r.cache.SetWithTTL(key, slices.Clone(value), int64(len(value)), ttl) {
			r.log.Debug().Str("key", key).Msg("session dropped by admission policy")
		}
		// Sets are buffered; wait so the next attempt sees the session.
		r.cache.Wait()
	})
}

func (r *ristrettoStore) Delete(ctx context.Context, key string) error {
	return r.use(ctx, func() { r.cache.Del(key) })
}

func (r *ristrettoStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.cache.Close()
	return nil
}

func (r *ristrettoStore) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return Stats{}
	}
	m := r.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeyCount:  m.KeysAdded() - m.KeysEvicted(),
		BytesUsed: m.CostAdded() - m.CostEvicted(),
		Evictions: m.KeysEvicted(),
	}
}
