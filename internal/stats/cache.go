// Package stats caches upstream counters per date with a single fetch in
// flight per key.
//
// A fresh entry is served directly. When an entry expires the first caller
// starts a fetch; callers arriving while it runs get the expired value if
// there is one, or share the fetch outcome if the key is cold. A failed
// refresh never removes a value that was fetched before.
package stats

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/R0zhkov/wrf/internal/upstream"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("stats: cache closed")

// Loader fetches the counters for key. It runs detached from the caller
// that triggered it and is cancelled only when the cache closes.
type Loader func(ctx context.Context, key string) (upstream.Counters, error)

// Entry is one cached reading. Entries are replaced, never modified.
type Entry struct {
	FetchedAt time.Time
	Key       string
	Value     upstream.Counters
	TTL       time.Duration
}

// Age returns how long ago the entry was fetched.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Fresh reports whether the entry is younger than ttl.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// flight is the state of one running fetch.
type flight struct {
	started time.Time
	done    chan struct{}
	entry   *Entry // result, or the previous entry when the fetch failed
	err     error
}

// Cache is a per-key stale-while-revalidate cache.
// Construct it with New and release it with Close.
type Cache struct {
	base     context.Context
	clock    clockwork.Clock
	observer Observer
	load     Loader
	entries  map[string]*Entry
	flights  map[string]*flight
	cancel   context.CancelFunc
	log      zerolog.Logger

	coldWait ColdWait
	refresh  RefreshMode

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for freshness and fetch timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(cache *Cache) {
		if c != nil {
			cache.clock = c
		}
	}
}

// WithColdWait sets what callers do while a cold key is being fetched.
func WithColdWait(mode ColdWait) Option {
	return func(cache *Cache) {
		cache.coldWait = mode
	}
}

// WithRefreshMode sets whether refreshes of expired entries block the caller.
func WithRefreshMode(mode RefreshMode) Option {
	return func(cache *Cache) {
		cache.refresh = mode
	}
}

// WithObserver reports cache events to o.
func WithObserver(o Observer) Option {
	return func(cache *Cache) {
		if o != nil {
			cache.observer = o
		}
	}
}

// WithLogger sets the logger for refresh failures.
func WithLogger(logger *zerolog.Logger) Option {
	return func(cache *Cache) {
		if logger != nil {
			cache.log = logger.With().Str("component", "stats_cache").Logger()
		}
	}
}

// New creates a Cache that fills misses with load.
func New(load Loader, opts ...Option) *Cache {
	base, cancel := context.WithCancel(context.Background())
	c := &Cache{
		base:     base,
		cancel:   cancel,
		load:     load,
		clock:    clockwork.NewRealClock(),
		observer: NopObserver{},
		log:      zerolog.Nop(),
		entries:  make(map[string]*Entry),
		flights:  make(map[string]*flight),
		coldWait: ColdWaitBlock,
		refresh:  RefreshBlocking,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the counters for key, fetching them when the cached entry is
// missing or older than ttl.
//
// Errors are upstream errors from the fetch, upstream.ErrBusy when a cold key
// is being fetched and the cache rejects cold waiters, ctx.Err() when the
// caller gives up waiting, or ErrClosed.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration) (Entry, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Entry{}, ErrClosed
	}

	now := c.clock.Now()
	prev := c.entries[key]
	if prev != nil && prev.Fresh(now, ttl) {
		c.mu.Unlock()
		c.observer.Hit(key)
		return *prev, nil
	}

	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		if prev != nil {
			c.observer.Stale(key)
			return *prev, nil
		}
		if c.coldWait == ColdWaitReject {
			c.observer.Busy(key)
			return Entry{}, upstream.ErrBusy
		}
		return c.wait(ctx, key, f)
	}

	f := c.startLocked(ctx, key, ttl, now)
	c.mu.Unlock()
	c.observer.Miss(key)

	if prev != nil && c.refresh == RefreshBackground {
		c.observer.Stale(key)
		return *prev, nil
	}
	return c.wait(ctx, key, f)
}

// startLocked registers a flight for key and starts the fetch.
// The caller must hold c.mu.
func (c *Cache) startLocked(ctx context.Context, key string, ttl time.Duration, now time.Time) *flight {
	f := &flight{started: now, done: make(chan struct{})}
	c.flights[key] = f

	// Keep request-scoped values such as the logger, drop the caller's deadline.
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.base, cancel)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer stop()
		defer cancel()

		value, err := c.safeLoad(fetchCtx, key)
		elapsed := c.clock.Since(f.started)
		c.finish(key, f, value, ttl, err)
		c.observer.Fetched(key, elapsed, err)
	}()
	return f
}

func (c *Cache) safeLoad(ctx context.Context, key string) (value upstream.Counters, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stats: loader panicked: %v", r)
		}
	}()
	return c.load(ctx, key)
}

// finish stores the outcome of f and releases its waiters.
func (c *Cache) finish(key string, f *flight, value upstream.Counters, ttl time.Duration, err error) {
	c.mu.Lock()
	current := c.entries[key]
	switch {
	case err != nil:
		f.err = err
		f.entry = current
	case current != nil && current.FetchedAt.After(f.started):
		// A fetch never replaces an entry newer than its own start. With one
		// flight per key this only holds if entries are stored by another path.
		f.entry = current
	default:
		f.entry = &Entry{Key: key, Value: value, FetchedAt: c.clock.Now(), TTL: ttl}
		c.entries[key] = f.entry
	}
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	c.mu.Unlock()
	close(f.done)

	if err == nil {
		return
	}

	kind, _ := upstream.KindOf(err)
	event := c.log.Warn()
	if current == nil {
		event = c.log.Error()
	}
	event.Err(err).
		Str("key", key).
		Str("kind", string(kind)).
		Str("snapshot", upstream.SnapshotOf(err)).
		Bool("stale_available", current != nil).
		Msg("stats refresh failed")
}

// wait blocks until f resolves or ctx ends. A failed fetch still yields the
// previous entry when there is one.
func (c *Cache) wait(ctx context.Context, key string, f *flight) (Entry, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}

	if f.err != nil {
		if f.entry != nil {
			c.observer.Stale(key)
			return *f.entry, nil
		}
		return Entry{}, f.err
	}
	return *f.entry, nil
}

// Peek returns the cached entry for key without fetching.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// InFlight reports whether a fetch for key is running.
func (c *Cache) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.flights[key]
	return ok
}

// Keys returns the cached keys in ascending order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	keys := lo.Keys(c.entries)
	c.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// DeleteBefore drops entries whose key sorts before cutoff and that have no
// fetch in flight. Keys are YYYY-MM-DD, so this drops earlier days.
// It returns the number of entries removed.
func (c *Cache) DeleteBefore(cutoff string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if _, running := c.flights[key]; key < cutoff && !running {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close cancels running fetches and waits for them to return.
// It is safe to call Close more than once.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
