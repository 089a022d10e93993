package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Service answers date queries from the cache using the live settings.
type Service struct {
	cache    *Cache
	clock    clockwork.Clock
	settings func() *Config
	loc      *time.Location
	pruned   atomic.Value // cutoff key of the last prune
}

// NewService creates a Service. settings is called on every lookup so TTL
// changes apply without a restart.
func NewService(cache *Cache, settings func() *Config, loc *time.Location, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{cache: cache, settings: settings, loc: loc, clock: clock}
}

// Lookup resolves the date parameter and returns its counters. Dates outside
// the configured window resolve to today, and entries that fell out of the
// window are dropped once per day.
func (s *Service) Lookup(ctx context.Context, dateParam string) (Entry, error) {
	cfg := s.settings()
	now := s.clock.Now()
	today := ResolveDate(DateToday, now, s.loc)
	window := cfg.Window()

	date := ResolveDate(dateParam, now, s.loc)
	if !window.Contains(date, today) {
		date = today
	}
	s.prune(KeyFor(window.Oldest(today)))
	return s.cache.Get(ctx, KeyFor(date), cfg.GetTTL())
}

func (s *Service) prune(cutoff string) {
	if s.pruned.Swap(cutoff) == cutoff {
		return
	}
	s.cache.DeleteBefore(cutoff)
}

// TTL returns the current freshness window.
func (s *Service) TTL() time.Duration {
	return s.settings().GetTTL()
}

// SWR returns the current stale-while-revalidate window.
func (s *Service) SWR() time.Duration {
	return s.settings().GetSWR()
}

// Cache returns the underlying cache.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Location returns the zone dates are resolved in.
func (s *Service) Location() *time.Location {
	return s.loc
}
