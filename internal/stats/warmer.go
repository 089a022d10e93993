package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Warmer keeps a fixed set of dates in the cache so visitors rarely wait on
// a cold fetch.
type Warmer struct {
	service  *Service
	clock    clockwork.Clock
	log      zerolog.Logger
	dates    []string
	interval time.Duration
}

// NewWarmer creates a Warmer refreshing dates every interval.
func NewWarmer(service *Service, dates []string, interval time.Duration, clock clockwork.Clock, logger *zerolog.Logger) *Warmer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "stats_warmer").Logger()
	}
	return &Warmer{
		service:  service,
		dates:    dates,
		interval: interval,
		clock:    clock,
		log:      log,
	}
}

// WarmOnce looks up every date concurrently and returns the first failure.
func (w *Warmer) WarmOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, date := range w.dates {
		g.Go(func() error {
			entry, err := w.service.Lookup(gctx, date)
			if err != nil {
				return fmt.Errorf("warm %s: %w", date, err)
			}
			w.log.Debug().
				Str("date", date).
				Str("key", entry.Key).
				Time("fetched_at", entry.FetchedAt).
				Msg("warmed")
			return nil
		})
	}
	return g.Wait()
}

// Run warms immediately and then every interval until ctx ends.
// A non-positive interval makes Run return at once.
func (w *Warmer) Run(ctx context.Context) {
	if w.interval <= 0 || len(w.dates) == 0 {
		return
	}

	w.log.Info().
		Strs("dates", w.dates).
		Dur("interval", w.interval).
		Msg("cache warmer started")

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.WarmOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn().Err(err).Msg("cache warm failed")
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("cache warmer stopped")
			return
		case <-ticker.Chan():
		}
	}
}
