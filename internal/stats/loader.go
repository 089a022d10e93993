package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/R0zhkov/wrf/internal/retry"
	"github.com/R0zhkov/wrf/internal/upstream"
)

// LoaderConfig wires an upstream client into a cache Loader.
type LoaderConfig struct {
	Client   upstream.Client
	Observer Observer
	Logger   *zerolog.Logger
	Location *time.Location

	// RetryOptions is called for every fetch so reloaded settings apply to
	// the next fetch without rebuilding the cache.
	RetryOptions func() []retry.Option
}

// NewLoader returns a Loader that resolves the key to a date and fetches it
// through a retry policy.
func NewLoader(cfg LoaderConfig) Loader {
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	base := zerolog.Nop()
	if cfg.Logger != nil {
		base = *cfg.Logger
	}

	return func(ctx context.Context, key string) (upstream.Counters, error) {
		date, err := ParseKey(key, loc)
		if err != nil {
			return upstream.Counters{}, fmt.Errorf("stats: invalid key %q: %w", key, err)
		}
		query := upstream.Query{Key: key, Date: date}

		log := base.With().
			Str("component", "stats_loader").
			Str("upstream", cfg.Client.Name()).
			Str("key", key).
			Logger()

		var opts []retry.Option
		if cfg.RetryOptions != nil {
			opts = cfg.RetryOptions()
		}
		opts = append(opts, retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			kind, _ := upstream.KindOf(err)
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("kind", string(kind)).
				Str("snapshot", upstream.SnapshotOf(err)).
				Dur("delay", delay).
				Msg("upstream attempt failed, retrying")
			observer.Retried(key, attempt, err)
		}))

		counters, err := retry.New(opts...).Run(ctx, func(ctx context.Context) (upstream.Counters, error) {
			return cfg.Client.Fetch(ctx, query)
		})
		if err != nil {
			return upstream.Counters{}, err
		}

		log.Debug().Int("waiting", counters.Waiting).Msg("stats fetched")
		return counters, nil
	}
}
