package stats

import "time"

// Observer receives cache and fetch events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	// Hit is called when a fresh entry is served.
	Hit(key string)
	// Stale is called when an expired entry is served.
	Stale(key string)
	// Miss is called when a caller starts a fetch.
	Miss(key string)
	// Busy is called when a cold caller is turned away.
	Busy(key string)
	// Fetched is called once per fetch with its duration and outcome.
	Fetched(key string, elapsed time.Duration, err error)
	// Retried is called before each pause between attempts.
	Retried(key string, attempt int, err error)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Hit(string) {}
func (NopObserver) Stale(string) {}
func (NopObserver) Miss(string) {}
func (NopObserver) Busy(string) {}
func (NopObserver) Fetched(string, time.Duration, error) {}
func (NopObserver) Retried(string, int, error) {}
