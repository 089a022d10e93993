// Package retry runs upstream attempts with a bounded budget and a fixed
// pause between them.
package retry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/R0zhkov/wrf/internal/upstream"
)

// Defaults used by New.
const (
	DefaultMaxAttempts    = 3
	DefaultDelay          = 2 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// AttemptFunc performs one attempt under its own timeout context.
type AttemptFunc[T any] func(ctx context.Context) (T, error)

// Policy retries failed attempts a bounded number of times.
// A Policy is immutable after New and safe for concurrent use.
type Policy struct {
	clock          clockwork.Clock
	retryable      func(error) bool
	onRetry        func(attempt int, err error, delay time.Duration)
	maxAttempts    int
	delay          time.Duration
	attemptTimeout time.Duration
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total number of attempts, including the first.
// Default: 3
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithDelay sets the pause between attempts. Zero retries immediately.
// Default: 2s
func WithDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithAttemptTimeout bounds each attempt. Zero disables the per attempt deadline.
// Default: 30s
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.attemptTimeout = d
		}
	}
}

// WithClock sets the clock used for the pause between attempts.
func WithClock(c clockwork.Clock) Option {
	return func(p *Policy) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithRetryable replaces the predicate deciding whether a failure is worth
// another attempt. Default: upstream.Retryable
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) {
		if fn != nil {
			p.retryable = fn
		}
	}
}

// WithOnRetry sets a callback invoked before each pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// New creates a Policy with default settings overridden by opts.
func New(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts:    DefaultMaxAttempts,
		delay:          DefaultDelay,
		attemptTimeout: DefaultAttemptTimeout,
		clock:          clockwork.NewRealClock(),
		retryable:      upstream.Retryable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the attempt budget.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Delay returns the pause between attempts.
func (p *Policy) Delay() time.Duration {
	return p.delay
}

// Run calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func (p *Policy) Run(ctx context.Context, fn AttemptFunc[upstream.Counters]) (upstream.Counters, error) {
	return Do(ctx, p, fn)
}

// Do is Run for arbitrary result types.
func Do[T any](ctx context.Context, p *Policy, fn AttemptFunc[T]) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, upstream.NewError(upstream.KindUnreachable, "fetch cancelled", err)
		}

		result, err := runAttempt(ctx, p.attemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !p.retryable(err) || attempt >= p.maxAttempts {
			break
		}

		if p.onRetry != nil {
			p.onRetry(attempt, err, p.delay)
		}
		if !p.sleep(ctx) {
			break
		}
	}

	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn AttemptFunc[T]) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// sleep waits for the configured delay and reports false if ctx ended first.
func (p *Policy) sleep(ctx context.Context) bool {
	if p.delay <= 0 {
		return ctx.Err() == nil
	}
	timer := p.clock.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
