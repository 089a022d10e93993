package stats_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R0zhkov/wrf/internal/upstream"
)

const testKey = "2025-03-08"

type result struct {
	err     error
	waiting int
}

// fakeUpstream serves scripted results and tracks concurrent invocations.
// When gate is set every call blocks until it is closed.
type fakeUpstream struct {
	gate      chan struct{}
	started   chan struct{}
	results   []result
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	mu        sync.Mutex
}

func newFakeUpstream(results ...result) *fakeUpstream {
	return &fakeUpstream{results: results, started: make(chan struct{}, 64)}
}

func (f *fakeUpstream) blocked() *fakeUpstream {
	f.gate = make(chan struct{})
	return f
}

func (f *fakeUpstream) release() {
	close(f.gate)
}

func (f *fakeUpstream) next() result {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int(f.calls.Load())
	if len(f.results) == 0 {
		return result{waiting: n}
	}
	if n > len(f.results) {
		n = len(f.results)
	}
	return f.results[n-1]
}

func (f *fakeUpstream) load(ctx context.Context, _ string) (upstream.Counters, error) {
	f.calls.Add(1)
	active := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		prev := f.maxActive.Load()
		if active <= prev || f.maxActive.CompareAndSwap(prev, active) {
			break
		}
	}
	f.started <- struct{}{}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return upstream.Counters{}, upstream.NewError(upstream.KindUnreachable, "cancelled", ctx.Err())
		}
	}

	r := f.next()
	if r.err != nil {
		return upstream.Counters{}, r.err
	}
	return upstream.Counters{Waiting: r.waiting}, nil
}

func unreachable() error {
	return upstream.NewError(upstream.KindUnreachable, "network error", nil)
}

// countingObserver records cache events.
type countingObserver struct {
	hits, stale, misses, busy, fetched, retried atomic.Int32
}

func (o *countingObserver) Hit(string) { o.hits.Add(1) }
func (o *countingObserver) Stale(string) { o.stale.Add(1) }
func (o *countingObserver) Miss(string) { o.misses.Add(1) }
func (o *countingObserver) Busy(string) { o.busy.Add(1) }
func (o *countingObserver) Fetched(string, time.Duration, error) { o.fetched.Add(1) }
func (o *countingObserver) Retried(string, int, error) { o.retried.Add(1) }

// scriptedClient is an upstream.Client replaying results and recording call times.
type scriptedClient struct {
	now     func() time.Time
	results []result
	calls   []time.Time
	queries []upstream.Query
	mu      sync.Mutex
}

func (s *scriptedClient) Name() string { return "scripted" }

func (s *scriptedClient) Fetch(_ context.Context, q upstream.Query) (upstream.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, s.now())
	s.queries = append(s.queries, q)
	i := len(s.calls) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	if r := s.results[i]; r.err != nil {
		return upstream.Counters{}, r.err
	}
	return upstream.Counters{Waiting: s.results[i].waiting}, nil
}

func (s *scriptedClient) callTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}
