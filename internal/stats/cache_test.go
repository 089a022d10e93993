package stats_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/stats"
	"github.com/R0zhkov/wrf/internal/upstream"
)

const ttl = 60 * time.Second

func newCache(t *testing.T, load stats.Loader, opts ...stats.Option) *stats.Cache {
	t.Helper()
	c := stats.New(load, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetServesFreshEntryWithoutFetching(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	fake := newFakeUpstream(result{waiting: 3}, result{waiting: 5})
	cache := newCache(t, fake.load, stats.WithClock(clock))

	first, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Value.Waiting)
	assert.Equal(t, clock.Now(), first.FetchedAt)

	clock.Advance(59 * time.Second)
	again, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Value.Waiting)
	assert.Equal(t, int32(1), fake.calls.Load())

	clock.Advance(2 * time.Second)
	refreshed, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 5, refreshed.Value.Waiting)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestGetSingleFlightUnderParallelCallers(t *testing.T) {
	t.Parallel()

	fake := newFakeUpstream(result{waiting: 9}).blocked()
	cache := newCache(t, fake.load)

	const callers = 50
	var wg sync.WaitGroup
	values := make([]int, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := cache.Get(context.Background(), testKey, ttl)
			values[i], errs[i] = entry.Value.Waiting, err
		}()
	}

	<-fake.started
	fake.release()
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, 9, values[i])
	}
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, int32(1), fake.maxActive.Load())
}

func TestGetColdConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()

	fake := newFakeUpstream(result{waiting: 7}).blocked()
	cache := newCache(t, fake.load)

	results := make(chan int, 2)
	for range 2 {
		go func() {
			entry, err := cache.Get(context.Background(), testKey, ttl)
			if err != nil {
				results <- -1
				return
			}
			results <- entry.Value.Waiting
		}()
	}

	<-fake.started
	require.True(t, cache.InFlight(testKey))
	fake.release()

	assert.Equal(t, 7, <-results)
	assert.Equal(t, 7, <-results)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestGetServesStaleWhileRefreshInFlight(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	fake := newFakeUpstream(result{waiting: 1}, result{waiting: 2})
	cache := newCache(t, fake.load, stats.WithClock(clock))

	_, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	<-fake.started

	clock.Advance(2 * ttl)
	fake.blocked()

	leader := make(chan int, 1)
	go func() {
		entry, _ := cache.Get(context.Background(), testKey, ttl)
		leader <- entry.Value.Waiting
	}()
	<-fake.started

	stale, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Value.Waiting)

	fake.release()
	assert.Equal(t, 2, <-leader)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestGetRejectsColdWaitersWhenConfigured(t *testing.T) {
	t.Parallel()

	observer := &countingObserver{}
	fake := newFakeUpstream(result{waiting: 7}).blocked()
	cache := newCache(t, fake.load, stats.WithColdWait(stats.ColdWaitReject), stats.WithObserver(observer))

	leader := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), testKey, ttl)
		leader <- err
	}()
	<-fake.started

	_, err := cache.Get(context.Background(), testKey, ttl)
	require.ErrorIs(t, err, upstream.ErrBusy)
	assert.Equal(t, int32(1), observer.busy.Load())

	fake.release()
	require.NoError(t, <-leader)
}

func TestGetServesStaleOnFailure(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	fake := newFakeUpstream(result{waiting: 6}, result{err: unreachable()})
	cache := newCache(t, fake.load, stats.WithClock(clock))

	first, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)

	clock.Advance(ttl + time.Second)
	got, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Value.Waiting)
	assert.Equal(t, first.FetchedAt, got.FetchedAt)
	assert.Equal(t, int32(2), fake.calls.Load())

	peek, ok := cache.Peek(testKey)
	require.True(t, ok)
	assert.Equal(t, 6, peek.Value.Waiting)
}

func TestGetColdFailureReachesCaller(t *testing.T) {
	t.Parallel()

	fake := newFakeUpstream(result{err: unreachable()}, result{waiting: 2})
	cache := newCache(t, fake.load)

	_, err := cache.Get(context.Background(), testKey, ttl)
	kind, ok := upstream.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, upstream.KindUnreachable, kind)
	assert.False(t, cache.InFlight(testKey))
	assert.Zero(t, cache.Len())

	got, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Value.Waiting)
}

func TestGetReturnsValuesInFetchOrder(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	fake := newFakeUpstream(result{waiting: 10}, result{waiting: 20}, result{waiting: 30}, result{waiting: 40})
	cache := newCache(t, fake.load, stats.WithClock(clock))

	var last time.Time
	for _, want := range []int{10, 20, 30, 40} {
		entry, err := cache.Get(context.Background(), testKey, ttl)
		require.NoError(t, err)
		assert.Equal(t, want, entry.Value.Waiting)
		assert.True(t, entry.FetchedAt.After(last))
		last = entry.FetchedAt
		clock.Advance(ttl)
	}
}

func TestGetKeysAreIndependent(t *testing.T) {
	t.Parallel()

	fake := newFakeUpstream()
	cache := newCache(t, fake.load)

	_, err := cache.Get(context.Background(), "2025-03-08", ttl)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "2025-03-09", ttl)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "2025-03-08", ttl)
	require.NoError(t, err)

	assert.Equal(t, int32(2), fake.calls.Load())
	assert.Equal(t, []string{"2025-03-08", "2025-03-09"}, cache.Keys())
	assert.Equal(t, 2, cache.Len())
}

func TestGetBackgroundRefreshReturnsStaleImmediately(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	fake := newFakeUpstream(result{waiting: 1}, result{waiting: 2})
	cache := newCache(t, fake.load, stats.WithClock(clock), stats.WithRefreshMode(stats.RefreshBackground))

	_, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	<-fake.started

	clock.Advance(ttl)
	fake.blocked()
	got, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Value.Waiting)

	<-fake.started
	fake.release()
	require.Eventually(t, func() bool {
		entry, ok := cache.Peek(testKey)
		return ok && entry.Value.Waiting == 2
	}, time.Second, 5*time.Millisecond)
}

func TestGetCallerContextDoesNotCancelFetch(t *testing.T) {
	t.Parallel()

	fake := newFakeUpstream(result{waiting: 8}).blocked()
	cache := newCache(t, fake.load)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, testKey, ttl)
		done <- err
	}()
	<-fake.started

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, cache.InFlight(testKey))

	fake.release()
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
	entry, ok := cache.Peek(testKey)
	require.True(t, ok)
	assert.Equal(t, 8, entry.Value.Waiting)
}

func TestCloseCancelsRunningFetch(t *testing.T) {
	t.Parallel()

	fake := newFakeUpstream(result{waiting: 1}).blocked()
	cache := stats.New(fake.load)

	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), testKey, ttl)
		done <- err
	}()
	<-fake.started

	require.NoError(t, cache.Close())
	kind, _ := upstream.KindOf(<-done)
	assert.Equal(t, upstream.KindUnreachable, kind)

	_, err := cache.Get(context.Background(), testKey, ttl)
	require.ErrorIs(t, err, stats.ErrClosed)
	require.NoError(t, cache.Close())
}

func TestGetRecoversFromLoaderPanic(t *testing.T) {
	t.Parallel()

	calls := 0
	cache := newCache(t, func(context.Context, string) (upstream.Counters, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return upstream.Counters{Waiting: 1}, nil
	})

	_, err := cache.Get(context.Background(), testKey, ttl)
	require.ErrorContains(t, err, "boom")

	got, err := cache.Get(context.Background(), testKey, ttl)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Value.Waiting)
}

func TestObserverSeesCacheEvents(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	observer := &countingObserver{}
	fake := newFakeUpstream(result{waiting: 1}, result{err: unreachable()})
	cache := newCache(t, fake.load, stats.WithClock(clock), stats.WithObserver(observer))

	_, _ = cache.Get(context.Background(), testKey, ttl)
	_, _ = cache.Get(context.Background(), testKey, ttl)
	clock.Advance(ttl)
	_, _ = cache.Get(context.Background(), testKey, ttl)

	assert.Equal(t, int32(1), observer.hits.Load())
	assert.Equal(t, int32(2), observer.misses.Load())
	assert.Equal(t, int32(1), observer.stale.Load())
	require.Eventually(t, func() bool { return observer.fetched.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestEntryFreshness(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	entry := stats.Entry{FetchedAt: now}

	assert.True(t, entry.Fresh(now.Add(59*time.Second), ttl))
	assert.False(t, entry.Fresh(now.Add(60*time.Second), ttl))
	assert.Equal(t, 61*time.Second, entry.Age(now.Add(61*time.Second)))
}
