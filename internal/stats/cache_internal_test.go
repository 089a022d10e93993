package stats

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/upstream"
)

func TestFinishKeepsEntryNewerThanFlight(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC))
	c := New(func(context.Context, string) (upstream.Counters, error) {
		return upstream.Counters{}, nil
	}, WithClock(clock))
	t.Cleanup(func() { _ = c.Close() })

	f := &flight{started: clock.Now(), done: make(chan struct{})}
	newer := &Entry{Key: "2025-03-08", Value: upstream.Counters{Waiting: 9}, FetchedAt: clock.Now().Add(time.Second)}
	c.mu.Lock()
	c.flights["2025-03-08"] = f
	c.entries["2025-03-08"] = newer
	c.mu.Unlock()

	clock.Advance(2 * time.Second)
	c.finish("2025-03-08", f, upstream.Counters{Waiting: 1}, time.Minute, nil)

	select {
	case <-f.done:
	default:
		t.Fatal("waiters were not released")
	}
	require.NoError(t, f.err)
	assert.Same(t, newer, f.entry)
	assert.False(t, c.InFlight("2025-03-08"))

	got, ok := c.Peek("2025-03-08")
	require.True(t, ok)
	assert.Equal(t, 9, got.Value.Waiting)
}

func TestFinishLeavesOtherFlightRegistered(t *testing.T) {
	t.Parallel()

	c := New(func(context.Context, string) (upstream.Counters, error) {
		return upstream.Counters{}, nil
	})
	t.Cleanup(func() { _ = c.Close() })

	stale := &flight{started: time.Now(), done: make(chan struct{})}
	current := &flight{started: time.Now(), done: make(chan struct{})}
	c.mu.Lock()
	c.flights["2025-03-08"] = current
	c.mu.Unlock()

	c.finish("2025-03-08", stale, upstream.Counters{Waiting: 2}, time.Minute, nil)
	assert.True(t, c.InFlight("2025-03-08"))
}

func TestDeleteBeforeSkipsRunningFetch(t *testing.T) {
	t.Parallel()

	c := New(func(context.Context, string) (upstream.Counters, error) {
		return upstream.Counters{}, nil
	})
	t.Cleanup(func() { _ = c.Close() })

	c.mu.Lock()
	for _, key := range []string{"2025-03-01", "2025-03-02", "2025-03-08"} {
		c.entries[key] = &Entry{Key: key}
	}
	c.flights["2025-03-02"] = &flight{done: make(chan struct{})}
	c.mu.Unlock()

	assert.Equal(t, 1, c.DeleteBefore("2025-03-07"))
	assert.Equal(t, []string{"2025-03-02", "2025-03-08"}, c.Keys())
}
