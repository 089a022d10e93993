package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/cache"
	"github.com/R0zhkov/wrf/internal/upstream"
)

var _ upstream.SessionCache = cache.Store(nil)

func newStore(t *testing.T, mode cache.Mode) cache.Store {
	t.Helper()
	store, err := cache.New(&cache.Config{Mode: mode}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t, cache.ModeMemory)

	_, err := store.Get(ctx, "session:hostes:manager")
	require.ErrorIs(t, err, cache.ErrNotFound)

	token := []byte("tok-1")
	require.NoError(t, store.SetWithTTL(ctx, "session:hostes:manager", token, time.Minute))
	token[0] = 'X'

	got, err := store.Get(ctx, "session:hostes:manager")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", string(got))

	got[0] = 'Y'
	again, err := store.Get(ctx, "session:hostes:manager")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", string(again))

	require.NoError(t, store.Delete(ctx, "session:hostes:manager"))
	require.NoError(t, store.Delete(ctx, "session:hostes:manager"))
	_, err = store.Get(ctx, "session:hostes:manager")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t, cache.ModeMemory)

	require.NoError(t, store.SetWithTTL(ctx, "short", []byte("v"), 50*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, "short")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMemoryStoreStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t, cache.ModeMemory)
	require.NoError(t, store.SetWithTTL(ctx, "k", []byte("value"), time.Minute))
	_, _ = store.Get(ctx, "k")
	_, _ = store.Get(ctx, "missing")

	stats := store.(cache.StatsProvider).Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestStoreClosed(t *testing.T) {
	t.Parallel()

	for _, mode := range []cache.Mode{cache.ModeMemory, cache.ModeDisabled} {
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store, err := cache.New(&cache.Config{Mode: mode}, nil)
			require.NoError(t, err)

			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			_, err = store.Get(ctx, "k")
			require.ErrorIs(t, err, cache.ErrClosed)
			require.ErrorIs(t, store.SetWithTTL(ctx, "k", nil, 0), cache.ErrClosed)
			require.ErrorIs(t, store.Delete(ctx, "k"), cache.ErrClosed)
		})
	}
}

func TestStoreRespectsContext(t *testing.T) {
	t.Parallel()

	store := newStore(t, cache.ModeMemory)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDisabledStoreKeepsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t, cache.ModeDisabled)

	require.NoError(t, store.SetWithTTL(ctx, "k", []byte("v"), time.Minute))
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg     cache.Config
		name    string
		wantErr string
	}{
		{name: "default mode", cfg: cache.Config{}},
		{name: "disabled", cfg: cache.Config{Mode: cache.ModeDisabled}},
		{name: "unknown", cfg: cache.Config{Mode: "ha"}, wantErr: "unknown mode"},
		{
			name:    "negative cost",
			cfg:     cache.Config{Ristretto: cache.RistrettoConfig{MaxCost: -1}},
			wantErr: "max_cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg cache.Config
	assert.Equal(t, cache.ModeMemory, cfg.GetMode())
	assert.Equal(t, cache.DefaultRistrettoConfig(), cfg.GetRistretto())
}
