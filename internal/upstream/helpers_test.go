package upstream_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/upstream"
)

var errMiss = errors.New("miss")

// memorySessions is a map-backed SessionCache.
type memorySessions struct {
	data map[string][]byte
	mu   sync.Mutex
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: map[string][]byte{}}
}

func (m *memorySessions) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errMiss
	}
	return v, nil
}

func (m *memorySessions) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memorySessions) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func newClient(t *testing.T, cfg upstream.Config, sessions upstream.SessionCache) upstream.Client {
	t.Helper()
	cfg.RateLimit = 1000
	client, err := upstream.New(cfg, sessions, nil)
	require.NoError(t, err)
	return client
}

func testQuery(date string) upstream.Query {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return upstream.Query{Key: date, Date: d}
}

func requireKind(t *testing.T, err error, want upstream.Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := upstream.KindOf(err)
	require.True(t, ok, "expected upstream error, got %v", err)
	require.Equal(t, want, kind, "error: %v", err)
}
