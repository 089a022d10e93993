package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// noopStore keeps nothing. Reads miss and writes succeed.
type noopStore struct {
	closed atomic.Bool
}

var (
	_ Store         = (*noopStore)(nil)
	_ StatsProvider = (*noopStore)(nil)
)

func (n *noopStore) Get(context.Context, string) ([]byte, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}
	return nil, ErrNotFound
}

func (n *noopStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	if n.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (n *noopStore) Delete(context.Context, string) error {
	if n.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (n *noopStore) Close() error {
	n.closed.Store(true)
	return nil
}

func (n *noopStore) Stats() Stats {
	return Stats{}
}
