package upstream

import (
	"context"
)

// Breaker gates attempts. *health.CircuitBreaker satisfies it.
type Breaker interface {
	Allow() (done func(err error), err error)
}

// guardedClient rejects attempts while the breaker is open.
type guardedClient struct {
	next    Client
	breaker Breaker
}

// WithBreaker wraps next so each attempt passes through breaker.
// Rejected attempts fail as KindUnreachable without touching the network.
func WithBreaker(next Client, breaker Breaker) Client {
	if breaker == nil {
		return next
	}
	return &guardedClient{next: next, breaker: breaker}
}

// Name implements Client.
func (g *guardedClient) Name() string {
	return g.next.Name()
}

// Fetch implements Client.
func (g *guardedClient) Fetch(ctx context.Context, q Query) (Counters, error) {
	done, err := g.breaker.Allow()
	if err != nil {
		return Counters{}, NewError(KindUnreachable, "upstream circuit is open", err)
	}

	result, err := g.next.Fetch(ctx, q)
	done(breakerOutcome(err))
	return result, err
}

// breakerOutcome hides failures that say nothing about upstream health.
func breakerOutcome(err error) error {
	if kind, ok := KindOf(err); ok && (kind == KindConfigMissing || kind == KindBusy) {
		return nil
	}
	return err
}
