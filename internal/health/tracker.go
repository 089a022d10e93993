package health

import (
	"sync"

	"github.com/rs/zerolog"
)

// Tracker owns one circuit breaker per upstream name.
type Tracker struct {
	circuits map[string]*CircuitBreaker
	logger   *zerolog.Logger
	config   CircuitBreakerConfig
	mu       sync.RWMutex
}

// NewTracker creates a Tracker whose breakers share cfg.
func NewTracker(cfg CircuitBreakerConfig, logger *zerolog.Logger) *Tracker {
	return &Tracker{
		circuits: make(map[string]*CircuitBreaker),
		config:   cfg,
		logger:   logger,
	}
}

// Circuit returns the breaker for name, creating it on first use.
func (t *Tracker) Circuit(name string) *CircuitBreaker {
	t.mu.RLock()
	cb, ok := t.circuits[name]
	t.mu.RUnlock()
	if ok {
		return cb
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cb, ok = t.circuits[name]; ok {
		return cb
	}

	cb = NewCircuitBreaker(name, t.config, t.logger)
	t.circuits[name] = cb
	if t.logger != nil {
		t.logger.Debug().Str("upstream", name).Msg("created circuit breaker")
	}
	return cb
}

// State returns the state for name. Unknown names are closed.
func (t *Tracker) State(name string) State {
	t.mu.RLock()
	cb, ok := t.circuits[name]
	t.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return cb.State()
}

// Healthy reports whether attempts against name are currently let through.
func (t *Tracker) Healthy(name string) bool {
	return t.State(name) != StateOpen
}

// AllStates returns a snapshot of every known circuit.
func (t *Tracker) AllStates() map[string]State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make(map[string]State, len(t.circuits))
	for name, cb := range t.circuits {
		states[name] = cb.State()
	}
	return states
}
