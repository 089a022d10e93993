package health

import "errors"

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects an attempt.
	ErrCircuitOpen = errors.New("health: circuit breaker is open")

	// ErrProbeFailed wraps probe failures.
	ErrProbeFailed = errors.New("health: upstream probe failed")
)
