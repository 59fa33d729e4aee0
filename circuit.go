package main

import (
	"errors"
	"log/slog"
)

// ErrCircuitOpen is returned by CircuitBreaker.Call while calls are being rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the current state of the circuit breaker.
type CircuitState int32

const (
	// CircuitClosed indicates normal operation.
	CircuitClosed CircuitState = iota
	// CircuitOpen indicates too many consecutive failures; calls are rejected.
	CircuitOpen
	// CircuitHalfOpen indicates a trial call is allowed to test recovery.
	CircuitHalfOpen
)

// String returns a string representation of the CircuitState.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards the OCR engine against a run of hard failures, such as
// missing training data, so a broken engine is not hammered on every sampled frame.
//
// The cooldown is measured in rejected calls rather than wall-clock time so that a
// given video always produces the same sequence of accepted and rejected calls.
// A CircuitBreaker is owned by a single goroutine and is not safe for concurrent use.
type CircuitBreaker struct {
	state             CircuitState
	failureCount      int
	successCount      int
	rejected          int
	maxFailures       int
	cooldown          int
	recoveryThreshold int
	logger            *slog.Logger
}

// NewCircuitBreaker creates a circuit breaker with the specified configuration.
// maxFailures: consecutive failures before opening
// cooldown: calls rejected while open before a trial call is allowed
// recoveryThreshold: successful trial calls needed to close again
func NewCircuitBreaker(maxFailures, cooldown, recoveryThreshold int, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		state:             CircuitClosed,
		maxFailures:       maxFailures,
		cooldown:          cooldown,
		recoveryThreshold: recoveryThreshold,
		logger:            logger,
	}
}

// Call executes fn if the circuit allows it, otherwise returns ErrCircuitOpen.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if cb.state == CircuitOpen {
		if cb.rejected < cb.cooldown {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen, "cooldown_elapsed")
		cb.successCount = 0
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++

	// Any failure during recovery re-opens immediately.
	if cb.state == CircuitHalfOpen {
		cb.open("failure_during_recovery")
		return
	}
	if cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures {
		cb.open("max_failures")
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failureCount = 0
	if cb.state != CircuitHalfOpen {
		return
	}
	cb.successCount++
	if cb.successCount >= cb.recoveryThreshold {
		cb.transition(CircuitClosed, "recovered")
	}
}

func (cb *CircuitBreaker) open(reason string) {
	cb.rejected = 0
	cb.transition(CircuitOpen, reason)
}

func (cb *CircuitBreaker) transition(to CircuitState, reason string) {
	from := cb.state
	cb.state = to
	if cb.logger != nil {
		cb.logger.Warn("Circuit breaker state transition",
			"from", from,
			"to", to,
			"reason", reason,
			"failure_count", cb.failureCount)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	return cb.state
}
