// Package resilience wraps calls to optional backends (the Redis query cache,
// the analytics snapshot store) so their failures degrade the service instead
// of failing requests: a circuit breaker, retry with backoff, and a timeout
// helper.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the backend while the breaker is
// open or its single recovery trial is in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker phase. Its integer value is what the
// circuit_breaker_state gauge reports.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes a breaker. Zero values take the defaults: five
// consecutive failures to trip, thirty seconds before a trial, and every
// error except a caller's own context cancellation counting as a failure.
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// IsFailure decides whether an error returned by the backend counts
	// towards tripping.
	IsFailure func(error) bool
	// OnStateChange runs after each transition, outside the breaker's lock.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker opens after FailureThreshold consecutive failures. Once
// ResetTimeout has passed it lets exactly one trial through: success closes
// it, failure reopens it for another ResetTimeout.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inTrial  bool
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = countsAsFailure
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "breaker", name),
		now:    time.Now,
	}
}

func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute calls fn unless the breaker is refusing calls, and records the
// outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(trial, err)
	return err
}

// GetState returns the current phase.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and forgets recorded failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state, cb.failures, cb.inTrial = StateClosed, 0, false
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

// admit reports whether a call may proceed and whether it is the recovery
// trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return false, nil
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			cb.mu.Unlock()
			return false, fmt.Errorf("%w: %s, next trial in %v", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.state, cb.inTrial = StateHalfOpen, true
		cb.mu.Unlock()
		cb.notify(StateOpen, StateHalfOpen)
		return true, nil
	default:
		if cb.inTrial {
			cb.mu.Unlock()
			return false, fmt.Errorf("%w: %s, trial in flight", ErrCircuitOpen, cb.name)
		}
		cb.inTrial = true
		cb.mu.Unlock()
		return true, nil
	}
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	failed := err != nil && cb.cfg.IsFailure(err)

	cb.mu.Lock()
	from := cb.state
	if trial {
		cb.inTrial = false
	}
	switch {
	case trial && err != nil && !failed:
		// The trial proved nothing; the next call tries again.
		cb.state = StateOpen
	case !failed && trial:
		cb.state, cb.failures = StateClosed, 0
	case !failed:
		if err == nil {
			cb.failures = 0
		}
	case trial || (cb.state == StateClosed && cb.failures+1 >= cb.cfg.FailureThreshold):
		cb.failures++
		cb.state, cb.openedAt = StateOpen, cb.now()
	default:
		cb.failures++
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from == to {
		return
	}
	cb.logger.Info("circuit state changed", "from", from.String(), "to", to.String())
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
