package courier

import (
	"sync"
	"time"
)

// CircuitBreaker gates calls to the backend while it is failing. It is a
// three-state machine (closed, open, half-open) shared by every fingerprint
// going through one Client; all transitions are serialized by a mutex so an
// Allow decision always reflects the most recent completed transition.
type CircuitBreaker struct {
	mu          sync.Mutex
	config      CircuitBreakerConfig
	state       CircuitState
	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 60 * time.Second
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. Closed always allows. Open
// rejects until ResetTimeout has elapsed since the last failure, then flips
// to half-open and allows the caller through as the recovery probe.
//
// Half-open allows callers through without counting probes: concurrent calls
// arriving during the half-open window may all proceed. This is a relaxed
// guarantee; the resulting state deterministically reflects the last outcome
// reported via RecordSuccess/RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) > cb.config.ResetTimeout {
			cb.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure records a failed attempt. In closed it increments the
// consecutive-failure count and trips open at the threshold; in half-open the
// probe failed, so the breaker reopens with a fresh cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
		}
	case StateOpen:
		// Already open; only the cooldown clock moves.
	case StateHalfOpen:
		cb.failures++
		cb.state = StateOpen
	}
}

// RecordSuccess records a successful attempt. A success ends any consecutive
// failure streak; a half-open probe success closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateOpen:
		// A late success from a call admitted before the trip does not
		// close the breaker; recovery goes through the half-open probe.
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failures = 0
	}
}

// Snapshot returns a consistent read of the breaker state.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerSnapshot{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
	}
}

// Reset forces the breaker back to closed with a zero failure count. It is an
// administrative override, not part of normal recovery.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailure = time.Time{}
}
