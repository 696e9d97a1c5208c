package courier

import (
	"net/http"
	"time"
)

// RoundTripper is the single-attempt transport primitive. One RoundTrip call
// is one network attempt; the executor never retries inside it.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to the RoundTripper interface.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps one transport attempt for cross-cutting concerns such as
// auth header injection or tracing. It runs once per attempt, inside the
// retry loop and under the composed per-attempt context.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// FailureParser decodes a non-2xx response into a domain error. The response
// handed to it carries a bounded, replayable copy of the body; the returned
// error becomes the Cause of the resulting *RequestError. Returning nil keeps
// the default status-line message.
type FailureParser func(resp *http.Response) error

// UnauthorizedHandler is invoked synchronously, exactly once per call, when a
// response status is 401, before the failure surfaces to the caller.
type UnauthorizedHandler func()

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker open. Defaults to 5.
	FailureThreshold int

	// ResetTimeout is the cooldown after the last failure before a
	// half-open probe is allowed. Defaults to 60s.
	ResetTimeout time.Duration
}

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String returns the human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSnapshot is a read-only view of the circuit breaker, for health
// checks and tests.
type BreakerSnapshot struct {
	State               CircuitState
	ConsecutiveFailures int
}

// Option represents a configuration option.
type Option func(*Client)
