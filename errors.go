package courier

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure scenarios; match with errors.Is.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	// without attempting transport.
	ErrCircuitOpen = errors.New("courier: circuit open")

	// ErrRequestCancelled is returned when the caller's context fired before
	// or during a call.
	ErrRequestCancelled = errors.New("courier: request cancelled")

	// ErrAttemptTimeout is the cancellation cause installed on each attempt's
	// composed context; it surfaces when an attempt exceeds the per-attempt
	// timeout.
	ErrAttemptTimeout = errors.New("courier: attempt timed out")
)

// Kind partitions request failures into the fixed taxonomy the executor
// retries (or refuses to retry) on.
type Kind string

const (
	// KindNetwork is a transport-level failure before a response was
	// received: connection refused, DNS failure, reset. Retryable.
	KindNetwork Kind = "network"

	// KindTimeout is an attempt aborted by the per-attempt timeout.
	// Retryable until the attempt budget runs out.
	KindTimeout Kind = "timeout"

	// KindCancelled is a caller-initiated cancellation. Never retried.
	KindCancelled Kind = "cancelled"

	// KindHTTPStatus is a response received with a non-2xx status. 5xx is
	// retryable, everything else terminal.
	KindHTTPStatus Kind = "http-status"

	// KindCircuitOpen is a rejection by the open circuit breaker; no
	// transport attempt was made.
	KindCircuitOpen Kind = "circuit-open"

	// KindGeneric is any failure outside the taxonomy. Never retried.
	KindGeneric Kind = "generic"
)

// RequestError is the single structured error type Execute returns. Kind and
// StatusCode carry the classification; Retryable records the verdict used
// during this call's attempt sequence (for observability and tests).
type RequestError struct {
	Kind        Kind
	Message     string
	StatusCode  int
	Retryable   bool
	RequestID   string
	Method      string
	URL         string
	Endpoint    string
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
	Cause       error
}

// Error implements error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 || e.MaxAttempts > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt+1, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is lets errors.Is match a RequestError against another RequestError (by
// Kind) or against the package sentinels for its kind.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*RequestError); ok {
		return e.Kind == targetErr.Kind
	}
	switch target {
	case ErrCircuitOpen:
		return e.Kind == KindCircuitOpen
	case ErrRequestCancelled:
		return e.Kind == KindCancelled
	case ErrAttemptTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// IsRetryable reports whether err carries a retryable verdict: network
// failures, attempt timeouts and 5xx responses. Cancellation, non-5xx
// statuses and circuit rejections are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *RequestError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	info += fmt.Sprintf("Retryable: %t\n", e.Retryable)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.MaxAttempts > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt+1, e.MaxAttempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
