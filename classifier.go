package courier

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// verdict is the classifier's output: the failure kind plus whether the
// attempt loop may retry it. Classification is pure; the executor separately
// caps retries at the attempt budget.
type verdict struct {
	kind      Kind
	retryable bool
}

// classifyError classifies a transport-level error from one attempt, in
// priority order: cancellation sources first (the composer discriminates
// caller cancellation, never retryable, from the attempt timeout, which is
// retryable), then network failures (retryable), then everything else
// (terminal).
func classifyError(parent, attempt context.Context, err error) verdict {
	if parent.Err() != nil || attempt.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind, _ := cancellationError(parent, attempt)
		return verdict{kind: kind, retryable: kind == KindTimeout}
	}

	if isNetworkError(err) {
		return verdict{kind: KindNetwork, retryable: true}
	}

	return verdict{kind: KindGeneric, retryable: false}
}

// classifyStatus classifies a received non-2xx response status: 5xx is a
// retryable server failure, everything else terminal. 401 is terminal too;
// the executor additionally fires the unauthorized hook for it. 429 follows
// the plain non-5xx rule here and is not retried.
func classifyStatus(statusCode int) verdict {
	if statusCode >= 500 && statusCode < 600 {
		return verdict{kind: KindHTTPStatus, retryable: true}
	}
	return verdict{kind: KindHTTPStatus, retryable: false}
}

// isNetworkError reports whether err is a transport-level failure that
// precedes any HTTP response: DNS failure, refused or reset connection,
// unreachable host, truncated stream.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	// net/http wraps transport errors in *url.Error.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	// A connection dropped mid-response surfaces as a truncated read.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, http.ErrServerClosed)
}
