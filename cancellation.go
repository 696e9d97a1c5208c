package courier

import (
	"context"
	"errors"
	"time"
)

// composeAttempt merges the caller/creator context with the per-attempt
// timeout into one effective context. The returned release func must be
// called the instant the attempt settles, on every path, so the internal
// timer is stopped and the done-propagation goroutine detaches from the
// parent; callers that skip it leak a timer until it fires.
//
// The timeout is installed with ErrAttemptTimeout as the cancellation cause,
// which is how classification later tells an attempt timeout apart from a
// caller cancellation.
func composeAttempt(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeoutCause(parent, timeout, ErrAttemptTimeout)
}

// cancellationError inspects a fired attempt context and builds the matching
// failure. The caller's cancellation wins over the attempt timeout when both
// have fired: a caller that walked away must never observe a retryable kind.
func cancellationError(parent, attempt context.Context) (Kind, error) {
	if parent.Err() != nil {
		return KindCancelled, ErrRequestCancelled
	}
	if errors.Is(context.Cause(attempt), ErrAttemptTimeout) {
		return KindTimeout, ErrAttemptTimeout
	}
	if attempt.Err() == context.DeadlineExceeded {
		return KindTimeout, ErrAttemptTimeout
	}
	return KindCancelled, ErrRequestCancelled
}

// sleepBackoff is the cancellable suspension between attempts: it returns nil
// after d elapses, or ctx.Err() immediately when the context fires mid-sleep.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
