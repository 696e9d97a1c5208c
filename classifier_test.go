package courier

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestClassifyErrorCallerCancellationWins(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	attempt, release := composeAttempt(parent, time.Minute)
	defer release()

	cancel()

	v := classifyError(parent, attempt, context.Canceled)
	if v.kind != KindCancelled {
		t.Errorf("Expected kind=cancelled, got %s", v.kind)
	}
	if v.retryable {
		t.Error("Caller cancellation must never be retryable")
	}
}

func TestClassifyErrorAttemptTimeout(t *testing.T) {
	parent := context.Background()
	attempt, release := composeAttempt(parent, time.Nanosecond)
	defer release()

	<-attempt.Done()

	v := classifyError(parent, attempt, attempt.Err())
	if v.kind != KindTimeout {
		t.Errorf("Expected kind=timeout, got %s", v.kind)
	}
	if !v.retryable {
		t.Error("Attempt timeout should be retryable")
	}
}

func TestClassifyErrorNetwork(t *testing.T) {
	parent := context.Background()
	attempt, release := composeAttempt(parent, time.Minute)
	defer release()

	tests := []struct {
		name string
		err  error
	}{
		{"dns failure", &net.DNSError{Err: "no such host", Name: "backend.local"}},
		{"op error", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
		{"wrapped in url.Error", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "read", Err: syscall.ECONNRESET}}},
		{"connection refused", syscall.ECONNREFUSED},
		{"connection reset", syscall.ECONNRESET},
		{"truncated stream", io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := classifyError(parent, attempt, tt.err)
			if v.kind != KindNetwork {
				t.Errorf("Expected kind=network, got %s", v.kind)
			}
			if !v.retryable {
				t.Error("Network failures should be retryable")
			}
		})
	}
}

func TestClassifyErrorGeneric(t *testing.T) {
	parent := context.Background()
	attempt, release := composeAttempt(parent, time.Minute)
	defer release()

	v := classifyError(parent, attempt, errors.New("something odd"))
	if v.kind != KindGeneric {
		t.Errorf("Expected kind=generic, got %s", v.kind)
	}
	if v.retryable {
		t.Error("Unclassified failures must not be retried")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{500, true},
		{502, true},
		{503, true},
		{599, true},
		{400, false},
		{401, false},
		{404, false},
		{429, false},
		{600, false},
	}

	for _, tt := range tests {
		v := classifyStatus(tt.status)
		if v.kind != KindHTTPStatus {
			t.Errorf("classifyStatus(%d) kind = %s, want http-status", tt.status, v.kind)
		}
		if v.retryable != tt.retryable {
			t.Errorf("classifyStatus(%d) retryable = %t, want %t", tt.status, v.retryable, tt.retryable)
		}
	}
}

func TestIsNetworkErrorNil(t *testing.T) {
	if isNetworkError(nil) {
		t.Error("nil is not a network error")
	}
	if isNetworkError(errors.New("plain")) {
		t.Error("A plain error is not a network error")
	}
}
