package courier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanasaryank/courier/internal/backoff"
)

// failureBodyLimit bounds how much of a non-2xx response body is retained as
// diagnostic context.
const failureBodyLimit = 8 << 10

// Client is the outbound request executor: it layers retries with exponential
// backoff, a circuit breaker, in-flight deduplication and per-attempt
// timeout/cancellation composition over a single-attempt HTTP transport.
// It is safe for concurrent use.
type Client struct {
	httpClient        *http.Client
	middleware        []Middleware
	maxAttempts       int
	perAttemptTimeout time.Duration
	backoffBase       time.Duration
	maxBackoff        time.Duration
	backoffStrategy   backoff.Strategy
	circuitBreaker    *CircuitBreaker
	deduplication     *DeduplicationTracker
	failureParser     FailureParser
	onUnauthorized    UnauthorizedHandler
	metrics           *MetricsCollector
	debug             *DebugConfig
	logger            Logger
	validationError   error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:        &http.Client{},
		middleware:        []Middleware{},
		maxAttempts:       3,
		perAttemptTimeout: 30 * time.Second,
		backoffBase:       1 * time.Second,
		maxBackoff:        10 * time.Second,
		backoffStrategy:   backoff.Exponential{},
		circuitBreaker:    NewCircuitBreaker(CircuitBreakerConfig{}),
		deduplication:     NewDeduplicationTracker(),
		failureParser:     DefaultFailureParser,
		debug:             DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get executes a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Execute(ctx, Request{Method: http.MethodGet, URL: url})
}

// Head executes a HEAD request.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	return c.Execute(ctx, Request{Method: http.MethodHead, URL: url})
}

// Delete executes a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) (*http.Response, error) {
	return c.Execute(ctx, Request{Method: http.MethodDelete, URL: url})
}

// Post executes a POST request with the given content type.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	return c.Execute(ctx, Request{
		Method: http.MethodPost,
		URL:    url,
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   body,
	})
}

// Put executes a PUT request with the given content type.
func (c *Client) Put(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	return c.Execute(ctx, Request{
		Method: http.MethodPut,
		URL:    url,
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   body,
	})
}

// Execute runs one logical call: deduplicated against concurrent calls with
// the same fingerprint, gated by the circuit breaker, retried per the backoff
// policy, and bounded by the caller's context plus a per-attempt timeout.
//
// It returns either a response or a single *RequestError; never both. The
// response body is a replayable snapshot, safe to read regardless of how many
// callers shared the underlying transport call.
func (c *Client) Execute(ctx context.Context, req Request) (*http.Response, error) {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	prep, err := c.prepare(req)
	if err != nil {
		return nil, &RequestError{
			Kind:      KindGeneric,
			Message:   "invalid request",
			Timestamp: time.Now(),
			Cause:     err,
		}
	}

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	// A caller that has already cancelled gets a fail-fast answer before the
	// registry or transport is touched.
	if ctx.Err() != nil {
		return nil, c.newError(KindCancelled, "cancelled before execution", ErrRequestCancelled, requestID, prep, 0, time.Since(start))
	}

	if c.debugEnabled(c.debug != nil && c.debug.LogRequests) {
		c.logger.Debug("Starting request",
			"requestID", requestID, "method", prep.method, "url", prep.url.String(), "endpoint", prep.endpoint)
	}

	c.metrics.RecordRequestStart(prep.method, prep.endpoint)
	defer c.metrics.RecordRequestEnd(prep.method, prep.endpoint)

	entry, owner := c.deduplication.GetOrCreateEntry(prep.fingerprint)
	if !owner {
		return c.joinInFlight(ctx, prep, entry, requestID, start)
	}

	var (
		snap    *responseSnapshot
		execErr error
	)
	defer func() {
		if r := recover(); r != nil {
			c.deduplication.Complete(prep.fingerprint, entry, nil,
				c.newError(KindGeneric, fmt.Sprintf("panic during execution: %v", r), nil, requestID, prep, 0, time.Since(start)))
			panic(r)
		}
		// Complete is idempotent; this is the single settlement point for
		// every exit path and removes the registry entry immediately.
		c.deduplication.Complete(prep.fingerprint, entry, snap, execErr)
	}()

	// The breaker is consulted once per logical call, only by the creator. A
	// rejection reaches no transport and counts toward no failure streak.
	if !c.circuitBreaker.Allow() {
		if c.debugEnabled(c.debug != nil && c.debug.LogCircuit) {
			c.logger.Warn("Circuit breaker open", "requestID", requestID, "endpoint", prep.endpoint)
		}
		c.metrics.RecordError(KindCircuitOpen, prep.method, prep.endpoint)
		c.metrics.RecordRequest(prep.method, prep.endpoint, 0, time.Since(start))

		execErr = c.newError(KindCircuitOpen, "circuit breaker is open", ErrCircuitOpen, requestID, prep, 0, time.Since(start))
		return nil, execErr
	}

	snap, execErr = c.runAttempts(ctx, prep, requestID, start)

	statusCode := 0
	if snap != nil {
		statusCode = snap.statusCode
	}
	c.metrics.RecordRequest(prep.method, prep.endpoint, statusCode, time.Since(start))

	if execErr != nil {
		return nil, execErr
	}
	return snap.materialize(), nil
}

// joinInFlight waits on an entry owned by another caller. The joiner's own
// context detaches only its wait; the shared attempt loop keeps running under
// the creator's context for everyone else.
func (c *Client) joinInFlight(ctx context.Context, prep *preparedRequest, entry *DeduplicationEntry, requestID string, start time.Time) (*http.Response, error) {
	c.metrics.RecordDeduplicationHit(prep.method, prep.endpoint)
	if c.debugEnabled(c.debug != nil && c.debug.LogDeduplication) {
		c.logger.Debug("Joined in-flight request",
			"requestID", requestID, "fingerprint", prep.fingerprint, "endpoint", prep.endpoint)
	}

	snap, err := entry.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, c.newError(KindCancelled, "cancelled while joined to in-flight request", ErrRequestCancelled, requestID, prep, 0, time.Since(start))
	}

	statusCode := 0
	if snap != nil {
		statusCode = snap.statusCode
	}
	c.metrics.RecordRequest(prep.method, prep.endpoint, statusCode, time.Since(start))

	if err != nil {
		return nil, err
	}
	return snap.materialize(), nil
}

// runAttempts is the attempt-state machine: classify, report to the breaker,
// back off, retry, until success, a terminal failure, or an exhausted budget.
func (c *Client) runAttempts(ctx context.Context, prep *preparedRequest, requestID string, start time.Time) (*responseSnapshot, error) {
	unauthorizedFired := false

	for attempt := 0; attempt < prep.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, c.newError(KindCancelled, "cancelled before attempt", ErrRequestCancelled, requestID, prep, attempt, time.Since(start))
		}

		if attempt > 0 {
			if c.debugEnabled(c.debug != nil && c.debug.LogRetries) {
				c.logger.Info("Retry attempt",
					"requestID", requestID, "attempt", attempt, "maxAttempts", prep.maxAttempts, "endpoint", prep.endpoint)
			}
			c.metrics.RecordRetry(prep.method, prep.endpoint, attempt)
		}

		attemptCtx, release := composeAttempt(ctx, c.perAttemptTimeout)
		snap, reqErr := c.doAttempt(attemptCtx, ctx, prep, requestID, attempt, start)
		release()

		if reqErr == nil {
			c.circuitBreaker.RecordSuccess()
			c.recordBreakerState()
			return snap, nil
		}

		// Only failures of the backend count toward the breaker: network,
		// timeout and 5xx. Caller cancellations and terminal 4xx do not.
		if countsTowardBreaker(reqErr) {
			c.circuitBreaker.RecordFailure()
			c.recordBreakerState()
			if c.debugEnabled(c.debug != nil && c.debug.LogCircuit) {
				c.logger.Warn("Circuit breaker failure recorded",
					"requestID", requestID, "kind", string(reqErr.Kind), "statusCode", reqErr.StatusCode)
			}
		}
		c.metrics.RecordError(reqErr.Kind, prep.method, prep.endpoint)

		// The unauthorized hook fires synchronously, once, before the 401
		// failure surfaces.
		if reqErr.StatusCode == http.StatusUnauthorized && !unauthorizedFired {
			unauthorizedFired = true
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
		}

		if !reqErr.Retryable || attempt == prep.maxAttempts-1 {
			return nil, reqErr
		}

		delay := c.backoffStrategy.Delay(attempt, c.backoffBase, c.maxBackoff)
		if c.debugEnabled(c.debug != nil && c.debug.LogRetries) {
			c.logger.Info("Scheduling retry",
				"requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", prep.endpoint)
		}
		if err := sleepBackoff(ctx, delay); err != nil {
			return nil, c.newError(KindCancelled, "cancelled during backoff", ErrRequestCancelled, requestID, prep, attempt, time.Since(start))
		}
	}

	// Unreachable: the loop always returns on the last attempt.
	return nil, c.newError(KindGeneric, "attempt budget exhausted", nil, requestID, prep, prep.maxAttempts-1, time.Since(start))
}

// doAttempt performs one transport call under the composed attempt context
// and classifies its outcome. On success the response body is snapshotted
// while the attempt context is still alive.
func (c *Client) doAttempt(attemptCtx, parent context.Context, prep *preparedRequest, requestID string, attempt int, start time.Time) (*responseSnapshot, *RequestError) {
	httpReq, err := prep.httpRequest(attemptCtx)
	if err != nil {
		return nil, c.newError(KindGeneric, "building request failed", err, requestID, prep, attempt, time.Since(start))
	}

	resp, err := c.transport(httpReq)
	if err != nil {
		v := classifyError(parent, attemptCtx, err)
		reqErr := c.newError(v.kind, messageForKind(v.kind), err, requestID, prep, attempt, time.Since(start))
		reqErr.Retryable = v.retryable
		return nil, reqErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		snap, err := snapshotResponse(resp)
		if err != nil {
			v := classifyError(parent, attemptCtx, err)
			reqErr := c.newError(v.kind, "reading response body failed", err, requestID, prep, attempt, time.Since(start))
			reqErr.Retryable = v.retryable
			return nil, reqErr
		}
		return snap, nil
	}

	v := classifyStatus(resp.StatusCode)
	reqErr := c.newError(v.kind, fmt.Sprintf("server returned %s", resp.Status), c.parseFailure(resp), requestID, prep, attempt, time.Since(start))
	reqErr.StatusCode = resp.StatusCode
	reqErr.Retryable = v.retryable
	return nil, reqErr
}

// parseFailure retains a bounded excerpt of a non-2xx body and hands it to
// the pluggable failure parser for domain decoding.
func (c *Client) parseFailure(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, failureBodyLimit))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(excerpt))

	if c.failureParser != nil {
		return c.failureParser(resp)
	}
	return nil
}

// DefaultFailureParser turns a non-2xx response into an error carrying a
// trimmed body excerpt, or nil when the body is empty.
func DefaultFailureParser(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	return fmt.Errorf("%s", body)
}

// transport runs one attempt through the middleware chain down to the
// underlying http.Client.
func (c *Client) transport(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripper(RoundTripperFunc(c.httpClient.Do))

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// countsTowardBreaker reports whether a failure feeds the breaker's
// consecutive-failure streak.
func countsTowardBreaker(e *RequestError) bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500 && e.StatusCode < 600
	default:
		return false
	}
}

func messageForKind(kind Kind) string {
	switch kind {
	case KindNetwork:
		return "network request failed"
	case KindTimeout:
		return "attempt timed out"
	case KindCancelled:
		return "request cancelled"
	default:
		return "request failed"
	}
}

func (c *Client) newError(kind Kind, message string, cause error, requestID string, prep *preparedRequest, attempt int, duration time.Duration) *RequestError {
	return &RequestError{
		Kind:        kind,
		Message:     message,
		Retryable:   kind == KindNetwork || kind == KindTimeout,
		RequestID:   requestID,
		Method:      prep.method,
		URL:         prep.url.String(),
		Endpoint:    prep.endpoint,
		Attempt:     attempt,
		MaxAttempts: prep.maxAttempts,
		Timestamp:   time.Now(),
		Duration:    duration,
		Cause:       cause,
	}
}

func (c *Client) debugEnabled(flag bool) bool {
	return c.debug != nil && c.debug.Enabled && flag && c.logger != nil
}

func (c *Client) recordBreakerState() {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.Snapshot().State)
}

// CircuitBreakerState returns a read-only snapshot of the breaker, for
// health checks and tests.
func (c *Client) CircuitBreakerState() BreakerSnapshot {
	return c.circuitBreaker.Snapshot()
}

// ResetCircuitBreaker forces the breaker back to closed with a zero failure
// count.
func (c *Client) ResetCircuitBreaker() {
	c.circuitBreaker.Reset()
	c.recordBreakerState()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (c *Client) ValidateConfigurationStrict() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid client configuration: %v", err))
	}
}
