// Package courier is the outbound request execution layer for talking to a
// single HTTP backend. It turns a logical request (method, URL, body,
// caller-supplied context) into a reliable call:
//
//   - Retries with deterministic exponential backoff (1s, 2s, 4s, ... capped)
//   - Circuit breaker (closed / open / half-open) shared across all requests
//   - In-flight de-duplication keyed by method + canonical URL
//   - Per-attempt timeout composed with the caller's cancellation
//   - One well-classified outcome per call: a response or a *RequestError
//
// Design goals:
//   - Small surface area – Execute is the sole entry point, functional
//     options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Pluggable collaborators for the surrounding application: transport,
//     failure-body parsing, unauthorized handling, logging, metrics
//
// Typical usage:
//
//	client := courier.New(
//	    courier.WithMaxAttempts(3),
//	    courier.WithPerAttemptTimeout(10*time.Second),
//	    courier.WithCircuitBreaker(courier.CircuitBreakerConfig{}),
//	    courier.WithUnauthorizedHandler(session.Expire),
//	)
//	resp, err := client.Execute(ctx, courier.Request{Method: "GET", URL: url})
//
// Failures carry a Kind (network, timeout, cancelled, http-status,
// circuit-open, generic) plus the HTTP status when one was received;
// discriminate with errors.Is against the package sentinels or errors.As
// into *RequestError. Network failures, attempt timeouts and 5xx responses
// are retried; everything else surfaces immediately. A 401 additionally
// fires the unauthorized handler exactly once before surfacing.
//
// De-duplication deliberately excludes the request body from its key, even
// for mutating methods: two concurrent POSTs to the same URL with different
// payloads coalesce into one transport call. This mirrors the host
// application's contract and is covered by tests.
package courier
