package courier

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sanasaryank/courier/internal/backoff"
)

// WithMaxAttempts sets the client-wide attempt budget per logical call.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithPerAttemptTimeout bounds each individual transport attempt. The
// timeout is composed with the caller's context per attempt; it does not cap
// the whole call.
func WithPerAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.perAttemptTimeout = d
	}
}

// WithBackoffBase sets the first retry delay; subsequent delays double.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = d
	}
}

// WithMaxBackoff caps the computed retry delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithJitter widens retry delays by a uniform random fraction (0.0 to 1.0).
// The doubled delay stays the floor.
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.backoffStrategy = backoff.ExponentialJitter{Fraction: f}
	}
}

// WithBackoffStrategy replaces the delay computation entirely.
func WithBackoffStrategy(s backoff.Strategy) Option {
	return func(c *Client) {
		c.backoffStrategy = s
	}
}

// WithCircuitBreaker sets the circuit breaker configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithSharedCircuitBreaker installs an existing breaker so several clients
// can share one view of the backend's health.
func WithSharedCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) {
		c.circuitBreaker = cb
	}
}

// WithFailureParser sets the decoder for non-2xx response bodies.
func WithFailureParser(fn FailureParser) Option {
	return func(c *Client) {
		c.failureParser = fn
	}
}

// WithUnauthorizedHandler sets the side effect fired once per call on a 401
// response, before the failure surfaces (session-expired redirects and the
// like).
func WithUnauthorizedHandler(fn UnauthorizedHandler) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithMiddleware appends middleware around each transport attempt.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithHTTPClient sets a custom HTTP client as the single-attempt transport.
// Its own Timeout should stay zero; the per-attempt timeout governs.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMetrics enables Prometheus metrics collection on the default
// registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a slog-backed console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidationError reports configuration problems found at construction.
type ValidationError struct {
	Problems []string
}

// Error implements error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("courier: configuration validation failed: %s", strings.Join(e.Problems, "; "))
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateTransportConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxAttempts <= 0 {
		problems = append(problems, "maxAttempts must be positive")
	}

	if c.backoffBase <= 0 {
		problems = append(problems, "backoffBase must be positive")
	}

	if c.maxBackoff < c.backoffBase {
		problems = append(problems, "maxBackoff must be greater than or equal to backoffBase")
	}

	if c.backoffStrategy == nil {
		problems = append(problems, "backoff strategy cannot be nil")
	}

	if c.perAttemptTimeout <= 0 {
		problems = append(problems, "perAttemptTimeout must be positive")
	}

	return problems
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var problems []string

	if c.circuitBreaker == nil {
		problems = append(problems, "circuit breaker cannot be nil")
		return problems
	}

	if c.circuitBreaker.config.FailureThreshold <= 0 {
		problems = append(problems, "circuitBreaker FailureThreshold must be positive")
	}
	if c.circuitBreaker.config.ResetTimeout <= 0 {
		problems = append(problems, "circuitBreaker ResetTimeout must be positive")
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

func (c *Client) validateTransportConfig() []string {
	var problems []string

	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}
	if c.deduplication == nil {
		problems = append(problems, "deduplication tracker cannot be nil")
	}

	return problems
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.maxAttempts > 100 {
		problems = append(problems, "maxAttempts > 100 may cause excessive resource usage")
	}

	if c.backoffBase > 10*time.Minute {
		problems = append(problems, "backoffBase > 10m may cause very long delays")
	}
	if c.maxBackoff > 1*time.Hour {
		problems = append(problems, "maxBackoff > 1h may cause extremely long delays")
	}

	if c.perAttemptTimeout > 10*time.Minute {
		problems = append(problems, "perAttemptTimeout > 10m may cause attempts to hang for too long")
	}

	return problems
}
