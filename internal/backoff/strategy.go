// Package backoff holds the pure delay arithmetic used between retry
// attempts. Strategies are deterministic unless jitter is explicitly
// configured, so timing behavior stays assertable in tests.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before the next attempt.
type Strategy interface {
	// Delay returns the backoff duration for a 0-based attempt index.
	Delay(attempt int, base, max time.Duration) time.Duration
}

// Exponential doubles the base delay per attempt: base, 2*base, 4*base, ...
// capped at max. It is fully deterministic.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	// Past 30 doublings the shift would overflow any sane base; the cap
	// governs from there anyway.
	if attempt > 30 {
		attempt = 30
	}

	d := base << uint(attempt)
	if d <= 0 || (max > 0 && d > max) {
		d = max
	}
	return d
}

// ExponentialJitter widens Exponential delays by a uniform random fraction,
// keeping the doubled value as the floor. Rand is injectable so tests can
// pin the jitter draw.
type ExponentialJitter struct {
	// Fraction is the maximum relative widening, clamped to [0, 1].
	Fraction float64

	// Rand returns a value in [0, 1). Nil uses math/rand.
	Rand func() float64
}

// Delay implements Strategy.
func (s ExponentialJitter) Delay(attempt int, base, max time.Duration) time.Duration {
	d := Exponential{}.Delay(attempt, base, max)

	fraction := s.Fraction
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction == 0 || d <= 0 {
		return d
	}

	randFn := s.Rand
	if randFn == nil {
		randFn = rand.Float64
	}

	jitter := time.Duration(float64(d) * fraction * randFn())
	if max > 0 && d+jitter > max {
		return max
	}
	return d + jitter
}
