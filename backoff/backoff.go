// Package backoff provides retry delay strategies for the submission
// queue. All strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before the next attempt of an item that has
// already failed retryCount times (0 for a freshly enqueued item).
type Strategy interface {
	Delay(retryCount int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of retry count.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay with every retry.
// Delay = min(Base * 2^retryCount, Max).
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy. A zero maxDelay
// leaves the delay uncapped.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// Delay returns Base * 2^retryCount, capped at Max.
func (e *Exponential) Delay(retryCount int) time.Duration {
	return capped(exponential(e.Base, retryCount), e.Max)
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (bounded)
// ──────────────────────────────────────────────────

// ExponentialWithJitter adds up to Fraction of extra delay on top of the
// exponential value. Fraction must be below 1 so that successive delays
// stay strictly increasing: d(n) ≤ d(n)·(1+f) < 2·d(n) = d(n+1).
type ExponentialWithJitter struct {
	Base     time.Duration
	Max      time.Duration
	Fraction float64
}

// NewExponentialWithJitter creates an exponential backoff with bounded
// jitter. fraction is clamped to [0, 0.99].
func NewExponentialWithJitter(base, maxDelay time.Duration, fraction float64) *ExponentialWithJitter {
	return &ExponentialWithJitter{Base: base, Max: maxDelay, Fraction: math.Min(math.Max(fraction, 0), 0.99)}
}

// Delay returns a random duration in [d, d*(1+Fraction)] where d is the
// exponential delay for retryCount, capped at Max.
func (e *ExponentialWithJitter) Delay(retryCount int) time.Duration {
	d := exponential(e.Base, retryCount)
	jitter := time.Duration(rand.Float64() * e.Fraction * float64(d)) //nolint:gosec // jitter intentionally uses non-crypto rand
	return capped(d+jitter, e.Max)
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns 1s, 2s, 4s, ... with no cap and no jitter.
func DefaultStrategy() Strategy {
	return NewExponential(1*time.Second, 0)
}

func exponential(base time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := float64(base) * math.Pow(2, float64(retryCount))
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func capped(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
