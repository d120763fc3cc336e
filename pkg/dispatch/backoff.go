package dispatch

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the wait between retries of the same backend:
// exponential growth with a small jitter to avoid thundering herd.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the delay between retries.
	Max time.Duration

	// Multiplier is the growth factor per retry.
	Multiplier float64

	// Jitter is the fraction of the delay randomized, 0.0 to 1.0.
	Jitter float64
}

// DefaultBackoff returns the standard retry backoff.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    500 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if max := float64(b.Max); b.Max > 0 && d > max {
		d = max
	}
	if b.Jitter > 0 {
		// Spread the delay within ±jitter of the computed value.
		d += d * b.Jitter * (2*rand.Float64() - 1) //nolint:gosec // G404: math/rand is sufficient for jitter
	}
	return time.Duration(d)
}
