package backoff

import (
	"math"
	"math/rand/v2"
	"time"

	"jobq/internal/domain"
)

// Delay returns the wait before the next attempt after `attempt` failed runs (1-indexed).
//
// exponential: min(base * 2^(attempt-1), max); fixed: base.
func Delay(b domain.Backoff, attempt int) time.Duration {
	var d time.Duration
	switch b.Type {
	case domain.BackoffFixed:
		d = b.Delay
	default:
		d = Exponential(b.Delay, b.MaxDelay, attempt)
	}
	if b.Jitter > 0 {
		d = Jitter(d, b.Jitter)
	}
	return d
}

func Exponential(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	mul := math.Pow(2, float64(attempt-1))
	f := float64(base) * mul
	if max > 0 && f > float64(max) {
		return max
	}
	return time.Duration(f)
}

// Jitter returns d moved randomly within +/- frac of itself.
func Jitter(d time.Duration, frac float64) time.Duration {
	j := time.Duration(float64(d) * frac)
	if j <= 0 {
		return d
	}
	return d - j + rand.N(2*j) //nolint:gosec // jitter does not need crypto rand
}
