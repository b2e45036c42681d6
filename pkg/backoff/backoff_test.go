package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jobq/internal/domain"
)

func TestDelay_Exponential(t *testing.T) {
	b := domain.Backoff{Type: domain.BackoffExponential, Delay: time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Delay(b, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelay_Fixed(t *testing.T) {
	b := domain.Backoff{Type: domain.BackoffFixed, Delay: 250 * time.Millisecond, MaxDelay: time.Second}
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 250*time.Millisecond, Delay(b, attempt))
	}
}

func TestExponential_NoCap(t *testing.T) {
	assert.Equal(t, 8*time.Second, Exponential(time.Second, 0, 4))
}

func TestJitter_Bounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 200; i++ {
		d := Jitter(base, 0.2)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.Less(t, d, 1200*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), Jitter(0, 0.2))
}

func TestDelay_ExponentialWithJitter(t *testing.T) {
	b := domain.Backoff{Type: domain.BackoffExponential, Delay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, Jitter: 0.2}
	for i := 0; i < 100; i++ {
		d := Delay(b, 3)
		assert.GreaterOrEqual(t, d, 1600*time.Millisecond)
		assert.Less(t, d, 2400*time.Millisecond)
	}
}
