package metrics

import (
	"sync"
	"time"
)

const (
	DefaultSampleSize = 1000
	minuteWindow      = time.Minute
	hourWindow        = time.Hour
)

// Sampler keeps a bounded ring of processing durations plus the
// completion timestamps of the last hour. It is safe for concurrent use.
type Sampler struct {
	mu sync.Mutex

	size    int
	samples []time.Duration
	next    int

	completions []time.Time

	completed uint64
	failed    uint64
}

func NewSampler(size int) *Sampler {
	if size <= 0 || size > DefaultSampleSize {
		size = DefaultSampleSize
	}
	return &Sampler{size: size, samples: make([]time.Duration, 0, size)}
}

// Sample is an immutable copy of the sampler state.
type Sample struct {
	Durations   []time.Duration
	Completions []time.Time
	Completed   uint64
	Failed      uint64
}

func (s *Sampler) RecordCompleted(d time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	if len(s.samples) < s.size {
		s.samples = append(s.samples, d)
	} else {
		s.samples[s.next] = d
	}
	s.next = (s.next + 1) % s.size

	s.completions = append(s.completions, at)
	s.pruneLocked(at)
}

func (s *Sampler) RecordFailed() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func (s *Sampler) Snapshot(now time.Time) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)

	out := Sample{
		Durations:   make([]time.Duration, len(s.samples)),
		Completions: make([]time.Time, len(s.completions)),
		Completed:   s.completed,
		Failed:      s.failed,
	}
	copy(out.Durations, s.samples)
	copy(out.Completions, s.completions)
	return out
}

// pruneLocked drops completion timestamps older than the hour window.
// Timestamps are appended in non-decreasing order.
func (s *Sampler) pruneLocked(now time.Time) {
	cutoff := now.Add(-hourWindow)
	i := 0
	for i < len(s.completions) && !s.completions[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.completions = append(s.completions[:0], s.completions[i:]...)
	}
}
