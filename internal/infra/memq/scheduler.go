package memq

import (
	"context"
	"time"

	"jobq/internal/domain"
	"jobq/internal/ports"
)

var _ ports.Scheduler = (*Promoter)(nil)

// Promoter moves due delayed jobs back to pending. It never runs processors,
// so its cadence does not depend on how busy the workers are.
type Promoter struct {
	Q        *Queue
	Interval time.Duration
}

func NewPromoter(q *Queue, interval time.Duration) *Promoter {
	if interval <= 0 {
		interval = DefaultPromoteInterval
	}
	return &Promoter{Q: q, Interval: interval}
}

func (s *Promoter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		s.moveDue(time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Promoter) moveDue(now time.Time) int {
	return s.Q.promoteDue(now)
}

func (q *Queue) promoteDue(now time.Time) int {
	var moved []domain.Job

	q.mu.Lock()
	for _, r := range q.jobs {
		if r.job.Status != domain.StatusDelayed || r.job.ProcessAt == nil {
			continue
		}
		if r.job.ProcessAt.After(now) {
			continue
		}
		r.job.Status = domain.StatusPending
		r.job.ProcessAt = nil
		moved = append(moved, r.job.Clone())
	}
	q.mu.Unlock()

	if len(moved) == 0 {
		return 0
	}
	for _, j := range moved {
		q.save(j)
	}
	q.log.Debug().Int("count", len(moved)).Msg("promoted delayed jobs")
	q.signal()
	return len(moved)
}
