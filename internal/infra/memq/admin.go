package memq

import (
	"fmt"
	"time"

	"jobq/internal/domain"
	"jobq/internal/metrics"
)

func (q *Queue) checkName(name string) error {
	if name != q.cfg.Name {
		return fmt.Errorf("%w: %q", domain.ErrQueueNotFound, name)
	}
	return nil
}

// Pause stops new dispatches. Jobs already processing run to completion.
func (q *Queue) Pause(name string) error {
	if err := q.checkName(name); err != nil {
		return err
	}
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()

	q.emit(domain.Event{Type: domain.EventPaused})
	q.log.Info().Msg("queue paused")
	return nil
}

func (q *Queue) Resume(name string) error {
	if err := q.checkName(name); err != nil {
		return err
	}
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()

	q.emit(domain.Event{Type: domain.EventResumed})
	q.log.Info().Msg("queue resumed")
	q.signal()
	return nil
}

// Clean removes completed or failed jobs that finished at least olderThan ago
// and returns how many were removed.
func (q *Queue) Clean(name string, status domain.JobStatus, olderThan time.Duration) (int, error) {
	if err := q.checkName(name); err != nil {
		return 0, err
	}
	if !status.Terminal() {
		return 0, fmt.Errorf("%w: got %q", domain.ErrInvalidCleanStatus, status)
	}
	olderThan = max(olderThan, 0)
	cutoff := time.Now().Add(-olderThan)

	var removed []string
	q.mu.Lock()
	for id, r := range q.jobs {
		if r.job.Status != status {
			continue
		}
		at, ok := r.job.FinishedAt()
		if !ok || at.After(cutoff) {
			continue
		}
		delete(q.jobs, id)
		removed = append(removed, id)
	}
	q.mu.Unlock()

	for _, id := range removed {
		q.drop(id)
	}
	q.emit(domain.Event{Type: domain.EventCleaned, Count: len(removed)})
	q.log.Info().Str("status", string(status)).Dur("older_than", olderThan).Int("removed", len(removed)).Msg("queue cleaned")
	return len(removed), nil
}

// GetQueueStats recomputes the queue statistics. An empty name means this queue.
func (q *Queue) GetQueueStats(name string) (domain.QueueStats, error) {
	if name != "" {
		if err := q.checkName(name); err != nil {
			return domain.QueueStats{}, err
		}
	}
	return q.stats(time.Now()), nil
}

func (q *Queue) stats(now time.Time) domain.QueueStats {
	var counts domain.StatusCounts
	q.mu.Lock()
	for _, r := range q.jobs {
		switch r.job.Status {
		case domain.StatusPending:
			counts.Pending++
		case domain.StatusDelayed:
			counts.Delayed++
		case domain.StatusProcessing:
			counts.Processing++
		case domain.StatusCompleted:
			counts.Completed++
		case domain.StatusFailed:
			counts.Failed++
		case domain.StatusPaused:
			counts.Paused++
		}
	}
	paused := q.paused
	q.mu.Unlock()

	return metrics.BuildStats(q.cfg.Name, paused, counts, q.sampler.Snapshot(now), now)
}

// CheckAlerts evaluates the configured thresholds against fresh stats.
func (q *Queue) CheckAlerts() []domain.Alert {
	now := time.Now()
	alerts := metrics.CheckAlerts(q.stats(now), q.cfg.Thresholds, now)
	for _, a := range alerts {
		q.log.Debug().Str("kind", string(a.Kind)).Str("severity", string(a.Severity)).Float64("value", a.Value).Msg(a.Message)
	}
	return alerts
}
