package memq

import (
	"jobq/internal/domain"
)

// repeatJob enqueues the next occurrence of a repeatable job that just
// reached a terminal state.
func (q *Queue) repeatJob(prev domain.Job) {
	if !q.registry.Has(prev.Name) && !q.cfg.AllowUnregistered {
		q.log.Warn().Str("job_id", prev.ID).Str("name", prev.Name).Msg("repeat skipped: no processor registered")
		return
	}
	b := prev.Backoff
	id := q.add(prev.Type, prev.Name, prev.Data, domain.Options{
		Priority: prev.Priority,
		Attempts: prev.MaxAttempts,
		Timeout:  prev.Timeout,
		Backoff:  &b,
		Repeat:   prev.Repeat,
	})
	q.log.Debug().Str("job_id", id).Str("previous", prev.ID).Str("repeat", prev.Repeat).Msg("repeatable job rescheduled")
}
