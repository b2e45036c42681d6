package usecase

import (
	"context"
	"time"

	"jobq/internal/ports"
)

type Enqueuer struct {
	Q ports.Queue
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (e Enqueuer) Now(ctx context.Context, j ports.BulkJob) (string, error) {
	return e.Q.AddJob(ctx, j.Type, j.Name, j.Data, j.Options)
}

// At schedules j for runAt. A time in the past runs the job immediately and
// replaces any relative delay set in the options.
func (e Enqueuer) At(ctx context.Context, j ports.BulkJob, runAt time.Time) (string, error) {
	now := time.Now
	if e.Clock != nil {
		now = e.Clock
	}
	j.Options.Delay = max(runAt.Sub(now()), 0)
	return e.Q.AddJob(ctx, j.Type, j.Name, j.Data, j.Options)
}
