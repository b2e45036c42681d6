package domain

import "context"

// ProgressFunc reports completion percentage (0..100) of the running job.
type ProgressFunc func(pct int)

// ProcessorFunc executes one job. A returned error drives the retry policy.
type ProcessorFunc func(ctx context.Context, job Job, progress ProgressFunc) (any, error)

// Registration binds a job name to the processor that runs it.
//
// Concurrency caps simultaneous runs of this processor when the queue has
// more than one worker. Zero means no per-processor cap.
type Registration struct {
	Name        string
	Type        JobType
	Processor   ProcessorFunc
	Concurrency int
}
