package ports

import (
	"context"
	"time"

	"jobq/internal/domain"
)

// BulkJob is one entry of an AddBulkJobs batch.
type BulkJob struct {
	Type    domain.JobType `json:"type"`
	Name    string         `json:"name"`
	Data    map[string]any `json:"data"`
	Options domain.Options `json:"options"`
}

type Queue interface {
	Name() string

	AddJob(ctx context.Context, typ domain.JobType, name string, data map[string]any, opts domain.Options) (string, error)
	AddBulkJobs(ctx context.Context, jobs []BulkJob) ([]string, error)
	GetJob(id string) (*domain.Job, bool)
	RemoveJob(id string) bool
	RetryJob(id string) bool

	RegisterProcessor(reg domain.Registration) error

	GetQueueStats(queue string) (domain.QueueStats, error)
	Pause(queue string) error
	Resume(queue string) error
	Clean(queue string, status domain.JobStatus, olderThan time.Duration) (int, error)
	CheckAlerts() []domain.Alert

	On(t domain.EventType, fn domain.Listener) domain.ListenerID
	Off(t domain.EventType, id domain.ListenerID) bool

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
}

type Scheduler interface {
	// moves due delayed jobs back to pending
	Run(ctx context.Context) error
}

// StateMirror receives a copy of every job state change. It is write-only:
// nothing is ever read back from it.
type StateMirror interface {
	SaveState(ctx context.Context, j domain.Job) error
	Delete(ctx context.Context, id string) error
}
