package domain

import (
	"strings"
	"time"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusDelayed    JobStatus = "delayed"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	// StatusPaused is reserved; no transition leads to it.
	StatusPaused JobStatus = "paused"
)

// Terminal reports whether no further transition happens without an explicit retry.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type JobType string

const (
	TypeEmail        JobType = "email"
	TypeSMS          JobType = "sms"
	TypeNotification JobType = "notification"
	TypeFileProcess  JobType = "file-process"
	TypeReport       JobType = "report"
	TypeBackup       JobType = "backup"
	TypeSync         JobType = "sync"
	TypeCleanup      JobType = "cleanup"
	TypeCustom       JobType = "custom"
)

// Priority is the named priority of a job. Lower Value() runs first.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityValues = map[Priority]int{
	PriorityCritical: 1,
	PriorityHigh:     3,
	PriorityNormal:   5,
	PriorityLow:      10,
}

// Value maps a priority to its selection weight. Unknown priorities weigh as normal.
func (p Priority) Value() int {
	if v, ok := priorityValues[p]; ok {
		return v
	}
	return priorityValues[PriorityNormal]
}

// ParsePriority is case-insensitive and reports false for unknown names.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	_, ok := priorityValues[p]
	return p, ok
}

type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

type Backoff struct {
	Type     BackoffType   `json:"type"`
	Delay    time.Duration `json:"delay"`
	MaxDelay time.Duration `json:"max_delay,omitempty"`
	// Jitter spreads each delay by +/- the given fraction (0.2 = 20%). Zero keeps delays exact.
	Jitter float64 `json:"jitter,omitempty"`
}

// Options are the per-job knobs accepted at submission. Zero values fall back to defaults.
type Options struct {
	Priority Priority      `json:"priority,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Delay    time.Duration `json:"delay,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	Backoff  *Backoff      `json:"backoff,omitempty"`
	// Repeat is a standard cron expression; the job is re-enqueued for every occurrence.
	Repeat string `json:"repeat,omitempty"`
}

const (
	DefaultAttempts        = 3
	DefaultTimeout         = 30 * time.Second
	DefaultBackoffDelay    = time.Second
	DefaultBackoffMaxDelay = 30 * time.Second
)

// DefaultOptions returns the options applied when a caller leaves a field unset.
func DefaultOptions() Options {
	return Options{
		Priority: PriorityNormal,
		Attempts: DefaultAttempts,
		Timeout:  DefaultTimeout,
		Backoff: &Backoff{
			Type:     BackoffExponential,
			Delay:    DefaultBackoffDelay,
			MaxDelay: DefaultBackoffMaxDelay,
		},
	}
}

// WithDefaults merges o over DefaultOptions. Malformed values are replaced, never rejected.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if p, ok := ParsePriority(string(o.Priority)); ok {
		d.Priority = p
	}
	if o.Attempts > 0 {
		d.Attempts = o.Attempts
	}
	if o.Delay > 0 {
		d.Delay = o.Delay
	}
	if o.Timeout > 0 {
		d.Timeout = o.Timeout
	}
	if o.Backoff != nil {
		b := *o.Backoff
		if b.Type != BackoffFixed && b.Type != BackoffExponential {
			b.Type = BackoffExponential
		}
		if b.Delay <= 0 {
			b.Delay = DefaultBackoffDelay
		}
		if b.MaxDelay <= 0 {
			b.MaxDelay = DefaultBackoffMaxDelay
		}
		if b.Jitter < 0 || b.Jitter >= 1 {
			b.Jitter = 0
		}
		d.Backoff = &b
	}
	d.Repeat = strings.TrimSpace(o.Repeat)
	return d
}

type Job struct {
	ID          string         `json:"id"`
	Queue       string         `json:"queue"`
	Name        string         `json:"name"`
	Type        JobType        `json:"type"`
	Data        map[string]any `json:"data,omitempty"`
	Status      JobStatus      `json:"status"`
	Priority    Priority       `json:"priority"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	Progress    int            `json:"progress"`
	Delay       time.Duration  `json:"delay,omitempty"`
	Timeout     time.Duration  `json:"timeout"`
	Backoff     Backoff        `json:"backoff"`
	Repeat      string         `json:"repeat,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	FailedAt    *time.Time     `json:"failed_at,omitempty"`
	ProcessAt   *time.Time     `json:"process_at,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Clone returns a copy that shares no mutable state with j, except Result.
func (j Job) Clone() Job {
	c := j
	if j.Data != nil {
		c.Data = make(map[string]any, len(j.Data))
		for k, v := range j.Data {
			c.Data[k] = v
		}
	}
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.FailedAt = cloneTime(j.FailedAt)
	c.ProcessAt = cloneTime(j.ProcessAt)
	return c
}

// FinishedAt returns the terminal timestamp of a completed or failed job.
func (j Job) FinishedAt() (time.Time, bool) {
	switch {
	case j.Status == StatusCompleted && j.CompletedAt != nil:
		return *j.CompletedAt, true
	case j.Status == StatusFailed && j.FailedAt != nil:
		return *j.FailedAt, true
	}
	return time.Time{}, false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
