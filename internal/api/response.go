package api

import (
	"time"

	"jobq/internal/domain"
)

// Durations in responses are milliseconds, matching the request fields.

type backoffResp struct {
	Type       domain.BackoffType `json:"type"`
	DelayMs    int64              `json:"delay_ms"`
	MaxDelayMs int64              `json:"max_delay_ms"`
	Jitter     float64            `json:"jitter,omitempty"`
}

type jobResp struct {
	ID          string           `json:"id"`
	Queue       string           `json:"queue"`
	Name        string           `json:"name"`
	Type        domain.JobType   `json:"type"`
	Data        map[string]any   `json:"data,omitempty"`
	Status      domain.JobStatus `json:"status"`
	Priority    domain.Priority  `json:"priority"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"max_attempts"`
	Progress    int              `json:"progress"`
	DelayMs     int64            `json:"delay_ms"`
	TimeoutMs   int64            `json:"timeout_ms"`
	Backoff     backoffResp      `json:"backoff"`
	Repeat      string           `json:"repeat,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	FailedAt    *time.Time       `json:"failed_at,omitempty"`
	ProcessAt   *time.Time       `json:"process_at,omitempty"`
	Result      any              `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func newJobResp(j *domain.Job) jobResp {
	return jobResp{
		ID:          j.ID,
		Queue:       j.Queue,
		Name:        j.Name,
		Type:        j.Type,
		Data:        j.Data,
		Status:      j.Status,
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Progress:    j.Progress,
		DelayMs:     j.Delay.Milliseconds(),
		TimeoutMs:   j.Timeout.Milliseconds(),
		Backoff: backoffResp{
			Type:       j.Backoff.Type,
			DelayMs:    j.Backoff.Delay.Milliseconds(),
			MaxDelayMs: j.Backoff.MaxDelay.Milliseconds(),
			Jitter:     j.Backoff.Jitter,
		},
		Repeat:      j.Repeat,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		FailedAt:    j.FailedAt,
		ProcessAt:   j.ProcessAt,
		Result:      j.Result,
		Error:       j.Error,
	}
}

type latencyResp struct {
	AverageMs float64 `json:"average_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

type statsResp struct {
	Queue      string              `json:"queue"`
	Paused     bool                `json:"paused"`
	Counts     domain.StatusCounts `json:"counts"`
	Completed  uint64              `json:"total_completed"`
	Failed     uint64              `json:"total_failed"`
	Throughput domain.Throughput   `json:"throughput"`
	Latency    latencyResp         `json:"latency"`
	At         time.Time           `json:"at"`
}

func newStatsResp(s domain.QueueStats) statsResp {
	return statsResp{
		Queue:      s.Queue,
		Paused:     s.Paused,
		Counts:     s.Counts,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Throughput: s.Throughput,
		Latency: latencyResp{
			AverageMs: ms(s.Latency.Average),
			P50Ms:     ms(s.Latency.P50),
			P95Ms:     ms(s.Latency.P95),
			P99Ms:     ms(s.Latency.P99),
		},
		At: s.At,
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
