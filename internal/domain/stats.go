package domain

import "time"

type StatusCounts struct {
	Pending    int `json:"pending"`
	Delayed    int `json:"delayed"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Paused     int `json:"paused"`
}

// Waiting is the backlog not yet picked up by a worker.
func (c StatusCounts) Waiting() int { return c.Pending + c.Delayed }

func (c StatusCounts) Total() int {
	return c.Pending + c.Delayed + c.Processing + c.Completed + c.Failed + c.Paused
}

type Throughput struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
}

type Latency struct {
	Average time.Duration `json:"average"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// QueueStats is recomputed on every request; it is never cached.
type QueueStats struct {
	Queue      string       `json:"queue"`
	Paused     bool         `json:"paused"`
	Counts     StatusCounts `json:"counts"`
	Completed  uint64       `json:"total_completed"`
	Failed     uint64       `json:"total_failed"`
	Throughput Throughput   `json:"throughput"`
	Latency    Latency      `json:"latency"`
	At         time.Time    `json:"at"`
}

// FailureRate is failed/(failed+completed)*100 over cumulative totals.
func (s QueueStats) FailureRate() float64 {
	total := s.Completed + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(total) * 100
}

type AlertKind string

const (
	AlertQueueThreshold   AlertKind = "queue_threshold"
	AlertFailureRate      AlertKind = "failure_rate"
	AlertLatencyThreshold AlertKind = "latency_threshold"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Thresholds configures alert rules. A zero threshold disables its rule.
type Thresholds struct {
	Queue       int           `json:"queue_threshold"`
	FailureRate float64       `json:"failure_rate_threshold"`
	Latency     time.Duration `json:"latency_threshold"`
}

// Alert values for latency rules are expressed in milliseconds.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}
