package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"jobq/internal/domain"
)

const meterName = "jobq"

// Recorder exports per-run execution metrics through OpenTelemetry.
// Without a configured MeterProvider the instruments are no-ops.
type Recorder struct {
	duration   metric.Float64Histogram
	executions metric.Int64Counter
}

func NewRecorder() *Recorder {
	return NewRecorderWithMeter(otel.Meter(meterName))
}

func NewRecorderWithMeter(meter metric.Meter) *Recorder {
	// The OTel API returns no-op instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"jobq.job.duration",
		metric.WithDescription("Duration of job processor runs in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"jobq.job.executions",
		metric.WithDescription("Total number of job processor runs"),
		metric.WithUnit("{execution}"),
	)
	return &Recorder{duration: duration, executions: executions}
}

// Record registers one processor run. status is "ok", "error" or "timeout".
func (r *Recorder) Record(ctx context.Context, job domain.Job, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("job_name", job.Name),
		attribute.String("job_type", string(job.Type)),
		attribute.String("queue", job.Queue),
		attribute.String("status", status),
	)
	r.duration.Record(ctx, elapsed.Seconds(), attrs)
	r.executions.Add(ctx, 1, attrs)
}
