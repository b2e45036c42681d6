package metrics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobq/internal/domain"
)

// CheckAlerts evaluates every enabled threshold against stats.
//
// Alerts are level-triggered: the same condition yields a fresh alert on every call.
func CheckAlerts(stats domain.QueueStats, th domain.Thresholds, now time.Time) []domain.Alert {
	var alerts []domain.Alert

	if th.Queue > 0 {
		waiting := float64(stats.Counts.Waiting())
		if a, ok := evaluate(domain.AlertQueueThreshold, waiting, float64(th.Queue), now); ok {
			a.Message = fmt.Sprintf("queue %q has %d waiting jobs (threshold %d)", stats.Queue, stats.Counts.Waiting(), th.Queue)
			alerts = append(alerts, a)
		}
	}

	if th.FailureRate > 0 {
		rate := stats.FailureRate()
		if a, ok := evaluate(domain.AlertFailureRate, rate, th.FailureRate, now); ok {
			a.Message = fmt.Sprintf("queue %q failure rate %.1f%% exceeds %.1f%%", stats.Queue, rate, th.FailureRate)
			alerts = append(alerts, a)
		}
	}

	if th.Latency > 0 {
		p95 := ms(stats.Latency.P95)
		if a, ok := evaluate(domain.AlertLatencyThreshold, p95, ms(th.Latency), now); ok {
			a.Message = fmt.Sprintf("queue %q p95 latency %s exceeds %s", stats.Queue, stats.Latency.P95, th.Latency)
			alerts = append(alerts, a)
		}
	}

	return alerts
}

func evaluate(kind domain.AlertKind, value, threshold float64, now time.Time) (domain.Alert, bool) {
	if value <= threshold {
		return domain.Alert{}, false
	}
	sev := domain.SeverityWarning
	if value > 2*threshold {
		sev = domain.SeverityCritical
	}
	return domain.Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  sev,
		Value:     value,
		Threshold: threshold,
		CreatedAt: now,
	}, true
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
