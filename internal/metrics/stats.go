package metrics

import (
	"math"
	"slices"
	"time"

	"jobq/internal/domain"
)

// BuildStats derives a QueueStats snapshot from status counts and a sampler snapshot.
func BuildStats(queue string, paused bool, counts domain.StatusCounts, s Sample, now time.Time) domain.QueueStats {
	return domain.QueueStats{
		Queue:      queue,
		Paused:     paused,
		Counts:     counts,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Throughput: throughput(s.Completions, now),
		Latency:    latency(s.Durations),
		At:         now,
	}
}

func throughput(completions []time.Time, now time.Time) domain.Throughput {
	var t domain.Throughput
	minute := now.Add(-minuteWindow)
	hour := now.Add(-hourWindow)
	for _, at := range completions {
		if at.After(hour) {
			t.PerHour++
		}
		if at.After(minute) {
			t.PerMinute++
		}
	}
	return t
}

func latency(durations []time.Duration) domain.Latency {
	if len(durations) == 0 {
		return domain.Latency{}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return domain.Latency{
		Average: sum / time.Duration(len(sorted)),
		P50:     Percentile(sorted, 50),
		P95:     Percentile(sorted, 95),
		P99:     Percentile(sorted, 99),
	}
}

// Percentile picks index ceil(p/100*n)-1 of an ascending slice, clamped to its bounds.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	idx = max(0, min(idx, n-1))
	return sorted[idx]
}
