package utils

import (
	"sort"
	"time"
)

// IntervalTracker stores packet inter-arrival gaps and computes percentiles.
type IntervalTracker struct {
	last    time.Time
	samples []time.Duration
}

// NewIntervalTracker creates an empty tracker.
func NewIntervalTracker() *IntervalTracker {
	return &IntervalTracker{}
}

// Observe records the gap between t and the previous observation.
// Out-of-order timestamps are clamped to a zero gap.
func (l *IntervalTracker) Observe(t time.Time) {
	if !l.last.IsZero() {
		gap := t.Sub(l.last)
		if gap < 0 {
			gap = 0
		}
		l.samples = append(l.samples, gap)
	}
	l.last = t
}

// Percentile returns the percentile (0-100) gap. Returns zero if no samples.
func (l *IntervalTracker) Percentile(p float64) time.Duration {
	if len(l.samples) == 0 {
		return 0
	}

	sorted := append([]time.Duration(nil), l.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[index]
}

// Count returns number of gaps recorded.
func (l *IntervalTracker) Count() int {
	return len(l.samples)
}
