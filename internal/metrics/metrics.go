package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels runs where every input was read completely.
	OutcomeSuccess = "success"
	// OutcomePartial labels runs that continued past an extraction failure.
	OutcomePartial = "partial"

	// SourceCapture and SourceLog label per-input counters.
	SourceCapture = "capture"
	SourceLog     = "log"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmr_correlate",
			Name:      "runs_total",
			Help:      "Total number of correlation runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dmr_correlate",
			Name:      "run_seconds",
			Help:      "Correlation run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	packetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmr_correlate",
			Name:      "packets_total",
			Help:      "Packets extracted from captures, partitioned by direction.",
		},
		[]string{"direction"},
	)

	logEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dmr_correlate",
			Name:      "log_entries_total",
			Help:      "Log entries parsed.",
		},
	)

	skippedLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmr_correlate",
			Name:      "skipped_lines_total",
			Help:      "Input lines that did not match the expected grammar.",
		},
		[]string{"source"},
	)

	extractionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmr_correlate",
			Name:      "extraction_errors_total",
			Help:      "Extraction failures the run continued past.",
		},
		[]string{"source"},
	)

	voiceSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dmr_correlate",
			Name:      "voice_sessions_total",
			Help:      "Completed voice sessions found in logs.",
		},
	)
)

// Register attaches dmr-correlate collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		packetsTotal,
		logEntriesTotal,
		skippedLinesTotal,
		extractionErrorsTotal,
		voiceSessionsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomePartial {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObservePackets adds extracted packet counts per direction.
func ObservePackets(toTarget, fromTarget int) {
	packetsTotal.WithLabelValues("to_target").Add(float64(toTarget))
	packetsTotal.WithLabelValues("from_target").Add(float64(fromTarget))
}

// ObserveLogEntries adds parsed log entries.
func ObserveLogEntries(n int) {
	logEntriesTotal.Add(float64(n))
}

// ObserveSkipped adds skipped lines for a source.
func ObserveSkipped(source string, n int) {
	skippedLinesTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveExtractionError counts an extraction failure for a source.
func ObserveExtractionError(source string) {
	extractionErrorsTotal.WithLabelValues(source).Inc()
}

// ObserveVoiceSessions adds completed voice sessions.
func ObserveVoiceSessions(n int) {
	voiceSessionsTotal.Add(float64(n))
}

// WriteTextfile dumps the gatherer in node_exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
