package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/dmr-correlate/internal/extractors"
	"github.com/miradorstack/dmr-correlate/internal/metrics"
	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/patterns"
)

// PacketSource yields the packets of one capture file.
type PacketSource interface {
	Extract(ctx context.Context, path string) (extractors.PacketSet, error)
}

// LogSource yields the entries of one MMDVM log file.
type LogSource interface {
	Extract(ctx context.Context, path string) (extractors.LogSet, error)
}

// Pipeline runs extraction, correlation and analysis for a capture/log pair.
type Pipeline struct {
	logger     *slog.Logger
	packets    PacketSource
	logs       LogSource
	correlator *Correlator
	analyzer   *patterns.Analyzer
}

// NewPipeline constructs a pipeline. Missing correlator or analyzer fall back to defaults.
func NewPipeline(
	logger *slog.Logger,
	packets PacketSource,
	logs LogSource,
	correlator *Correlator,
	analyzer *patterns.Analyzer,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if correlator == nil {
		correlator = NewCorrelator(DefaultWindowSeconds, logger)
	}
	if analyzer == nil {
		analyzer = patterns.NewAnalyzer(patterns.DefaultMarkers(), logger)
	}
	return &Pipeline{
		logger:     logger,
		packets:    packets,
		logs:       logs,
		correlator: correlator,
		analyzer:   analyzer,
	}
}

// Run extracts both inputs and returns the analysis. An extraction failure marks the
// result partial and keeps whatever was read; only cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context, req models.AnalysisRequest) (models.Analysis, error) {
	if p.packets == nil {
		return models.Analysis{}, fmt.Errorf("packet source not configured")
	}
	if p.logs == nil {
		return models.Analysis{}, fmt.Errorf("log source not configured")
	}

	started := time.Now()
	var warnings []string

	packetSet, err := p.packets.Extract(ctx, req.CapturePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Analysis{}, fmt.Errorf("extract packets: %w", ctxErr)
		}
		p.logger.Warn("packet extraction incomplete",
			slog.String("path", req.CapturePath),
			slog.Int("packets", len(packetSet.Packets)),
			slog.Any("error", err))
		metrics.ObserveExtractionError(metrics.SourceCapture)
		warnings = append(warnings, fmt.Sprintf("capture: %v", err))
	}

	logSet, err := p.logs.Extract(ctx, req.LogPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Analysis{}, fmt.Errorf("extract logs: %w", ctxErr)
		}
		p.logger.Warn("log extraction incomplete",
			slog.String("path", req.LogPath),
			slog.Int("entries", len(logSet.Entries)),
			slog.Any("error", err))
		metrics.ObserveExtractionError(metrics.SourceLog)
		warnings = append(warnings, fmt.Sprintf("log: %v", err))
	}

	p.logger.Info("inputs extracted",
		slog.Int("packets", len(packetSet.Packets)),
		slog.Int("entries", len(logSet.Entries)),
		slog.Int("skipped_capture_lines", packetSet.Skipped),
		slog.Int("skipped_log_lines", logSet.Skipped))

	correlations := p.correlator.Correlate(packetSet.Packets, logSet.Entries)
	analysis := p.analyzer.Analyze(packetSet.Packets, logSet.Entries, correlations)
	analysis.CapturePath = req.CapturePath
	analysis.LogPath = req.LogPath
	analysis.SkippedPackets = packetSet.Skipped
	analysis.SkippedLogLines = logSet.Skipped
	analysis.Partial = len(warnings) > 0
	analysis.Warnings = warnings

	metrics.ObservePackets(analysis.Flow.ToTarget, analysis.Flow.FromTarget)
	metrics.ObserveLogEntries(analysis.TotalLogEntries)
	metrics.ObserveSkipped(metrics.SourceCapture, analysis.SkippedPackets)
	metrics.ObserveSkipped(metrics.SourceLog, analysis.SkippedLogLines)
	metrics.ObserveVoiceSessions(len(analysis.VoiceSessions))
	outcome := metrics.OutcomeSuccess
	if analysis.Partial {
		outcome = metrics.OutcomePartial
	}
	metrics.ObserveRun(time.Since(started), outcome)

	return analysis, nil
}
