package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/dmr-correlate/internal/config"
	"github.com/miradorstack/dmr-correlate/internal/engine"
	"github.com/miradorstack/dmr-correlate/internal/extractors"
	"github.com/miradorstack/dmr-correlate/internal/metrics"
	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/patterns"
	"github.com/miradorstack/dmr-correlate/internal/repo"
	"github.com/miradorstack/dmr-correlate/internal/report"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

const usage = "usage: dmr-correlate [-config path] <capture> <log> <report>"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("dmr-correlate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "Path to configuration file")
	flags.Usage = func() {
		fmt.Fprintln(stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if flags.NArg() != 3 {
		fmt.Fprintln(stderr, usage)
		return 1
	}
	capturePath, logPath, reportPath := flags.Arg(0), flags.Arg(1), flags.Arg(2)

	for _, path := range []string{capturePath, logPath} {
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(stderr, "Error: %s not found\n", path)
			return 1
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load config: %v\n", err)
		return 1
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return 1
	}

	location, err := cfg.Capture.Location()
	if err != nil {
		logger.Error("invalid capture timezone", slog.Any("error", err))
		return 1
	}
	levels := make([]models.Level, 0, len(cfg.Patterns.Levels))
	for _, level := range cfg.Patterns.Levels {
		levels = append(levels, models.Level(level))
	}

	ports := extractors.PortFilter{RequestPort: cfg.Capture.RequestPort, ResponsePort: cfg.Capture.ResponsePort}
	var packets engine.PacketSource
	switch cfg.Capture.Source {
	case config.SourceNative:
		packets = extractors.NewCaptureExtractor(ports, location, logger)
	default:
		dumper := repo.NewDumpClient(cfg.Capture.Tool, cfg.Capture.ToolArgs, cfg.Capture.Sudo, nil)
		packets = extractors.NewPacketExtractor(dumper, ports, logger)
	}

	pipeline := engine.NewPipeline(
		logger,
		packets,
		extractors.NewLogExtractor(levels, logger),
		engine.NewCorrelator(cfg.Correlation.WindowSeconds, logger),
		patterns.NewAnalyzer(patterns.Markers{
			Slot1:        cfg.Patterns.Slot1Marker,
			Registration: cfg.Patterns.RegistrationMarkers,
		}, logger),
	)

	logger.Info("analyzing capture",
		slog.String("capture", capturePath),
		slog.String("log", logPath),
		slog.String("source", cfg.Capture.Source))

	analysis, err := pipeline.Run(ctx, models.AnalysisRequest{CapturePath: capturePath, LogPath: logPath})
	if err != nil {
		logger.Error("analysis failed", slog.Any("error", err))
		return 1
	}

	gen := report.NewGenerator(report.Options{
		ReportID:            uuid.NewString(),
		TimelinePacketLimit: cfg.Report.TimelinePacketLimit,
		SampleSize:          cfg.Report.SampleSize,
		SignificantKeywords: cfg.Patterns.SignificantKeywords,
	})
	if err := gen.WriteFile(reportPath, analysis); err != nil {
		logger.Error("failed to write report", slog.Any("error", err))
		return 1
	}
	logger.Info("report written", slog.String("path", reportPath), slog.String("report_id", gen.ReportID()))
	report.WriteConsoleSummary(stdout, analysis, reportPath)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, registry); err != nil {
			logger.Warn("failed to write metrics textfile", slog.Any("error", err))
		}
	}
	return 0
}
