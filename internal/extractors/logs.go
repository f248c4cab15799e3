package extractors

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/repo"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

// logLineRe matches an MMDVM host log line:
// M: 2024-01-15 10:30:45.123 DMR Slot 2, received network voice header from W1AW to TG 31337
var logLineRe = regexp.MustCompile(`^([A-Z]): (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\.(\d+)\s+(.*)$`)

// LogSet is the outcome of a log extraction.
type LogSet struct {
	Entries []models.LogEntry
	Skipped int
}

// DefaultLevels are the log levels kept as entries: info, message and error.
var DefaultLevels = []models.Level{models.LevelInfo, models.LevelMessage, models.LevelError}

// LogExtractor parses MMDVM host log files.
type LogExtractor struct {
	levels map[models.Level]struct{}
	logger *slog.Logger
}

// NewLogExtractor constructs a LogExtractor keeping lines whose level is in levels.
// An empty set falls back to DefaultLevels.
func NewLogExtractor(levels []models.Level, logger *slog.Logger) *LogExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	accepted := make(map[models.Level]struct{}, len(levels))
	for _, level := range levels {
		accepted[level] = struct{}{}
	}
	return &LogExtractor{levels: accepted, logger: logger}
}

// Extract reads the log at path (optionally gzip/zstd compressed).
// On a read failure the entries parsed so far are returned alongside the error.
func (e *LogExtractor) Extract(ctx context.Context, path string) (LogSet, error) {
	in, err := repo.OpenInput(path)
	if err != nil {
		return LogSet{}, utils.NewAppError("parse log", path, "open", err)
	}
	defer in.Close()

	set, err := e.Parse(in)
	if err != nil {
		return set, utils.NewAppError("parse log", path, "read", err)
	}
	return set, nil
}

// Parse reads log lines from r, skipping any that do not match the grammar
// or carry a level outside the accepted set.
func (e *LogExtractor) Parse(r io.Reader) (LogSet, error) {
	var set LogSet
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, ok := parseLogLine(line)
		if ok {
			_, ok = e.levels[entry.Level]
		}
		if !ok {
			set.Skipped++
			e.logger.Debug("skipping log line", slog.String("line", line))
			continue
		}
		set.Entries = append(set.Entries, entry)
	}
	return set, scanner.Err()
}

func parseLogLine(line string) (models.LogEntry, bool) {
	matches := logLineRe.FindStringSubmatch(line)
	if matches == nil {
		return models.LogEntry{}, false
	}
	ts, err := utils.ParseStamp(matches[2], matches[3])
	if err != nil {
		return models.LogEntry{}, false
	}
	return models.LogEntry{
		Timestamp: ts,
		Level:     models.Level(matches[1]),
		Message:   matches[4],
		Raw:       line,
	}, true
}
