package engine

import (
	"log/slog"

	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

// DefaultWindowSeconds is the number of whole seconds searched either side of a log entry.
const DefaultWindowSeconds = 2

// Correlator attaches packets to log entries using truncated-second buckets.
type Correlator struct {
	window int
	logger *slog.Logger
}

// NewCorrelator constructs a Correlator; a negative window falls back to the default.
func NewCorrelator(windowSeconds int, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	if windowSeconds < 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &Correlator{window: windowSeconds, logger: logger}
}

// Window returns the half-width of the search window in seconds.
func (c *Correlator) Window() int {
	return c.window
}

// Buckets groups packets by the Unix second of their timestamp, keeping arrival order.
func Buckets(packets []models.Packet) map[int64][]models.Packet {
	buckets := make(map[int64][]models.Packet)
	for _, p := range packets {
		key := utils.TruncateSecond(p.Timestamp)
		buckets[key] = append(buckets[key], p)
	}
	return buckets
}

// Correlate returns one Correlation per entry, in entry order. Related packets are the
// concatenation of the buckets from -window to +window seconds; a packet may appear in
// several correlations.
func (c *Correlator) Correlate(packets []models.Packet, entries []models.LogEntry) []models.Correlation {
	buckets := Buckets(packets)
	correlations := make([]models.Correlation, 0, len(entries))
	for _, entry := range entries {
		second := utils.TruncateSecond(entry.Timestamp)
		var related []models.Packet
		for offset := -c.window; offset <= c.window; offset++ {
			related = append(related, buckets[second+int64(offset)]...)
		}
		correlations = append(correlations, models.Correlation{
			Timestamp:      entry.Timestamp,
			Entry:          entry,
			RelatedPackets: related,
			PacketCount:    len(related),
		})
	}
	c.logger.Debug("correlated log entries",
		slog.Int("entries", len(entries)),
		slog.Int("buckets", len(buckets)),
		slog.Int("window_seconds", c.window))
	return correlations
}
