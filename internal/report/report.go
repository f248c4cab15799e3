package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

const (
	title    = "DMR PACKET CAPTURE AND LOG CORRELATION ANALYSIS"
	banner   = 80
	section  = 40
	tableBar = 70
)

// Options controls report rendering. Zero values fall back to defaults.
type Options struct {
	ReportID            string
	Now                 func() time.Time
	TimelinePacketLimit int
	SampleSize          int
	SignificantKeywords []string
}

// Generator renders an Analysis as a plain-text report.
type Generator struct {
	opts Options
}

// NewGenerator constructs a Generator. A missing report ID gets a random UUID.
func NewGenerator(opts Options) *Generator {
	if opts.ReportID == "" {
		opts.ReportID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TimelinePacketLimit <= 0 {
		opts.TimelinePacketLimit = 5
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 10
	}
	if len(opts.SignificantKeywords) == 0 {
		opts.SignificantKeywords = []string{"voice header", "end of voice", "started", "opening"}
	}
	return &Generator{opts: opts}
}

// ReportID returns the identifier printed in the banner.
func (g *Generator) ReportID() string {
	return g.opts.ReportID
}

// WriteFile renders the report to path, replacing any existing file.
func (g *Generator) WriteFile(path string, a models.Analysis) error {
	f, err := os.Create(path)
	if err != nil {
		return utils.NewAppError("write report", path, "create", err)
	}
	if err := g.Write(f, a); err != nil {
		f.Close()
		return utils.NewAppError("write report", path, "render", err)
	}
	if err := f.Close(); err != nil {
		return utils.NewAppError("write report", path, "close", err)
	}
	return nil
}

// Write renders the report sections in fixed order.
func (g *Generator) Write(w io.Writer, a models.Analysis) error {
	bw := bufio.NewWriter(w)
	g.writeHeader(bw, a)
	g.writeSummary(bw, a)
	g.writeSessions(bw, a.VoiceSessions)
	g.writeErrors(bw, a.Errors)
	g.writeTimeline(bw, a.Correlations)
	g.writeFlow(bw, a.Flow)
	g.writeSample(bw, a.Packets)
	return bw.Flush()
}

func (g *Generator) writeHeader(w io.Writer, a models.Analysis) {
	bar := strings.Repeat("=", banner)
	fmt.Fprintln(w, bar)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, bar)
	fmt.Fprintf(w, "Generated: %s\n", g.opts.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Report ID: %s\n", g.opts.ReportID)
	fmt.Fprintf(w, "PCAP File: %s\n", a.CapturePath)
	fmt.Fprintf(w, "Log File: %s\n", a.LogPath)
	fmt.Fprintf(w, "%s\n\n", bar)
}

func (g *Generator) writeSummary(w io.Writer, a models.Analysis) {
	writeTitle(w, "EXECUTIVE SUMMARY")
	fmt.Fprintf(w, "Total Packets Captured: %d\n", a.TotalPackets)
	fmt.Fprintf(w, "Total Log Entries: %d\n", a.TotalLogEntries)
	if a.HasTimespan {
		fmt.Fprintf(w, "Session Duration: %s\n", utils.FormatTimespan(a.Timespan))
	} else {
		fmt.Fprintln(w, "Session Duration: n/a")
	}
	if a.RateDefined {
		fmt.Fprintf(w, "Average Packet Rate: %.2f packets/second\n", a.AverageRate)
	} else {
		fmt.Fprintln(w, "Average Packet Rate: undefined (no timespan)")
	}
	fmt.Fprintf(w, "Total Data Volume: %d bytes (%.1f KB)\n", a.DataVolume, float64(a.DataVolume)/1024)
	fmt.Fprintf(w, "Voice Transmissions: %d\n", a.VoiceTransmissions)
	fmt.Fprintf(w, "Network Events: %d\n", a.NetworkEvents)
	fmt.Fprintf(w, "Errors Detected: %d\n", len(a.Errors))
	fmt.Fprintf(w, "Skipped Lines: %d capture, %d log\n", a.SkippedPackets, a.SkippedLogLines)
	if a.Partial {
		fmt.Fprintf(w, "Data Completeness: partial (%d extraction errors)\n", len(a.Warnings))
		for _, warning := range a.Warnings {
			fmt.Fprintf(w, "  ! %s\n", warning)
		}
	} else {
		fmt.Fprintln(w, "Data Completeness: complete")
	}
	fmt.Fprintln(w)
}

func (g *Generator) writeSessions(w io.Writer, sessions []models.VoiceSession) {
	writeTitle(w, "VOICE SESSION ANALYSIS")
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No voice sessions detected in log timeframe.")
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "%-12s %-6s %-10s %-8s %-8s %s\n", "Callsign", "TG", "Duration", "Loss%", "BER%", "Start Time")
	fmt.Fprintln(w, strings.Repeat("-", tableBar))
	for _, s := range sessions {
		fmt.Fprintf(w, "%-12s %-6s %-10.1f %-8d %-8.1f %s\n",
			s.Callsign, s.Talkgroup, s.Duration, s.PacketLoss, s.BER, utils.FormatClock(s.Start))
	}
	fmt.Fprintln(w)
}

func (g *Generator) writeErrors(w io.Writer, errs []models.ErrorRecord) {
	if len(errs) == 0 {
		return
	}
	writeTitle(w, "ERROR ANALYSIS")
	for _, e := range errs {
		fmt.Fprintf(w, "%s - %s\n", utils.FormatClock(e.Timestamp), e.Message)
	}
	fmt.Fprintln(w)
}

func (g *Generator) writeTimeline(w io.Writer, correlations []models.Correlation) {
	writeTitle(w, "DETAILED TIMELINE CORRELATION")
	fmt.Fprintf(w, "Format: [TIME] LOG_LEVEL: Message | Packets: COUNT\n\n")

	ordered := append([]models.Correlation(nil), correlations...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	limit := g.opts.TimelinePacketLimit
	for _, c := range ordered {
		entry := c.Entry
		fmt.Fprintf(w, "[%s] %s: %s", utils.FormatMillis(entry.Timestamp), entry.Level, entry.Message)
		if c.PacketCount > 0 {
			fmt.Fprintf(w, " | Packets: %d", c.PacketCount)
			if g.significant(entry.Message) {
				fmt.Fprint(w, "\n    Packet Activity:")
				shown := c.RelatedPackets
				if len(shown) > limit {
					shown = shown[:limit]
				}
				for _, p := range shown {
					fmt.Fprintf(w, "\n      %s", packetLine(p))
				}
				if len(c.RelatedPackets) > limit {
					fmt.Fprintf(w, "\n      ... and %d more packets", len(c.RelatedPackets)-limit)
				}
			}
		}
		fmt.Fprintln(w)
	}
}

func (g *Generator) writeFlow(w io.Writer, flow models.FlowStats) {
	fmt.Fprintln(w)
	writeTitle(w, "PACKET FLOW STATISTICS")
	fmt.Fprintf(w, "Packets TO MMDVM (from network): %d\n", flow.ToTarget)
	fmt.Fprintf(w, "Packets FROM MMDVM (to network): %d\n", flow.FromTarget)
	fmt.Fprintf(w, "Traffic Ratio (Network->MMDVM): %.2f:1\n", flow.Ratio)
	fmt.Fprintf(w, "Inter-arrival p50/p95: %s / %s\n\n", millis(flow.InterArrivalP50), millis(flow.InterArrivalP95))
}

func (g *Generator) writeSample(w io.Writer, packets []models.Packet) {
	fmt.Fprintf(w, "RAW PACKET SAMPLE (First %d)\n", g.opts.SampleSize)
	fmt.Fprintln(w, strings.Repeat("-", section))
	sample := packets
	if len(sample) > g.opts.SampleSize {
		sample = sample[:g.opts.SampleSize]
	}
	for _, p := range sample {
		fmt.Fprintln(w, packetLine(p))
	}
	fmt.Fprintln(w)
}

func (g *Generator) significant(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range g.opts.SignificantKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func writeTitle(w io.Writer, name string) {
	fmt.Fprintln(w, name)
	fmt.Fprintln(w, strings.Repeat("-", section))
}

func packetLine(p models.Packet) string {
	return fmt.Sprintf("%s %s %dB", utils.FormatMillis(p.Timestamp), p.Direction, p.Length)
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}
