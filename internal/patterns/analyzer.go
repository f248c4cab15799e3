package patterns

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

const (
	voiceHeaderMarker = "voice header"
	voiceEndMarker    = "end of voice transmission"
)

var (
	// voiceHeaderRe pulls callsign and talkgroup out of
	// "DMR Slot 2, received network voice header from W1AW to TG 31337".
	voiceHeaderRe = regexp.MustCompile(`from (\w+) to TG (\d+)`)
	// voiceEndRe pulls duration, loss and BER out of
	// "... end of voice transmission from W1AW to TG 31337, 12.5 seconds, 3% packet loss, BER: 1.2%".
	voiceEndRe = regexp.MustCompile(`(\d+\.\d+) seconds.*?(\d+)% packet loss.*?BER: (\d+\.\d+)%`)
)

// Markers are the literal substrings that classify log messages.
type Markers struct {
	Slot1        string
	Registration []string
}

// DefaultMarkers matches MMDVM host wording.
func DefaultMarkers() Markers {
	return Markers{Slot1: "Slot 1", Registration: []string{"Started", "Opening"}}
}

// State is the accumulator threaded through the log scan.
// At most one voice session is open at a time.
type State struct {
	Open               *models.VoiceSession
	Completed          []models.VoiceSession
	VoiceTransmissions int
	NetworkEvents      int
	Errors             []models.ErrorRecord
	// Replaced counts open sessions discarded by a later voice header.
	Replaced int
}

// Analyzer scans log entries for voice, registration and error events and
// computes aggregate packet statistics.
type Analyzer struct {
	markers Markers
	logger  *slog.Logger
}

// NewAnalyzer constructs an Analyzer; empty markers fall back to DefaultMarkers.
func NewAnalyzer(markers Markers, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultMarkers()
	if markers.Slot1 == "" {
		markers.Slot1 = defaults.Slot1
	}
	if len(markers.Registration) == 0 {
		markers.Registration = defaults.Registration
	}
	return &Analyzer{markers: markers, logger: logger}
}

// Scan folds Step over entries in order.
func (a *Analyzer) Scan(entries []models.LogEntry) State {
	var st State
	for _, entry := range entries {
		st = a.Step(st, entry)
	}
	if st.Open != nil {
		a.logger.Debug("voice session still open at end of log",
			slog.String("callsign", st.Open.Callsign),
			slog.Time("start", st.Open.Start))
	}
	return st
}

// Step applies one entry to the state. The checks form a first-match chain:
// voice header, end of transmission (only with an open session), registration, error level.
func (a *Analyzer) Step(st State, entry models.LogEntry) State {
	msg := entry.Message
	switch {
	case strings.Contains(msg, voiceHeaderMarker):
		st.VoiceTransmissions++
		matches := voiceHeaderRe.FindStringSubmatch(msg)
		if matches == nil {
			return st
		}
		if st.Open != nil {
			// Two headers without an end marker: the earlier session is dropped.
			st.Replaced++
			a.logger.Debug("voice header replaced open session",
				slog.String("dropped_callsign", st.Open.Callsign),
				slog.String("callsign", matches[1]))
		}
		slot := "Slot 2"
		if strings.Contains(msg, a.markers.Slot1) {
			slot = "Slot 1"
		}
		st.Open = &models.VoiceSession{
			Start:     entry.Timestamp,
			Callsign:  matches[1],
			Talkgroup: matches[2],
			Slot:      slot,
		}

	case strings.Contains(msg, voiceEndMarker) && st.Open != nil:
		if session, ok := closeSession(*st.Open, entry); ok {
			st.Completed = append(st.Completed, session)
		}
		st.Open = nil

	case a.isRegistration(msg):
		st.NetworkEvents++

	case entry.Level == models.LevelError:
		st.Errors = append(st.Errors, models.ErrorRecord{Timestamp: entry.Timestamp, Message: msg})
	}
	return st
}

func closeSession(session models.VoiceSession, entry models.LogEntry) (models.VoiceSession, bool) {
	matches := voiceEndRe.FindStringSubmatch(entry.Message)
	if matches == nil {
		return session, false
	}
	duration, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return session, false
	}
	loss, err := strconv.Atoi(matches[2])
	if err != nil {
		return session, false
	}
	ber, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return session, false
	}
	session.End = entry.Timestamp
	session.Duration = duration
	session.PacketLoss = loss
	session.BER = ber
	return session, true
}

func (a *Analyzer) isRegistration(msg string) bool {
	for _, marker := range a.markers.Registration {
		if marker != "" && strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Analyze builds the run summary from extracted packets, entries and their correlations.
func (a *Analyzer) Analyze(packets []models.Packet, entries []models.LogEntry, correlations []models.Correlation) models.Analysis {
	st := a.Scan(entries)

	analysis := models.Analysis{
		Packets:            packets,
		Correlations:       correlations,
		TotalPackets:       len(packets),
		TotalLogEntries:    len(entries),
		VoiceTransmissions: st.VoiceTransmissions,
		NetworkEvents:      st.NetworkEvents,
		VoiceSessions:      st.Completed,
		Errors:             st.Errors,
	}

	analysis.Timespan, analysis.HasTimespan = Timespan(packets)
	analysis.AverageRate, analysis.RateDefined = AverageRate(len(packets), analysis.Timespan)
	analysis.Flow = FlowOf(packets)
	for _, p := range packets {
		analysis.DataVolume += p.Length
	}

	if st.Replaced > 0 {
		a.logger.Info("voice headers replaced unfinished sessions", slog.Int("replaced", st.Replaced))
	}
	return analysis
}

// Timespan returns max minus min packet timestamp; ok is false without packets.
func Timespan(packets []models.Packet) (time.Duration, bool) {
	if len(packets) == 0 {
		return 0, false
	}
	start, end := packets[0].Timestamp, packets[0].Timestamp
	for _, p := range packets[1:] {
		if p.Timestamp.Before(start) {
			start = p.Timestamp
		}
		if p.Timestamp.After(end) {
			end = p.Timestamp
		}
	}
	return end.Sub(start), true
}

// AverageRate returns packets per second; ok is false when the timespan is zero.
func AverageRate(count int, span time.Duration) (float64, bool) {
	if count == 0 || span <= 0 {
		return 0, false
	}
	return float64(count) / span.Seconds(), true
}

// FlowOf counts packets per direction and measures inter-arrival gaps in capture order.
func FlowOf(packets []models.Packet) models.FlowStats {
	var flow models.FlowStats
	gaps := utils.NewIntervalTracker()
	for _, p := range packets {
		switch p.Direction {
		case models.DirectionToTarget:
			flow.ToTarget++
		case models.DirectionFromTarget:
			flow.FromTarget++
		}
		gaps.Observe(p.Timestamp)
	}
	flow.Ratio = float64(flow.ToTarget) / float64(max(flow.FromTarget, 1))
	flow.InterArrivalP50 = gaps.Percentile(50)
	flow.InterArrivalP95 = gaps.Percentile(95)
	return flow
}
