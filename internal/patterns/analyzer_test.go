package patterns

import (
	"math"
	"testing"
	"time"

	"github.com/miradorstack/dmr-correlate/internal/models"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func entry(offset time.Duration, level models.Level, msg string) models.LogEntry {
	return models.LogEntry{Timestamp: t0.Add(offset), Level: level, Message: msg}
}

func TestAnalyzerCompletesVoiceSession(t *testing.T) {
	entries := []models.LogEntry{
		entry(0, models.LevelMessage, "DMR Slot 2, received network voice header from W1AW to TG 31337"),
		entry(5*time.Second, models.LevelMessage, "DMR Slot 2, received network end of voice transmission from W1AW to TG 31337, 12.5 seconds, 3% packet loss, BER: 1.2%"),
	}
	st := NewAnalyzer(Markers{}, nil).Scan(entries)

	if len(st.Completed) != 1 {
		t.Fatalf("expected one completed session, got %d", len(st.Completed))
	}
	s := st.Completed[0]
	if s.Callsign != "W1AW" || s.Talkgroup != "31337" {
		t.Errorf("unexpected identity: %+v", s)
	}
	if s.Duration != 12.5 || s.PacketLoss != 3 || s.BER != 1.2 {
		t.Errorf("unexpected metrics: duration=%v loss=%v ber=%v", s.Duration, s.PacketLoss, s.BER)
	}
	if s.Slot != "Slot 2" {
		t.Errorf("Slot = %q, want Slot 2", s.Slot)
	}
	if !s.Start.Equal(t0) || !s.End.Equal(t0.Add(5*time.Second)) || !s.Closed() {
		t.Errorf("unexpected start/end: %v %v", s.Start, s.End)
	}
	if st.Open != nil {
		t.Errorf("session should be closed")
	}
	if st.VoiceTransmissions != 1 {
		t.Errorf("VoiceTransmissions = %d, want 1", st.VoiceTransmissions)
	}
}

func TestAnalyzerSecondHeaderDiscardsOpenSession(t *testing.T) {
	entries := []models.LogEntry{
		entry(0, models.LevelMessage, "DMR Slot 1, received RF voice header from K1ABC to TG 9"),
		entry(time.Second, models.LevelMessage, "DMR Slot 2, received network voice header from W1AW to TG 31337"),
		entry(3*time.Second, models.LevelMessage, "DMR Slot 2, received network end of voice transmission from W1AW to TG 31337, 2.0 seconds, 0% packet loss, BER: 0.0%"),
	}
	st := NewAnalyzer(Markers{}, nil).Scan(entries)

	if len(st.Completed) != 1 {
		t.Fatalf("expected only the second session to complete, got %d", len(st.Completed))
	}
	if st.Completed[0].Callsign != "W1AW" {
		t.Fatalf("expected W1AW session, got %s", st.Completed[0].Callsign)
	}
	if st.Replaced != 1 {
		t.Fatalf("expected one replaced session, got %d", st.Replaced)
	}
	if st.VoiceTransmissions != 2 {
		t.Fatalf("expected both headers counted, got %d", st.VoiceTransmissions)
	}
}

func TestAnalyzerEndWithoutMetricsClosesSession(t *testing.T) {
	entries := []models.LogEntry{
		entry(0, models.LevelMessage, "DMR Slot 1, received RF voice header from K1ABC to TG 9"),
		entry(time.Second, models.LevelMessage, "DMR Slot 1, received RF end of voice transmission from K1ABC to TG 9"),
		entry(2*time.Second, models.LevelMessage, "DMR Slot 1, received RF end of voice transmission from K1ABC to TG 9, 1.0 seconds, 0% packet loss, BER: 0.0%"),
	}
	st := NewAnalyzer(Markers{}, nil).Scan(entries)
	if len(st.Completed) != 0 {
		t.Fatalf("expected no completed sessions, got %d", len(st.Completed))
	}
	if st.Open != nil {
		t.Fatalf("expected open slot to be cleared")
	}
}

func TestAnalyzerEndWithoutOpenSessionFallsThrough(t *testing.T) {
	entries := []models.LogEntry{
		entry(0, models.LevelError, "DMR Slot 2, end of voice transmission with no header"),
	}
	st := NewAnalyzer(Markers{}, nil).Scan(entries)
	if len(st.Completed) != 0 {
		t.Fatalf("end marker without a session must be ignored")
	}
	if len(st.Errors) != 1 {
		t.Fatalf("expected the error-level line to be recorded, got %d", len(st.Errors))
	}
}

func TestAnalyzerRegistrationsAndErrors(t *testing.T) {
	entries := []models.LogEntry{
		entry(0, models.LevelMessage, "DMR, Opening DMR Network"),
		entry(time.Second, models.LevelInfo, "MMDVMHost-20240101 is running; Started"),
		entry(2*time.Second, models.LevelError, "DMR, Login to the master has failed"),
		entry(3*time.Second, models.LevelError, "Opening the serial port failed"),
		entry(4*time.Second, models.LevelMessage, "DMR Slot 1, received RF voice header from K1ABC to TG 9"),
	}
	st := NewAnalyzer(Markers{}, nil).Scan(entries)
	if st.NetworkEvents != 3 {
		t.Fatalf("NetworkEvents = %d, want 3", st.NetworkEvents)
	}
	if len(st.Errors) != 1 || st.Errors[0].Message != "DMR, Login to the master has failed" {
		t.Fatalf("unexpected errors: %+v", st.Errors)
	}
	if st.Open == nil || st.Open.Slot != "Slot 1" {
		t.Fatalf("expected open slot 1 session, got %+v", st.Open)
	}
}

func TestAverageRateZeroTimespan(t *testing.T) {
	packets := []models.Packet{
		{Timestamp: t0, Direction: models.DirectionToTarget, Length: 55},
		{Timestamp: t0, Direction: models.DirectionToTarget, Length: 55},
	}
	a := NewAnalyzer(Markers{}, nil).Analyze(packets, nil, nil)
	if !a.HasTimespan || a.Timespan != 0 {
		t.Fatalf("expected zero timespan, got %v (%v)", a.Timespan, a.HasTimespan)
	}
	if a.RateDefined {
		t.Fatalf("rate must be undefined for a zero timespan")
	}
	if math.IsInf(a.AverageRate, 0) || math.IsNaN(a.AverageRate) {
		t.Fatalf("rate must stay finite, got %v", a.AverageRate)
	}
}

func TestAnalyzeAggregates(t *testing.T) {
	packets := []models.Packet{
		{Timestamp: t0, Direction: models.DirectionToTarget, Length: 55},
		{Timestamp: t0.Add(2 * time.Second), Direction: models.DirectionFromTarget, Length: 53},
		{Timestamp: t0.Add(4 * time.Second), Direction: models.DirectionToTarget, Length: 55},
	}
	a := NewAnalyzer(Markers{}, nil).Analyze(packets, nil, nil)
	if a.TotalPackets != 3 || a.DataVolume != 163 {
		t.Fatalf("unexpected totals: %d packets, %d bytes", a.TotalPackets, a.DataVolume)
	}
	if a.Timespan != 4*time.Second || !a.RateDefined || a.AverageRate != 0.75 {
		t.Fatalf("unexpected rate: %v over %v", a.AverageRate, a.Timespan)
	}
	if a.Flow.ToTarget != 2 || a.Flow.FromTarget != 1 || a.Flow.Ratio != 2 {
		t.Fatalf("unexpected flow: %+v", a.Flow)
	}
	if a.Flow.InterArrivalP50 != 2*time.Second {
		t.Fatalf("unexpected inter-arrival p50: %v", a.Flow.InterArrivalP50)
	}
}

func TestFlowRatioWithoutFromTarget(t *testing.T) {
	flow := FlowOf([]models.Packet{
		{Timestamp: t0, Direction: models.DirectionToTarget},
		{Timestamp: t0, Direction: models.DirectionToTarget},
		{Timestamp: t0, Direction: models.DirectionToTarget},
	})
	if flow.Ratio != 3 {
		t.Fatalf("expected ratio 3 with denominator floored at 1, got %v", flow.Ratio)
	}
}

func TestAnalyzeWithoutPackets(t *testing.T) {
	a := NewAnalyzer(Markers{}, nil).Analyze(nil, nil, nil)
	if a.HasTimespan || a.RateDefined {
		t.Fatalf("expected no timespan and undefined rate")
	}
	if a.Flow.Ratio != 0 {
		t.Fatalf("expected zero ratio, got %v", a.Flow.Ratio)
	}
}
