package models

import "time"

// Correlation ties one log entry to the packets seen around it.
type Correlation struct {
	Timestamp      time.Time
	Entry          LogEntry
	RelatedPackets []Packet
	PacketCount    int
}

// Analysis summarises a correlation run and feeds the report.
type Analysis struct {
	CapturePath string
	LogPath     string

	Packets      []Packet
	Correlations []Correlation

	TotalPackets    int
	TotalLogEntries int
	SkippedPackets  int
	SkippedLogLines int
	DataVolume      int

	// Timespan is only meaningful when HasTimespan is set.
	Timespan    time.Duration
	HasTimespan bool
	// AverageRate is undefined when there are no packets or the timespan is zero.
	AverageRate float64
	RateDefined bool

	VoiceTransmissions int
	NetworkEvents      int
	VoiceSessions      []VoiceSession
	Errors             []ErrorRecord

	Flow FlowStats

	Partial  bool
	Warnings []string
}

// FlowStats holds directional packet totals and inter-arrival spacing.
type FlowStats struct {
	ToTarget   int
	FromTarget int
	// Ratio is ToTarget / max(FromTarget, 1).
	Ratio           float64
	InterArrivalP50 time.Duration
	InterArrivalP95 time.Duration
}
