package models

import "time"

// VoiceSession tracks one voice transmission from header to end marker.
type VoiceSession struct {
	Start      time.Time
	End        time.Time
	Callsign   string
	Talkgroup  string
	Slot       string
	Duration   float64
	PacketLoss int
	BER        float64
}

// Closed reports whether the end-of-transmission metrics were recorded.
func (s VoiceSession) Closed() bool {
	return !s.End.IsZero()
}

// ErrorRecord is an error-level log line surfaced in the report.
type ErrorRecord struct {
	Timestamp time.Time
	Message   string
}
