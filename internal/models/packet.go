package models

import "time"

// Packet is a single UDP datagram seen on the MMDVM loopback link.
type Packet struct {
	Timestamp time.Time
	Direction Direction
	Length    int
	SrcPort   int
	DstPort   int
	Raw       string
}

// Direction enumerates the flow of a packet relative to the MMDVM host.
type Direction string

const (
	DirectionToTarget   Direction = "TO_MMDVM"
	DirectionFromTarget Direction = "FROM_MMDVM"
)

// LogEntry is one parsed line of an MMDVM host log.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Raw       string
}

// Level is the single-letter severity code that prefixes each log line.
type Level string

const (
	LevelDebug   Level = "D"
	LevelMessage Level = "M"
	LevelInfo    Level = "I"
	LevelWarning Level = "W"
	LevelError   Level = "E"
	LevelFatal   Level = "F"
)
