package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseStampScalesFraction(t *testing.T) {
	tests := []struct {
		name     string
		fraction string
		want     time.Duration
	}{
		{name: "milliseconds", fraction: "123", want: 123 * time.Millisecond},
		{name: "microseconds", fraction: "123456", want: 123456 * time.Microsecond},
		{name: "nanoseconds truncated", fraction: "123456789", want: 123456 * time.Microsecond},
		{name: "empty", fraction: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStamp("2024-01-15 10:30:45", tt.fraction)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC).Add(tt.want)
			if !got.Equal(want) {
				t.Errorf("ParseStamp = %v, want %v", got, want)
			}
		})
	}
}

func TestParseStampRejectsGarbage(t *testing.T) {
	if _, err := ParseStamp("2024-13-45 99:99:99", "000"); err == nil {
		t.Fatalf("expected error for invalid stamp")
	}
}

func TestFormatHelpers(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 45, 987654000, time.UTC)
	if got := FormatMillis(ts); got != "10:30:45.987" {
		t.Errorf("FormatMillis = %q", got)
	}
	if got := FormatClock(ts); got != "10:30:45" {
		t.Errorf("FormatClock = %q", got)
	}
	if got := FormatTimespan(time.Hour + 2*time.Minute + 3*time.Second + 4500*time.Microsecond); got != "1:02:03.004500" {
		t.Errorf("FormatTimespan = %q", got)
	}
	if got := FormatTimespan(4 * time.Second); got != "0:00:04" {
		t.Errorf("FormatTimespan whole seconds = %q", got)
	}
	if got := FormatTimespan(0); got != "0:00:00" {
		t.Errorf("FormatTimespan zero = %q", got)
	}
}

func TestWallClockKeepsCalendarFields(t *testing.T) {
	zone := time.FixedZone("EST", -5*3600)
	in := time.Date(2024, 1, 15, 5, 30, 45, 123000, zone)
	got := WallClock(in)
	want := time.Date(2024, 1, 15, 5, 30, 45, 123000, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("WallClock = %v, want %v", got, want)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewAppError("parse capture", "/tmp/x.pcap", "tcpdump failed", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to match")
	}
	if got := err.Error(); got != "parse capture /tmp/x.pcap: tcpdump failed: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}
