package utils

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// StampLayout is the date-time prefix shared by tcpdump -tttt and MMDVM logs.
	StampLayout = "2006-01-02 15:04:05"
	clockMillis = "15:04:05.000"
	clockSecond = "15:04:05"
)

// ParseStamp parses "YYYY-MM-DD HH:MM:SS" plus a fractional part of up to nine digits.
// The fraction is scaled by its width, so "123" means 123ms and "123456" means 123456µs.
// Result resolution is microseconds.
func ParseStamp(stamp, fraction string) (time.Time, error) {
	t, err := time.ParseInLocation(StampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	if fraction == "" {
		return t, nil
	}
	if len(fraction) > 9 {
		fraction = fraction[:9]
	}
	value, err := strconv.Atoi(fraction)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse fraction %q: %w", fraction, err)
	}
	for i := len(fraction); i < 9; i++ {
		value *= 10
	}
	return t.Add(time.Duration(value)).Truncate(time.Microsecond), nil
}

// WallClock keeps the calendar fields of t and labels them UTC, the zone ParseStamp
// gives text timestamps, so both meet on the same bucket keys.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// TruncateSecond drops sub-second precision and returns the Unix second used as a bucket key.
func TruncateSecond(t time.Time) int64 {
	return t.Unix()
}

// FormatMillis renders HH:MM:SS.mmm, truncating rather than rounding.
func FormatMillis(t time.Time) string {
	return t.Format(clockMillis)
}

// FormatClock renders HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format(clockSecond)
}

// FormatTimespan renders a duration as H:MM:SS.ffffff, dropping the fraction when it is zero.
func FormatTimespan(d time.Duration) string {
	if d < 0 {
		return "-" + FormatTimespan(-d)
	}
	d = d.Truncate(time.Microsecond)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	if d == 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d.%06d", hours, minutes, seconds, d/time.Microsecond)
}
