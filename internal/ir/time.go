package ir

import (
	"fmt"
	"time"
)

// TimeLayout is the persisted form of every timestamp: ISO-8601, UTC,
// microsecond precision, fixed width. Fixed width makes lexical comparison of
// canonical values agree with chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// CanonicalTime formats t in TimeLayout after converting it to UTC.
func CanonicalTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp in TimeLayout or, failing that, RFC 3339.
// The result is always UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
