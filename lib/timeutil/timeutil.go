package timeutil

import (
	"fmt"
	"time"
)

// ISODate is the wire format for calendar days.
const ISODate = "2006-01-02"

// Clock abstracts wall-clock access so the services that do calendar
// arithmetic stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// RealClock is the Clock used in production.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// LoadZone resolves an IANA zone name, treating the empty string as UTC.
func LoadZone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	return loc, nil
}

// TzNow returns the current instant of the given clock in the given zone.
func TzNow(clock Clock, loc *time.Location) time.Time {
	return clock.Now().In(loc)
}

// StartOfDay returns the first instant of t's calendar day in the given zone.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last instant of t's calendar day in the given zone.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ISODateOnly formats t's calendar day in the given zone as YYYY-MM-DD.
func ISODateOnly(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ISODate)
}

// ParseISODate parses a YYYY-MM-DD string as midnight in the given zone.
func ParseISODate(day string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(ISODate, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, want YYYY-MM-DD: %w", day, err)
	}
	return t, nil
}

// DateKey maps a YYYY-MM-DD string onto the UTC midnight used as the storage
// key for that calendar day.
func DateKey(day string) (time.Time, error) {
	return ParseISODate(day, time.UTC)
}

// MidnightUTC truncates a timestamp to the UTC midnight of its calendar day.
// This is the day arithmetic the streak counters run on.
func MidnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
