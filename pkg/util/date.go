package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

var eastern = loadEastern()

func loadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// fixed-offset fallback for containers without tzdata
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// Eastern returns the US Eastern location used for session classification.
func Eastern() *time.Location { return eastern }

// EasternDate formats t as a YYYY-MM-DD session date in Eastern time.
func EasternDate(t time.Time) string {
	return t.In(eastern).Format("2006-01-02")
}

// MinutesSinceMidnightET returns whole minutes elapsed since Eastern
// midnight for t.
func MinutesSinceMidnightET(t time.Time) int {
	et := t.In(eastern)
	return et.Hour()*60 + et.Minute()
}

// ParseSessionDate parses a YYYY-MM-DD date as an Eastern session day.
// Full timestamps are also accepted and collapsed to their Eastern date.
func ParseSessionDate(s string) (time.Time, bool) {
	if t, err := time.ParseInLocation("2006-01-02", s, eastern); err == nil {
		return t, true
	}
	if t, ok := ParseTime(s); ok {
		et := t.In(eastern)
		return time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, eastern), true
	}
	return time.Time{}, false
}

// ThirdFriday returns the third Friday of the given month in Eastern time.
func ThirdFriday(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, eastern)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 14)
}
