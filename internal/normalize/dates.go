package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Common timestamp layouts found in exported access logs. Layouts without a
// zone are read in the caller's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04",
	"02/Jan/2006:15:04:05 -0700",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006/01/02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Time-of-day only layouts; the date is taken from the processing day.
var timeOfDayLayouts = []string{
	"15:04:05",
	"15:04:05.000",
	"15:04",
}

// ParseDate parses s against the full date/date-time layouts only.
// Returns nil if s is empty or matches none of them.
func ParseDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// ParseTimestamp parses s as a date-time. Besides the layouts accepted by
// ParseDate it takes a bare time of day (combined with now's date) and
// Unix seconds.
func ParseTimestamp(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t := ParseDate(s, now.Location()); t != nil {
		return *t, true
	}
	if t, ok := ParseTimeOfDay(s, now); ok {
		return t, true
	}
	// Unix seconds; short digit runs are more likely codes than epochs.
	if len(s) >= 9 {
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
			return time.Unix(secs, 0).In(now.Location()), true
		}
	}
	return time.Time{}, false
}

// ParseTimeOfDay parses an HH:MM[:SS] value and places it on now's date.
func ParseTimeOfDay(s string, now time.Time) (time.Time, bool) {
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(s))
		if err != nil {
			continue
		}
		y, m, d := now.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), now.Location()), true
	}
	return time.Time{}, false
}
