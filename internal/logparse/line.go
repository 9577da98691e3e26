package logparse

import (
	"regexp"
	"strconv"
	"time"

	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/normalize"
)

// linePattern matches "HH:MM:SS IP METHOD /path STATUS" at the start of a
// line. Anything after the status is ignored.
var linePattern = regexp.MustCompile(
	`^([01]\d|2[0-3]):([0-5]\d):([0-5]\d)\s+` +
		`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\s+` +
		`([A-Z]+)\s+` +
		`(/\S*)\s+` +
		`(\d+)(?:\s|$)`)

// ParseLine parses one IIS-style access line. The line carries no date, so
// the timestamp is placed on now's calendar day in now's location.
// Returns nil if the line does not match or the status is not a possible
// HTTP status code.
func ParseLine(line string, now time.Time) *model.LogRecord {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	status, err := strconv.Atoi(m[7])
	if err != nil || !normalize.ValidStatus(status) {
		return nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])

	y, mo, d := now.Date()
	return &model.LogRecord{
		Timestamp:  time.Date(y, mo, d, hour, minute, second, 0, now.Location()),
		IPAddress:  m[4],
		HTTPMethod: m[5],
		Resource:   m[6],
		StatusCode: status,
	}
}
