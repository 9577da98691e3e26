package logparse

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/normalize"
)

// DefaultAliases lists, per canonical field, the source column names that
// may carry it, in order of preference. Names are compared after
// normalize.NormalizeHeader.
var DefaultAliases = map[string][]string{
	model.FieldTimestamp:  {"timestamp", "time", "date", "datetime", "date_time", "@timestamp", "time_local", "logged_at"},
	model.FieldIPAddress:  {"ip_address", "ip", "client", "client_ip", "c_ip", "remote_addr", "remote_ip", "source_ip", "host"},
	model.FieldHTTPMethod: {"http_method", "method", "verb", "request_method", "cs_method"},
	model.FieldResource:   {"resource", "path", "url", "uri", "request", "request_uri", "cs_uri_stem", "page", "endpoint"},
	model.FieldStatusCode: {"status_code", "status", "code", "response_code", "sc_status", "http_status"},
}

// dateSampleRows bounds how many rows are inspected when looking for a
// date-typed column.
const dateSampleRows = 25

// Mapper turns rows with arbitrary column names into canonical records.
type Mapper struct {
	aliases map[string][]string
	now     func() time.Time
	log     zerolog.Logger
}

// NewMapper builds a Mapper. extra aliases are appended after the built-in
// ones for each field. A nil now uses time.Now.
func NewMapper(log zerolog.Logger, now func() time.Time, extra map[string][]string) *Mapper {
	if now == nil {
		now = time.Now
	}
	aliases := make(map[string][]string, len(DefaultAliases))
	for field, names := range DefaultAliases {
		aliases[field] = append([]string(nil), names...)
	}
	for field, names := range extra {
		for _, n := range names {
			aliases[field] = append(aliases[field], normalize.NormalizeHeader(n))
		}
	}
	return &Mapper{aliases: aliases, now: now, log: log}
}

// KnownColumn reports whether name is a built-in alias of any canonical field.
func KnownColumn(name string) bool {
	n := normalize.NormalizeHeader(name)
	for _, names := range DefaultAliases {
		for _, alias := range names {
			if alias == n {
				return true
			}
		}
	}
	return false
}

// columnMap holds the source column chosen for each required field.
// A missing field has no entry.
type columnMap map[string]string

// Resolve reports which source column feeds each required field for the
// given header. rows are only consulted for the date-typed fallback.
func (m *Mapper) Resolve(header []string, rows []map[string]any) map[string]string {
	return m.resolve(header, rows, m.now())
}

func (m *Mapper) resolve(header []string, rows []map[string]any, now time.Time) columnMap {
	byName := make(map[string]string, len(header))
	for _, h := range header {
		n := normalize.NormalizeHeader(h)
		if _, dup := byName[n]; !dup {
			byName[n] = h
		}
	}

	cols := columnMap{}
	used := map[string]bool{}
	for _, field := range model.RequiredFields() {
		for _, alias := range m.aliases[field] {
			if src, ok := byName[alias]; ok && !used[src] {
				cols[field] = src
				used[src] = true
				break
			}
		}
	}

	if _, ok := cols[model.FieldTimestamp]; !ok {
		if src := dateColumn(header, rows, used, now.Location()); src != "" {
			cols[model.FieldTimestamp] = src
		}
	}
	return cols
}

// dateColumn returns the first unused header column whose sampled values
// are all date-times, or "".
func dateColumn(header []string, rows []map[string]any, used map[string]bool, loc *time.Location) string {
	sample := rows
	if len(sample) > dateSampleRows {
		sample = sample[:dateSampleRows]
	}
	for _, col := range header {
		if used[col] {
			continue
		}
		seen := 0
		allDates := true
		for _, row := range sample {
			v := row[col]
			if normalize.IsNull(v) {
				continue
			}
			seen++
			if !normalize.LooksLikeDate(v, loc) {
				allDates = false
				break
			}
		}
		if allDates && seen > 0 {
			return col
		}
	}
	return ""
}

// MapTable converts rows into canonical records. header gives the column
// order; when empty it is taken from the row keys in sorted order. A row
// whose values cannot be coerced is skipped and reported in the summary.
func (m *Mapper) MapTable(rows []map[string]any, header []string) ([]model.LogRecord, model.ParseSummary) {
	now := m.now()
	summary := model.ParseSummary{Format: string(FormatTabular), Rows: len(rows)}
	if len(header) == 0 {
		header = headerFromRows(rows)
	}

	cols := m.resolve(header, rows, now)
	m.log.Debug().
		Strs("header", header).
		Interface("columns", cols).
		Msg("resolved column mapping")

	records := make([]model.LogRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := mapRow(row, cols, now)
		if err != nil {
			summary.Skip(i+1, err.Error())
			m.log.Debug().Err(err).Int("row", i+1).Msg("row skipped")
			continue
		}
		records = append(records, rec)
	}
	summary.Parsed = len(records)
	return records, summary
}

// mapRow coerces one row. Missing or unusable values take the field default;
// an error means the row as a whole cannot be used.
func mapRow(row map[string]any, cols columnMap, now time.Time) (rec model.LogRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coerce row: %v", r)
		}
	}()

	rec = model.DefaultRecord(now)

	if col, ok := cols[model.FieldTimestamp]; ok {
		ts, valid, cerr := normalize.Timestamp(row[col], now)
		if cerr != nil {
			return rec, fmt.Errorf("%s: %w", col, cerr)
		}
		if valid {
			rec.Timestamp = ts
		}
	}

	if col, ok := cols[model.FieldIPAddress]; ok {
		s, cerr := normalize.Text(row[col])
		if cerr != nil {
			return rec, fmt.Errorf("%s: %w", col, cerr)
		}
		if s != "" {
			rec.IPAddress = s
		}
	}

	if col, ok := cols[model.FieldHTTPMethod]; ok {
		s, cerr := normalize.Text(row[col])
		if cerr != nil {
			return rec, fmt.Errorf("%s: %w", col, cerr)
		}
		if s = normalize.NormalizeMethod(s); s != "" {
			rec.HTTPMethod = s
		}
	}

	if col, ok := cols[model.FieldResource]; ok {
		s, cerr := normalize.Text(row[col])
		if cerr != nil {
			return rec, fmt.Errorf("%s: %w", col, cerr)
		}
		if s != "" {
			rec.Resource = s
		}
	}

	if col, ok := cols[model.FieldStatusCode]; ok {
		code, valid, cerr := normalize.Status(row[col])
		if cerr != nil {
			return rec, fmt.Errorf("%s: %w", col, cerr)
		}
		if valid {
			rec.StatusCode = code
		}
	}

	return rec, nil
}

func headerFromRows(rows []map[string]any) []string {
	seen := map[string]bool{}
	var header []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)
	return header
}
