package logparse

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/model"
)

// Format is the detected layout of raw input.
type Format string

const (
	FormatTabular Format = "tabular"
	FormatLines   Format = "lines"
)

// DetectFormat picks tabular when the first line has a comma or the file
// name hint ends in .csv, and line-oriented otherwise.
func DetectFormat(firstLine, hint string) Format {
	if strings.Contains(firstLine, ",") || strings.HasSuffix(strings.ToLower(strings.TrimSpace(hint)), ".csv") {
		return FormatTabular
	}
	return FormatLines
}

// Detector decodes raw input, detects its format and dispatches to the line
// parser or the schema mapper.
type Detector struct {
	mapper *Mapper
	now    func() time.Time
	log    zerolog.Logger
}

// NewDetector returns a Detector that maps tabular input with mapper.
func NewDetector(mapper *Mapper, log zerolog.Logger) *Detector {
	return &Detector{mapper: mapper, now: mapper.now, log: log}
}

// Mapper returns the schema mapper used for tabular input.
func (d *Detector) Mapper() *Mapper {
	return d.mapper
}

// Parse turns raw input into canonical records. It never fails: undecodable
// input or an internal fault yields no records, with the cause recorded in
// summary.Failure.
func (d *Detector) Parse(raw []byte, hint string) (records []model.LogRecord, summary model.ParseSummary) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("hint", hint).Msg("parse aborted")
			records = nil
			summary = model.ParseSummary{Format: summary.Format, Failure: fmt.Sprintf("parse aborted: %v", r)}
		}
	}()

	text, err := Decode(raw)
	if err != nil {
		d.log.Warn().Err(err).Str("hint", hint).Msg("input could not be decoded")
		return nil, model.ParseSummary{Failure: err.Error()}
	}

	format := DetectFormat(firstLine(text), hint)
	if format == FormatTabular {
		records, summary = d.parseTable(text)
	} else {
		records, summary = d.parseLines(text)
	}

	d.log.Debug().
		Str("format", summary.Format).
		Int("rows", summary.Rows).
		Int("parsed", summary.Parsed).
		Int("skipped", summary.Skipped).
		Bool("fallback", summary.Fallback).
		Msg("input parsed")
	return records, summary
}

func (d *Detector) parseTable(text string) ([]model.LogRecord, model.ParseSummary) {
	header, rows, err := readTable(text)
	fallback := false
	if err != nil {
		d.log.Warn().Err(err).Msg("tabular parse failed, retrying with positional reader")
		header, rows = readPositional(text)
		fallback = true
	}
	records, summary := d.mapper.MapTable(rows, header)
	summary.Fallback = fallback
	return records, summary
}

func (d *Detector) parseLines(text string) ([]model.LogRecord, model.ParseSummary) {
	now := d.now()
	summary := model.ParseSummary{Format: string(FormatLines)}
	var records []model.LogRecord

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		summary.Rows++
		rec := ParseLine(line, now)
		if rec == nil {
			summary.Skip(i+1, "line does not match the access log pattern")
			continue
		}
		records = append(records, *rec)
	}
	summary.Parsed = len(records)
	return records, summary
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimRight(text, "\r")
}
