package model

import "time"

// MaxSkipReasons caps how many skip reasons a summary keeps.
const MaxSkipReasons = 10

// SkipReason explains why one row or entry was dropped. Row is 1-based.
type SkipReason struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Skips counts dropped rows and remembers the first MaxSkipReasons reasons.
type Skips struct {
	Skipped int          `json:"skipped"`
	Reasons []SkipReason `json:"reasons,omitempty"`
}

// Skip records one dropped row.
func (s *Skips) Skip(row int, reason string) {
	s.Skipped++
	if len(s.Reasons) < MaxSkipReasons {
		s.Reasons = append(s.Reasons, SkipReason{Row: row, Reason: reason})
	}
}

// ParseSummary describes the outcome of turning raw input into records.
type ParseSummary struct {
	Format   string `json:"format"`
	Rows     int    `json:"rows"`
	Parsed   int    `json:"parsed"`
	Fallback bool   `json:"fallback,omitempty"`
	Failure  string `json:"failure,omitempty"`
	Skips
}

// PersistSummary describes the outcome of appending records to a sink.
type PersistSummary struct {
	Attempted int `json:"attempted"`
	Persisted int `json:"persisted"`
	Skips
}

// Merge folds o into s. Row numbers in o are shifted by offset.
func (s *PersistSummary) Merge(o PersistSummary, offset int) {
	s.Attempted += o.Attempted
	s.Persisted += o.Persisted
	s.Skipped += o.Skipped
	for _, r := range o.Reasons {
		if len(s.Reasons) >= MaxSkipReasons {
			break
		}
		s.Reasons = append(s.Reasons, SkipReason{Row: r.Row + offset, Reason: r.Reason})
	}
}

// IngestSummary captures metrics from a single ingestion job run.
type IngestSummary struct {
	JobID           string         `json:"job_id"`
	Name            string         `json:"name"`
	InputSHA256     string         `json:"input_sha256,omitempty"`
	Parse           ParseSummary   `json:"parse"`
	Persist         PersistSummary `json:"persist"`
	DurationParse   time.Duration  `json:"duration_parse"`
	DurationPersist time.Duration  `json:"duration_persist"`
	DurationTotal   time.Duration  `json:"duration_total"`
}
