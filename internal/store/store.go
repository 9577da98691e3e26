// Package store holds the persistence collaborators of the ingestion
// pipeline: a Sink for canonical records and a JobStore for job state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/logstats/internal/model"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned by CreateJob for a duplicate job ID.
var ErrExists = errors.New("already exists")

// Filter selects stored records. Zero fields do not constrain the result.
// Since is inclusive and Until exclusive.
type Filter struct {
	JobID uuid.UUID
	Since time.Time
	Until time.Time
	Limit int
}

// Match reports whether r, stored under jobID, passes the job and time
// constraints of f.
func (f Filter) Match(jobID uuid.UUID, r *model.LogRecord) bool {
	if f.JobID != uuid.Nil && f.JobID != jobID {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Sink is the append-only destination of canonical records.
type Sink interface {
	// Append persists records for jobID. A record that cannot be stored is
	// counted as skipped in the summary; the error is reserved for the sink
	// itself being unusable.
	Append(ctx context.Context, jobID uuid.UUID, records []model.LogRecord) (model.PersistSummary, error)
	// DeleteJob removes every record stored for jobID.
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
	Count(ctx context.Context, f Filter) (int, error)
	List(ctx context.Context, f Filter) ([]model.LogRecord, error)
}

// JobStore persists ingestion job state.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
	// SaveJob writes the full job state. Stored progress never decreases.
	SaveJob(ctx context.Context, job *model.Job) error
	// UpdateProgress raises entries_processed of a processing job to
	// processed, atomically with respect to readers, and returns the stored
	// value.
	UpdateProgress(ctx context.Context, id uuid.UUID, processed int64) (int64, error)
	// ListJobs returns up to limit jobs, newest first.
	ListJobs(ctx context.Context, limit int) ([]*model.Job, error)
}
