package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Job sources recorded on the job for display.
const (
	SourceUpload = "upload"
	SourceFile   = "file"
	SourceS3     = "s3"
)

// ErrInvalidTransition is returned when a status change is not allowed by the
// job lifecycle.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Job is the persisted state of one ingestion run.
type Job struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Source           string     `json:"source"`
	InputSHA256      string     `json:"input_sha256,omitempty"`
	Status           JobStatus  `json:"status"`
	TotalEntries     int64      `json:"total_entries"`
	EntriesProcessed int64      `json:"entries_processed"`
	SkippedRows      int64      `json:"skipped_rows"`
	SkippedEntries   int64      `json:"skipped_entries"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// NewJob returns a pending job with a fresh ID.
func NewJob(name, source string, now time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		Name:      name,
		Source:    source,
		Status:    JobPending,
		CreatedAt: now,
	}
}

func (j *Job) transition(to JobStatus) error {
	allowed := (j.Status == JobPending && to == JobProcessing) ||
		(j.Status == JobProcessing && (to == JobCompleted || to == JobFailed))
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// Start moves a pending job to processing.
func (j *Job) Start(now time.Time) error {
	if err := j.transition(JobProcessing); err != nil {
		return err
	}
	j.StartedAt = &now
	return nil
}

// Complete marks the job completed and pins progress at the total.
func (j *Job) Complete(now time.Time) error {
	if err := j.transition(JobCompleted); err != nil {
		return err
	}
	j.EntriesProcessed = j.TotalEntries
	j.ProcessedAt = &now
	return nil
}

// Fail marks the job failed with msg. Progress is left at its last checkpoint.
func (j *Job) Fail(msg string) error {
	if err := j.transition(JobFailed); err != nil {
		return err
	}
	j.ErrorMessage = msg
	return nil
}

// Checkpoint records processed entries. Lower values than the current one
// are ignored so progress never moves backwards.
func (j *Job) Checkpoint(processed int64) {
	if processed > j.EntriesProcessed {
		j.EntriesProcessed = processed
	}
}

// Progress returns processed entries as a whole percentage of the total.
func (j *Job) Progress() int {
	if j.TotalEntries <= 0 {
		return 0
	}
	p := int(j.EntriesProcessed * 100 / j.TotalEntries)
	if p > 100 {
		p = 100
	}
	return p
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.ProcessedAt != nil {
		t := *j.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
