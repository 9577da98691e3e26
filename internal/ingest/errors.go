package ingest

import (
	"errors"
	"fmt"
)

// Pipeline phases reported by PipelineError.
const (
	PhaseRead     = "read"
	PhaseParse    = "parse"
	PhasePersist  = "persist"
	PhaseFinalize = "finalize"
)

var (
	// ErrNoEntries fails a job whose input produced no records.
	ErrNoEntries = errors.New("no valid log entries found")
	// ErrCanceled is the failure recorded for a job stopped by its context.
	ErrCanceled = errors.New("ingestion canceled")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("ingest queue is full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("scheduler is closed")
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
