package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/enrich"
	"github.com/gyeh/logstats/internal/logparse"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/store"
)

// DefaultCheckpointEvery is the number of entries persisted between
// progress checkpoints.
const DefaultCheckpointEvery = 10

const (
	finalizeAttempts       = 3
	defaultFinalizeBackoff = 100 * time.Millisecond
)

// Runner executes ingestion jobs: parse, enrich, persist with progress
// checkpoints, and record the terminal status.
type Runner struct {
	jobs     store.JobStore
	sink     store.Sink
	detector *logparse.Detector
	enricher *enrich.Enricher
	log      zerolog.Logger

	// CheckpointEvery is the persistence batch size; progress is written
	// after every batch.
	CheckpointEvery int
	// FinalizeBackoff is the base wait between attempts to save the
	// completed job.
	FinalizeBackoff time.Duration
	Now             func() time.Time
}

func NewRunner(jobs store.JobStore, sink store.Sink, detector *logparse.Detector, enricher *enrich.Enricher, log zerolog.Logger) *Runner {
	return &Runner{
		jobs:            jobs,
		sink:            sink,
		detector:        detector,
		enricher:        enricher,
		log:             log.With().Str("component", "runner").Logger(),
		CheckpointEvery: DefaultCheckpointEvery,
		FinalizeBackoff: defaultFinalizeBackoff,
		Now:             time.Now,
	}
}

// Jobs returns the job store the runner writes to.
func (r *Runner) Jobs() store.JobStore {
	return r.jobs
}

// Run takes a pending job through to completed or failed. The job must
// already exist in the job store. On failure the returned error is a
// *PipelineError and the job's error_message holds its inner message.
func (r *Runner) Run(ctx context.Context, job *model.Job, in Input) (*model.IngestSummary, error) {
	totalStart := r.Now()
	log := r.log.With().Str("job_id", job.ID.String()).Str("input", in.Label()).Logger()
	summary := &model.IngestSummary{JobID: job.ID.String(), Name: job.Name}

	// Phase 1: start
	if err := job.Start(r.Now()); err != nil {
		return summary, &PipelineError{Phase: PhaseRead, Err: err}
	}
	if err := r.jobs.SaveJob(ctx, job); err != nil {
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhaseRead, Err: fmt.Errorf("save job: %w", err)})
	}
	log.Info().Msg("job started")

	// Phase 2: read and parse
	ld, err := in.load(ctx, r.detector)
	if err != nil {
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhaseRead, Err: err})
	}
	summary.Parse = ld.summary
	summary.InputSHA256 = ld.sha
	job.InputSHA256 = ld.sha
	job.SkippedRows = int64(ld.summary.Skipped)
	for _, reason := range ld.summary.Reasons {
		log.Debug().Int("row", reason.Row).Str("reason", reason.Reason).Msg("row skipped")
	}

	if len(ld.records) == 0 {
		err := fmt.Errorf("%w in %s", ErrNoEntries, in.Label())
		if ld.summary.Failure != "" {
			err = fmt.Errorf("%w in %s: %s", ErrNoEntries, in.Label(), ld.summary.Failure)
		}
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhaseParse, Err: err})
	}

	// Phase 3: enrich
	records := r.enricher.Enrich(ld.records)
	summary.DurationParse = r.Now().Sub(totalStart)
	log.Info().
		Str("format", ld.summary.Format).
		Int("rows", ld.summary.Rows).
		Int("parsed", ld.summary.Parsed).
		Int("skipped", ld.summary.Skipped).
		Bool("fallback", ld.summary.Fallback).
		Msg("input parsed")

	// Phase 4: persist
	job.TotalEntries = int64(len(records))
	if err := r.jobs.SaveJob(ctx, job); err != nil {
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhasePersist, Err: fmt.Errorf("save job: %w", err)})
	}
	if err := r.sink.DeleteJob(ctx, job.ID); err != nil {
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhasePersist, Err: err})
	}

	persistStart := r.Now()
	persisted, err := r.persist(ctx, job, records, log)
	summary.Persist = persisted
	summary.DurationPersist = r.Now().Sub(persistStart)
	job.SkippedEntries = int64(persisted.Skipped)
	if err != nil {
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhasePersist, Err: err})
	}

	// Phase 5: finalize
	if err := r.finalize(ctx, job, log); err != nil {
		return summary, r.fail(ctx, job, log, &PipelineError{Phase: PhaseFinalize, Err: err})
	}

	summary.DurationTotal = r.Now().Sub(totalStart)
	log.Info().
		Int64("total_entries", job.TotalEntries).
		Int("persisted", persisted.Persisted).
		Int("skipped_entries", persisted.Skipped).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("job completed")
	return summary, nil
}

// finalize records the completed state, retrying the write a few times.
// job itself only changes once a write succeeds, so on error it is still
// processing and can be marked failed.
func (r *Runner) finalize(ctx context.Context, job *model.Job, log zerolog.Logger) error {
	done := job.Clone()
	if err := done.Complete(r.Now()); err != nil {
		return err
	}
	wctx := context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		if err = r.jobs.SaveJob(wctx, done); err == nil {
			*job = *done
			return nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("saving completed job failed")
		if attempt < finalizeAttempts {
			time.Sleep(time.Duration(attempt) * r.FinalizeBackoff)
		}
	}
	return fmt.Errorf("save job: %w", err)
}

// persist appends records in batches of CheckpointEvery and checkpoints
// progress after each batch. Entries the sink rejects count as processed.
func (r *Runner) persist(ctx context.Context, job *model.Job, records []model.LogRecord, log zerolog.Logger) (model.PersistSummary, error) {
	var total model.PersistSummary
	batch := r.CheckpointEvery
	if batch <= 0 {
		batch = DefaultCheckpointEvery
	}

	for start := 0; start < len(records); start += batch {
		if ctx.Err() != nil {
			return total, ErrCanceled
		}
		end := min(start+batch, len(records))

		sum, err := r.sink.Append(ctx, job.ID, records[start:end])
		total.Merge(sum, start)
		if err != nil {
			return total, fmt.Errorf("append entries %d-%d: %w", start+1, end, err)
		}
		for _, reason := range sum.Reasons {
			log.Warn().Int("entry", start+reason.Row).Str("reason", reason.Reason).Msg("entry skipped")
		}

		n, err := r.jobs.UpdateProgress(ctx, job.ID, int64(end))
		if err != nil {
			return total, fmt.Errorf("checkpoint progress: %w", err)
		}
		job.Checkpoint(n)
		log.Debug().Int64("entries_processed", n).Int64("total_entries", job.TotalEntries).Msg("checkpoint")
	}
	return total, nil
}

// fail marks job failed with the inner error's message and persists it,
// even when ctx is already canceled. A pending job is started first so the
// lifecycle stays pending -> processing -> failed.
func (r *Runner) fail(ctx context.Context, job *model.Job, log zerolog.Logger, pe *PipelineError) error {
	if ctx.Err() != nil && pe.Err != ErrCanceled {
		log.Debug().Err(pe.Err).Msg("error after cancellation")
		pe.Err = ErrCanceled
	}
	if job.Status == model.JobPending {
		_ = job.Start(r.Now())
	}
	if err := job.Fail(pe.Err.Error()); err != nil {
		log.Error().Err(err).Msg("cannot mark job failed")
		return pe
	}
	if err := r.jobs.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		log.Error().Err(err).Msg("could not record job failure")
	}
	log.Error().Str("phase", pe.Phase).Err(pe.Err).Int64("entries_processed", job.EntriesProcessed).Msg("job failed")
	return pe
}
