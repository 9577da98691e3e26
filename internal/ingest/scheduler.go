package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/logstats/internal/model"
)

// Handle tracks one submitted job.
type Handle struct {
	job    *model.Job
	in     Input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	summary *model.IngestSummary
	err     error
}

// ID returns the job ID.
func (h *Handle) ID() uuid.UUID { return h.job.ID }

// Cancel asks the job to stop. A job canceled before it starts, or between
// persistence batches, ends failed with ErrCanceled.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the job error once Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Summary returns the run summary once Done is closed.
func (h *Handle) Summary() *model.IngestSummary {
	select {
	case <-h.done:
		return h.summary
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scheduler runs jobs on a bounded pool of workers fed by a bounded queue.
type Scheduler struct {
	runner *Runner
	log    zerolog.Logger

	base  context.Context
	stop  context.CancelFunc
	queue chan *Handle
	group *errgroup.Group

	mu      sync.Mutex
	closed  bool
	handles map[uuid.UUID]*Handle
}

// NewScheduler starts workers goroutines that take jobs from a queue of
// queueSize slots.
func NewScheduler(runner *Runner, workers, queueSize int, log zerolog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	base, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:  runner,
		log:     log.With().Str("component", "scheduler").Logger(),
		base:    base,
		stop:    stop,
		queue:   make(chan *Handle, queueSize),
		group:   &errgroup.Group{},
		handles: map[uuid.UUID]*Handle{},
	}
	for i := 0; i < workers; i++ {
		s.group.Go(s.work)
	}
	s.log.Info().Int("workers", workers).Int("queue_size", queueSize).Msg("scheduler started")
	return s
}

// Submit records job as pending and queues it. It returns immediately.
func (s *Scheduler) Submit(ctx context.Context, job *model.Job, in Input) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	// Only Submit sends, under mu, so a free slot stays free until the send.
	if len(s.queue) == cap(s.queue) {
		return nil, ErrQueueFull
	}
	if err := s.runner.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	jctx, cancel := context.WithCancel(s.base)
	h := &Handle{job: job, in: in, ctx: jctx, cancel: cancel, done: make(chan struct{})}
	s.handles[job.ID] = h

	s.queue <- h

	s.log.Info().Str("job_id", job.ID.String()).Str("input", in.Label()).Msg("job queued")
	return h, nil
}

// Handle returns the handle of a queued or running job.
func (s *Scheduler) Handle(id uuid.UUID) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

// Cancel cancels a queued or running job. It reports whether the job was
// found.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	h, ok := s.Handle(id)
	if ok {
		h.Cancel()
	}
	return ok
}

// Close stops accepting jobs and waits for queued and running jobs. If ctx
// ends first, the remaining jobs are canceled and Close still waits for
// the workers to record their failure.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		s.stop()
		return err
	case <-ctx.Done():
		s.log.Warn().Msg("shutdown deadline reached, canceling jobs")
		s.stop()
		<-done
		return ctx.Err()
	}
}

func (s *Scheduler) work() error {
	for h := range s.queue {
		s.run(h)
	}
	return nil
}

func (s *Scheduler) run(h *Handle) {
	defer func() {
		h.cancel()
		s.mu.Lock()
		delete(s.handles, h.job.ID)
		s.mu.Unlock()
		close(h.done)
	}()
	log := s.log.With().Str("job_id", h.job.ID.String()).Logger()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("job panicked")
			h.err = s.runner.fail(h.ctx, h.job, log,
				&PipelineError{Phase: PhasePersist, Err: fmt.Errorf("internal error: %v", p)})
		}
	}()

	if h.ctx.Err() != nil {
		h.err = s.runner.fail(h.ctx, h.job, log, &PipelineError{Phase: PhaseRead, Err: ErrCanceled})
		return
	}
	h.summary, h.err = s.runner.Run(h.ctx, h.job, h.in)
}
