package ingest_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/enrich"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/logparse"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/store"
)

var fixedNow = time.Date(2024, 6, 14, 17, 45, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type harness struct {
	jobs   *recordingJobStore
	sink   store.Sink
	runner *ingest.Runner
}

func newHarness(t *testing.T, sink store.Sink) *harness {
	t.Helper()
	if sink == nil {
		sink = store.NewMemorySink()
	}
	jobs := &recordingJobStore{MemoryJobStore: store.NewMemoryJobStore()}
	detector := logparse.NewDetector(logparse.NewMapper(zerolog.Nop(), clock, nil), zerolog.Nop())
	r := ingest.NewRunner(jobs, sink, detector, enrich.New(enrich.NewRandomResolver(1)), zerolog.Nop())
	r.Now = clock
	r.FinalizeBackoff = time.Millisecond
	return &harness{jobs: jobs, sink: sink, runner: r}
}

// run creates a pending job for in and runs it synchronously.
func (h *harness) run(t *testing.T, ctx context.Context, in ingest.Input) (*model.Job, *model.IngestSummary, error) {
	t.Helper()
	job := model.NewJob(in.Label(), model.SourceUpload, fixedNow)
	if err := h.jobs.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	sum, err := h.runner.Run(ctx, job, in)
	stored, gerr := h.jobs.GetJob(context.Background(), job.ID)
	if gerr != nil {
		t.Fatal(gerr)
	}
	return stored, sum, err
}

// iisLines returns n matching IIS lines.
func iisLines(n int) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "08:%02d:%02d 10.0.%d.%d GET /index.html 200\n", (i/60)%60, i%60, i/250, i%250+1)
	}
	return []byte(b.String())
}

// recordingJobStore remembers every progress value readers could observe.
type recordingJobStore struct {
	*store.MemoryJobStore
	mu       sync.Mutex
	progress []int64
	statuses []model.JobStatus

	// reject, when set, fails SaveJob for the jobs it returns an error for.
	reject func(j *model.Job) error
}

func (s *recordingJobStore) SaveJob(ctx context.Context, j *model.Job) error {
	if s.reject != nil {
		if err := s.reject(j); err != nil {
			return err
		}
	}
	if err := s.MemoryJobStore.SaveJob(ctx, j); err != nil {
		return err
	}
	s.observe(ctx, j.ID)
	return nil
}

func (s *recordingJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, n int64) (int64, error) {
	got, err := s.MemoryJobStore.UpdateProgress(ctx, id, n)
	if err == nil {
		s.observe(ctx, id)
	}
	return got, err
}

func (s *recordingJobStore) observe(ctx context.Context, id uuid.UUID) {
	j, err := s.MemoryJobStore.GetJob(ctx, id)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, j.EntriesProcessed)
	s.statuses = append(s.statuses, j.Status)
}

// hookSink calls before on every Append before delegating.
type hookSink struct {
	store.Sink
	before func(ctx context.Context, call int) error
	mu     sync.Mutex
	calls  int
}

func (s *hookSink) Append(ctx context.Context, jobID uuid.UUID, recs []model.LogRecord) (model.PersistSummary, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.before != nil {
		if err := s.before(ctx, call); err != nil {
			return model.PersistSummary{Attempted: len(recs)}, err
		}
	}
	return s.Sink.Append(ctx, jobID, recs)
}

type fakeSource struct {
	name string
	rows []map[string]any
	err  error
	pnc  bool
}

func (s fakeSource) Name() string { return s.name }
func (s fakeSource) Type() string { return "fake" }
func (s fakeSource) Rows(context.Context) ([]map[string]any, []string, error) {
	if s.pnc {
		panic("source exploded")
	}
	return s.rows, nil, s.err
}
func (s fakeSource) Ping(context.Context) error { return nil }
