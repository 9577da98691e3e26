package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/store"
)

// gate blocks the first Append until released or the job context ends.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) sink() *hookSink {
	return &hookSink{Sink: store.NewMemorySink(), before: func(ctx context.Context, call int) error {
		first := false
		g.once.Do(func() { first = true })
		if !first {
			return nil
		}
		close(g.entered)
		select {
		case <-g.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestScheduler_RunsJobs(t *testing.T) {
	h := newHarness(t, nil)
	s := ingest.NewScheduler(h.runner, 2, 4, zerolog.Nop())
	ctx := waitCtx(t)

	var handles []*ingest.Handle
	for i := 0; i < 4; i++ {
		job := model.NewJob("a.log", model.SourceUpload, fixedNow)
		hd, err := s.Submit(ctx, job, ingest.RawInput{Name: "a.log", Data: iisLines(12)})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		handles = append(handles, hd)
	}
	for _, hd := range handles {
		if err := hd.Wait(ctx); err != nil {
			t.Fatalf("job %s: %v", hd.ID(), err)
		}
		if hd.Summary() == nil || hd.Summary().Persist.Persisted != 12 {
			t.Errorf("summary = %+v", hd.Summary())
		}
		job, err := h.jobs.GetJob(ctx, hd.ID())
		if err != nil || job.Status != model.JobCompleted || job.EntriesProcessed != 12 {
			t.Errorf("job = %+v, err = %v", job, err)
		}
		if _, ok := s.Handle(hd.ID()); ok {
			t.Errorf("handle %s still tracked after completion", hd.ID())
		}
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestScheduler_QueueFullAndCancelQueued(t *testing.T) {
	g := newGate()
	h := newHarness(t, g.sink())
	s := ingest.NewScheduler(h.runner, 1, 1, zerolog.Nop())
	ctx := waitCtx(t)

	running, err := s.Submit(ctx, model.NewJob("one.log", model.SourceUpload, fixedNow), ingest.RawInput{Name: "one.log", Data: iisLines(3)})
	if err != nil {
		t.Fatal(err)
	}
	<-g.entered

	queued, err := s.Submit(ctx, model.NewJob("two.log", model.SourceUpload, fixedNow), ingest.RawInput{Name: "two.log", Data: iisLines(3)})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	rejected := model.NewJob("three.log", model.SourceUpload, fixedNow)
	if _, err := s.Submit(ctx, rejected, ingest.RawInput{Name: "three.log"}); !errors.Is(err, ingest.ErrQueueFull) {
		t.Fatalf("third Submit err = %v, want ErrQueueFull", err)
	}
	if _, err := h.jobs.GetJob(ctx, rejected.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected job was recorded: %v", err)
	}

	if !s.Cancel(queued.ID()) {
		t.Fatal("Cancel did not find the queued job")
	}
	close(g.release)

	if err := running.Wait(ctx); err != nil {
		t.Fatalf("running job: %v", err)
	}
	if err := queued.Wait(ctx); !errors.Is(err, ingest.ErrCanceled) {
		t.Fatalf("queued job err = %v, want ErrCanceled", err)
	}
	job, _ := h.jobs.GetJob(ctx, queued.ID())
	if job.Status != model.JobFailed || job.ErrorMessage != "ingestion canceled" || job.StartedAt == nil {
		t.Errorf("canceled job = %+v", job)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestScheduler_CloseRejectsSubmit(t *testing.T) {
	h := newHarness(t, nil)
	s := ingest.NewScheduler(h.runner, 1, 1, zerolog.Nop())
	if err := s.Close(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	_, err := s.Submit(context.Background(), model.NewJob("a.log", model.SourceUpload, fixedNow), ingest.RawInput{Name: "a.log"})
	if !errors.Is(err, ingest.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if s.Cancel(model.NewJob("x", "", fixedNow).ID) {
		t.Error("Cancel found an unknown job")
	}
}

func TestScheduler_CloseDeadlineCancelsRunning(t *testing.T) {
	g := newGate()
	h := newHarness(t, g.sink())
	s := ingest.NewScheduler(h.runner, 1, 1, zerolog.Nop())
	ctx := waitCtx(t)

	hd, err := s.Submit(ctx, model.NewJob("slow.log", model.SourceUpload, fixedNow), ingest.RawInput{Name: "slow.log", Data: iisLines(3)})
	if err != nil {
		t.Fatal(err)
	}
	<-g.entered

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Close(expired); !errors.Is(err, context.Canceled) {
		t.Errorf("Close err = %v", err)
	}
	if err := hd.Wait(ctx); !errors.Is(err, ingest.ErrCanceled) {
		t.Fatalf("job err = %v, want ErrCanceled", err)
	}
	job, _ := h.jobs.GetJob(ctx, hd.ID())
	if job.Status != model.JobFailed || job.ErrorMessage != "ingestion canceled" {
		t.Errorf("job = %+v", job)
	}
}

func TestScheduler_RecoversPanics(t *testing.T) {
	h := newHarness(t, nil)
	s := ingest.NewScheduler(h.runner, 1, 1, zerolog.Nop())
	ctx := waitCtx(t)

	hd, err := s.Submit(ctx, model.NewJob("boom", model.SourceUpload, fixedNow), ingest.SourceInput{Source: fakeSource{name: "boom", pnc: true}})
	if err != nil {
		t.Fatal(err)
	}
	if err := hd.Wait(ctx); err == nil {
		t.Fatal("expected an error from a panicking job")
	}
	job, _ := h.jobs.GetJob(ctx, hd.ID())
	if job.Status != model.JobFailed || job.ErrorMessage != "internal error: source exploded" {
		t.Errorf("job = %+v", job)
	}

	// The worker survives and keeps serving.
	next, err := s.Submit(ctx, model.NewJob("a.log", model.SourceUpload, fixedNow), ingest.RawInput{Name: "a.log", Data: iisLines(2)})
	if err != nil {
		t.Fatal(err)
	}
	if err := next.Wait(ctx); err != nil {
		t.Errorf("job after panic: %v", err)
	}
	_ = s.Close(ctx)
}
