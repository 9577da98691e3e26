package ingest_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gyeh/logstats/internal/enrich"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/store"
)

func TestRun_ScenarioLines(t *testing.T) {
	h := newHarness(t, nil)
	job, sum, err := h.run(t, context.Background(), ingest.RawInput{Name: "u_ex240614.log", Data: []byte("08:15:23 10.0.0.5 GET /index.html 200\n")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != model.JobCompleted || job.TotalEntries != 1 || job.EntriesProcessed != 1 || job.ProcessedAt == nil {
		t.Errorf("unexpected job: %+v", job)
	}
	if sum.InputSHA256 == "" || sum.Persist.Persisted != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	recs, _ := h.sink.List(context.Background(), store.Filter{JobID: job.ID})
	if len(recs) != 1 {
		t.Fatalf("stored %d records", len(recs))
	}
	r := recs[0]
	if r.Timestamp.Hour() != 8 || r.Timestamp.Minute() != 15 || r.Timestamp.Second() != 23 || r.Timestamp.Day() != 14 {
		t.Errorf("timestamp = %v", r.Timestamp)
	}
	if r.CategoryOr("") != "home" || !slices.Contains(enrich.Countries, r.CountryOr("")) {
		t.Errorf("enrichment = %+v", r.Flat())
	}
}

func TestRun_ScenarioCSV(t *testing.T) {
	h := newHarness(t, nil)
	job, _, err := h.run(t, context.Background(), ingest.RawInput{
		Name: "export.txt",
		Data: []byte("time,client,verb,path,code\n09:00:00,1.2.3.4,GET,/contact.php,200"),
	})
	if err != nil {
		t.Fatal(err)
	}
	recs, _ := h.sink.List(context.Background(), store.Filter{JobID: job.ID})
	if len(recs) != 1 || recs[0].IPAddress != "1.2.3.4" || recs[0].Resource != "/contact.php" || recs[0].CategoryOr("") != "contact" {
		t.Errorf("records = %+v", recs)
	}
}

func TestRun_EmptyInputFails(t *testing.T) {
	h := newHarness(t, nil)
	job, _, err := h.run(t, context.Background(), ingest.RawInput{Name: "empty.log"})
	if !errors.Is(err, ingest.ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries", err)
	}
	var pe *ingest.PipelineError
	if !errors.As(err, &pe) || pe.Phase != ingest.PhaseParse {
		t.Errorf("err = %#v", err)
	}
	if job.Status != model.JobFailed || job.ErrorMessage != "no valid log entries found in empty.log" {
		t.Errorf("job = %+v", job)
	}
}

func TestRun_BinaryInputFails(t *testing.T) {
	h := newHarness(t, nil)
	job, _, err := h.run(t, context.Background(), ingest.RawInput{Name: "a.zip", Data: []byte{'P', 'K', 0, 0}})
	if !errors.Is(err, ingest.ErrNoEntries) || job.Status != model.JobFailed {
		t.Errorf("err = %v, job = %+v", err, job)
	}
}

func TestRun_ProgressMonotonic(t *testing.T) {
	h := newHarness(t, nil)
	job, _, err := h.run(t, context.Background(), ingest.RawInput{Name: "a.log", Data: iisLines(25)})
	if err != nil {
		t.Fatal(err)
	}
	if job.EntriesProcessed != 25 || job.TotalEntries != 25 {
		t.Errorf("job = %+v", job)
	}

	for i := 1; i < len(h.jobs.progress); i++ {
		if h.jobs.progress[i] < h.jobs.progress[i-1] {
			t.Fatalf("progress went backwards: %v", h.jobs.progress)
		}
	}
	for _, want := range []int64{10, 20, 25} {
		if !slices.Contains(h.jobs.progress, want) {
			t.Errorf("checkpoint %d not observed: %v", want, h.jobs.progress)
		}
	}
	if !slices.Equal(compact(h.jobs.statuses), []model.JobStatus{model.JobProcessing, model.JobCompleted}) {
		t.Errorf("status sequence = %v", h.jobs.statuses)
	}
}

func compact(s []model.JobStatus) []model.JobStatus {
	return slices.Compact(slices.Clone(s))
}

func TestRun_SkipsUnpersistableEntries(t *testing.T) {
	h := newHarness(t, nil)
	data := "ip,path,status\n10.0.0.1,/a,200\nbogus,/b,200\n10.0.0.3,/c,404\n"
	job, sum, err := h.run(t, context.Background(), ingest.RawInput{Name: "a.csv", Data: []byte(data)})
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobCompleted || job.SkippedEntries != 1 || job.EntriesProcessed != 3 {
		t.Errorf("job = %+v", job)
	}
	if sum.Persist.Persisted != 2 || sum.Persist.Reasons[0].Row != 2 {
		t.Errorf("persist summary = %+v", sum.Persist)
	}
}

func TestRun_RerunReplacesEntries(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	job := model.NewJob("a.log", model.SourceFile, fixedNow)
	if err := h.jobs.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	in := ingest.RawInput{Name: "a.log", Data: iisLines(3)}
	if _, err := h.runner.Run(ctx, job, in); err != nil {
		t.Fatal(err)
	}

	again := model.NewJob("a.log", model.SourceFile, fixedNow)
	again.ID = job.ID
	if err := h.jobs.MemoryJobStore.SaveJob(ctx, again); err != nil {
		t.Fatal(err)
	}
	if _, err := h.runner.Run(ctx, again, in); err != nil {
		t.Fatal(err)
	}
	if n, _ := h.sink.Count(ctx, store.Filter{JobID: job.ID}); n != 3 {
		t.Errorf("stored %d entries after re-run, want 3", n)
	}
}

func TestRun_CancelBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &hookSink{Sink: store.NewMemorySink(), before: func(_ context.Context, call int) error {
		if call == 3 {
			cancel()
		}
		return nil
	}}
	h := newHarness(t, sink)
	job, _, err := h.run(t, ctx, ingest.RawInput{Name: "a.log", Data: iisLines(35)})
	if !errors.Is(err, ingest.ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if job.Status != model.JobFailed || job.ErrorMessage != "ingestion canceled" {
		t.Errorf("job = %+v", job)
	}
	if job.EntriesProcessed != 20 || job.TotalEntries != 35 {
		t.Errorf("progress = %d/%d, want 20/35", job.EntriesProcessed, job.TotalEntries)
	}
}

func TestRun_SinkFailure(t *testing.T) {
	sink := &hookSink{Sink: store.NewMemorySink(), before: func(_ context.Context, call int) error {
		if call == 2 {
			return errors.New("connection refused")
		}
		return nil
	}}
	h := newHarness(t, sink)
	job, _, err := h.run(t, context.Background(), ingest.RawInput{Name: "a.log", Data: iisLines(30)})
	var pe *ingest.PipelineError
	if !errors.As(err, &pe) || pe.Phase != ingest.PhasePersist {
		t.Fatalf("err = %v", err)
	}
	if job.Status != model.JobFailed || job.EntriesProcessed != 10 {
		t.Errorf("job = %+v", job)
	}
	if job.ErrorMessage != "append entries 11-20: connection refused" {
		t.Errorf("error_message = %q", job.ErrorMessage)
	}
}

func TestRun_FinalSaveFailureMarksFailed(t *testing.T) {
	h := newHarness(t, nil)
	h.jobs.reject = func(j *model.Job) error {
		if j.Status == model.JobCompleted {
			return errors.New("transient store error")
		}
		return nil
	}
	job, _, err := h.run(t, context.Background(), ingest.RawInput{Name: "a.log", Data: iisLines(5)})
	var pe *ingest.PipelineError
	if !errors.As(err, &pe) || pe.Phase != ingest.PhaseFinalize {
		t.Fatalf("err = %v", err)
	}
	if job.Status != model.JobFailed || job.EntriesProcessed != 5 || job.TotalEntries != 5 {
		t.Errorf("job = %+v", job)
	}
	if job.ErrorMessage != "save job: transient store error" {
		t.Errorf("error_message = %q", job.ErrorMessage)
	}
}

func TestRun_FinalSaveRetried(t *testing.T) {
	h := newHarness(t, nil)
	failures := 0
	h.jobs.reject = func(j *model.Job) error {
		if j.Status == model.JobCompleted && failures < 2 {
			failures++
			return errors.New("transient store error")
		}
		return nil
	}
	job, _, err := h.run(t, context.Background(), ingest.RawInput{Name: "a.log", Data: iisLines(5)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != model.JobCompleted || job.EntriesProcessed != 5 || failures != 2 {
		t.Errorf("job = %+v after %d failures", job, failures)
	}
}

func TestRun_SourceInput(t *testing.T) {
	h := newHarness(t, nil)
	src := fakeSource{name: "warehouse", rows: []map[string]any{
		{"remote_addr": "10.0.0.1", "request_uri": "/event.php", "sc_status": int32(200)},
		{"remote_addr": "10.0.0.2", "request_uri": "/api/v1", "sc_status": "oops"},
	}}
	job, _, err := h.run(t, context.Background(), ingest.SourceInput{Source: src})
	if err != nil {
		t.Fatal(err)
	}
	if job.TotalEntries != 2 || job.Name != "warehouse" {
		t.Errorf("job = %+v", job)
	}
	recs, _ := h.sink.List(context.Background(), store.Filter{JobID: job.ID})
	cats := []string{recs[0].CategoryOr(""), recs[1].CategoryOr("")}
	slices.Sort(cats)
	if !slices.Equal(cats, []string{"api", "events"}) {
		t.Errorf("categories = %v", cats)
	}
}

func TestRun_SourceError(t *testing.T) {
	h := newHarness(t, nil)
	job, _, err := h.run(t, context.Background(), ingest.SourceInput{Source: fakeSource{name: "api", err: errors.New("timeout")}})
	var pe *ingest.PipelineError
	if !errors.As(err, &pe) || pe.Phase != ingest.PhaseRead {
		t.Fatalf("err = %v", err)
	}
	if job.ErrorMessage != "fetch rows: timeout" {
		t.Errorf("error_message = %q", job.ErrorMessage)
	}
}

func TestRun_RejectsNonPendingJob(t *testing.T) {
	h := newHarness(t, nil)
	job := model.NewJob("a.log", model.SourceFile, fixedNow)
	_ = job.Start(fixedNow)
	_ = job.Fail("earlier")
	if _, err := h.runner.Run(context.Background(), job, ingest.RawInput{Name: "a.log", Data: iisLines(1)}); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("err = %v", err)
	}
}
