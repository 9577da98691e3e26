package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/logstats/internal/model"
)

var base = time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC)

func newRecord(offset time.Duration, ip, resource string) model.LogRecord {
	r := model.DefaultRecord(base.Add(offset))
	r.IPAddress = ip
	r.Resource = resource
	r.Country = model.StrPtr("Canada")
	r.PageCategory = model.StrPtr("home")
	return r
}

// testJobStore exercises the JobStore contract shared by every backend.
func testJobStore(t *testing.T, s JobStore) {
	ctx := context.Background()

	job := model.NewJob("access.log", model.SourceUpload, base)
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, job); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate CreateJob err = %v, want ErrExists", err)
	}

	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != model.JobPending || got.Name != "access.log" || !got.CreatedAt.Equal(base) {
		t.Errorf("unexpected job: %+v", got)
	}

	// Progress only moves while processing.
	if n, err := s.UpdateProgress(ctx, job.ID, 5); err != nil || n != 0 {
		t.Errorf("UpdateProgress on pending = %d, %v", n, err)
	}

	if err := job.Start(base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	job.TotalEntries = 30
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	for _, step := range []struct{ in, want int64 }{{10, 10}, {20, 20}, {15, 20}, {30, 30}} {
		n, err := s.UpdateProgress(ctx, job.ID, step.in)
		if err != nil {
			t.Fatalf("UpdateProgress(%d): %v", step.in, err)
		}
		if n != step.want {
			t.Errorf("UpdateProgress(%d) = %d, want %d", step.in, n, step.want)
		}
	}

	// A stale in-memory copy must not roll progress back.
	job.EntriesProcessed = 10
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetJob(ctx, job.ID)
	if got.EntriesProcessed != 30 {
		t.Errorf("entries_processed = %d after stale save, want 30", got.EntriesProcessed)
	}

	if err := job.Complete(base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetJob(ctx, job.ID)
	if got.Status != model.JobCompleted || got.ProcessedAt == nil || got.StartedAt == nil || got.Progress() != 100 {
		t.Errorf("unexpected completed job: %+v", got)
	}

	older := model.NewJob("older.csv", model.SourceFile, base.Add(-time.Hour))
	if err := s.CreateJob(ctx, older); err != nil {
		t.Fatal(err)
	}
	jobs, err := s.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != job.ID || jobs[1].ID != older.ID {
		t.Errorf("ListJobs order wrong: %v", jobs)
	}
	if jobs, _ := s.ListJobs(ctx, 1); len(jobs) != 1 {
		t.Errorf("ListJobs(1) returned %d jobs", len(jobs))
	}

	missing := uuid.New()
	if _, err := s.GetJob(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(missing) err = %v", err)
	}
	if err := s.SaveJob(ctx, &model.Job{ID: missing, Status: model.JobPending}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveJob(missing) err = %v", err)
	}
	if _, err := s.UpdateProgress(ctx, missing, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProgress(missing) err = %v", err)
	}
}

// testSink exercises the Sink contract shared by every backend.
func testSink(t *testing.T, s Sink) {
	ctx := context.Background()
	jobA, jobB := uuid.New(), uuid.New()

	batch := []model.LogRecord{
		newRecord(0, "10.0.0.1", "/index.html"),
		newRecord(time.Hour, "not-an-ip", "/about.html"),
		newRecord(2*time.Hour, "2001:db8::1", "/contact.php"),
	}
	sum, err := s.Append(ctx, jobA, batch)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if sum.Attempted != 3 || sum.Persisted != 2 || sum.Skipped != 1 || sum.Reasons[0].Row != 2 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	if _, err := s.Append(ctx, jobB, []model.LogRecord{newRecord(24*time.Hour, "10.0.0.9", "/js/app.js")}); err != nil {
		t.Fatal(err)
	}

	if n, _ := s.Count(ctx, Filter{}); n != 3 {
		t.Errorf("Count(all) = %d", n)
	}
	if n, _ := s.Count(ctx, Filter{JobID: jobA}); n != 2 {
		t.Errorf("Count(jobA) = %d", n)
	}
	if n, _ := s.Count(ctx, Filter{Since: base.Add(time.Hour), Until: base.Add(24 * time.Hour)}); n != 1 {
		t.Errorf("Count(window) = %d", n)
	}

	recs, err := s.List(ctx, Filter{JobID: jobA})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].IPAddress != "10.0.0.1" || recs[1].IPAddress != "2001:db8::1" {
		t.Fatalf("List(jobA) = %+v", recs)
	}
	if recs[0].CountryOr("") != "Canada" || recs[0].CategoryOr("") != "home" || !recs[0].Timestamp.Equal(base) {
		t.Errorf("record did not round-trip: %+v", recs[0].Flat())
	}
	if recs, _ := s.List(ctx, Filter{Limit: 1}); len(recs) != 1 {
		t.Errorf("List(limit 1) returned %d", len(recs))
	}

	if err := s.DeleteJob(ctx, jobA); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if n, _ := s.Count(ctx, Filter{}); n != 1 {
		t.Errorf("Count after delete = %d", n)
	}
}
