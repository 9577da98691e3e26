package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/gyeh/logstats/internal/model"
)

func TestMemoryJobStore(t *testing.T) {
	testJobStore(t, NewMemoryJobStore())
}

func TestMemorySink(t *testing.T) {
	testSink(t, NewMemorySink())
}

func TestMemoryJobStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	job := model.NewJob("a.log", model.SourceFile, base)
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.Name = "mutated"
	got, _ := s.GetJob(ctx, job.ID)
	got.Status = model.JobFailed
	again, _ := s.GetJob(ctx, job.ID)
	if again.Name != "a.log" || again.Status != model.JobPending {
		t.Errorf("store state leaked: %+v", again)
	}
}

func TestMemorySink_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()
	id := uuid.New()
	if _, err := s.Append(ctx, id, []model.LogRecord{newRecord(0, "1.2.3.4", "/")}); err != nil {
		t.Fatal(err)
	}
	recs, _ := s.List(ctx, Filter{JobID: id})
	*recs[0].Country = "Mutated"
	recs, _ = s.List(ctx, Filter{JobID: id})
	if recs[0].CountryOr("") != "Canada" {
		t.Errorf("country = %q", recs[0].CountryOr(""))
	}
}

func TestMemorySink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemorySink().Append(ctx, uuid.New(), []model.LogRecord{newRecord(0, "1.2.3.4", "/")}); err == nil {
		t.Error("expected error for canceled context")
	}
}
