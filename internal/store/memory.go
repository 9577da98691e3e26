package store

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gyeh/logstats/internal/model"
)

type storedRecord struct {
	jobID uuid.UUID
	rec   model.LogRecord
}

// MemorySink keeps records in process memory. Records whose address would
// not fit an inet column are rejected so it behaves like PostgresSink.
type MemorySink struct {
	mu      sync.RWMutex
	records []storedRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(ctx context.Context, jobID uuid.UUID, records []model.LogRecord) (model.PersistSummary, error) {
	sum := model.PersistSummary{Attempted: len(records)}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		if _, err := netip.ParseAddr(records[i].IPAddress); err != nil {
			sum.Skip(i+1, fmt.Sprintf("invalid ip address %q", records[i].IPAddress))
			continue
		}
		s.records = append(s.records, storedRecord{jobID: jobID, rec: records[i]})
		sum.Persisted++
	}
	return sum, nil
}

func (s *MemorySink) DeleteJob(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		if r.jobID != jobID {
			kept = append(kept, r)
		}
	}
	clear(s.records[len(kept):])
	s.records = kept
	return nil
}

func (s *MemorySink) Count(_ context.Context, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.records {
		if f.Match(s.records[i].jobID, &s.records[i].rec) {
			n++
		}
	}
	return n, nil
}

// List returns matching records ordered by timestamp, insertion order
// breaking ties.
func (s *MemorySink) List(_ context.Context, f Filter) ([]model.LogRecord, error) {
	s.mu.RLock()
	var out []model.LogRecord
	for i := range s.records {
		if f.Match(s.records[i].jobID, &s.records[i].rec) {
			out = append(out, copyRecord(s.records[i].rec))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func copyRecord(r model.LogRecord) model.LogRecord {
	if r.Country != nil {
		r.Country = model.StrPtr(*r.Country)
	}
	if r.PageCategory != nil {
		r.PageCategory = model.StrPtr(*r.PageCategory)
	}
	return r
}

// MemoryJobStore keeps job state in process memory and hands out copies.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*model.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[uuid.UUID]*model.Job{}}
}

func (s *MemoryJobStore) CreateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrExists)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return j.Clone(), nil
}

func (s *MemoryJobStore) SaveJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	next := job.Clone()
	next.CreatedAt = cur.CreatedAt
	next.Checkpoint(cur.EntriesProcessed)
	s.jobs[job.ID] = next
	return nil
}

func (s *MemoryJobStore) UpdateProgress(_ context.Context, id uuid.UUID, processed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return 0, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if j.Status == model.JobProcessing {
		j.Checkpoint(processed)
	}
	return j.EntriesProcessed, nil
}

func (s *MemoryJobStore) ListJobs(_ context.Context, limit int) ([]*model.Job, error) {
	s.mu.RLock()
	out := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	s.mu.RUnlock()

	sortJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortJobs orders jobs newest first, by ID on equal creation times.
func sortJobs(jobs []*model.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
