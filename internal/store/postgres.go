package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/db"
	"github.com/gyeh/logstats/internal/model"
	embedsql "github.com/gyeh/logstats/internal/sql"
)

const pgUniqueViolation = "23505"

// PostgresSink appends records to access_log_entries. A batch goes in with
// one COPY; if COPY rejects it, entries are inserted one by one so a single
// bad entry costs only itself.
type PostgresSink struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresSink(pool *pgxpool.Pool, log zerolog.Logger) *PostgresSink {
	return &PostgresSink{pool: pool, log: log.With().Str("component", "postgres_sink").Logger()}
}

func (s *PostgresSink) Append(ctx context.Context, jobID uuid.UUID, records []model.LogRecord) (model.PersistSummary, error) {
	sum := model.PersistSummary{Attempted: len(records)}
	if len(records) == 0 {
		return sum, nil
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"access_log_entries"},
		db.EntryColumns,
		db.NewRecordSource(jobID, records),
	)
	if err == nil {
		sum.Persisted = int(n)
		return sum, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return sum, ctxErr
	}
	s.log.Debug().Err(err).Str("job_id", jobID.String()).Int("batch", len(records)).
		Msg("batch copy rejected, inserting entries individually")

	for i := range records {
		r := &records[i]
		_, err := s.pool.Exec(ctx, embedsql.InsertEntry,
			jobID, r.Timestamp, r.IPAddress, r.HTTPMethod, r.Resource, r.StatusCode, r.Country, r.PageCategory)
		if err != nil {
			reason, fatal := s.entryFailure(ctx, err)
			if fatal != nil {
				return sum, fmt.Errorf("insert entry %d: %w", i+1, fatal)
			}
			sum.Skip(i+1, reason)
			s.log.Warn().Str("job_id", jobID.String()).Int("entry", i+1).Str("reason", reason).
				Msg("entry not persisted")
			continue
		}
		sum.Persisted++
	}
	return sum, nil
}

// entryFailure classifies a failed single-entry insert. Server-side
// rejections and client-side encoding errors (such as a value out of range
// for its column) cost only the entry. A canceled context or an unreachable
// database is fatal.
func (s *PostgresSink) entryFailure(ctx context.Context, err error) (reason string, fatal error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if pingErr := s.pool.Ping(ctx); pingErr != nil {
		return "", err
	}
	return err.Error(), nil
}

func (s *PostgresSink) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, embedsql.DeleteJobEntries, jobID); err != nil {
		return fmt.Errorf("delete entries of job %s: %w", jobID, err)
	}
	return nil
}

func (s *PostgresSink) Count(ctx context.Context, f Filter) (int, error) {
	jobID, since, until := filterParams(f)
	var n int64
	if err := s.pool.QueryRow(ctx, embedsql.CountEntries, jobID, since, until).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return int(n), nil
}

func (s *PostgresSink) List(ctx context.Context, f Filter) ([]model.LogRecord, error) {
	jobID, since, until := filterParams(f)
	var limit *int64
	if f.Limit > 0 {
		l := int64(f.Limit)
		limit = &l
	}

	rows, err := s.pool.Query(ctx, embedsql.ListEntries, jobID, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []model.LogRecord
	for rows.Next() {
		var r model.LogRecord
		if err := rows.Scan(&r.Timestamp, &r.IPAddress, &r.HTTPMethod, &r.Resource, &r.StatusCode, &r.Country, &r.PageCategory); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// filterParams turns unset filter fields into NULL query parameters.
func filterParams(f Filter) (jobID *uuid.UUID, since, until *time.Time) {
	if f.JobID != uuid.Nil {
		jobID = &f.JobID
	}
	if !f.Since.IsZero() {
		since = &f.Since
	}
	if !f.Until.IsZero() {
		until = &f.Until
	}
	return jobID, since, until
}

// PostgresJobStore keeps job state in ingest_jobs.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(pool *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{pool: pool}
}

func (s *PostgresJobStore) CreateJob(ctx context.Context, j *model.Job) error {
	_, err := s.pool.Exec(ctx, embedsql.InsertJob,
		j.ID, j.Name, j.Source, j.InputSHA256, string(j.Status),
		j.TotalEntries, j.EntriesProcessed, j.SkippedRows, j.SkippedEntries,
		j.ErrorMessage, j.CreatedAt, j.StartedAt, j.ProcessedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("job %s: %w", j.ID, ErrExists)
		}
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, embedsql.SelectJob, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

func (s *PostgresJobStore) SaveJob(ctx context.Context, j *model.Job) error {
	tag, err := s.pool.Exec(ctx, embedsql.SaveJob,
		j.ID, j.Name, j.Source, j.InputSHA256, string(j.Status),
		j.TotalEntries, j.EntriesProcessed, j.SkippedRows, j.SkippedEntries,
		j.ErrorMessage, j.StartedAt, j.ProcessedAt)
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", j.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, processed int64) (int64, error) {
	var stored int64
	err := s.pool.QueryRow(ctx, embedsql.UpdateProgress, id, processed).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		// Not processing (or missing): report what is stored.
		j, gerr := s.GetJob(ctx, id)
		if gerr != nil {
			return 0, gerr
		}
		return j.EntriesProcessed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("update progress of job %s: %w", id, err)
	}
	return stored, nil
}

func (s *PostgresJobStore) ListJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}
	rows, err := s.pool.Query(ctx, embedsql.ListJobs, lim)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
	)
	err := row.Scan(&j.ID, &j.Name, &j.Source, &j.InputSHA256, &status,
		&j.TotalEntries, &j.EntriesProcessed, &j.SkippedRows, &j.SkippedEntries,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.ProcessedAt)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}
