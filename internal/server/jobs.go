package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gyeh/logstats/internal/aggregate"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/source"
	"github.com/gyeh/logstats/internal/store"
)

const (
	defaultJobLimit    = 50
	defaultEntryLimit  = 100
	maxEntryLimit      = 10000
	multipartFileField = "file"
	multipartNameField = "name"
)

// jobView is a job as returned by the API.
type jobView struct {
	*model.Job
	Progress int `json:"progress"`
}

func viewOf(j *model.Job) jobView {
	return jobView{Job: j, Progress: j.Progress()}
}

// uploadJob queues a job for a multipart-uploaded log file (POST /api/jobs).
func (s *Server) uploadJob(c echo.Context) error {
	fh, err := c.FormFile(multipartFileField)
	if err != nil {
		return badRequest(c, "missing upload", "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return internalError(c, "open upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return internalError(c, "read upload", err)
	}

	name := c.FormValue(multipartNameField)
	if name == "" {
		name = fh.Filename
	}
	job := model.NewJob(name, model.SourceUpload, s.opts.Now())
	return s.submit(c, job, ingest.RawInput{Name: fh.Filename, Data: data})
}

// importSource queues a job reading a configured external source
// (POST /api/imports/:source).
func (s *Server) importSource(c echo.Context) error {
	name := c.Param("source")
	cfg, found := source.Find(s.opts.Sources, name)
	if !found {
		return notFound(c, "unknown source", "no source named "+strconv.Quote(name)+" is configured")
	}
	src, err := s.opts.Registry.Open(cfg, s.log)
	if err != nil {
		return badRequest(c, "cannot open source", err.Error())
	}
	job := model.NewJob(src.Name(), src.Type(), s.opts.Now())
	return s.submit(c, job, ingest.SourceInput{Source: src})
}

func (s *Server) submit(c echo.Context, job *model.Job, in ingest.Input) error {
	// The worker owns job once it is queued.
	view := viewOf(job.Clone())
	if _, err := s.opts.Scheduler.Submit(c.Request().Context(), job, in); err != nil {
		if errors.Is(err, ingest.ErrQueueFull) || errors.Is(err, ingest.ErrClosed) {
			return fail(c, http.StatusServiceUnavailable, "ingestion is not accepting jobs", err.Error())
		}
		return internalError(c, "submit job", err)
	}
	s.log.Info().Str("job_id", job.ID.String()).Str("name", job.Name).Str("source", job.Source).Msg("job accepted")
	return accepted(c, view, "job queued")
}

// listJobs returns recent jobs, newest first (GET /api/jobs).
func (s *Server) listJobs(c echo.Context) error {
	limit, err := limitParam(c, defaultJobLimit, 0)
	if err != nil {
		return badRequest(c, "invalid limit", err.Error())
	}
	jobs, err := s.opts.Jobs.ListJobs(c.Request().Context(), limit)
	if err != nil {
		return internalError(c, "list jobs", err)
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, viewOf(j))
	}
	return ok(c, map[string]any{"jobs": views})
}

// getJob reports job status and progress (GET /api/jobs/:id).
func (s *Server) getJob(c echo.Context) error {
	job, err := s.lookupJob(c)
	if err != nil || job == nil {
		return err
	}
	return ok(c, viewOf(job))
}

// cancelJob asks a queued or running job to stop (DELETE /api/jobs/:id).
func (s *Server) cancelJob(c echo.Context) error {
	job, err := s.lookupJob(c)
	if err != nil || job == nil {
		return err
	}
	if job.Status.Terminal() || !s.opts.Scheduler.Cancel(job.ID) {
		return fail(c, http.StatusConflict, "job is not running", "job status is "+string(job.Status))
	}
	return accepted(c, viewOf(job), "cancellation requested")
}

// jobSummary aggregates the entries of a completed job
// (GET /api/jobs/:id/summary).
func (s *Server) jobSummary(c echo.Context) error {
	job, err := s.lookupJob(c)
	if err != nil || job == nil {
		return err
	}
	if job.Status != model.JobCompleted {
		return fail(c, http.StatusConflict, "job is not completed", "job status is "+string(job.Status))
	}
	records, err := s.opts.Sink.List(c.Request().Context(), store.Filter{JobID: job.ID})
	if err != nil {
		return internalError(c, "list entries", err)
	}
	return ok(c, aggregate.Summarize(records))
}

// jobEntries returns stored entries of a job as flat records
// (GET /api/jobs/:id/entries).
func (s *Server) jobEntries(c echo.Context) error {
	job, err := s.lookupJob(c)
	if err != nil || job == nil {
		return err
	}
	limit, err := limitParam(c, defaultEntryLimit, maxEntryLimit)
	if err != nil {
		return badRequest(c, "invalid limit", err.Error())
	}

	ctx := c.Request().Context()
	total, err := s.opts.Sink.Count(ctx, store.Filter{JobID: job.ID})
	if err != nil {
		return internalError(c, "count entries", err)
	}
	records, err := s.opts.Sink.List(ctx, store.Filter{JobID: job.ID, Limit: limit})
	if err != nil {
		return internalError(c, "list entries", err)
	}
	entries := make([]map[string]any, 0, len(records))
	for i := range records {
		entries = append(entries, records[i].Flat())
	}
	return ok(c, map[string]any{"total": total, "count": len(entries), "entries": entries})
}

// lookupJob resolves :id. A nil job with nil error means a response was
// already written.
func (s *Server) lookupJob(c echo.Context) (*model.Job, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, badRequest(c, "invalid job id", err.Error())
	}
	job, err := s.opts.Jobs.GetJob(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(c, "job not found", err.Error())
	}
	if err != nil {
		return nil, internalError(c, "get job", err)
	}
	return job, nil
}

// limitParam reads ?limit. Absent or 0 gives def; a positive ceiling caps it.
func limitParam(c echo.Context, def, ceiling int) (int, error) {
	n, err := intParam(c, "limit", def)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		n = def
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n, nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
