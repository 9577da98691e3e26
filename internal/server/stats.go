package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gyeh/logstats/internal/aggregate"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/store"
)

// statsWindow builds the record filter of a stats request: days counts back
// from now (0 or absent means all time) and job narrows to one job.
func (s *Server) statsWindow(c echo.Context) (store.Filter, error) {
	var f store.Filter
	days, err := intParam(c, "days", 0)
	if err != nil {
		return f, err
	}
	if days > 0 {
		f.Since = s.opts.Now().Add(-time.Duration(days) * 24 * time.Hour)
	}
	if raw := c.QueryParam("job"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, err
		}
		f.JobID = id
	}
	return f, nil
}

// windowRecords lists the records of a stats request. When valid is false
// the error response has been written and err is its result.
func (s *Server) windowRecords(c echo.Context) ([]model.LogRecord, bool, error) {
	f, err := s.statsWindow(c)
	if err != nil {
		return nil, false, badRequest(c, "invalid stats filter", err.Error())
	}
	records, err := s.opts.Sink.List(c.Request().Context(), f)
	if err != nil {
		return nil, false, internalError(c, "list entries", err)
	}
	return records, true, nil
}

// GET /api/stats/traffic
func (s *Server) trafficStats(c echo.Context) error {
	records, valid, err := s.windowRecords(c)
	if !valid {
		return err
	}
	return ok(c, aggregate.Traffic(records))
}

// GET /api/stats/geo
func (s *Server) geoStats(c echo.Context) error {
	records, valid, err := s.windowRecords(c)
	if !valid {
		return err
	}
	return ok(c, aggregate.Geography(records))
}

// GET /api/stats/conversions
func (s *Server) conversionStats(c echo.Context) error {
	records, valid, err := s.windowRecords(c)
	if !valid {
		return err
	}
	return ok(c, aggregate.Conversions(records))
}
