// Package server exposes ingestion jobs and traffic statistics over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/source"
	"github.com/gyeh/logstats/internal/store"
)

// APIKeyHeader carries the API key when one is configured.
const APIKeyHeader = "X-API-Key"

// DefaultBodyLimit bounds upload size.
const DefaultBodyLimit = "64M"

// Scheduler accepts jobs for background execution.
type Scheduler interface {
	Submit(ctx context.Context, job *model.Job, in ingest.Input) (*ingest.Handle, error)
	Cancel(id uuid.UUID) bool
}

// Options wires the server to its collaborators.
type Options struct {
	Scheduler Scheduler
	Jobs      store.JobStore
	Sink      store.Sink
	Registry  *source.Registry
	Sources   []model.SourceConfig

	// APIKey, when set, is required on every /api request.
	APIKey    string
	BodyLimit string
	Log       zerolog.Logger
	Now       func() time.Time
}

// Server holds the echo app and its dependencies.
type Server struct {
	Echo *echo.Echo
	opts Options
	log  zerolog.Logger
}

// New builds the echo app and registers routes.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = DefaultBodyLimit
	}
	if opts.Registry == nil {
		opts.Registry = source.NewRegistry()
	}
	s := &Server{opts: opts, log: opts.Log.With().Str("component", "server").Logger()}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover(), s.requestLogger(), middleware.BodyLimit(opts.BodyLimit))

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	if opts.APIKey != "" {
		api.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + APIKeyHeader,
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(opts.APIKey)) == 1, nil
			},
			ErrorHandler: func(err error, c echo.Context) error {
				return fail(c, http.StatusUnauthorized, "invalid or missing API key", err.Error())
			},
		}))
	}

	api.POST("/jobs", s.uploadJob)
	api.GET("/jobs", s.listJobs)
	api.GET("/jobs/:id", s.getJob)
	api.DELETE("/jobs/:id", s.cancelJob)
	api.GET("/jobs/:id/summary", s.jobSummary)
	api.GET("/jobs/:id/entries", s.jobEntries)
	api.POST("/imports/:source", s.importSource)
	api.GET("/stats/traffic", s.trafficStats)
	api.GET("/stats/geo", s.geoStats)
	api.GET("/stats/conversions", s.conversionStats)

	s.Echo = e
	return s
}

// Start serves on addr until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = s.log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return ok(c, map[string]string{"status": "ok"})
}
