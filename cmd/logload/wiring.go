package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/logstats/internal/config"
	"github.com/gyeh/logstats/internal/db"
	"github.com/gyeh/logstats/internal/enrich"
	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/logparse"
	"github.com/gyeh/logstats/internal/objstore"
	"github.com/gyeh/logstats/internal/store"
)

// app is the set of collaborators shared by the job-running commands.
type app struct {
	jobs   store.JobStore
	sink   store.Sink
	runner *ingest.Runner

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newDetector() *logparse.Detector {
	mapper := logparse.NewMapper(log, nil, cfg.Aliases)
	return logparse.NewDetector(mapper, log)
}

// newEnricher uses the GeoIP database when configured and random countries
// otherwise.
func newEnricher() (*enrich.Enricher, func(), error) {
	if cfg.GeoIPPath == "" {
		return enrich.New(nil), func() {}, nil
	}
	mm, err := enrich.OpenMaxMind(cfg.GeoIPPath, enrich.StaticResolver(enrich.UnknownCountry))
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("path", cfg.GeoIPPath).Msg("geoip database loaded")
	return enrich.New(mm), func() { _ = mm.Close() }, nil
}

// buildApp opens the configured job store and sink. The returned error is
// an exit error.
func buildApp(ctx context.Context) (*app, error) {
	a := &app{}
	fail := func(code int, err error, msg string) (*app, error) {
		log.Error().Err(err).Msg(msg)
		a.Close()
		return nil, exitWith(code, err)
	}

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		if err := cfg.ValidateWithDSN(); err != nil {
			return fail(exitcode.UsageError, err, "config validation failed")
		}
		p, err := db.NewPool(ctx, cfg.DSN)
		if err != nil {
			return fail(exitcode.StoreConnError, err, "database connection failed")
		}
		pool = p
		a.closers = append(a.closers, pool.Close)
	}

	switch cfg.JobStore {
	case config.BackendPostgres:
		a.jobs = store.NewPostgresJobStore(pool)
	case config.BackendRedis:
		rs, err := store.NewRedisJobStore(ctx, cfg.RedisStore())
		if err != nil {
			return fail(exitcode.StoreConnError, err, "redis connection failed")
		}
		a.jobs = rs
		a.closers = append(a.closers, func() { _ = rs.Close() })
	default:
		a.jobs = store.NewMemoryJobStore()
	}

	if cfg.Sink == config.BackendPostgres {
		a.sink = store.NewPostgresSink(pool, log)
	} else {
		a.sink = store.NewMemorySink()
	}

	enricher, closeGeo, err := newEnricher()
	if err != nil {
		return fail(exitcode.UsageError, err, "geoip database could not be opened")
	}
	a.closers = append(a.closers, closeGeo)

	a.runner = ingest.NewRunner(a.jobs, a.sink, newDetector(), enricher, log)
	a.runner.CheckpointEvery = cfg.CheckpointEvery

	log.Debug().Str("job_store", cfg.JobStore).Str("sink", cfg.Sink).Msg("stores ready")
	return a, nil
}

// objectsFor returns an S3 client when location is an s3:// URI.
func objectsFor(ctx context.Context, location string) (ingest.ObjectGetter, error) {
	if !objstore.IsURI(location) {
		return nil, nil
	}
	c, err := objstore.New(ctx, cfg.ObjectStore())
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return c, nil
}
