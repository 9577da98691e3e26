package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/server"
	"github.com/gyeh/logstats/internal/source"
)

const (
	httpShutdownTimeout = 10 * time.Second
	jobShutdownTimeout  = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with background ingestion workers",
	RunE:  runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config listen)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := ingest.NewScheduler(a.runner, cfg.Workers, cfg.QueueSize, log)
	srv := server.New(server.Options{
		Scheduler: sched,
		Jobs:      a.jobs,
		Sink:      a.sink,
		Registry:  source.NewRegistry(),
		Sources:   cfg.Sources,
		APIKey:    cfg.APIKey,
		Log:       log,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(cfg.Listen) }()

	select {
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
			_ = sched.Close(context.Background())
			return exitWith(exitcode.UsageError, err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	jobsCtx, cancelJobs := context.WithTimeout(context.Background(), jobShutdownTimeout)
	defer cancelJobs()
	if err := sched.Close(jobsCtx); err != nil {
		log.Warn().Err(err).Msg("running jobs were canceled at shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}
