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
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/watch"
)

var watchOpts struct {
	dir      string
	debounce time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest every new or changed .log, .txt or .csv file in a directory",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchOpts.dir, "dir", "", "Directory to watch (required)")
	f.DurationVar(&watchOpts.debounce, "debounce", watch.DefaultDebounce, "Quiet period before a file is picked up")
	_ = watchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := watch.New(watchOpts.dir, watchOpts.debounce, log)
	if err != nil {
		log.Error().Err(err).Msg("cannot watch directory")
		return exitWith(exitcode.InputError, err)
	}

	sched := ingest.NewScheduler(a.runner, cfg.Workers, cfg.QueueSize, log)
	w.OnFile = func(ctx context.Context, path string) error {
		in, src, err := ingest.LoadInput(ctx, path, nil)
		if err != nil {
			return err
		}
		h, err := sched.Submit(ctx, model.NewJob(in.Name, src, time.Now()), in)
		if err != nil {
			return err
		}
		go func() {
			if err := h.Wait(context.Background()); err == nil {
				log.Info().Str("job_id", h.ID().String()).Str("file", path).Msg("file ingested")
			}
		}()
		return nil
	}

	if err := w.Run(ctx); err != nil {
		log.Error().Err(err).Msg("watcher stopped")
	}

	jobsCtx, cancel := context.WithTimeout(context.Background(), jobShutdownTimeout)
	defer cancel()
	if err := sched.Close(jobsCtx); err != nil {
		log.Warn().Err(err).Msg("running jobs were canceled at shutdown")
	}
	return nil
}
