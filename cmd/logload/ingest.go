package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/aggregate"
	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/store"
)

const progressPoll = 200 * time.Millisecond

var ingestOpts struct {
	file       string
	name       string
	noProgress bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a log file (local path or s3://bucket/key)",
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestOpts.file, "file", "", "Path or s3://bucket/key of the log file (required)")
	f.StringVar(&ingestOpts.name, "name", "", "Job name (defaults to the file name)")
	f.BoolVar(&ingestOpts.noProgress, "no-progress", false, "Do not draw a progress bar")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	objects, err := objectsFor(ctx, ingestOpts.file)
	if err != nil {
		log.Error().Err(err).Msg("object storage unavailable")
		return exitWith(exitcode.StoreConnError, err)
	}
	in, src, err := ingest.LoadInput(ctx, ingestOpts.file, objects)
	if err != nil {
		log.Error().Err(err).Str("file", ingestOpts.file).Msg("cannot read input")
		return exitWith(exitcode.InputError, err)
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name := ingestOpts.name
	if name == "" {
		name = in.Name
	}
	return runJob(ctx, a, model.NewJob(name, src, time.Now()), in, !ingestOpts.noProgress)
}

// runJob runs one job in the foreground, prints its AggregateReport as JSON
// and maps the outcome to an exit code.
func runJob(ctx context.Context, a *app, job *model.Job, in ingest.Input, showProgress bool) error {
	sched := ingest.NewScheduler(a.runner, 1, 1, log)
	defer sched.Close(context.WithoutCancel(ctx))

	h, err := sched.Submit(ctx, job, in)
	if err != nil {
		log.Error().Err(err).Msg("could not create job")
		return exitWith(exitcode.StoreConnError, err)
	}
	go func() {
		select {
		case <-ctx.Done():
			log.Warn().Msg("interrupt received, canceling job")
			h.Cancel()
		case <-h.Done():
		}
	}()

	if showProgress {
		trackProgress(a.jobs, h)
	}
	err = h.Wait(context.Background())
	if err != nil {
		var pe *ingest.PipelineError
		code := exitcode.JobFailed
		if errors.As(err, &pe) && !errors.Is(err, ingest.ErrCanceled) {
			switch pe.Phase {
			case ingest.PhaseRead, ingest.PhaseParse:
				code = exitcode.InputError
			case ingest.PhasePersist, ingest.PhaseFinalize:
				code = exitcode.PersistError
			}
		}
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("ingest failed")
		return exitWith(code, err)
	}

	records, err := a.sink.List(ctx, store.Filter{JobID: job.ID})
	if err != nil {
		log.Error().Err(err).Msg("could not read back entries")
		return exitWith(exitcode.PersistError, err)
	}
	out, _ := json.MarshalIndent(aggregate.Summarize(records), "", "  ")
	fmt.Println(string(out))

	sum := h.Summary()
	fmt.Fprintf(os.Stderr, "Ingest complete: job %s, %d entries persisted, %d rows skipped, %d entries skipped (%.1fs)\n",
		job.ID, sum.Persist.Persisted, sum.Parse.Skipped, sum.Persist.Skipped, sum.DurationTotal.Seconds())
	if sum.Persist.Skipped > 0 {
		return exitWith(exitcode.PartialSuccess, nil)
	}
	return nil
}

// trackProgress draws a bar from job-store polls until the job finishes.
func trackProgress(jobs store.JobStore, h *ingest.Handle) {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	ticker := time.NewTicker(progressPoll)
	defer ticker.Stop()
	var total int64 = -1
	for {
		select {
		case <-h.Done():
			return
		case <-ticker.C:
		}
		job, err := jobs.GetJob(context.Background(), h.ID())
		if err != nil {
			continue
		}
		if job.TotalEntries > 0 && job.TotalEntries != total {
			total = job.TotalEntries
			bar.ChangeMax64(total)
		}
		_ = bar.Set64(job.EntriesProcessed)
	}
}
