package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/source"
)

var importOpts struct {
	source     string
	ping       bool
	noProgress bool
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Ingest rows from a configured external source",
	RunE:  runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importOpts.source, "source", "", "Name of a source from the config file (required)")
	f.BoolVar(&importOpts.ping, "ping", false, "Only test the connection to the source")
	f.BoolVar(&importOpts.noProgress, "no-progress", false, "Do not draw a progress bar")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, ok := source.Find(cfg.Sources, importOpts.source)
	if !ok {
		err := fmt.Errorf("no source named %q in config", importOpts.source)
		log.Error().Err(err).Msg("unknown source")
		return exitWith(exitcode.UsageError, err)
	}
	src, err := source.NewRegistry().Open(sc, log)
	if err != nil {
		log.Error().Err(err).Msg("cannot open source")
		return exitWith(exitcode.UsageError, err)
	}

	if importOpts.ping {
		if err := src.Ping(ctx); err != nil {
			log.Error().Err(err).Str("source", src.Name()).Msg("connection test failed")
			return exitWith(exitcode.InputError, err)
		}
		fmt.Printf("Connection to %s (%s) OK\n", src.Name(), src.Type())
		return nil
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job := model.NewJob(src.Name(), src.Type(), time.Now())
	return runJob(ctx, a, job, ingest.SourceInput{Source: src}, !importOpts.noProgress)
}
