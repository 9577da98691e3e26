package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/aggregate"
	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/ingest"
	"github.com/gyeh/logstats/internal/normalize"
)

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run parse and enrichment with stats (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFile, "file", "", "Path or s3://bucket/key of the log file (required)")
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	objects, err := objectsFor(ctx, planFile)
	if err != nil {
		log.Error().Err(err).Msg("object storage unavailable")
		return exitWith(exitcode.StoreConnError, err)
	}
	in, _, err := ingest.LoadInput(ctx, planFile, objects)
	if err != nil {
		log.Error().Err(err).Msg("cannot read input")
		return exitWith(exitcode.InputError, err)
	}

	enricher, closeGeo, err := newEnricher()
	if err != nil {
		log.Error().Err(err).Msg("geoip database could not be opened")
		return exitWith(exitcode.UsageError, err)
	}
	defer closeGeo()

	records, sum := newDetector().Parse(in.Data, in.Name)
	records = enricher.Enrich(records)

	fmt.Println("=== logload plan ===")
	fmt.Printf("File:       %s\n", planFile)
	fmt.Printf("SHA-256:    %s\n", normalize.Hash(in.Data))
	fmt.Printf("Size:       %d bytes\n", len(in.Data))
	fmt.Printf("Format:     %s\n", sum.Format)
	if sum.Fallback {
		fmt.Println("Reader:     positional fallback")
	}
	fmt.Printf("Rows:       %d\n", sum.Rows)
	fmt.Printf("Parsed:     %d\n", sum.Parsed)
	fmt.Printf("Skipped:    %d\n", sum.Skipped)
	for _, r := range sum.Reasons {
		fmt.Printf("  row %-6d %s\n", r.Row, r.Reason)
	}
	if sum.Failure != "" {
		fmt.Printf("Failure:    %s\n", sum.Failure)
	}

	out, _ := json.MarshalIndent(aggregate.Summarize(records), "", "  ")
	fmt.Println()
	fmt.Println(string(out))

	if len(records) == 0 {
		err := fmt.Errorf("%w in %s", ingest.ErrNoEntries, in.Name)
		log.Error().Err(err).Msg("nothing to ingest")
		return exitWith(exitcode.InputError, err)
	}
	return nil
}
