package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/sample"
)

var generateOpts struct {
	count  int
	format string
	out    string
	seed   uint64
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write synthetic access-log data",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&generateOpts.count, "count", 1000, "Number of entries")
	f.StringVar(&generateOpts.format, "format", sample.FormatIIS, "Output format: iis, csv or parquet")
	f.StringVar(&generateOpts.out, "out", "-", "Output path, - for stdout")
	f.Uint64Var(&generateOpts.seed, "seed", 0, "Random seed (0 picks one from the clock)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generateOpts.count < 0 {
		err := fmt.Errorf("--count must not be negative")
		log.Error().Err(err).Msg("invalid flags")
		return exitWith(exitcode.UsageError, err)
	}
	seed := generateOpts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	var w io.Writer = os.Stdout
	if generateOpts.out != "-" {
		f, err := os.Create(generateOpts.out)
		if err != nil {
			log.Error().Err(err).Msg("cannot create output")
			return exitWith(exitcode.UsageError, err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)

	if err := sample.New(seed, time.Now()).Write(bw, generateOpts.format, generateOpts.count); err != nil {
		log.Error().Err(err).Msg("generate failed")
		return exitWith(exitcode.UsageError, err)
	}
	if err := bw.Flush(); err != nil {
		log.Error().Err(err).Msg("write failed")
		return exitWith(exitcode.UsageError, err)
	}
	log.Info().Int("count", generateOpts.count).Str("format", generateOpts.format).Uint64("seed", seed).Str("out", generateOpts.out).Msg("sample data written")
	return nil
}
