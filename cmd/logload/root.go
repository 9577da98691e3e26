package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/config"
	"github.com/gyeh/logstats/internal/exitcode"
	"github.com/gyeh/logstats/internal/logging"
)

var (
	cfg        = config.Default()
	configPath string
	log        zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "logload",
	Short:             "Web access log ingestion and traffic statistics",
	Long:              "Parses IIS-style and tabular access logs, enriches them with country and page category, and stores them for reporting.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: trace, debug, info, warn or error")
}

// loadConfig layers .env, the config file, LOGSTATS_* variables and
// explicitly set flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, _ []string) error {
	flagged := cfg

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return exitWith(exitcode.UsageError, err)
	}

	c := config.Default()
	if configPath != "" {
		if err := c.LoadFromFile(configPath); err != nil {
			return err
		}
	}
	if err := c.LoadEnv(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dsn") {
		c.DSN = flagged.DSN
	}
	if flags.Changed("log-format") {
		c.LogFormat = flagged.LogFormat
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagged.LogLevel
	}
	cfg = c

	log = logging.Setup(cfg.LogFormat, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		return exitWith(exitcode.UsageError, err)
	}
	return nil
}
