package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gyeh/logstats/internal/db"
	"github.com/gyeh/logstats/internal/exitcode"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		return exitWith(exitcode.UsageError, err)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		return exitWith(exitcode.StoreConnError, err)
	}
	defer pool.Close()

	applied, err := db.ApplyMigrations(ctx, pool, log)
	if err != nil {
		log.Error().Err(err).Msg("migration failed")
		return exitWith(exitcode.PersistError, err)
	}

	log.Info().Strs("applied", applied).Msg("all migrations applied successfully")
	return nil
}
