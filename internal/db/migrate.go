package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/logstats/internal/sql"
)

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       text PRIMARY KEY,
    applied_at timestamptz NOT NULL DEFAULT now()
)`

// ApplyMigrations runs the embedded SQL migrations that have not been
// applied yet, in filename order, each in its own transaction. It returns
// the names of the migrations it applied.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) ([]string, error) {
	entries, err := fs.ReadDir(embedsql.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if _, err := pool.Exec(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		data, err := fs.ReadFile(embedsql.Migrations, "migrations/"+name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}

		ran, err := applyOne(ctx, pool, name, string(data))
		if err != nil {
			return applied, err
		}
		if ran {
			log.Info().Str("migration", name).Msg("applied migration")
			applied = append(applied, name)
		} else {
			log.Debug().Str("migration", name).Msg("migration already applied")
		}
	}

	log.Info().Int("applied", len(applied)).Int("total", len(entries)).Msg("migrations up to date")
	return applied, nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, name, ddl string) (bool, error) {
	ran := false
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return err
		}
		ran = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("execute migration %s: %w", name, err)
	}
	return ran, nil
}
