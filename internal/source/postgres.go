package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/model"
)

// TypePostgres reads rows with a SQL query.
const TypePostgres = "postgres"

// DefaultQuery is used when a postgres source has no query.
const DefaultQuery = "SELECT * FROM access_logs"

type postgresSource struct {
	cfg   model.SourceConfig
	dsn   string
	query string
	log   zerolog.Logger
}

// NewPostgres builds a postgres source. The query runs on a dedicated
// connection per call.
func NewPostgres(cfg model.SourceConfig, log zerolog.Logger) (Source, error) {
	dsn, err := cfg.PostgresDSN()
	if err != nil {
		return nil, err
	}
	q := cfg.Query
	if q == "" {
		q = DefaultQuery
	}
	if cfg.Limit > 0 {
		q = fmt.Sprintf("SELECT * FROM (%s) AS src LIMIT %d", q, cfg.Limit)
	}
	return &postgresSource{cfg: cfg, dsn: dsn, query: q, log: log}, nil
}

func (s *postgresSource) Name() string { return s.cfg.Name }
func (s *postgresSource) Type() string { return TypePostgres }

func (s *postgresSource) Ping(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("connect to source %q: %w", s.cfg.Name, err)
	}
	defer conn.Close(context.WithoutCancel(ctx))
	return conn.Ping(ctx)
}

func (s *postgresSource) Rows(ctx context.Context) ([]map[string]any, []string, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to source %q: %w", s.cfg.Name, err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	rows, err := conn.Query(ctx, s.query)
	if err != nil {
		return nil, nil, fmt.Errorf("query source %q: %w", s.cfg.Name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("read source %q row %d: %w", s.cfg.Name, len(out)+1, err)
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("query source %q: %w", s.cfg.Name, err)
	}
	s.log.Info().Int("rows", len(out)).Msg("fetched rows")
	return out, header, nil
}
