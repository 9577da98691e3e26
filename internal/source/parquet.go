package source

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/logparse"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/parquetread"
)

// TypeParquet reads a local Parquet file.
const TypeParquet = "parquet"

type parquetSource struct {
	cfg model.SourceConfig
	log zerolog.Logger
}

// NewParquet builds a parquet source.
func NewParquet(cfg model.SourceConfig, log zerolog.Logger) (Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("source %q: path is required", cfg.Name)
	}
	return &parquetSource{cfg: cfg, log: log}, nil
}

func (s *parquetSource) Name() string { return s.cfg.Name }
func (s *parquetSource) Type() string { return TypeParquet }

func (s *parquetSource) Ping(context.Context) error {
	if _, err := os.Stat(s.cfg.Path); err != nil {
		return fmt.Errorf("source %q: %w", s.cfg.Name, err)
	}
	r, err := parquetread.Open(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("source %q: %w", s.cfg.Name, err)
	}
	defer r.Close()
	return parquetread.ValidateSchema(r.Schema(), logparse.KnownColumn)
}

func (s *parquetSource) Rows(ctx context.Context) ([]map[string]any, []string, error) {
	r, err := parquetread.Open(s.cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("source %q: %w", s.cfg.Name, err)
	}
	defer r.Close()

	if err := parquetread.ValidateSchema(r.Schema(), logparse.KnownColumn); err != nil {
		s.log.Warn().Err(err).Msg("parquet columns not recognized, fields will take defaults")
	}

	rows, err := r.ReadAll(ctx, s.cfg.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("source %q: %w", s.cfg.Name, err)
	}
	s.log.Info().Int("rows", len(rows)).Int64("file_rows", r.NumRows()).Msg("fetched rows")
	return rows, r.Columns(), nil
}
