package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/model"
)

// TypeHTTP fetches a JSON document over HTTP.
const TypeHTTP = "http"

const defaultHTTPTimeout = 30 * time.Second

// envelopeKeys are checked in order for the row array when the response is
// a JSON object.
var envelopeKeys = []string{"data", "logs", "entries", "results", "items"}

type httpSource struct {
	cfg    model.SourceConfig
	client *http.Client
	log    zerolog.Logger
}

// NewHTTP builds an http source.
func NewHTTP(cfg model.SourceConfig, log zerolog.Logger) (Source, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source %q: url is required", cfg.Name)
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &httpSource{cfg: cfg, client: &http.Client{Timeout: timeout}, log: log}, nil
}

func (s *httpSource) Name() string { return s.cfg.Name }
func (s *httpSource) Type() string { return TypeHTTP }

func (s *httpSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("source %q: build request: %w", s.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source %q: read body: %w", s.cfg.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("source %q: unexpected status %s", s.cfg.Name, resp.Status)
	}
	return body, nil
}

func (s *httpSource) Ping(ctx context.Context) error {
	_, err := s.get(ctx)
	return err
}

func (s *httpSource) Rows(ctx context.Context) ([]map[string]any, []string, error) {
	body, err := s.get(ctx)
	if err != nil {
		return nil, nil, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, nil, fmt.Errorf("source %q: %w", s.cfg.Name, err)
	}
	if s.cfg.Limit > 0 && len(rows) > s.cfg.Limit {
		rows = rows[:s.cfg.Limit]
	}
	s.log.Info().Int("rows", len(rows)).Msg("fetched rows")
	return rows, headerOf(rows), nil
}

// decodeRows accepts a JSON array of objects, or an object holding such an
// array under one of envelopeKeys. Numbers are kept as json.Number.
func decodeRows(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, k := range envelopeKeys {
			if arr, ok := v[k].([]any); ok {
				items = arr
				break
			}
		}
		if items == nil {
			return nil, fmt.Errorf("json object has no row array under any of %v", envelopeKeys)
		}
	default:
		return nil, fmt.Errorf("json document is neither an array nor an object")
	}

	rows := make([]map[string]any, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is not an object", i+1)
		}
		rows = append(rows, obj)
	}
	return rows, nil
}

// headerOf returns the union of row keys, sorted.
func headerOf(rows []map[string]any) []string {
	seen := map[string]bool{}
	var header []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)
	return header
}
