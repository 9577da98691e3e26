// Package source pulls raw rows from external systems so they can be mapped
// and ingested like uploaded files.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gyeh/logstats/internal/model"
)

// ErrUnknownType is returned when no factory is registered for a source type.
var ErrUnknownType = errors.New("unknown source type")

// Source yields raw rows from an external system.
type Source interface {
	Name() string
	Type() string
	// Rows fetches every row along with the column order, when the source
	// has one.
	Rows(ctx context.Context) (rows []map[string]any, header []string, err error)
	// Ping checks that the source is reachable.
	Ping(ctx context.Context) error
}

// Factory builds a Source from its configuration.
type Factory func(cfg model.SourceConfig, log zerolog.Logger) (Source, error)

// Registry maps source types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in postgres, http and
// parquet sources.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(TypePostgres, NewPostgres)
	r.Register(TypeHTTP, NewHTTP)
	r.Register(TypeParquet, NewParquet)
	return r
}

// Register adds or replaces the factory for typ.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Types returns the registered source types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Open builds the source described by cfg.
func (r *Registry) Open(cfg model.SourceConfig, log zerolog.Logger) (Source, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source %q: %w %q", cfg.Name, ErrUnknownType, cfg.Type)
	}
	return f(cfg, log.With().Str("source", cfg.Name).Str("source_type", cfg.Type).Logger())
}

// Find returns the configured source called name.
func Find(sources []model.SourceConfig, name string) (model.SourceConfig, bool) {
	for _, s := range sources {
		if s.Name == name {
			return s, true
		}
	}
	return model.SourceConfig{}, false
}
