// Package scanner keeps the named feed strategies the application can fetch papers with.
package scanner

import (
	"context"
	"fmt"
	"sort"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Source captures a single feed strategy (arXiv API, arXiv listing pages, etc.).
type Source interface {
	Name() string
	Fetch(ctx context.Context, req ports.FetchRequest) ([]domain.Paper, error)
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a registry holding the given sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: map[string]Source{}}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("feed source %q is not registered (known: %v)", name, r.Names())
}

// Names lists registered sources in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
