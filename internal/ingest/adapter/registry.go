package adapter

import (
	"sort"
	"sync"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// Factory builds an adapter instance from a per-attempt source config.
// A factory may reject its config with a configuration error.
type Factory func(cfg SourceConfig) (Adapter, error)

// Registry maps adapter names to factories. Constructed once at the
// composition root and injected where needed.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry registers the built-in format adapters.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("json", NewJSONFileAdapter)
	r.Register("csv", NewCSVFileAdapter)
	r.Register("rest", NewRESTAdapter)
	return r
}

// Register adds or replaces a factory under a name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New builds an adapter instance for the named format.
func (r *Registry) New(name string, cfg SourceConfig) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewAdapterNotFoundError(name)
	}
	return factory(cfg)
}

// List returns registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
