package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/codecompass/codecompass-go/pkg/config"
)

// Factory constructs a Provider instance from the live Config. It is
// called again, producing a fresh instance, whenever the registry's cache
// for that name/model pair has been cleared.
type Factory func(cfg *config.Config, model string) (Provider, error)

// Registry is a thread-safe provider factory registry with a cache of
// already-constructed instances, keyed by provider name and model. This is
// the "no ambient provider singletons" shape spec.md §9 calls for: callers
// obtain a Provider from the registry, which consults Config, rather than
// reaching for a global variable.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
	}
}

// Register adds a provider factory under name. Registering the same name
// twice replaces the factory and evicts any cached instance for it.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	prefix := cacheKey(name, "")
	for key := range r.instances {
		if strings.HasPrefix(key, prefix) {
			delete(r.instances, key)
		}
	}
}

// Get returns a cached Provider for (name, model), constructing and
// caching one via the registered factory if absent.
func (r *Registry) Get(cfg *config.Config, name, model string) (Provider, error) {
	key := cacheKey(name, model)

	r.mu.RLock()
	if p, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("llm: provider %q not registered", name)
	}

	provider, err := factory(cfg, model)
	if err != nil {
		return nil, fmt.Errorf("llm: constructing provider %q: %w", name, err)
	}

	r.mu.Lock()
	r.instances[key] = provider
	r.mu.Unlock()

	return provider, nil
}

// ClearCache discards every cached Provider instance, forcing the next Get
// call to reconstruct from Config. Called after switch_suggestion_model so
// stale clients (old API keys, old base URLs) are never reused.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Provider)
}

// List returns the names of all registered factories, sorted.
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

func cacheKey(name, model string) string {
	return name + "::" + model
}
