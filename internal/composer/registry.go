package composer

import (
	"sort"
	"sync"
)

// Registry maps chain names to their running composer Service instances.
// It is used by the Admin API to route operations to the correct chain.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewRegistry creates a new empty service registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

// Register adds a service to the registry, keyed by its chain name.
func (r *Registry) Register(s *Service) {
	r.mu.Lock()
	r.services[s.Chain()] = s
	r.mu.Unlock()
}

// Get returns the service for the given chain, or nil if not found.
func (r *Registry) Get(chain string) *Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[chain]
}

// All returns every registered service ordered by chain name.
func (r *Registry) All() []*Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chain() < out[j].Chain() })
	return out
}
