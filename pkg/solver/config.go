package solver

import (
	"fmt"
	"sync"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the solver backends and returns a Registry.
// It uses lflag to register command-line flags for configuration.
func Configured() *Registry {
	r := NewRegistry()

	def := lflag.String("solver-backend", "simplex", "Default solver backend (available: simplex)")
	maxNodes := lflag.Int("solver-max-nodes", DefaultMaxNodes, "Branch-and-bound node limit for the simplex backend")

	lflag.Do(func() {
		r.Register(&Simplex{MaxNodes: *maxNodes})
		r.def = *def
	})

	return r
}

// Registry manages the available solver backends.
type Registry struct {
	mu       sync.Mutex
	backends map[string]Backend
	def      string
}

// NewRegistry creates an empty Registry defaulting to the simplex backend.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
		def:      "simplex",
	}
}

// Register adds a backend under its own name. This is also used by tests to
// install mock backends.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Backend returns the backend with the given name, or the default backend
// for the empty string.
func (r *Registry) Backend(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		name = r.def
	}
	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("unknown solver backend: %s", name)
}

// Names lists the registered backends.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	return names
}
