package memory

import (
	"path/filepath"
	"sync"
)

// Registry hands out one Store per repository path within a process.
// It replaces ambient global state: the application context owns a Registry
// and passes store handles down explicitly.
type Registry struct {
	opts Options

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates a registry whose stores share the given options.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Get returns the store for repoPath, opening it on first use. Paths are
// normalized so equivalent spellings share one handle.
func (r *Registry) Get(repoPath string) (*Store, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[abs]; ok {
		return s, nil
	}
	s, err := Open(abs, r.opts)
	if err != nil {
		return nil, err
	}
	r.stores[abs] = s
	return s, nil
}

// Reset drops all cached store handles. Tests use this for isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*Store)
}
