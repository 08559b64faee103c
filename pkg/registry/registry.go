// Package registry holds the closed, small set of compiler backends
// waypack knows how to translate build settings for (spec.md §9).
package registry

import (
	"fmt"
	"sync"

	"github.com/waypack/waypack/pkg/derrors"
)

// backendTable is a thread-safe, name-keyed table of CompilerBackend
// values. It underlies the process-wide Compilers() table, and callers
// needing isolation (tests registering a fake backend) can build their
// own with New.
type backendTable struct {
	mu    sync.RWMutex
	items map[string]CompilerBackend
}

// New creates an empty compiler backend table.
func New() *backendTable {
	return &backendTable{items: make(map[string]CompilerBackend)}
}

// Register adds a backend under name, failing if the name is empty or
// already registered.
func (r *backendTable) Register(name string, backend CompilerBackend) error {
	if name == "" {
		return derrors.New(derrors.InvalidInput, "compiler backend name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return derrors.Newf(derrors.AlreadyExists, "compiler backend %q is already registered", name)
	}

	r.items[name] = backend
	return nil
}

// Get retrieves the backend registered under name.
func (r *backendTable) Get(name string) (CompilerBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, exists := r.items[name]
	if !exists {
		return CompilerBackend{}, derrors.Newf(derrors.NotFound, "compiler backend %q not found", name)
	}
	return backend, nil
}

// Has reports whether name is registered.
func (r *backendTable) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.items[name]
	return exists
}

// MustRegister registers a backend and panics on failure, used by
// init() to seed the builtin dmd/ldc2/gdc set, where a registration
// error would be a programming mistake rather than something to
// recover from at runtime.
func MustRegister(reg *backendTable, name string, backend CompilerBackend) {
	if err := reg.Register(name, backend); err != nil {
		panic(fmt.Sprintf("failed to register compiler backend %s: %v", name, err))
	}
}
