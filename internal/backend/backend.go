// Package backend defines the code-generation backend contract and registry
// for the hitung evaluator.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/szaher/hitung/internal/ir"
)

// Backend turns IR functions into executable units.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// Compile finalizes fn into an executable unit. The unit references
	// fn.Globals directly, so stores made while it runs are visible to
	// later units sharing the same globals.
	Compile(ctx context.Context, fn *ir.Function) (Executable, error)

	// Close releases everything the backend holds.
	Close(ctx context.Context) error
}

// Executable is a compiled zero-argument function returning a float64.
type Executable interface {
	// Call runs the function once.
	Call(ctx context.Context) (float64, error)

	// Release discards the compiled unit. It is safe to call more than once.
	Release(ctx context.Context) error
}

// Factory creates a new backend instance.
type Factory func(ctx context.Context) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a backend factory to the global registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Open creates a backend by registered name.
func Open(ctx context.Context, name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend %q not registered (available: %v)", name, List())
	}
	return factory(ctx)
}

// List returns the names of all registered backends in sorted order.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
