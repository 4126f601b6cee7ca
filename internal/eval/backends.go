package eval

import (
	"context"

	"github.com/szaher/hitung/internal/backend"

	// Register the built-in backends.
	_ "github.com/szaher/hitung/internal/backend/interp"
	_ "github.com/szaher/hitung/internal/backend/wasm"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = "wasm"

// NewBackend opens a registered backend by name.
func NewBackend(ctx context.Context, name string) (backend.Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	return backend.Open(ctx, name)
}

// Backends lists the registered backend names.
func Backends() []string { return backend.List() }
