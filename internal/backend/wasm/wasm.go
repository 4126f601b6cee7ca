// Package wasm implements a backend that compiles IR functions to
// WebAssembly and runs them on the wazero runtime.
package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/szaher/hitung/internal/backend"
	"github.com/szaher/hitung/internal/ir"
)

// Name is the registered backend name.
const Name = "wasm"

func init() {
	backend.Register(Name, func(ctx context.Context) (backend.Backend, error) {
		return New(ctx)
	})
}

type globalsKey struct{}

// Backend owns a wazero runtime with the env host module instantiated.
type Backend struct {
	runtime wazero.Runtime
}

// New creates a runtime and registers the host functions compiled modules
// import.
func New(ctx context.Context) (*Backend, error) {
	rt := wazero.NewRuntime(ctx)

	_, err := rt.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().WithFunc(hostLoad).Export(loadImport).
		NewFunctionBuilder().WithFunc(hostStore).Export(storeImport).
		Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiating host module: %w", err)
	}

	return &Backend{runtime: rt}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// Compile verifies and encodes fn, then compiles and instantiates the
// resulting module.
func (b *Backend) Compile(ctx context.Context, fn *ir.Function) (backend.Executable, error) {
	if err := ir.Verify(fn); err != nil {
		return nil, err
	}

	bin, err := Encode(fn)
	if err != nil {
		return nil, fmt.Errorf("encoding @%s: %w", fn.Name, err)
	}

	compiled, err := b.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("compiling @%s: %w", fn.Name, err)
	}

	// Anonymous so any number of units can be live at once.
	mod, err := b.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("instantiating @%s: %w", fn.Name, err)
	}

	entry := mod.ExportedFunction(entryExport)
	if entry == nil {
		_ = mod.Close(ctx)
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("module for @%s does not export %q", fn.Name, entryExport)
	}

	return &Executable{
		globals:  fn.Globals,
		compiled: compiled,
		module:   mod,
		entry:    entry,
	}, nil
}

// Close releases the runtime and every module still instantiated in it.
func (b *Backend) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

// Executable is an instantiated module ready to run.
type Executable struct {
	globals  []*ir.Global
	compiled wazero.CompiledModule
	module   api.Module
	entry    api.Function
}

// Call runs the exported function once.
func (e *Executable) Call(ctx context.Context) (float64, error) {
	if e.entry == nil {
		return 0, fmt.Errorf("wasm: call after release")
	}
	res, err := e.entry.Call(context.WithValue(ctx, globalsKey{}, e.globals))
	if err != nil {
		return 0, fmt.Errorf("wasm: %w", err)
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("wasm: expected 1 result, got %d", len(res))
	}
	return api.DecodeF64(res[0]), nil
}

// Release closes the module instance and its compiled code.
func (e *Executable) Release(ctx context.Context) error {
	if e.module == nil {
		return nil
	}
	err := e.module.Close(ctx)
	if cerr := e.compiled.Close(ctx); err == nil {
		err = cerr
	}
	e.module, e.compiled, e.entry = nil, nil, nil
	return err
}

func globalAt(ctx context.Context, slot uint32) *ir.Global {
	globals, _ := ctx.Value(globalsKey{}).([]*ir.Global)
	if int(slot) >= len(globals) {
		panic(fmt.Errorf("global slot %d out of range", slot))
	}
	return globals[slot]
}

func hostLoad(ctx context.Context, slot uint32) float64 {
	return globalAt(ctx, slot).Value
}

func hostStore(ctx context.Context, slot uint32, v float64) {
	globalAt(ctx, slot).Value = v
}
