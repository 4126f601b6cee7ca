package eval

import (
	"sort"

	"github.com/szaher/hitung/internal/ir"
)

// Environment maps variable names to their storage locations. A name keeps
// the same location for the lifetime of the environment.
//
// Locations created while lowering are staged: visible to the rest of that
// lowering, but only committed once the compiled function starts running.
type Environment struct {
	vars   map[string]*ir.Global
	staged map[string]*ir.Global
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		vars:   make(map[string]*ir.Global),
		staged: make(map[string]*ir.Global),
	}
}

// Lookup returns the committed location for name.
func (e *Environment) Lookup(name string) (*ir.Global, bool) {
	g, ok := e.vars[name]
	return g, ok
}

// Value returns the value currently stored for name.
func (e *Environment) Value(name string) (float64, bool) {
	g, ok := e.vars[name]
	if !ok {
		return 0, false
	}
	return g.Value, true
}

// Names returns the committed variable names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of committed variables.
func (e *Environment) Len() int { return len(e.vars) }

func (e *Environment) resolve(name string) (*ir.Global, bool) {
	if g, ok := e.vars[name]; ok {
		return g, true
	}
	g, ok := e.staged[name]
	return g, ok
}

// declare returns the location for name, staging a new zeroed one if the
// name is unbound.
func (e *Environment) declare(name string) *ir.Global {
	if g, ok := e.resolve(name); ok {
		return g
	}
	g := &ir.Global{Name: name}
	e.staged[name] = g
	return g
}

func (e *Environment) commit() {
	for name, g := range e.staged {
		e.vars[name] = g
	}
	clear(e.staged)
}

func (e *Environment) rollback() {
	clear(e.staged)
}
