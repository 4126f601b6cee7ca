package telemetry

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/alecthomas/repr"

	"github.com/szaher/hitung/internal/ast"
	"github.com/szaher/hitung/internal/ir"
)

// Dumper writes the syntax tree and generated IR of each evaluation when
// enabled. The IR listing is also written to a file so it can be inspected
// after the session.
type Dumper struct {
	enabled atomic.Bool

	mu   sync.Mutex
	w    io.Writer
	path string
}

// NewDumper creates a dumper writing to w and, when path is non-empty, to
// the file at path.
func NewDumper(w io.Writer, path string, enabled bool) *Dumper {
	if w == nil {
		w = os.Stderr
	}
	d := &Dumper{w: w, path: path}
	d.enabled.Store(enabled)
	return d
}

// SetEnabled turns dumping on or off. It is safe to call concurrently with
// Dump.
func (d *Dumper) SetEnabled(on bool) { d.enabled.Store(on) }

// Enabled reports whether dumping is on. A nil dumper is disabled.
func (d *Dumper) Enabled() bool { return d != nil && d.enabled.Load() }

// Dump writes expr and fn if the dumper is enabled.
func (d *Dumper) Dump(expr ast.Expr, fn *ir.Function) error {
	if !d.Enabled() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	listing := fn.String()
	if _, err := fmt.Fprintf(d.w, "AST:\n%s\nIR:\n%s", repr.String(expr, repr.Indent("  ")), listing); err != nil {
		return fmt.Errorf("writing dump: %w", err)
	}
	if d.path == "" {
		return nil
	}
	if err := os.WriteFile(d.path, []byte(listing), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", d.path, err)
	}
	return nil
}
