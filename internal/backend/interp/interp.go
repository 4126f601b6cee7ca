// Package interp implements a backend that executes IR functions directly.
package interp

import (
	"context"
	"fmt"

	"github.com/szaher/hitung/internal/backend"
	"github.com/szaher/hitung/internal/ir"
)

// Name is the registered backend name.
const Name = "interp"

func init() {
	backend.Register(Name, func(context.Context) (backend.Backend, error) {
		return New(), nil
	})
}

// Backend executes verified IR by walking its blocks.
type Backend struct{}

// New creates an interpreter backend.
func New() *Backend { return &Backend{} }

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// Compile verifies fn and wraps it for execution.
func (b *Backend) Compile(_ context.Context, fn *ir.Function) (backend.Executable, error) {
	if err := ir.Verify(fn); err != nil {
		return nil, err
	}
	return &Executable{fn: fn}, nil
}

// Close is a no-op.
func (b *Backend) Close(context.Context) error { return nil }

// Executable is a verified function ready to run.
type Executable struct {
	fn *ir.Function
}

// Call runs the function once.
func (e *Executable) Call(ctx context.Context) (float64, error) {
	if e.fn == nil {
		return 0, fmt.Errorf("interp: call after release")
	}
	return run(ctx, e.fn)
}

// Release drops the function.
func (e *Executable) Release(context.Context) error {
	e.fn = nil
	return nil
}

func run(ctx context.Context, fn *ir.Function) (float64, error) {
	regs := make([]float64, fn.NumValues)
	var prev *ir.Block
	cur := fn.Entry()

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		next, ret, done, err := step(fn, regs, prev, cur)
		if err != nil {
			return 0, err
		}
		if done {
			return ret, nil
		}
		prev, cur = cur, next
	}
}

// step executes one block and returns the successor, or the return value
// when the block ends the function.
func step(fn *ir.Function, regs []float64, prev, b *ir.Block) (*ir.Block, float64, bool, error) {
	for _, in := range b.Instrs {
		switch in.Op {
		case ir.OpConst:
			regs[in.Dst] = in.Imm
		case ir.OpLoad:
			regs[in.Dst] = fn.Globals[in.Global].Value
		case ir.OpStore:
			fn.Globals[in.Global].Value = regs[in.Args[0]]
		case ir.OpFAdd:
			regs[in.Dst] = regs[in.Args[0]] + regs[in.Args[1]]
		case ir.OpFSub:
			regs[in.Dst] = regs[in.Args[0]] - regs[in.Args[1]]
		case ir.OpFMul:
			regs[in.Dst] = regs[in.Args[0]] * regs[in.Args[1]]
		case ir.OpFDiv:
			regs[in.Dst] = regs[in.Args[0]] / regs[in.Args[1]]
		case ir.OpFCmp:
			regs[in.Dst] = in.Pred.Compare(regs[in.Args[0]], regs[in.Args[1]])
		case ir.OpPhi:
			v, err := incoming(in, regs, prev, b)
			if err != nil {
				return nil, 0, false, err
			}
			regs[in.Dst] = v
		case ir.OpBr:
			return in.Targets[0], 0, false, nil
		case ir.OpCondBr:
			if ir.Truthy(regs[in.Args[0]]) {
				return in.Targets[0], 0, false, nil
			}
			return in.Targets[1], 0, false, nil
		case ir.OpRet:
			return nil, regs[in.Args[0]], true, nil
		default:
			return nil, 0, false, fmt.Errorf("interp: unsupported instruction %s", in.Op)
		}
	}
	return nil, 0, false, fmt.Errorf("interp: block %s fell through", b.Name)
}

func incoming(phi *ir.Instr, regs []float64, prev, b *ir.Block) (float64, error) {
	for _, inc := range phi.Incoming {
		if inc.Block == prev {
			return regs[inc.Value], nil
		}
	}
	name := "<entry>"
	if prev != nil {
		name = prev.Name
	}
	return 0, fmt.Errorf("interp: phi in %s has no value for predecessor %s", b.Name, name)
}
