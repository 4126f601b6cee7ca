// Package backendtest provides a conformance suite every backend must pass.
package backendtest

import (
	"context"
	"math"
	"testing"

	"github.com/szaher/hitung/internal/backend"
	"github.com/szaher/hitung/internal/ir"
)

// Case builds a function and states the value it must return.
type Case struct {
	Name  string
	Build func(b *ir.Builder)
	Want  float64
}

// Build creates a function with an entry block and lets body fill it.
func Build(body func(b *ir.Builder)) *ir.Function {
	fn := ir.NewFunction("calc")
	b := ir.NewBuilder(fn)
	b.SetInsertPoint(b.AppendBlock("entry"))
	body(b)
	return fn
}

// Compile compiles fn, calls it once and releases it.
func Compile(t *testing.T, be backend.Backend, fn *ir.Function) float64 {
	t.Helper()
	ctx := context.Background()
	exe, err := be.Compile(ctx, fn)
	if err != nil {
		t.Fatalf("Compile: %v\n%s", err, fn)
	}
	defer func() {
		if err := exe.Release(ctx); err != nil {
			t.Errorf("Release: %v", err)
		}
	}()
	got, err := exe.Call(ctx)
	if err != nil {
		t.Fatalf("Call: %v\n%s", err, fn)
	}
	return got
}

// selectOn emits "cond ? a : b" with the given region bodies and returns the
// merged value.
func selectOn(b *ir.Builder, cond ir.Value, then, els func() ir.Value) ir.Value {
	thenBlk := b.AppendBlock("then")
	elseBlk := b.AppendBlock("else")
	merge := b.AppendBlock("cont")
	b.CondBr(cond, thenBlk, elseBlk, merge)

	b.SetInsertPoint(thenBlk)
	tv := then()
	thenEnd := b.InsertBlock()
	b.Br(merge)

	b.SetInsertPoint(elseBlk)
	ev := els()
	elseEnd := b.InsertBlock()
	b.Br(merge)

	b.SetInsertPoint(merge)
	return b.Phi(ir.Incoming{Value: tv, Block: thenEnd}, ir.Incoming{Value: ev, Block: elseEnd})
}

func constFn(v float64, b *ir.Builder) func() ir.Value {
	return func() ir.Value { return b.Const(v) }
}

// Cases returns the shared conformance cases.
func Cases() []Case {
	cmp := func(p ir.Predicate, x, y float64) func(b *ir.Builder) {
		return func(b *ir.Builder) {
			b.Ret(b.FCmp(p, b.Const(x), b.Const(y)))
		}
	}
	branch := func(cond float64) func(b *ir.Builder) {
		return func(b *ir.Builder) {
			c := b.Const(cond)
			b.Ret(selectOn(b, c, constFn(123, b), constFn(456, b)))
		}
	}

	return []Case{
		{
			Name:  "constant",
			Build: func(b *ir.Builder) { b.Ret(b.Const(42)) },
			Want:  42,
		},
		{
			Name: "arithmetic",
			Build: func(b *ir.Builder) {
				sum := b.FAdd(b.Const(2), b.Const(3))
				prod := b.FMul(sum, b.Const(4))
				quot := b.FDiv(prod, b.Const(2))
				b.Ret(b.FSub(quot, b.Const(1)))
			},
			Want: 9,
		},
		{
			Name:  "negate by multiply",
			Build: func(b *ir.Builder) { b.Ret(b.FMul(b.Const(2.5), b.Const(-1))) },
			Want:  -2.5,
		},
		{
			Name:  "divide by zero",
			Build: func(b *ir.Builder) { b.Ret(b.FDiv(b.Const(1), b.Const(0))) },
			Want:  math.Inf(1),
		},
		{Name: "olt true", Build: cmp(ir.OLT, 1, 2), Want: 1},
		{Name: "olt false", Build: cmp(ir.OLT, 2, 1), Want: 0},
		{Name: "ogt true", Build: cmp(ir.OGT, 2, 1), Want: 1},
		{Name: "ogt equal", Build: cmp(ir.OGT, 2, 2), Want: 0},
		{Name: "oeq true", Build: cmp(ir.OEQ, 3, 3), Want: 1},
		{Name: "oeq false", Build: cmp(ir.OEQ, 3, 4), Want: 0},
		{Name: "branch on one", Build: branch(1), Want: 123},
		{Name: "branch on zero", Build: branch(0), Want: 456},
		{Name: "branch on fraction", Build: branch(0.5), Want: 456},
		{Name: "branch on negative", Build: branch(-2), Want: 123},
		{Name: "branch on large", Build: branch(1e300), Want: 123},
		{
			Name: "branch on nan",
			Build: func(b *ir.Builder) {
				nan := b.FDiv(b.Const(0), b.Const(0))
				b.Ret(selectOn(b, nan, constFn(123, b), constFn(456, b)))
			},
			Want: 456,
		},
		{
			Name: "nested branch",
			Build: func(b *ir.Builder) {
				outer := b.Const(1)
				b.Ret(selectOn(b, outer,
					func() ir.Value {
						inner := b.FCmp(ir.OGT, b.Const(1), b.Const(2))
						return selectOn(b, inner, constFn(10, b), constFn(20, b))
					},
					constFn(30, b),
				))
			},
			Want: 20,
		},
		{
			Name: "value computed after merge",
			Build: func(b *ir.Builder) {
				v := selectOn(b, b.Const(0), constFn(1, b), constFn(2, b))
				b.Ret(b.FAdd(v, b.Const(40)))
			},
			Want: 42,
		},
	}
}

// Run executes the conformance suite against be.
func Run(t *testing.T, be backend.Backend) {
	t.Helper()

	for _, tc := range Cases() {
		t.Run(tc.Name, func(t *testing.T) {
			got := Compile(t, be, Build(tc.Build))
			if got != tc.Want {
				t.Errorf("got %v, want %v", got, tc.Want)
			}
		})
	}

	t.Run("store then load", func(t *testing.T) {
		g := &ir.Global{Name: "a"}
		got := Compile(t, be, Build(func(b *ir.Builder) {
			b.Store(g, b.Const(7))
			b.Ret(b.Load(g))
		}))
		if got != 7 || g.Value != 7 {
			t.Errorf("got %v (global %v), want 7", got, g.Value)
		}
	})

	t.Run("globals persist across units", func(t *testing.T) {
		g := &ir.Global{Name: "a", Value: 2.5}
		got := Compile(t, be, Build(func(b *ir.Builder) {
			b.Store(g, b.FAdd(b.Load(g), b.Const(1)))
			b.Ret(b.Load(g))
		}))
		if got != 3.5 {
			t.Fatalf("first call = %v, want 3.5", got)
		}
		got = Compile(t, be, Build(func(b *ir.Builder) {
			b.Ret(b.Load(g))
		}))
		if got != 3.5 {
			t.Errorf("second call = %v, want 3.5", got)
		}
	})

	t.Run("store only on taken branch", func(t *testing.T) {
		a := &ir.Global{Name: "a"}
		c := &ir.Global{Name: "c"}
		got := Compile(t, be, Build(func(b *ir.Builder) {
			cond := b.FCmp(ir.OLT, b.Const(1), b.Const(2))
			b.Ret(selectOn(b, cond,
				func() ir.Value { v := b.Const(5); b.Store(a, v); return b.Load(a) },
				func() ir.Value { v := b.Const(6); b.Store(c, v); return b.Load(c) },
			))
		}))
		if got != 5 || a.Value != 5 || c.Value != 0 {
			t.Errorf("got %v, a=%v c=%v; want 5, a=5 c=0", got, a.Value, c.Value)
		}
	})

	t.Run("rejects malformed function", func(t *testing.T) {
		fn := Build(func(b *ir.Builder) { b.Const(1) })
		exe, err := be.Compile(context.Background(), fn)
		if err == nil {
			_ = exe.Release(context.Background())
			t.Fatal("expected error for function without terminator")
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		ctx := context.Background()
		exe, err := be.Compile(ctx, Build(func(b *ir.Builder) { b.Ret(b.Const(1)) }))
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if err := exe.Release(ctx); err != nil {
			t.Fatalf("first Release: %v", err)
		}
		if err := exe.Release(ctx); err != nil {
			t.Errorf("second Release: %v", err)
		}
	})
}
