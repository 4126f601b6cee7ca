package eval

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/szaher/hitung/internal/ast"
	"github.com/szaher/hitung/internal/telemetry"
	htestutil "github.com/szaher/hitung/internal/testutil"
	"github.com/szaher/hitung/internal/token"
)

// forEachBackend runs fn once per registered backend with a fresh session.
func forEachBackend(t *testing.T, fn func(t *testing.T, ev *Evaluator)) {
	t.Helper()
	for _, name := range Backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b, err := NewBackend(ctx, name)
			if err != nil {
				t.Fatalf("NewBackend(%q): %v", name, err)
			}
			ev := New(b)
			t.Cleanup(func() { _ = ev.Close(ctx) })
			fn(t, ev)
		})
	}
}

func mustEval(t *testing.T, ev *Evaluator, line string) float64 {
	t.Helper()
	v, err := ev.Evaluate(context.Background(), line)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", line, err)
	}
	return v
}

func TestBackendsRegistered(t *testing.T) {
	got := Backends()
	if len(got) != 2 || got[0] != "interp" || got[1] != "wasm" {
		t.Errorf("Backends() = %v, want [interp wasm]", got)
	}
}

func TestNewBackend_Default(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend(ctx, "")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer func() { _ = b.Close(ctx) }()
	if b.Name() != DefaultBackend {
		t.Errorf("default backend = %q, want %q", b.Name(), DefaultBackend)
	}

	_, err = NewBackend(ctx, "llvm")
	htestutil.AssertErrorContains(t, err, `backend "llvm" not registered`)
}

func TestEvaluate_Expressions(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1 + 2", 3},
		{"7 - 2 * 3", 1},
		{"2 + 2 * 3 / 2", 5},
		{"( 3 + 2 ) * 2", 10},
		{"((1 + 2) * (3 + 4))", 21},
		{"10 - 4 - 3", 3},
		{"8 / 4 / 2", 1},
		{"-5 + 2", -3},
		{"+5", 5},
		{"2 * -3", -6},
		{"1.5 * 4", 6},
		{"1 / 0", math.Inf(1)},
		// comparisons bind only inside a conditional
		{"2 < 1", 2},
		{"3 == 4", 3},
		{"if 1 < 2 then 123 else 456", 123},
		{"if 2 < 1 then 123 else 456", 456},
		{"if 2 > 1 then -1 else 1", -1},
		{"(if 1 < 2 then 10 else 20) + 5", 15},
		// trailing tokens are ignored
		{"1 + 2 3", 3},
		{"3 + 2)", 5},
	}

	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		for _, tc := range tests {
			got, err := ev.Evaluate(context.Background(), tc.in)
			if err != nil {
				t.Errorf("Evaluate(%q): %v", tc.in, err)
				continue
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	})
}

func TestEvaluate_IntegerArithmetic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		for a := 0; a <= 12; a += 3 {
			for b := 1; b <= 10; b += 4 {
				for c := 0; c <= 5; c += 5 {
					got := mustEval(t, ev, strconv.Itoa(a)+" - "+strconv.Itoa(b)+" * "+strconv.Itoa(c))
					if want := float64(a - b*c); got != want {
						t.Errorf("%d - %d * %d = %v, want %v", a, b, c, got, want)
					}
					got = mustEval(t, ev, strconv.Itoa(a)+" + "+strconv.Itoa(b))
					if want := float64(a + b); got != want {
						t.Errorf("%d + %d = %v, want %v", a, b, got, want)
					}
				}
			}
		}
	})
}

func TestEvaluate_Assignment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		if got := mustEval(t, ev, "a = 5"); got != 5 {
			t.Errorf("a = 5 evaluated to %v", got)
		}
		if got := mustEval(t, ev, "a"); got != 5 {
			t.Errorf("a = %v, want 5", got)
		}
		first, _ := ev.Env().Lookup("a")

		mustEval(t, ev, "a = 9")
		if got := mustEval(t, ev, "a"); got != 9 {
			t.Errorf("a = %v, want 9", got)
		}
		second, _ := ev.Env().Lookup("a")
		if first != second {
			t.Error("reassignment allocated a new storage location")
		}

		if got := mustEval(t, ev, "a = (a + 1)"); got != 10 {
			t.Errorf("a = (a + 1) evaluated to %v, want 10", got)
		}
		if got := mustEval(t, ev, "b = 2 + 3 * 2"); got != 8 {
			t.Errorf("b = 2 + 3 * 2 evaluated to %v, want 8", got)
		}
		if v, _ := ev.Env().Value("b"); v != 2 {
			t.Errorf("b = %v after b = 2 + 3 * 2, want 2", v)
		}
		if got := mustEval(t, ev, "x = 4"); got != 4 {
			t.Errorf("x = 4 evaluated to %v, want 4", got)
		}
		if got := mustEval(t, ev, "y = x * 2"); got != 8 {
			t.Errorf("y = x * 2 evaluated to %v, want 8", got)
		}
		if got := mustEval(t, ev, "x + y"); got != 8 {
			t.Errorf("x + y = %v, want 8", got)
		}
		if got := mustEval(t, ev, "(c = 3) * c"); got != 9 {
			t.Errorf("(c = 3) * c = %v, want 9", got)
		}
		if got := mustEval(t, ev, "if a > b then a else b"); got != 10 {
			t.Errorf("if a > b then a else b = %v, want 10", got)
		}

		want := []string{"a", "b", "c", "x", "y"}
		if got := ev.Env().Names(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("Names() = %v, want %v", got, want)
		}
	})
}

func TestEvaluate_AssignmentBindsTighterThanArithmetic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		if got := mustEval(t, ev, "a = 2 + 3"); got != 5 {
			t.Errorf("a = 2 + 3 evaluated to %v, want 5", got)
		}
		if v, _ := ev.Env().Value("a"); v != 2 {
			t.Errorf("stored a = %v, want 2", v)
		}
		if got := mustEval(t, ev, "1 + a = 7"); got != 8 {
			t.Errorf("1 + a = 7 evaluated to %v, want 8", got)
		}
		if v, _ := ev.Env().Value("a"); v != 7 {
			t.Errorf("stored a = %v, want 7", v)
		}
	})
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		in    string
		stage Stage
		want  string
	}{
		{"zz", StageLower, "variable not declared"},
		{"1 + zz", StageLower, "variable not declared"},
		{"(3 + 2", StageParse, "unmatched opening paren"},
		{")", StageParse, "unmatched closing paren"},
		{"$", StageParse, "input not supported"},
		{"1 + ", StageParse, "unexpected end of input"},
		{"3 = 4", StageParse, "assignment must be a variable"},
		{"a = b = 1", StageParse, "assignment must be a variable"},
		{"if 3 == 3 then 7 else 8", StageLower, "operator not supported: =="},
		{"-(1)", StageParse, "input not supported"},
		{"if 1 then 2 else 3", StageParse, "malformed conditional"},
	}

	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		for _, tc := range tests {
			_, err := ev.Evaluate(context.Background(), tc.in)
			if err == nil {
				t.Errorf("Evaluate(%q): expected error", tc.in)
				continue
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Evaluate(%q) error = %q, want it to contain %q", tc.in, err, tc.want)
			}
			if got := StageOf(err); got != tc.stage {
				t.Errorf("Evaluate(%q) stage = %q, want %q", tc.in, got, tc.stage)
			}
		}
	})
}

func TestEvaluate_UndeclaredIsSentinel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		_, err := ev.Evaluate(context.Background(), "nope")
		if !errors.Is(err, ErrUndeclared) {
			t.Errorf("error %v is not ErrUndeclared", err)
		}
	})
}

func TestEvaluate_FailedLoweringLeavesEnvironment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		mustEval(t, ev, "a = 1")
		if _, err := ev.Evaluate(context.Background(), "(b = 5) + missing"); err == nil {
			t.Fatal("expected error")
		}
		if _, ok := ev.Env().Lookup("b"); ok {
			t.Error("b was bound by a failed evaluation")
		}
		if _, err := ev.Evaluate(context.Background(), "b"); !errors.Is(err, ErrUndeclared) {
			t.Errorf("b after failed evaluation: %v", err)
		}
		if v, _ := ev.Env().Value("a"); v != 1 {
			t.Errorf("a = %v, want 1", v)
		}
	})
}

func TestEvaluateExpr(t *testing.T) {
	num := func(v float64) ast.Expr { return &ast.Num{Value: v} }
	cond := func(c, a, b ast.Expr) ast.Expr { return &ast.Conditional{Cond: c, Then: a, Else: b} }

	tests := []struct {
		name string
		expr ast.Expr
		want float64
	}{
		{"selector two", cond(num(2), num(1), num(0)), 1},
		{"selector minus one", cond(num(-1), num(1), num(0)), 1},
		{"selector fraction", cond(num(0.9), num(1), num(0)), 0},
		{"selector nan", cond(&ast.Binary{Left: num(0), Op: token.Div, Right: num(0)}, num(1), num(0)), 0},
		{
			"nested in then",
			cond(num(1), cond(num(0), num(10), num(20)), num(30)),
			20,
		},
		{
			"nested in else",
			cond(num(0), num(10), cond(num(1), num(20), num(30))),
			20,
		},
		{
			"nested in condition",
			cond(cond(num(1), num(0), num(1)), num(10), num(20)),
			20,
		},
		{
			"branch expressions",
			cond(num(1), &ast.Binary{Left: num(2), Op: token.Mul, Right: num(21)}, num(0)),
			42,
		},
	}

	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		for _, tc := range tests {
			got, err := ev.EvaluateExpr(context.Background(), tc.expr)
			if err != nil {
				t.Errorf("%s: %v", tc.name, err)
				continue
			}
			if got != tc.want {
				t.Errorf("%s = %v, want %v", tc.name, got, tc.want)
			}
		}
	})
}

func TestEvaluateExpr_OnlyTakenBranchStores(t *testing.T) {
	assign := func(name string, v float64) ast.Expr {
		return &ast.Binary{Left: &ast.Variable{Name: name}, Op: token.Assign, Right: &ast.Num{Value: v}}
	}
	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		mustEval(t, ev, "t = 0")
		mustEval(t, ev, "e = 0")
		expr := &ast.Conditional{
			Cond: &ast.Num{Value: 1},
			Then: assign("t", 5),
			Else: assign("e", 6),
		}
		got, err := ev.EvaluateExpr(context.Background(), expr)
		if err != nil {
			t.Fatalf("EvaluateExpr: %v", err)
		}
		if got != 5 {
			t.Errorf("result = %v, want 5", got)
		}
		if v, _ := ev.Env().Value("t"); v != 5 {
			t.Errorf("t = %v, want 5", v)
		}
		if v, _ := ev.Env().Value("e"); v != 0 {
			t.Errorf("e = %v, want 0", v)
		}
	})
}

func TestEvaluateExpr_LoweringErrors(t *testing.T) {
	tests := []struct {
		name   string
		expr   ast.Expr
		want   string
		target error
	}{
		{
			name: "unary operator",
			expr: &ast.Unary{Op: token.Mul, Operand: &ast.Num{Value: 1}},
			want: "unary operator must be + or -",
		},
		{
			name:   "assignment target",
			expr:   &ast.Binary{Left: &ast.Num{Value: 1}, Op: token.Assign, Right: &ast.Num{Value: 2}},
			want:   "assignment must be a variable",
			target: ErrAssignTarget,
		},
		{
			name: "binary operator",
			expr: &ast.Binary{Left: &ast.Num{Value: 1}, Op: token.If, Right: &ast.Num{Value: 2}},
			want: "operator not supported",
		},
		{
			name: "equality",
			expr: &ast.Conditional{
				Cond: &ast.Binary{Left: &ast.Num{Value: 3}, Op: token.EQ, Right: &ast.Num{Value: 3}},
				Then: &ast.Num{Value: 7},
				Else: &ast.Num{Value: 8},
			},
			want: "operator not supported: ==",
		},
		{
			name: "nil expression",
			expr: nil,
			want: "empty expression",
		},
	}

	forEachBackend(t, func(t *testing.T, ev *Evaluator) {
		for _, tc := range tests {
			_, err := ev.EvaluateExpr(context.Background(), tc.expr)
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
				continue
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("%s: error %q does not contain %q", tc.name, err, tc.want)
			}
			if StageOf(err) != StageLower {
				t.Errorf("%s: stage = %q, want lower", tc.name, StageOf(err))
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Errorf("%s: error %v is not %v", tc.name, err, tc.target)
			}
		}
	})
}

func TestEvaluator_Sessions(t *testing.T) {
	ctx := context.Background()
	b1, _ := NewBackend(ctx, "interp")
	b2, _ := NewBackend(ctx, "interp")
	one, two := New(b1), New(b2, WithSessionID("fixed"))

	if one.ID() == "" || two.ID() != "fixed" {
		t.Errorf("ids = %q, %q", one.ID(), two.ID())
	}
	mustEval(t, one, "a = 1")
	if _, err := two.Evaluate(ctx, "a"); !errors.Is(err, ErrUndeclared) {
		t.Errorf("sessions share variables: %v", err)
	}
}

func TestEvaluator_Telemetry(t *testing.T) {
	ctx := context.Background()
	b, err := NewBackend(ctx, "interp")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	var logs, dump bytes.Buffer
	var spans []telemetry.Span
	metrics := telemetry.NewMetrics()
	ev := New(b,
		WithLogger(telemetry.NewLogger(&logs, slog.LevelDebug, "text")),
		WithMetrics(metrics),
		WithTracer(telemetry.NewTracer(telemetry.SpanExporterFunc(func(s telemetry.Span) { spans = append(spans, s) }))),
		WithDumper(telemetry.NewDumper(&dump, "", true)),
	)

	mustEval(t, ev, "a = 2")
	if _, err := ev.Evaluate(ctx, "b"); err == nil {
		t.Fatal("expected error")
	}

	if !strings.Contains(dump.String(), "store @a") {
		t.Errorf("dump missing IR:\n%s", dump.String())
	}
	for _, want := range []string{"session=" + ev.ID(), "backend=interp", "stage=lower"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("logs missing %q:\n%s", want, logs.String())
		}
	}

	// evaluate, parse, lower, compile, execute for the first line;
	// evaluate, parse, lower for the second.
	if len(spans) != 8 {
		t.Errorf("exported %d spans, want 8", len(spans))
	}

	reg := metrics.Registry()
	if n, err := testutil.GatherAndCount(reg, "hitung_evaluations_total"); err != nil || n != 2 {
		t.Errorf("hitung_evaluations_total series = %d (%v), want 2", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "hitung_errors_total"); err != nil || n != 1 {
		t.Errorf("hitung_errors_total series = %d (%v), want 1", n, err)
	}
}
