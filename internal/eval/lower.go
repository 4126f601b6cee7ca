package eval

import (
	"fmt"

	"github.com/szaher/hitung/internal/ast"
	"github.com/szaher/hitung/internal/ir"
	"github.com/szaher/hitung/internal/token"
)

// FunctionName is the name of every lowered function.
const FunctionName = "calc"

// Lower translates expr into a zero-argument function returning its value.
// Variables are resolved against env; new ones are staged there.
func Lower(expr ast.Expr, env *Environment) (*ir.Function, error) {
	fn := ir.NewFunction(FunctionName)
	l := &lowerer{b: ir.NewBuilder(fn), env: env}
	l.b.SetInsertPoint(l.b.AppendBlock("entry"))

	v, err := l.expr(expr)
	if err != nil {
		return nil, err
	}
	l.b.Ret(v)
	return fn, nil
}

type lowerer struct {
	b   *ir.Builder
	env *Environment
}

func (l *lowerer) expr(e ast.Expr) (ir.Value, error) {
	switch e := e.(type) {
	case *ast.Num:
		return l.b.Const(e.Value), nil

	case *ast.Variable:
		g, ok := l.env.resolve(e.Name)
		if !ok {
			return ir.NoValue, fmt.Errorf("%w: %s", ErrUndeclared, e.Name)
		}
		return l.b.Load(g), nil

	case *ast.Unary:
		return l.unary(e)

	case *ast.Binary:
		return l.binary(e)

	case *ast.Paren:
		return l.expr(e.Inner)

	case *ast.Conditional:
		return l.conditional(e)

	case nil:
		return ir.NoValue, fmt.Errorf("empty expression")

	default:
		return ir.NoValue, fmt.Errorf("unsupported expression %T", e)
	}
}

func (l *lowerer) unary(e *ast.Unary) (ir.Value, error) {
	if e.Op != token.Add && e.Op != token.Sub {
		return ir.NoValue, fmt.Errorf("unary operator must be + or -, got %s", e.Op)
	}
	v, err := l.expr(e.Operand)
	if err != nil {
		return ir.NoValue, err
	}
	if e.Op == token.Sub {
		return l.b.FMul(v, l.b.Const(-1)), nil
	}
	return v, nil
}

var predicates = map[token.Kind]ir.Predicate{
	token.LT: ir.OLT,
	token.GT: ir.OGT,
}

func (l *lowerer) binary(e *ast.Binary) (ir.Value, error) {
	if e.Op == token.Assign {
		return l.assign(e)
	}

	x, err := l.expr(e.Left)
	if err != nil {
		return ir.NoValue, err
	}
	y, err := l.expr(e.Right)
	if err != nil {
		return ir.NoValue, err
	}

	if p, ok := predicates[e.Op]; ok {
		return l.b.FCmp(p, x, y), nil
	}
	switch e.Op {
	case token.Add:
		return l.b.FAdd(x, y), nil
	case token.Sub:
		return l.b.FSub(x, y), nil
	case token.Mul:
		return l.b.FMul(x, y), nil
	case token.Div:
		return l.b.FDiv(x, y), nil
	default:
		return ir.NoValue, fmt.Errorf("operator not supported: %s", e.Op)
	}
}

// assign stores the right side and yields the value read back from the
// location.
func (l *lowerer) assign(e *ast.Binary) (ir.Value, error) {
	target, ok := e.Left.(*ast.Variable)
	if !ok {
		return ir.NoValue, ErrAssignTarget
	}
	v, err := l.expr(e.Right)
	if err != nil {
		return ir.NoValue, err
	}
	g := l.env.declare(target.Name)
	l.b.Store(g, v)
	return l.b.Load(g), nil
}

// conditional emits the condition in the current block, one block per
// branch and a merge block whose phi selects the branch that ran.
func (l *lowerer) conditional(e *ast.Conditional) (ir.Value, error) {
	cond, err := l.expr(e.Cond)
	if err != nil {
		return ir.NoValue, err
	}

	thenBlk := l.b.AppendBlock("then")
	elseBlk := l.b.AppendBlock("else")
	merge := l.b.AppendBlock("cont")
	l.b.CondBr(cond, thenBlk, elseBlk, merge)

	l.b.SetInsertPoint(thenBlk)
	tv, err := l.expr(e.Then)
	if err != nil {
		return ir.NoValue, err
	}
	thenEnd := l.b.InsertBlock()
	l.b.Br(merge)

	l.b.SetInsertPoint(elseBlk)
	ev, err := l.expr(e.Else)
	if err != nil {
		return ir.NoValue, err
	}
	elseEnd := l.b.InsertBlock()
	l.b.Br(merge)

	l.b.SetInsertPoint(merge)
	return l.b.Phi(
		ir.Incoming{Value: tv, Block: thenEnd},
		ir.Incoming{Value: ev, Block: elseEnd},
	), nil
}
