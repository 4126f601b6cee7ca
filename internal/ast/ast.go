// Package ast defines the expression tree produced by the hitung parser.
package ast

import (
	"strconv"
	"strings"

	"github.com/szaher/hitung/internal/token"
)

// Expr is the interface implemented by all expression nodes. Each node
// exclusively owns its children.
type Expr interface {
	String() string
	exprNode()
}

// Num is a numeric literal.
type Num struct {
	Value float64
}

// Unary applies a prefix operator to its operand.
type Unary struct {
	Op      token.Kind
	Operand Expr
}

// Binary combines two operands with an infix operator. Assignment and
// comparisons are binary nodes too.
type Binary struct {
	Left  Expr
	Op    token.Kind
	Right Expr
}

// Paren is a parenthesized sub-expression, kept as its own node.
type Paren struct {
	Inner Expr
}

// Variable references a named variable.
type Variable struct {
	Name string
}

// Conditional is an if/then/else expression.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (*Num) exprNode()         {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Paren) exprNode()       {}
func (*Variable) exprNode()    {}
func (*Conditional) exprNode() {}

func (n *Num) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

func (u *Unary) String() string { return u.Op.String() + u.Operand.String() }

func (b *Binary) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(b.Left.String())
	sb.WriteString(" ")
	sb.WriteString(b.Op.String())
	sb.WriteString(" ")
	sb.WriteString(b.Right.String())
	sb.WriteString(")")
	return sb.String()
}

func (p *Paren) String() string { return "(" + p.Inner.String() + ")" }

func (v *Variable) String() string { return v.Name }

func (c *Conditional) String() string {
	return "if " + c.Cond.String() + " then " + c.Then.String() + " else " + c.Else.String()
}
