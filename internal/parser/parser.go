// Package parser implements the lexer and the operator-precedence (Pratt)
// parser for the hitung calculator language.
package parser

import (
	"fmt"

	"github.com/szaher/hitung/internal/ast"
	"github.com/szaher/hitung/internal/token"
)

// Error is a parse failure. Column is the 1-based column of the offending
// token, or zero when input ended early.
type Error struct {
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("col %d: %s", e.Column, e.Message)
	}
	return e.Message
}

// Parser turns a token sequence into a single expression tree using
// binding powers for precedence climbing.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New creates a parser over tokens. The tokens are not modified.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse lexes and parses one line of source.
func Parse(input string) (ast.Expr, error) {
	return New(Lex(input)).Parse()
}

// Parse parses a maximal top-level expression. Tokens after it are ignored.
func (p *Parser) Parse() (ast.Expr, error) {
	return p.expr(0)
}

func (p *Parser) expr(minBP int) (ast.Expr, error) {
	first, err := p.next()
	if err != nil {
		return nil, err
	}
	left, err := p.nud(first)
	if err != nil {
		return nil, err
	}

	for {
		next, ok := p.peek()
		if !ok {
			break
		}
		if next.Kind == token.Illegal {
			return nil, illegal(next)
		}
		if minBP >= next.LBP() {
			break
		}
		op, _ := p.next()
		left, err = p.led(left, op)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

// nud is the null denotation: the meaning of tok at the start of an
// expression.
func (p *Parser) nud(tok token.Token) (ast.Expr, error) {
	switch tok.Kind {
	case token.Illegal:
		return nil, illegal(tok)
	case token.Ident:
		return &ast.Variable{Name: tok.Ident}, nil
	case token.Num:
		return &ast.Num{Value: tok.Num}, nil
	case token.Add, token.Sub:
		operand, err := p.next()
		if err != nil {
			return nil, err
		}
		if operand.Kind != token.Num {
			return nil, errorAt(operand, "input not supported: unary %s must be followed by a number, got %s", tok.Kind, operand)
		}
		return &ast.Unary{Op: tok.Kind, Operand: &ast.Num{Value: operand.Num}}, nil
	case token.LParen:
		return p.parseParen(tok)
	case token.RParen:
		return nil, errorAt(tok, "unmatched closing paren")
	case token.If:
		return p.parseConditional()
	default:
		return nil, errorAt(tok, "unexpected token %s", tok)
	}
}

// led is the left denotation: tok used as an infix operator after left.
func (p *Parser) led(left ast.Expr, tok token.Token) (ast.Expr, error) {
	switch tok.Kind {
	case token.Add, token.Sub, token.Mul, token.Div, token.Assign:
		if tok.Kind == token.Assign {
			if _, ok := left.(*ast.Variable); !ok {
				return nil, errorAt(tok, "assignment must be a variable")
			}
		}
		right, err := p.expr(tok.LBP())
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Left: left, Op: tok.Kind, Right: right}, nil
	default:
		return nil, errorAt(tok, "unexpected token %s", tok)
	}
}

// parseParen collects the tokens up to the matching close paren and parses
// them as an independent expression.
func (p *Parser) parseParen(open token.Token) (ast.Expr, error) {
	var inner []token.Token
	depth := 1

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++

		switch tok.Kind {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
			if depth == 0 {
				e, err := New(inner).Parse()
				if err != nil {
					return nil, err
				}
				return &ast.Paren{Inner: e}, nil
			}
		case token.Illegal:
			return nil, illegal(tok)
		case token.EOF:
			return nil, errorAt(open, "unmatched opening paren")
		}
		inner = append(inner, tok)
	}

	return nil, errorAt(open, "unmatched opening paren")
}

// parseConditional parses "if <a> <cmp> <b> then <x> else <y>" where every
// slot holds a single primitive: a number, a variable or a signed number.
func (p *Parser) parseConditional() (ast.Expr, error) {
	lhs, err := p.primitive()
	if err != nil {
		return nil, err
	}

	cmp, err := p.next()
	if err != nil {
		return nil, err
	}
	switch cmp.Kind {
	case token.LT, token.GT, token.EQ:
	default:
		return nil, errorAt(cmp, "malformed conditional: expected comparison operator, got %s", cmp)
	}

	rhs, err := p.primitive()
	if err != nil {
		return nil, err
	}

	if err := p.expect(token.Then); err != nil {
		return nil, err
	}
	thenExpr, err := p.primitive()
	if err != nil {
		return nil, err
	}

	if err := p.expect(token.Else); err != nil {
		return nil, err
	}
	elseExpr, err := p.primitive()
	if err != nil {
		return nil, err
	}

	return &ast.Conditional{
		Cond: &ast.Binary{Left: lhs, Op: cmp.Kind, Right: rhs},
		Then: thenExpr,
		Else: elseExpr,
	}, nil
}

func (p *Parser) primitive() (ast.Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.Num, token.Ident, token.Add, token.Sub, token.Illegal:
		return p.nud(tok)
	default:
		return nil, errorAt(tok, "malformed conditional: expected a number or variable, got %s", tok)
	}
}

func (p *Parser) expect(kind token.Kind) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Kind != kind {
		return errorAt(tok, "malformed conditional: expected '%s', got %s", kind, tok)
	}
	return nil
}

// next consumes a token. The EOF sentinel counts as the end of input.
func (p *Parser) next() (token.Token, error) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].Kind == token.EOF {
		return token.Token{}, &Error{Message: "unexpected end of input"}
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, nil
}

func (p *Parser) peek() (token.Token, bool) {
	if p.pos >= len(p.tokens) {
		return token.Token{}, false
	}
	return p.tokens[p.pos], true
}

func illegal(tok token.Token) *Error {
	if tok.Text != "" {
		return errorAt(tok, "input not supported: unexpected %q", tok.Text)
	}
	return errorAt(tok, "input not supported")
}

func errorAt(tok token.Token, format string, args ...any) *Error {
	return &Error{Column: tok.Column, Message: fmt.Sprintf(format, args...)}
}
