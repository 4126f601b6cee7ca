// Package token defines the lexical categories of the hitung calculator
// language and their binding powers.
package token

import (
	"fmt"
	"strconv"
)

// Kind represents the category of a lexical token.
type Kind int

const (
	// Special tokens
	EOF Kind = iota
	Illegal

	// Literals
	Num
	Ident

	// Grouping
	LParen // (
	RParen // )

	// Arithmetic operators
	Add // +
	Sub // -
	Mul // *
	Div // /

	// Assignment and comparison
	Assign // =
	EQ     // ==
	LT     // <
	GT     // >

	// Keywords
	If
	Then
	Else
)

var kindNames = map[Kind]string{
	EOF:     "EOF",
	Illegal: "Illegal",
	Num:     "Num",
	Ident:   "Ident",
	LParen:  "(",
	RParen:  ")",
	Add:     "+",
	Sub:     "-",
	Mul:     "*",
	Div:     "/",
	Assign:  "=",
	EQ:      "==",
	LT:      "<",
	GT:      ">",
	If:      "if",
	Then:    "then",
	Else:    "else",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// LBP returns the left binding power of the kind. Kinds with a binding
// power of zero never continue an expression as an infix operator.
func (k Kind) LBP() int {
	switch k {
	case Add, Sub:
		return 10
	case Mul, Div:
		return 20
	case LParen:
		return 99
	case Assign:
		return 100
	default:
		return 0
	}
}

var keywords = map[string]Kind{
	"if":   If,
	"then": Then,
	"else": Else,
}

// LookupKeyword returns the keyword kind for ident, or Ident.
func LookupKeyword(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return Ident
}

// Token is an immutable lexical token. Num carries the literal value and
// Ident carries the identifier name; Text holds the source characters the
// token was produced from and Column its 1-based starting column.
type Token struct {
	Kind   Kind
	Num    float64
	Ident  string
	Text   string
	Column int
}

// LBP returns the left binding power of the token's kind.
func (t Token) LBP() int { return t.Kind.LBP() }

func (t Token) String() string {
	switch t.Kind {
	case Num:
		return fmt.Sprintf("Num(%s)", strconv.FormatFloat(t.Num, 'g', -1, 64))
	case Ident:
		return fmt.Sprintf("Ident(%q)", t.Ident)
	case Illegal:
		if t.Text != "" {
			return fmt.Sprintf("Illegal(%q)", t.Text)
		}
		return "Illegal"
	default:
		return t.Kind.String()
	}
}
