package parser

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/szaher/hitung/internal/token"
)

// Lexer tokenizes a single line of hitung source using one character of
// lookahead.
type Lexer struct {
	input string
	pos   int
	col   int
	start int
	scol  int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		col:   1,
	}
}

// Lex tokenizes input. See Lexer.Tokenize.
func Lex(input string) []token.Token {
	return NewLexer(input).Tokenize()
}

// Tokenize scans tokens until an EOF or Illegal token is produced. That
// sentinel is the last element of the result; anything after an Illegal
// token is discarded.
func (l *Lexer) Tokenize() []token.Token {
	var tokens []token.Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF || tok.Kind == token.Illegal {
			return tokens
		}
	}
}

// Next returns the next token from the input.
func (l *Lexer) Next() token.Token {
	l.skipWhitespace()

	l.start = l.pos
	l.scol = l.col

	if l.pos >= len(l.input) {
		return l.makeToken(token.EOF)
	}

	ch := l.peek()

	switch {
	case isDigit(ch):
		return l.scanNumber()
	case unicode.IsLetter(ch):
		return l.scanIdentOrKeyword()
	case ch == '+':
		l.advance()
		return l.makeToken(token.Add)
	case ch == '-':
		l.advance()
		return l.makeToken(token.Sub)
	case ch == '*':
		l.advance()
		return l.makeToken(token.Mul)
	case ch == '/':
		l.advance()
		return l.makeToken(token.Div)
	case ch == '(':
		l.advance()
		return l.makeToken(token.LParen)
	case ch == ')':
		l.advance()
		return l.makeToken(token.RParen)
	case ch == '<':
		l.advance()
		return l.makeToken(token.LT)
	case ch == '>':
		l.advance()
		return l.makeToken(token.GT)
	case ch == '=':
		l.advance()
		// Only a second '=' is consumed; "a=5" lexes like "a = 5".
		if l.peek() == '=' {
			l.advance()
			return l.makeToken(token.EQ)
		}
		return l.makeToken(token.Assign)
	default:
		l.advance()
		return l.makeToken(token.Illegal)
	}
}

func (l *Lexer) scanNumber() token.Token {
	for l.pos < len(l.input) && (isDigit(l.peek()) || l.peek() == '.') {
		l.advance()
	}
	tok := l.makeToken(token.Num)
	v, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		tok.Kind = token.Illegal
		return tok
	}
	tok.Num = v
	return tok
}

func (l *Lexer) scanIdentOrKeyword() token.Token {
	for l.pos < len(l.input) && unicode.IsLetter(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(token.Ident)
	tok.Kind = token.LookupKeyword(tok.Text)
	if tok.Kind == token.Ident {
		tok.Ident = tok.Text
	}
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	l.col++
}

func (l *Lexer) makeToken(kind token.Kind) token.Token {
	return token.Token{
		Kind:   kind,
		Text:   l.input[l.start:l.pos],
		Column: l.scol,
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
