package compiler

import (
	"strconv"
)

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src    []byte
	pos    int // index of the next byte to consume
	line   int // current 0-based source line
	column int // current 0-based column within line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []byte(src)}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.column}
}

// advance consumes n bytes, keeping line and column in step.
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.column = 0
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) skipSpaces() {
	for l.pos < len(l.src) {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance(1)
		default:
			return
		}
	}
}

// run returns the length of the maximal run starting at the current position
// whose bytes all satisfy accept.
func (l *Lexer) run(accept func(byte) bool) int {
	n := 0
	for l.pos+n < len(l.src) && accept(l.src[l.pos+n]) {
		n++
	}
	return n
}

// scanNumber collects a base-10 integer literal. The first digit must still be
// at l.peek().
func (l *Lexer) scanNumber() (Token, error) {
	start := l.position()
	n := l.run(isDigit)
	text := string(l.src[l.pos : l.pos+n])
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Token{}, &LexError{Pos: start, Msg: "integer literal " + text + " does not fit in 64 bits"}
	}
	l.advance(n)
	return Token{Type: NUMBER, Value: value, Span: NewSpan(start.Line, start.Column, n)}, nil
}

// scanWord collects a reserved word or identifier. The first letter must still
// be at l.peek().
func (l *Lexer) scanWord() Token {
	start := l.position()
	n := l.run(isWordByte)
	word := string(l.src[l.pos : l.pos+n])
	l.advance(n)
	span := NewSpan(start.Line, start.Column, n)
	if w, ok := reservedWords[word]; ok {
		return Token{Type: RESERVED, Word: w, Span: span}
	}
	return Token{Type: IDENTIFIER, Name: word, Span: span}
}

// scanSymbol resolves operators, brackets and separators by longest match.
func (l *Lexer) scanSymbol() (Token, error) {
	start := l.position()
	tmpl, n, ok := symbols.longestMatch(l.src[l.pos:])
	if !ok {
		return Token{}, &LexError{Pos: start, Msg: "unexpected character " + strconv.QuoteRune(rune(l.peek()))}
	}
	l.advance(n)
	tmpl.Span = NewSpan(start.Line, start.Column, n)
	return tmpl, nil
}

// nextToken skips spaces and returns the next Token. ok is false at end of
// input.
func (l *Lexer) nextToken() (tok Token, ok bool, err error) {
	l.skipSpaces()
	if l.pos >= len(l.src) {
		return Token{}, false, nil
	}
	ch := l.peek()
	switch {
	case isDigit(ch):
		tok, err = l.scanNumber()
	case isLetter(ch):
		tok = l.scanWord()
	default:
		tok, err = l.scanSymbol()
	}
	if err != nil {
		return Token{}, false, err
	}
	return tok, true, nil
}

// Tokenize converts src into its token sequence. Newlines and ';' are kept as
// LINEBREAK tokens. On the first unmatched character it returns a *LexError
// and no tokens.
func Tokenize(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, ok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		if !ok {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isWordByte(b byte) bool {
	return isLetter(b) || isDigit(b) || b == '_'
}
