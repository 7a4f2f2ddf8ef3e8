package compiler

import (
	"errors"
	"fmt"
)

// LexError reports input that no token rule matches.
type LexError struct {
	Pos Position
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// ParseError reports a missing or malformed construct. Span is nil only when
// the token sequence ran out.
type ParseError struct {
	Span *Span
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Span == nil {
		return "end of input: " + e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Span.Start, e.Msg)
}

// ErrorKind classifies a CompileError.
type ErrorKind int

const (
	UndefinedSymbol ErrorKind = iota
	Redeclaration
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedSymbol:
		return "undefined symbol"
	case Redeclaration:
		return "redeclared symbol"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// CompileError is a semantic failure found during code generation.
type CompileError struct {
	Kind ErrorKind
	Name string
	Span Span
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Span.Start, e.Kind, e.Name)
}

// ErrorSpan extracts the source location carried by any error produced by
// this package. A LexError is widened to a one-byte span.
func ErrorSpan(err error) (Span, bool) {
	var lexErr *LexError
	if errors.As(err, &lexErr) {
		return NewSpan(lexErr.Pos.Line, lexErr.Pos.Column, 1), true
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if parseErr.Span == nil {
			return Span{}, false
		}
		return *parseErr.Span, true
	}
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Span, true
	}
	return Span{}, false
}

// ErrorMessage returns err's message without the location prefix.
func ErrorMessage(err error) string {
	var lexErr *LexError
	if errors.As(err, &lexErr) {
		return lexErr.Msg
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Msg
	}
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return fmt.Sprintf("%s %q", compileErr.Kind, compileErr.Name)
	}
	return err.Error()
}
