// Package compiler provides a lexer, parser, and code generator for a small
// expression-and-function language that targets x86-64 assembly (Intel syntax).
//
// Pipeline: source → Tokenize → Parse → Compile → Program.Render → assembly text
package compiler
