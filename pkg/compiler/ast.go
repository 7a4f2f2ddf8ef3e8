package compiler

import (
	"fmt"
	"strings"
)

// Node is implemented by every AST node. Each node owns the span from its
// first to its last consumed token.
type Node interface {
	Span() Span
	String() string
}

//  Top level

// Root is a whole program: an ordered list of functions.
type Root struct {
	Functions []*Function
}

func (r *Root) Span() Span {
	if len(r.Functions) == 0 {
		return Span{}
	}
	span := r.Functions[0].Span()
	for _, fn := range r.Functions[1:] {
		span = span.Merge(fn.Span())
	}
	return span
}

func (r *Root) String() string {
	parts := make([]string, len(r.Functions))
	for i, fn := range r.Functions {
		parts[i] = fn.String()
	}
	return strings.Join(parts, "\n")
}

// Function is a named function definition.
//
//	func add(a, b) a + b
//	     ^^^ ^^^^  ^^^^^
//	     Name Params Body
type Function struct {
	Name   *Identifier
	Params []*Identifier
	Body   Expression
	span   Span
}

func (f *Function) Span() Span { return f.span }
func (f *Function) String() string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("func %s(%s) %s", f.Name.Name, strings.Join(names, ", "), f.Body)
}

//  Statements

// Statement is an item of a block that is not its outcome.
type Statement interface {
	Node
	stmtNode()
}

// Assignment declares Target in the current block.
//
//	let x = 1 + 2
type Assignment struct {
	Target *Identifier
	Value  Expression
	span   Span
}

func (*Assignment) stmtNode()        {}
func (a *Assignment) Span() Span     { return a.span }
func (a *Assignment) String() string { return fmt.Sprintf("let %s = %s", a.Target.Name, a.Value) }

// Return leaves the enclosing function with Value.
type Return struct {
	Value Expression
	span  Span
}

func (*Return) stmtNode()        {}
func (r *Return) Span() Span     { return r.span }
func (r *Return) String() string { return fmt.Sprintf("return %s", r.Value) }

//  Expressions

// Expression is implemented by every node that produces a value.
// Compiling an Expression leaves exactly one value on the evaluation stack.
type Expression interface {
	Node
	exprNode()
}

// PureExpression is an arithmetic/comparison expression.
type PureExpression struct {
	Equality *Equality
}

func (*PureExpression) exprNode()        {}
func (p *PureExpression) Span() Span     { return p.Equality.Span() }
func (p *PureExpression) String() string { return p.Equality.String() }

// IfExpression evaluates Then when Cond is non-zero, otherwise Else.
type IfExpression struct {
	Cond Expression
	Then Expression
	Else Expression
	span Span
}

func (*IfExpression) exprNode()    {}
func (i *IfExpression) Span() Span { return i.span }
func (i *IfExpression) String() string {
	return fmt.Sprintf("if %s then %s else %s", i.Cond, i.Then, i.Else)
}

// BlockExpression opens a lexical block. Its value is Outcome. A block whose
// last item is a return has a nil Outcome and never yields a value.
type BlockExpression struct {
	Statements []Statement
	Outcome    Expression
	span       Span
}

func (*BlockExpression) exprNode()    {}
func (b *BlockExpression) Span() Span { return b.span }
func (b *BlockExpression) String() string {
	parts := make([]string, 0, len(b.Statements)+1)
	for _, s := range b.Statements {
		parts = append(parts, s.String())
	}
	if b.Outcome != nil {
		parts = append(parts, b.Outcome.String())
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

// diverges reports whether control can never continue past e.
func diverges(e Expression) bool {
	switch n := e.(type) {
	case *BlockExpression:
		return n.Outcome == nil || diverges(n.Outcome)
	case *IfExpression:
		return diverges(n.Then) && diverges(n.Else)
	}
	return false
}

//  Binary operator chains

// Link is one (operator, operand) pair following a chain's head.
type Link[E Node] struct {
	Op     Operator
	OpSpan Span
	Elem   E
}

// Chain is a left-associative sequence Head op Elem op Elem ... shared by all
// binary precedence levels.
type Chain[E Node] struct {
	Head E
	Tail []Link[E]
}

func (c Chain[E]) Span() Span {
	span := c.Head.Span()
	for _, link := range c.Tail {
		span = span.Merge(link.OpSpan).Merge(link.Elem.Span())
	}
	return span
}

func (c Chain[E]) String() string {
	if len(c.Tail) == 0 {
		return c.Head.String()
	}
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(c.Head.String())
	for _, link := range c.Tail {
		fmt.Fprintf(&sb, " %s %s", link.Op, link.Elem)
	}
	sb.WriteString(")")
	return sb.String()
}

// Equality is relational (("==" | "!=") relational)*.
type Equality struct{ Chain[*Relational] }

// Relational is add (("<" | "<=" | ">" | ">=") add)*.
type Relational struct{ Chain[*Add] }

// Add is multiply (("+" | "-") multiply)*.
type Add struct{ Chain[*Multiply] }

// Multiply is unary (("*" | "/") unary)*.
type Multiply struct{ Chain[*Unary] }

// Unary is an optionally signed primary.
//
//	-x
//	^^  Unary{Negative: true, Operand: Identifier{x}}
type Unary struct {
	Negative bool
	Operand  Primary
	span     Span
}

func (u *Unary) Span() Span { return u.span }
func (u *Unary) String() string {
	if u.Negative {
		return "-" + u.Operand.String()
	}
	return u.Operand.String()
}

//  Primaries

// Primary is an operand of the tightest precedence level.
type Primary interface {
	Node
	primaryNode()
}

// Integer is a literal value.
type Integer struct {
	Value int64
	span  Span
}

func (*Integer) primaryNode()     {}
func (i *Integer) Span() Span     { return i.span }
func (i *Integer) String() string { return fmt.Sprintf("%d", i.Value) }

// Identifier is a reference to a variable or parameter; it also names
// functions, parameters and assignment targets.
type Identifier struct {
	Name string
	span Span
}

func (*Identifier) primaryNode()      {}
func (id *Identifier) Span() Span     { return id.span }
func (id *Identifier) String() string { return id.Name }

// Parenthesized wraps an expression in ( ). Its span includes the brackets.
type Parenthesized struct {
	Inner Expression
	span  Span
}

func (*Parenthesized) primaryNode()     {}
func (p *Parenthesized) Span() Span     { return p.span }
func (p *Parenthesized) String() string { return "(" + p.Inner.String() + ")" }

// Call invokes the function Callee with up to six arguments.
type Call struct {
	Callee *Identifier
	Args   []Expression
	span   Span
}

func (*Call) primaryNode() {}
func (c *Call) Span() Span { return c.span }
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Callee.Name, strings.Join(args, ", "))
}
