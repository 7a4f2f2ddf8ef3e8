package compiler

import (
	"fmt"
	"slices"
)

// Parse consumes the token sequence produced by Tokenize and builds the AST.
//
// Grammar (LB is a LINEBREAK token):
//
//	program    = LB* (function LB*)*
//	function   = "func" IDENT "(" params ")" LB* expression
//	params     = (IDENT ("," IDENT)* ","?)?              at most 6
//	expression = ifExpr | blockExpr | pureExpr          tried in this order
//	ifExpr     = "if" expression LB* "then" LB* expression LB* "else" LB* expression
//	blockExpr  = "{" LB* (statement LB+)* (expression | returnStmt) LB* "}"
//	statement  = "let" IDENT "=" expression | returnStmt
//	returnStmt = "return" expression
//	pureExpr   = equality
//	equality   = relational (("==" | "!=") relational)*
//	relational = add (("<" | "<=" | ">" | ">=") add)*
//	add        = multiply (("+" | "-") multiply)*
//	multiply   = unary (("*" | "/") unary)*
//	unary      = ("+" | "-")? primary
//	primary    = NUMBER | IDENT "(" args ")" | IDENT | "(" expression ")"
//	args       = (expression ("," expression)* ","?)?   at most 6
func Parse(tokens []Token) (*Root, error) {
	c := newCursor(tokens)
	root := &Root{}
	c.skipLineBreaks()
	for c.hasNext() {
		fn, err := parseFunction(c)
		if err != nil {
			return nil, err
		}
		root.Functions = append(root.Functions, fn)
		c.skipLineBreaks()
	}
	return root, nil
}

// maxArgs is the number of integer argument registers in the calling
// convention.
const maxArgs = 6

// expected builds the error for a missing construct at tok. A nil tok means
// the tokens ran out.
func expected(tok *Token, format string, args ...any) *ParseError {
	msg := "expected " + fmt.Sprintf(format, args...)
	if tok == nil {
		return &ParseError{Msg: msg}
	}
	span := tok.Span
	return &ParseError{Span: &span, Msg: msg}
}

// furthest picks whichever failure got further into the input. Running out of
// tokens counts as furthest; ties go to the later candidate.
func furthest(best *ParseError, candidate error) *ParseError {
	cand, ok := candidate.(*ParseError)
	if !ok {
		return best
	}
	switch {
	case best == nil:
		return cand
	case best.Span == nil:
		return best
	case cand.Span == nil:
		return cand
	case cand.Span.Start.Less(best.Span.Start):
		return best
	default:
		return cand
	}
}

// expectToken consumes the current token if match accepts it.
func expectToken(c *cursor, match func(*Token) bool, what string) (*Token, error) {
	tok, ok := c.peek()
	if !ok {
		return nil, expected(nil, "%s", what)
	}
	if !match(tok) {
		return nil, expected(tok, "%s", what)
	}
	c.next()
	return tok, nil
}

func expectReserved(c *cursor, w ReservedWord) (*Token, error) {
	return expectToken(c, func(t *Token) bool { return t.IsReserved(w) }, fmt.Sprintf("%q", w.String()))
}

func expectBracket(c *cursor, side BracketSide, kind BracketKind) (*Token, error) {
	return expectToken(c, func(t *Token) bool { return t.IsBracket(side, kind) }, fmt.Sprintf("%q", bracketSymbol(side, kind)))
}

func expectIdentifier(c *cursor, what string) (*Identifier, error) {
	tok, err := expectToken(c, func(t *Token) bool { return t.Type == IDENTIFIER }, what)
	if err != nil {
		return nil, err
	}
	return &Identifier{Name: tok.Name, span: tok.Span}, nil
}

func parseFunction(c *cursor) (*Function, error) {
	funcTok, err := expectReserved(c, FUNC)
	if err != nil {
		return nil, err
	}
	name, err := expectIdentifier(c, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := expectBracket(c, LEFT, ROUND); err != nil {
		return nil, err
	}
	params, listErr := parseList(c, func(c *cursor) (*Identifier, error) {
		return expectIdentifier(c, "parameter name")
	})
	if _, err := expectBracket(c, RIGHT, ROUND); err != nil {
		return nil, furthest(listErr, err)
	}
	c.skipLineBreaks()
	body, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	return &Function{
		Name:   name,
		Params: params,
		Body:   body,
		span:   funcTok.Span.Merge(body.Span()),
	}, nil
}

// parseList reads up to maxArgs comma-separated elements, allowing a trailing
// comma. The list ends quietly when an element or comma is missing; the
// element failure, if any, is returned so the caller can report it when the
// closing bracket is also missing.
func parseList[E any](c *cursor, element func(*cursor) (E, error)) ([]E, *ParseError) {
	var elems []E
	for len(elems) < maxArgs {
		elem, err := attempt(c, element)
		if err != nil {
			return elems, furthest(nil, err)
		}
		elems = append(elems, elem)
		tok, ok := c.peek()
		if !ok || tok.Type != COMMA {
			break
		}
		c.next()
	}
	return elems, nil
}

// parseExpression tries each expression form in turn, rolling back after a
// failed alternative.
func parseExpression(c *cursor) (Expression, error) {
	if !c.hasNext() {
		return nil, expected(nil, "expression")
	}
	alternatives := []func(*cursor) (Expression, error){
		parseIfExpression,
		parseBlockExpression,
		parsePureExpression,
	}
	var best *ParseError
	for _, alt := range alternatives {
		expr, err := attempt(c, alt)
		if err == nil {
			return expr, nil
		}
		best = furthest(best, err)
	}
	return nil, best
}

func parseIfExpression(c *cursor) (Expression, error) {
	ifTok, err := expectReserved(c, IF)
	if err != nil {
		return nil, err
	}
	cond, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	c.skipLineBreaks()
	if _, err := expectReserved(c, THEN); err != nil {
		return nil, err
	}
	c.skipLineBreaks()
	then, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	c.skipLineBreaks()
	if _, err := expectReserved(c, ELSE); err != nil {
		return nil, err
	}
	c.skipLineBreaks()
	els, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	return &IfExpression{
		Cond: cond,
		Then: then,
		Else: els,
		span: ifTok.Span.Merge(els.Span()),
	}, nil
}

func parseBlockExpression(c *cursor) (Expression, error) {
	open, err := expectBracket(c, LEFT, CURLY)
	if err != nil {
		return nil, err
	}
	block := &BlockExpression{}
	c.skipLineBreaks()
	for {
		tok, ok := c.peek()
		if !ok {
			return nil, expected(nil, "%q", "}")
		}
		if !tok.IsReserved(LET) && !tok.IsReserved(RETURN) {
			break
		}
		stmt, err := parseStatement(c)
		if err != nil {
			return nil, err
		}
		breaks := c.skipLineBreaks()
		if next, ok := c.peek(); ok && next.IsBracket(RIGHT, CURLY) {
			if _, isReturn := stmt.(*Return); !isReturn {
				return nil, expected(next, "expression before %q", "}")
			}
			block.Statements = append(block.Statements, stmt)
			c.next()
			block.span = open.Span.Merge(next.Span)
			return block, nil
		}
		if breaks == 0 {
			next, _ := c.peek()
			return nil, expected(next, "line break or %q", "}")
		}
		block.Statements = append(block.Statements, stmt)
	}
	outcome, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	c.skipLineBreaks()
	closing, err := expectBracket(c, RIGHT, CURLY)
	if err != nil {
		return nil, err
	}
	block.Outcome = outcome
	block.span = open.Span.Merge(closing.Span)
	return block, nil
}

func parseStatement(c *cursor) (Statement, error) {
	tok, ok := c.peek()
	if ok && tok.IsReserved(RETURN) {
		return parseReturn(c)
	}
	return parseAssignment(c)
}

func parseAssignment(c *cursor) (Statement, error) {
	letTok, err := expectReserved(c, LET)
	if err != nil {
		return nil, err
	}
	target, err := expectIdentifier(c, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := expectToken(c, func(t *Token) bool { return t.IsOperator(ASSIGN) }, `"="`); err != nil {
		return nil, err
	}
	value, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	return &Assignment{Target: target, Value: value, span: letTok.Span.Merge(value.Span())}, nil
}

func parseReturn(c *cursor) (*Return, error) {
	retTok, err := expectReserved(c, RETURN)
	if err != nil {
		return nil, err
	}
	value, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	return &Return{Value: value, span: retTok.Span.Merge(value.Span())}, nil
}

func parsePureExpression(c *cursor) (Expression, error) {
	eq, err := parseEquality(c)
	if err != nil {
		return nil, err
	}
	return &PureExpression{Equality: eq}, nil
}

// parseChain implements every binary precedence level: one element of the
// next-tighter level, then (operator, element) pairs while the next token is
// one of ops.
func parseChain[E Node](c *cursor, next func(*cursor) (E, error), ops ...Operator) (Chain[E], error) {
	head, err := next(c)
	if err != nil {
		return Chain[E]{}, err
	}
	chain := Chain[E]{Head: head}
	for {
		tok, ok := c.peek()
		if !ok || tok.Type != OPERATOR || !slices.Contains(ops, tok.Op) {
			return chain, nil
		}
		c.next()
		elem, err := next(c)
		if err != nil {
			return Chain[E]{}, err
		}
		chain.Tail = append(chain.Tail, Link[E]{Op: tok.Op, OpSpan: tok.Span, Elem: elem})
	}
}

func parseEquality(c *cursor) (*Equality, error) {
	chain, err := parseChain(c, parseRelational, EQUAL, NOT_EQUAL)
	if err != nil {
		return nil, err
	}
	return &Equality{chain}, nil
}

func parseRelational(c *cursor) (*Relational, error) {
	chain, err := parseChain(c, parseAdd, LESS, LESS_EQ, GREATER, GREATER_EQ)
	if err != nil {
		return nil, err
	}
	return &Relational{chain}, nil
}

func parseAdd(c *cursor) (*Add, error) {
	chain, err := parseChain(c, parseMultiply, ADD, SUB)
	if err != nil {
		return nil, err
	}
	return &Add{chain}, nil
}

func parseMultiply(c *cursor) (*Multiply, error) {
	chain, err := parseChain(c, parseUnary, MUL, DIV)
	if err != nil {
		return nil, err
	}
	return &Multiply{chain}, nil
}

func parseUnary(c *cursor) (*Unary, error) {
	tok, ok := c.peek()
	if !ok {
		return nil, expected(nil, "%q, %q or an operand", "+", "-")
	}
	if tok.IsOperator(ADD) || tok.IsOperator(SUB) {
		c.next()
		operand, err := parsePrimary(c)
		if err != nil {
			return nil, err
		}
		return &Unary{Negative: tok.Op == SUB, Operand: operand, span: tok.Span.Merge(operand.Span())}, nil
	}
	operand, err := parsePrimary(c)
	if err != nil {
		return nil, err
	}
	return &Unary{Operand: operand, span: operand.Span()}, nil
}

func parsePrimary(c *cursor) (Primary, error) {
	tok, ok := c.peek()
	if !ok {
		return nil, expected(nil, "number, identifier or %q", "(")
	}
	switch {
	case tok.Type == NUMBER:
		c.next()
		return &Integer{Value: tok.Value, span: tok.Span}, nil
	case tok.Type == IDENTIFIER:
		call, err := attempt(c, parseCall)
		if err == nil {
			return call, nil
		}
		// An identifier followed by "(" commits to a call.
		if after, ok := c.peekAt(1); ok && after.IsBracket(LEFT, ROUND) {
			return nil, err
		}
		c.next()
		return &Identifier{Name: tok.Name, span: tok.Span}, nil
	case tok.IsBracket(LEFT, ROUND):
		return parseParenthesized(c)
	}
	return nil, expected(tok, "number, identifier or %q", "(")
}

func parseParenthesized(c *cursor) (Primary, error) {
	open, err := expectBracket(c, LEFT, ROUND)
	if err != nil {
		return nil, err
	}
	inner, err := parseExpression(c)
	if err != nil {
		return nil, err
	}
	closing, err := expectBracket(c, RIGHT, ROUND)
	if err != nil {
		return nil, err
	}
	return &Parenthesized{Inner: inner, span: open.Span.Merge(closing.Span)}, nil
}

func parseCall(c *cursor) (*Call, error) {
	callee, err := expectIdentifier(c, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := expectBracket(c, LEFT, ROUND); err != nil {
		return nil, err
	}
	args, listErr := parseList(c, parseExpression)
	closing, err := expectBracket(c, RIGHT, ROUND)
	if err != nil {
		return nil, furthest(listErr, err)
	}
	return &Call{Callee: callee, Args: args, span: callee.Span().Merge(closing.Span)}, nil
}
