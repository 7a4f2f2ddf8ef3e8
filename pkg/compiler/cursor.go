package compiler

// cursor is the parser's read position over a token slice. Speculative parses
// go through attempt, which puts the position back when the sub-parser fails.
type cursor struct {
	tokens []Token
	pos    int
}

func newCursor(tokens []Token) *cursor {
	return &cursor{tokens: tokens}
}

func (c *cursor) hasNext() bool {
	return c.pos < len(c.tokens)
}

// peek returns the current token without consuming it.
func (c *cursor) peek() (*Token, bool) {
	return c.peekAt(0)
}

// peekAt returns the token offset positions ahead of the current one.
func (c *cursor) peekAt(offset int) (*Token, bool) {
	if c.pos+offset >= len(c.tokens) {
		return nil, false
	}
	return &c.tokens[c.pos+offset], true
}

// next consumes and returns the current token.
func (c *cursor) next() (*Token, bool) {
	tok, ok := c.peek()
	if ok {
		c.pos++
	}
	return tok, ok
}

// skipWhile consumes tokens while accept holds and returns how many it took.
func (c *cursor) skipWhile(accept func(*Token) bool) int {
	n := 0
	for {
		tok, ok := c.peek()
		if !ok || !accept(tok) {
			return n
		}
		c.pos++
		n++
	}
}

func (c *cursor) skipLineBreaks() int {
	return c.skipWhile(func(t *Token) bool { return t.Type == LINEBREAK })
}

// attempt runs parse and commits its progress only on success. On failure the
// cursor is left exactly where it was.
func attempt[T any](c *cursor, parse func(*cursor) (T, error)) (T, error) {
	saved := c.pos
	result, err := parse(c)
	if err != nil {
		c.pos = saved
		var zero T
		return zero, err
	}
	return result, nil
}
