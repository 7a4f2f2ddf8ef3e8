package compiler

// trie is a byte-keyed dictionary that answers longest-prefix queries. The
// lexer uses it to resolve symbols such as "<" and "<=" without ordering
// special cases by hand.
type trie struct {
	children map[byte]*trie
	value    *Token // non-nil when a key ends at this node
}

func newTrie() *trie {
	return &trie{children: make(map[byte]*trie)}
}

// insert stores tmpl under key, replacing any previous entry.
func (t *trie) insert(key string, tmpl Token) {
	node := t
	for i := 0; i < len(key); i++ {
		next, ok := node.children[key[i]]
		if !ok {
			next = newTrie()
			node.children[key[i]] = next
		}
		node = next
	}
	v := tmpl
	node.value = &v
}

// longestMatch returns the entry for the longest key that is a prefix of src
// and that key's length. ok is false when no key matches.
func (t *trie) longestMatch(src []byte) (tmpl Token, length int, ok bool) {
	node := t
	for i := 0; i < len(src); i++ {
		next, found := node.children[src[i]]
		if !found {
			break
		}
		node = next
		if node.value != nil {
			tmpl, length, ok = *node.value, i+1, true
		}
	}
	return tmpl, length, ok
}

// symbols is the fixed operator/bracket/separator dictionary.
var symbols = func() *trie {
	t := newTrie()
	for op := ADD; op <= ASSIGN; op++ {
		t.insert(op.String(), Token{Type: OPERATOR, Op: op})
	}
	for _, side := range []BracketSide{LEFT, RIGHT} {
		for _, kind := range []BracketKind{ROUND, CURLY} {
			t.insert(bracketSymbol(side, kind), Token{Type: BRACKET, Side: side, Bracket: kind})
		}
	}
	t.insert(",", Token{Type: COMMA})
	t.insert(";", Token{Type: LINEBREAK})
	t.insert("\n", Token{Type: LINEBREAK})
	return t
}()
