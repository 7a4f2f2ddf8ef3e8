package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	OPERATOR   TokenType = iota // + - * / == != < <= > >= =
	RESERVED                    // let return if then else func
	NUMBER                      // decimal integer literal
	BRACKET                     // ( ) { }
	IDENTIFIER                  // variable / function name
	LINEBREAK                   // newline or ';'
	COMMA                       // ,
)

var tokenTypeNames = [...]string{
	OPERATOR:   "OPERATOR",
	RESERVED:   "RESERVED",
	NUMBER:     "NUMBER",
	BRACKET:    "BRACKET",
	IDENTIFIER: "IDENTIFIER",
	LINEBREAK:  "LINEBREAK",
	COMMA:      "COMMA",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenTypeNames) {
		return tokenTypeNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Operator is the kind of an OPERATOR token.
type Operator int

const (
	ADD        Operator = iota // +
	SUB                        // -
	MUL                        // *
	DIV                        // /
	EQUAL                      // ==
	NOT_EQUAL                  // !=
	LESS                       // <
	LESS_EQ                    // <=
	GREATER                    // >
	GREATER_EQ                 // >=
	ASSIGN                     // =
)

var operatorSymbols = [...]string{
	ADD:        "+",
	SUB:        "-",
	MUL:        "*",
	DIV:        "/",
	EQUAL:      "==",
	NOT_EQUAL:  "!=",
	LESS:       "<",
	LESS_EQ:    "<=",
	GREATER:    ">",
	GREATER_EQ: ">=",
	ASSIGN:     "=",
}

func (op Operator) String() string {
	if int(op) >= 0 && int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// ReservedWord is the kind of a RESERVED token.
type ReservedWord int

const (
	LET ReservedWord = iota
	RETURN
	IF
	THEN
	ELSE
	FUNC
)

// reservedWords maps source text to its ReservedWord.
var reservedWords = map[string]ReservedWord{
	"let":    LET,
	"return": RETURN,
	"if":     IF,
	"then":   THEN,
	"else":   ELSE,
	"func":   FUNC,
}

var reservedWordNames = [...]string{
	LET:    "let",
	RETURN: "return",
	IF:     "if",
	THEN:   "then",
	ELSE:   "else",
	FUNC:   "func",
}

func (w ReservedWord) String() string {
	if int(w) >= 0 && int(w) < len(reservedWordNames) {
		return reservedWordNames[w]
	}
	return fmt.Sprintf("ReservedWord(%d)", int(w))
}

// BracketKind distinguishes round from curly brackets.
type BracketKind int

const (
	ROUND BracketKind = iota // ( )
	CURLY                    // { }
)

// BracketSide is the opening or closing side of a bracket.
type BracketSide int

const (
	LEFT BracketSide = iota
	RIGHT
)

func bracketSymbol(side BracketSide, kind BracketKind) string {
	switch {
	case side == LEFT && kind == ROUND:
		return "("
	case side == RIGHT && kind == ROUND:
		return ")"
	case side == LEFT && kind == CURLY:
		return "{"
	default:
		return "}"
	}
}

// Token is a single lexical unit produced by Tokenize. Only the fields that
// belong to its Type are meaningful.
type Token struct {
	Type    TokenType
	Op      Operator     // OPERATOR
	Word    ReservedWord // RESERVED
	Value   int64        // NUMBER
	Side    BracketSide  // BRACKET
	Bracket BracketKind  // BRACKET
	Name    string       // IDENTIFIER
	Span    Span
}

// IsOperator reports whether t is the operator op.
func (t Token) IsOperator(op Operator) bool {
	return t.Type == OPERATOR && t.Op == op
}

// IsReserved reports whether t is the reserved word w.
func (t Token) IsReserved(w ReservedWord) bool {
	return t.Type == RESERVED && t.Word == w
}

// IsBracket reports whether t is the given bracket.
func (t Token) IsBracket(side BracketSide, kind BracketKind) bool {
	return t.Type == BRACKET && t.Side == side && t.Bracket == kind
}

// Text returns the source spelling of the token.
func (t Token) Text() string {
	switch t.Type {
	case OPERATOR:
		return t.Op.String()
	case RESERVED:
		return t.Word.String()
	case NUMBER:
		return fmt.Sprintf("%d", t.Value)
	case BRACKET:
		return bracketSymbol(t.Side, t.Bracket)
	case IDENTIFIER:
		return t.Name
	case LINEBREAK:
		return `\n`
	case COMMA:
		return ","
	}
	return "?"
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-8q  %s", t.Type, t.Text(), t.Span)
}
