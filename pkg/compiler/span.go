package compiler

import "fmt"

// Position is a 0-based (line, column) location in source text. Columns count
// bytes from the start of the line.
type Position struct {
	Line   int
	Column int
}

// Less reports whether p comes strictly before q.
func (p Position) Less(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// String renders the position 1-based, the way editors count.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
}

// Span is the half-open source range [Start, End).
type Span struct {
	Start Position
	End   Position
}

// NewSpan returns the span of length bytes starting at (line, column).
func NewSpan(line, column, length int) Span {
	return Span{
		Start: Position{Line: line, Column: column},
		End:   Position{Line: line, Column: column + length},
	}
}

// Merge returns the smallest span containing both s and other.
func (s Span) Merge(other Span) Span {
	merged := s
	if other.Start.Less(merged.Start) {
		merged.Start = other.Start
	}
	if merged.End.Less(other.End) {
		merged.End = other.End
	}
	return merged
}

// Contains reports whether other lies entirely inside s.
func (s Span) Contains(other Span) bool {
	return !other.Start.Less(s.Start) && !s.End.Less(other.End)
}

func (s Span) String() string {
	return fmt.Sprintf("%s..%s", s.Start, s.End)
}
