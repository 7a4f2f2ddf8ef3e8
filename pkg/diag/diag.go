// Package diag renders compiler errors against the source text with caret
// underlines beneath the offending range.
package diag

import (
	"fmt"
	"strings"

	"letc/pkg/compiler"
)

// Render prints every source line that span touches, each followed by a '^'
// underline covering that line's part of the span, then msg. A nil span
// prints only the message.
func Render(src string, span *compiler.Span, msg string) string {
	var sb strings.Builder
	if span != nil {
		writeSnippet(&sb, strings.Split(src, "\n"), *span)
	}
	fmt.Fprintf(&sb, "error: %s\n", msg)
	return sb.String()
}

// RenderPosition marks a single column.
func RenderPosition(src string, pos compiler.Position, msg string) string {
	span := compiler.NewSpan(pos.Line, pos.Column, 1)
	return Render(src, &span, msg)
}

// FromError renders any error returned by the compiler pipeline. Errors
// without a location render as a bare message.
func FromError(src string, err error) string {
	if span, ok := compiler.ErrorSpan(err); ok {
		return Render(src, &span, compiler.ErrorMessage(err))
	}
	return Render(src, nil, compiler.ErrorMessage(err))
}

func writeSnippet(sb *strings.Builder, lines []string, span compiler.Span) {
	first, last := span.Start.Line, span.End.Line
	// A span ending at column 0 stops before that line.
	if last > first && span.End.Column == 0 {
		last--
	}
	if first < 0 || first >= len(lines) {
		return
	}
	last = min(last, len(lines)-1)

	width := len(fmt.Sprint(last + 1))
	gutter := strings.Repeat(" ", width) + " |"

	sb.WriteString(fmt.Sprintf(" --> %s\n", span.Start))
	sb.WriteString(gutter + "\n")
	for n := first; n <= last; n++ {
		text := lines[n]
		fmt.Fprintf(sb, "%*d | %s\n", width, n+1, text)

		from, to := 0, len(text)
		if n == first {
			from = min(span.Start.Column, len(text))
		}
		if n == span.End.Line {
			to = min(span.End.Column, len(text))
		}
		if to <= from {
			to = from + 1
		}
		sb.WriteString(gutter + " " + indent(text[:from]) + strings.Repeat("^", to-from) + "\n")
	}
}

// indent blanks out prefix while keeping its tabs so the carets line up.
func indent(prefix string) string {
	var sb strings.Builder
	for _, r := range prefix {
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
