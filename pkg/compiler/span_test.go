package compiler

import "testing"

func pos(line, col int) Position { return Position{Line: line, Column: col} }

func TestPositionOrder(t *testing.T) {
	tests := []struct {
		a, b Position
		less bool
	}{
		{pos(0, 0), pos(0, 1), true},
		{pos(0, 9), pos(1, 0), true},
		{pos(1, 0), pos(0, 9), false},
		{pos(2, 3), pos(2, 3), false},
	}
	for _, tc := range tests {
		if got := tc.a.Less(tc.b); got != tc.less {
			t.Errorf("%v.Less(%v) = %v; want %v", tc.a, tc.b, got, tc.less)
		}
	}
	if got := pos(0, 4).String(); got != "1:5" {
		t.Errorf("String() = %q; want 1:5", got)
	}
}

func TestSpanMerge(t *testing.T) {
	a := Span{Start: pos(0, 4), End: pos(0, 9)}
	b := Span{Start: pos(1, 0), End: pos(1, 3)}
	c := Span{Start: pos(0, 6), End: pos(2, 1)}

	if got := a.Merge(a); got != a {
		t.Errorf("merge is not idempotent: %v", got)
	}
	if a.Merge(b) != b.Merge(a) {
		t.Errorf("merge is not commutative: %v vs %v", a.Merge(b), b.Merge(a))
	}
	if a.Merge(b).Merge(c) != a.Merge(b.Merge(c)) {
		t.Error("merge is not associative")
	}

	want := Span{Start: pos(0, 4), End: pos(2, 1)}
	if got := a.Merge(c); got != want {
		t.Errorf("Merge = %v; want %v", got, want)
	}
	for _, s := range []Span{a, b, c} {
		if !a.Merge(b).Merge(c).Contains(s) {
			t.Errorf("merged span does not contain %v", s)
		}
	}
	if a.Contains(b) {
		t.Errorf("%v should not contain %v", a, b)
	}
}

func TestNewSpan(t *testing.T) {
	s := NewSpan(3, 2, 4)
	if s.Start != pos(3, 2) || s.End != pos(3, 6) {
		t.Errorf("NewSpan = %v", s)
	}
	if got := s.String(); got != "4:3..4:7" {
		t.Errorf("String() = %q", got)
	}
}
