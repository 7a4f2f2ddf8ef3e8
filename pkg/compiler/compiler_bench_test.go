package compiler

import (
	"fmt"
	"strings"
	"testing"
)

func benchSource(functions int) string {
	var sb strings.Builder
	for i := 0; i < functions; i++ {
		fmt.Fprintf(&sb, "func f%d(a, b) {\n  let c = a * b + %d\n  let d = if c < 10 then c else f%d(c - 1, b)\n  d / 2\n}\n", i, i, i)
	}
	return sb.String()
}

func BenchmarkTokenize(b *testing.B) {
	src := benchSource(200)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Tokenize(src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile(b *testing.B) {
	tokens, err := Tokenize(benchSource(200))
	if err != nil {
		b.Fatal(err)
	}
	root, err := Parse(tokens)
	if err != nil {
		b.Fatal(err)
	}

	for _, parallel := range []bool{false, true} {
		b.Run(fmt.Sprintf("parallel=%v", parallel), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Compile(root, Options{Parallel: parallel}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
