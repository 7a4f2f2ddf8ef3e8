package asm

import (
	"strings"
	"testing"
)

// loopBody is a block of the instruction mix the compiler emits.
const loopBody = `  mov rax, rbp
  sub rax, 8
  mov rax, [rax]
  push rax
  push 1
  pop rdi
  pop rax
  cmp rax, rdi
  setle al
  movzx rax, al
  push rax
`

func BenchmarkAssemble(b *testing.B) {
	src := ".intel_syntax noprefix\n.global main\nmain:\n" + strings.Repeat(loopBody, 100) + "  ret\n"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Assemble(src); err != nil {
			b.Fatal(err)
		}
	}
}
