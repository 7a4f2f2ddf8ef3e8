package cpu

import "testing"

// countdown returns a program that decrements rdi to zero.
func countdown() *Program {
	return program(
		ins(OpCMP, reg(RDI), imm(0)),
		ins(OpJE, target(4)),
		ins(OpSUB, reg(RDI), imm(1)),
		ins(OpJMP, target(0)),
		ins(OpMOV, reg(RAX), reg(RDI)),
		ins(OpRET),
	)
}

// BenchmarkCPU_Loop measures Step dispatch on a tight compare/branch loop.
func BenchmarkCPU_Loop(b *testing.B) {
	prog := countdown()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := New(prog, Options{StackSize: 4096})
		if _, err := c.Run("f", 1000); err != nil {
			b.Fatal(err)
		}
	}
}
