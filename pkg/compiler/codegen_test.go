package compiler

import (
	"errors"
	"strings"
	"testing"
)

func compileSource(t *testing.T, src string, opts Options) *Program {
	t.Helper()
	prog, err := CompileSource(src, opts)
	if err != nil {
		t.Fatalf("CompileSource(%q) failed: %v", src, err)
	}
	return prog
}

func TestCodegenExactOutput(t *testing.T) {
	prog := compileSource(t, "func main() 1 + 2", Options{})
	want := `.intel_syntax noprefix
.global main
main:
  push rbp
  mov rbp, rsp
  push 1
  push 2
  pop rdi
  pop rax
  add rax, rdi
  push rax
  pop rax
  mov rsp, rbp
  pop rbp
  ret
`
	if got := prog.Render(Naming{}); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestCodegenOperators(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"func main() 1 - 2", []string{"  sub rax, rdi"}},
		{"func main() 1 * 2", []string{"  imul rax, rdi"}},
		{"func main() 1 / 2", []string{"  cqo", "  idiv rdi"}},
		{"func main() 1 == 2", []string{"  cmp rax, rdi", "  sete al", "  movzx rax, al"}},
		{"func main() 1 != 2", []string{"  setne al"}},
		{"func main() 1 < 2", []string{"  setl al"}},
		{"func main() 1 <= 2", []string{"  setle al"}},
		{"func main() 1 > 2", []string{"  setg al"}},
		{"func main() 1 >= 2", []string{"  setge al"}},
		{"func main() -1", []string{"  pop rdi", "  mov rax, 0", "  sub rax, rdi", "  push rax"}},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			out := compileSource(t, tc.src, Options{}).Render(Naming{})
			if !strings.Contains(out, strings.Join(tc.want, "\n")+"\n") {
				t.Errorf("output lacks %q:\n%s", tc.want, out)
			}
		})
	}
}

func TestCodegenIntegerImmediates(t *testing.T) {
	tests := []struct {
		src  string
		want string
		not  string
	}{
		{"func main() 2147483647", "  push 2147483647\n", "mov rax, 2147483647"},
		{"func main() -2147483647", "  push 2147483647\n  pop rdi\n", "mov rax, 2147483647"},
		{"func main() -2147483648", "  mov rax, 2147483648\n  push rax\n  pop rdi\n", "  push 2147483648"},
		{"func main() 3000000000 - 2999999990", "  mov rax, 3000000000\n  push rax\n  mov rax, 2999999990\n  push rax\n", "  push 3"},
		{"func main() 9223372036854775807 - 1", "  mov rax, 9223372036854775807\n  push rax\n  push 1\n", "  push 9223372036854775807"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			out := compileSource(t, tc.src, Options{}).Render(Naming{})
			if !strings.Contains(out, tc.want) {
				t.Errorf("output lacks %q:\n%s", tc.want, out)
			}
			if strings.Contains(out, tc.not) {
				t.Errorf("output contains %q:\n%s", tc.not, out)
			}
		})
	}
}

func TestCodegenIfLabels(t *testing.T) {
	out := compileSource(t, "func main() if 1 then 2 else 3", Options{}).Render(Naming{})
	for _, want := range []string{
		"  cmp rax, 0\n  je .Lmain.0\n",
		"  jmp .Lmain.1\n.Lmain.0:\n",
		".Lmain.1:\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestCodegenLabelsPerFunction(t *testing.T) {
	prog := compileSource(t, "func a() if 1 then 2 else 3\nfunc b() if 1 then 2 else 3", Options{})
	out := prog.Render(Naming{})
	if !strings.Contains(out, ".La.0:") || !strings.Contains(out, ".Lb.0:") {
		t.Errorf("labels should be qualified by function:\n%s", out)
	}
}

func TestCodegenNaming(t *testing.T) {
	prog := compileSource(t, "func main() f(1)\nfunc f(x) if x then 1 else 2", Options{})
	out := prog.Render(Naming{SymbolPrefix: "_"})
	for _, want := range []string{".global _main\n_main:\n", ".global _f\n_f:\n", "  call _f\n", "  je .Lf.0\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "_.L") {
		t.Errorf("labels must not be prefixed:\n%s", out)
	}
}

func TestCodegenFrame(t *testing.T) {
	tests := []struct {
		src     string
		reserve string
	}{
		{"func main() 1", ""},
		{"func main(a) a", "  sub rsp, 16\n"},
		{"func main(a, b, c) a", "  sub rsp, 32\n"},
		{"func main() { let x = 1; ({ let y = 2; y }) + ({ let z = 3; z }) }", "  sub rsp, 32\n"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			prog := compileSource(t, tc.src, Options{})
			fn, ok := prog.Function("main")
			if !ok {
				t.Fatal("main not found")
			}
			prologue := RenderLines(fn.Lines[:2], Naming{})
			if prologue != "  push rbp\n  mov rbp, rsp\n" {
				t.Errorf("prologue = %q", prologue)
			}
			third := ""
			if ins, ok := fn.Lines[2].(Instruction); ok && ins.Op == SUBQ {
				third = ins.Render(Naming{}) + "\n"
			}
			if third != tc.reserve {
				t.Errorf("frame reservation = %q; want %q", third, tc.reserve)
			}
		})
	}
}

func TestCodegenParams(t *testing.T) {
	fn, _ := compileSource(t, "func f(a, b, c, d, e, g) a", Options{}).Function("f")
	out := RenderLines(fn.Lines, Naming{})
	for _, r := range []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"} {
		if !strings.Contains(out, "  push "+r+"\n") {
			t.Errorf("parameter register %s is never spilled:\n%s", r, out)
		}
	}
}

func TestCodegenDivergingBody(t *testing.T) {
	fn, _ := compileSource(t, "func main() { return 1 }", Options{}).Function("main")
	rets := 0
	for _, l := range fn.Lines {
		if ins, ok := l.(Instruction); ok && ins.Op == RET {
			rets++
		}
	}
	if rets != 1 {
		t.Errorf("got %d ret instructions; want 1", rets)
	}
}

func TestCodegenErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		sym  string
		span Span
	}{
		{"undefined", "func main() x", UndefinedSymbol, "x", NewSpan(0, 12, 1)},
		{"out of block", "func main() { let y = { let x = 1; x }; x }", UndefinedSymbol, "x", NewSpan(0, 40, 1)},
		{"use before let", "func main() { let x = x; x }", UndefinedSymbol, "x", NewSpan(0, 22, 1)},
		{"redeclared let", "func main() { let x = 1; let x = 2; x }", Redeclaration, "x", NewSpan(0, 29, 1)},
		{"redeclared param", "func main(a, a) a", Redeclaration, "a", NewSpan(0, 13, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileSource(tc.src, Options{})
			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("expected *CompileError, got %v", err)
			}
			if compileErr.Kind != tc.kind || compileErr.Name != tc.sym || compileErr.Span != tc.span {
				t.Errorf("got %s %q at %s; want %s %q at %s",
					compileErr.Kind, compileErr.Name, compileErr.Span, tc.kind, tc.sym, tc.span)
			}
		})
	}
}

func TestCodegenBlockShadowsParam(t *testing.T) {
	if _, err := CompileSource("func main(a) { let a = 1; a }", Options{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompileParallelMatchesSequential(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 40; i++ {
		src.WriteString("func f")
		src.WriteString(strings.Repeat("x", i))
		src.WriteString("(a, b) { let c = a * b; if c < 10 then c else g(c, 1) }\n")
	}
	seq := compileSource(t, src.String(), Options{}).Render(Naming{})
	par := compileSource(t, src.String(), Options{Parallel: true}).Render(Naming{})
	if seq != par {
		t.Error("parallel and sequential compiles differ")
	}
}

func TestCompileFirstErrorInSourceOrder(t *testing.T) {
	src := "func a() 1\nfunc b() x\nfunc c() y\nfunc d() { let z = 1; let z = 2; z }"
	for _, parallel := range []bool{false, true} {
		for i := 0; i < 20; i++ {
			_, err := CompileSource(src, Options{Parallel: parallel})
			var compileErr *CompileError
			if !errors.As(err, &compileErr) || compileErr.Name != "x" {
				t.Fatalf("parallel=%v: got %v; want the error for x", parallel, err)
			}
		}
	}
}

// TestCallSitesAligned walks straight-line code and checks that rsp is a
// multiple of 16 at every call, assuming the caller aligned it before
// pushing the return address.
func TestCallSitesAligned(t *testing.T) {
	sources := []string{
		"func main() f()",
		"func main() 1 + f()",
		"func main() 1 + (2 + f(3))",
		"func main(a) { let b = 2; a + b * f(a, b, g(1, 2, 3)) }",
		"func main(a, b, c) 1 + (2 + (3 + f(a, (4 + g(b)), c)))",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			fn, _ := compileSource(t, src, Options{}).Function("main")
			depth := wordSize // return address
			calls := 0
			for _, l := range fn.Lines {
				ins, ok := l.(Instruction)
				if !ok {
					t.Fatalf("unexpected label in straight-line code: %s", l.Render(Naming{}))
				}
				if ins.Op == RET {
					break
				}
				if ins.Op == CALL {
					calls++
					if depth%16 != 0 {
						t.Errorf("%s at depth %d", ins, depth)
					}
				}
				depth += stackEffect(ins)
			}
			if calls == 0 {
				t.Error("no calls found")
			}
		})
	}
}
