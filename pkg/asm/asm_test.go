package asm

import (
	"reflect"
	"strings"
	"testing"

	"letc/pkg/cpu"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"main", true},
		{"_main", true},
		{".Lmain.0", true},
		{"f1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
		{"[rax]", false},
	}
	for _, tc := range tests {
		if got := isSymbol(tc.input); got != tc.want {
			t.Errorf("isSymbol(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	if got := stripComments("push rax # save"); got != "push rax " {
		t.Errorf("stripComments = %q", got)
	}
	if got := stripComments("ret // done"); got != "ret " {
		t.Errorf("stripComments = %q", got)
	}
}

func TestParseOperand(t *testing.T) {
	tests := []struct {
		input   string
		want    cpu.Operand
		wantErr bool
	}{
		{"rax", cpu.Operand{Kind: cpu.KindReg, Reg: cpu.RAX}, false},
		{"R9", cpu.Operand{Kind: cpu.KindReg, Reg: cpu.R9}, false},
		{"al", cpu.Operand{Kind: cpu.KindReg8, Reg: cpu.RAX}, false},
		{"[rax]", cpu.Operand{Kind: cpu.KindMem, Reg: cpu.RAX}, false},
		{"[ rbp ]", cpu.Operand{Kind: cpu.KindMem, Reg: cpu.RBP}, false},
		{"42", cpu.Operand{Kind: cpu.KindImm, Imm: 42}, false},
		{"-9223372036854775808", cpu.Operand{Kind: cpu.KindImm, Imm: -9223372036854775808}, false},
		{"[al]", cpu.Operand{}, true},
		{"xmm0", cpu.Operand{}, true},
	}
	for _, tc := range tests {
		got, err := parseOperand(tc.input, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseOperand(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("parseOperand(%q) = %+v; want %+v", tc.input, got, tc.want)
		}
	}
}

func TestAssemble(t *testing.T) {
	src := `.intel_syntax noprefix
.global main
main:
  push rbp
  mov rbp, rsp
  push 7
  pop rax
  cmp rax, 0
  je .Lmain.0
  call helper
.Lmain.0:
  mov rsp, rbp
  pop rbp
  ret
`
	prog, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if !reflect.DeepEqual(prog.Globals, []string{"main"}) {
		t.Errorf("Globals = %v", prog.Globals)
	}
	if prog.Symbols["main"] != 0 {
		t.Errorf("main at %d; want 0", prog.Symbols["main"])
	}
	if prog.Symbols[".Lmain.0"] != 7 {
		t.Errorf(".Lmain.0 at %d; want 7", prog.Symbols[".Lmain.0"])
	}
	if len(prog.Instructions) != 10 {
		t.Fatalf("got %d instructions; want 10", len(prog.Instructions))
	}

	je := prog.Instructions[5]
	if je.Op != cpu.OpJE || je.Dst.Target != 7 {
		t.Errorf("je = %+v", je)
	}
	call := prog.Instructions[6]
	if call.Op != cpu.OpCALL || call.Dst.Target != -1 || call.Dst.Symbol != "helper" {
		t.Errorf("call to an undefined symbol should stay unresolved, got %+v", call)
	}
	if prog.Instructions[0].Line != 4 {
		t.Errorf("first instruction on line %d; want 4", prog.Instructions[0].Line)
	}
	if got := prog.Instructions[2].String(); got != "push 7" {
		t.Errorf("String() = %q", got)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown instruction", "  lea rax, rbx", "unknown instruction on line 1"},
		{"duplicate label", "a:\n  ret\na:\n  ret", "duplicate label 'a' on line 3"},
		{"undefined jump", "  jmp nowhere", "undefined label 'nowhere'"},
		{"operand count", "  push rax, rbx", "push expects 1 operand"},
		{"immediate destination", "  mov 1, rax", "destination cannot be an immediate"},
		{"two memory operands", "  mov [rax], [rdi]", "at most one memory operand"},
		{"setcc needs byte", "  sete rax", "expects a byte register"},
		{"undefined global", ".global main\n  ret", "global symbol 'main' is never defined"},
		{"unknown directive", ".data", "unknown directive"},
		{"wide push", "  push 2147483648", "push immediate 2147483648 does not fit in 32 bits"},
		{"wide add", "  add rax, 4294967296", "immediate 4294967296 does not fit in 32 bits"},
		{"wide sub", "  sub rax, -2147483649", "does not fit in 32 bits"},
		{"wide cmp", "  cmp rax, 9223372036854775807", "does not fit in 32 bits"},
		{"wide imul", "  imul rax, 3000000000", "does not fit in 32 bits"},
		{"wide store", "  mov [rax], 3000000000", "does not fit in 32 bits"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assemble(tc.src)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q; want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestAssembleImmediateWidths(t *testing.T) {
	src := `  push 2147483647
  push -2147483648
  cmp rax, -2147483648
  mov rax, 9223372036854775807
  mov rdi, -9223372036854775808
`
	prog, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if got := prog.Instructions[3].Src.Imm; got != 9223372036854775807 {
		t.Errorf("mov rax, imm64 = %d", got)
	}
}
