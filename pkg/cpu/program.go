package cpu

import (
	"fmt"
	"strings"
)

// OperandKind says how an Operand is interpreted.
type OperandKind uint8

const (
	KindNone   OperandKind = iota
	KindImm                // Imm
	KindReg                // full 64-bit register Reg
	KindReg8               // low byte of register Reg
	KindMem                // quadword at the address held in Reg
	KindTarget             // jump or call destination
)

// Operand is one argument of an Instruction.
type Operand struct {
	Kind OperandKind
	Reg  uint8
	Imm  int64

	// Target is the instruction index of a jump or call destination, or -1
	// when Symbol is not defined by the program (a host function).
	Target int
	Symbol string
}

var regNames = [NumRegs]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi", "r8", "r9"}

// RegName returns the assembly name of register r.
func RegName(r uint8) string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("r?%d", r)
}

func (o Operand) String() string {
	switch o.Kind {
	case KindImm:
		return fmt.Sprintf("%d", o.Imm)
	case KindReg:
		return RegName(o.Reg)
	case KindReg8:
		if o.Reg == RAX {
			return "al"
		}
		return RegName(o.Reg) + "b"
	case KindMem:
		return "[" + RegName(o.Reg) + "]"
	case KindTarget:
		return o.Symbol
	}
	return ""
}

// Instruction is a decoded instruction. Line is the 1-based line of the
// assembly source it came from.
type Instruction struct {
	Op   uint8
	Dst  Operand
	Src  Operand
	Line int
}

var opNames = map[uint8]string{
	OpPUSH: "push", OpPOP: "pop", OpMOV: "mov", OpMOVZX: "movzx",
	OpADD: "add", OpSUB: "sub", OpIMUL: "imul", OpCQO: "cqo", OpIDIV: "idiv",
	OpCMP: "cmp", OpSETE: "sete", OpSETNE: "setne", OpSETL: "setl",
	OpSETLE: "setle", OpSETG: "setg", OpSETGE: "setge",
	OpJE: "je", OpJMP: "jmp", OpCALL: "call", OpRET: "ret",
}

// OpName returns the mnemonic of op.
func OpName(op uint8) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op%d", op)
}

func (ins Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(OpName(ins.Op))
	if ins.Dst.Kind != KindNone {
		sb.WriteString(" " + ins.Dst.String())
	}
	if ins.Src.Kind != KindNone {
		sb.WriteString(", " + ins.Src.String())
	}
	return sb.String()
}

// Program is an assembled instruction stream plus its symbol table.
type Program struct {
	Instructions []Instruction
	// Symbols maps every label and global to an instruction index.
	Symbols map[string]int
	// Globals lists the symbols declared with .global, in order.
	Globals []string
}
