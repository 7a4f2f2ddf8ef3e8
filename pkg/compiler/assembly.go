package compiler

import (
	"fmt"
	"strings"
)

// Register is a general-purpose x86-64 register the generator touches.
type Register int

const (
	RAX Register = iota
	RCX
	RDX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	AL // low byte of RAX, target of setCC
)

var registerNames = [...]string{
	RAX: "rax",
	RCX: "rcx",
	RDX: "rdx",
	RSP: "rsp",
	RBP: "rbp",
	RSI: "rsi",
	RDI: "rdi",
	R8:  "r8",
	R9:  "r9",
	AL:  "al",
}

func (r Register) String() string {
	if int(r) >= 0 && int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(%d)", int(r))
}

// ArgRegisters carries integer arguments in order.
var ArgRegisters = [maxArgs]Register{RDI, RSI, RDX, RCX, R8, R9}

// Operand is an instruction argument: Imm, Reg, Mem or Symbol.
type Operand interface {
	operand()
	render(n Naming) string
}

// Imm is an immediate integer.
type Imm int64

// Reg is a register operand.
type Reg Register

// Mem addresses the quadword whose address is held in a register.
type Mem Register

// Symbol names a function or label; function symbols receive the naming
// prefix when rendered, labels never do.
type Symbol struct {
	Name  string
	Label bool
}

func (Imm) operand()    {}
func (Reg) operand()    {}
func (Mem) operand()    {}
func (Symbol) operand() {}

func (i Imm) render(Naming) string { return fmt.Sprintf("%d", int64(i)) }
func (r Reg) render(Naming) string { return Register(r).String() }
func (m Mem) render(Naming) string { return "[" + Register(m).String() + "]" }
func (s Symbol) render(n Naming) string {
	if s.Label {
		return s.Name
	}
	return n.Symbol(s.Name)
}

// Opcode is an instruction mnemonic.
type Opcode int

const (
	PUSH Opcode = iota
	POP
	MOV
	MOVZX
	ADDQ
	SUBQ
	IMUL
	CQO
	IDIV
	CMP
	SETE
	SETNE
	SETL
	SETLE
	SETG
	SETGE
	JE
	JMP
	CALL
	RET
)

var opcodeNames = [...]string{
	PUSH:  "push",
	POP:   "pop",
	MOV:   "mov",
	MOVZX: "movzx",
	ADDQ:  "add",
	SUBQ:  "sub",
	IMUL:  "imul",
	CQO:   "cqo",
	IDIV:  "idiv",
	CMP:   "cmp",
	SETE:  "sete",
	SETNE: "setne",
	SETL:  "setl",
	SETLE: "setle",
	SETG:  "setg",
	SETGE: "setge",
	JE:    "je",
	JMP:   "jmp",
	CALL:  "call",
	RET:   "ret",
}

func (op Opcode) String() string {
	if int(op) >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// Line is one unit of generated output: an Instruction or a Label.
type Line interface {
	Render(n Naming) string
}

// Instruction is an opcode with zero, one or two operands, destination
// first.
type Instruction struct {
	Op       Opcode
	Operands []Operand
}

// Ins builds an Instruction.
func Ins(op Opcode, operands ...Operand) Instruction {
	return Instruction{Op: op, Operands: operands}
}

func (ins Instruction) Render(n Naming) string {
	if len(ins.Operands) == 0 {
		return "  " + ins.Op.String()
	}
	args := make([]string, len(ins.Operands))
	for i, o := range ins.Operands {
		args[i] = o.render(n)
	}
	return "  " + ins.Op.String() + " " + strings.Join(args, ", ")
}

func (ins Instruction) String() string { return ins.Render(Naming{}) }

// Label marks a jump target inside a function.
type Label string

func (l Label) Render(Naming) string { return string(l) + ":" }

// Naming controls how function symbols appear in the output. Platforms
// whose C symbols carry a leading underscore set SymbolPrefix to "_".
type Naming struct {
	SymbolPrefix string
}

// Symbol returns the assembly-level name of the function name.
func (n Naming) Symbol(name string) string {
	return n.SymbolPrefix + name
}

// RenderLines writes lines one per row.
func RenderLines(lines []Line, n Naming) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Render(n))
		sb.WriteByte('\n')
	}
	return sb.String()
}
