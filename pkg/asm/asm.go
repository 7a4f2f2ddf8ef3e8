// Package asm assembles the Intel-syntax x86-64 subset emitted by the
// compiler into a cpu.Program.
package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"letc/pkg/cpu"
)

var zeroOperandOps = map[string]uint8{
	"cqo": cpu.OpCQO,
	"ret": cpu.OpRET,
}

// oneOperandOps take a single register, memory or immediate operand.
var oneOperandOps = map[string]uint8{
	"push": cpu.OpPUSH,
	"pop":  cpu.OpPOP,
	"idiv": cpu.OpIDIV,
}

var setOps = map[string]uint8{
	"sete":  cpu.OpSETE,
	"setne": cpu.OpSETNE,
	"setl":  cpu.OpSETL,
	"setle": cpu.OpSETLE,
	"setg":  cpu.OpSETG,
	"setge": cpu.OpSETGE,
}

var twoOperandOps = map[string]uint8{
	"mov":   cpu.OpMOV,
	"movzx": cpu.OpMOVZX,
	"add":   cpu.OpADD,
	"sub":   cpu.OpSUB,
	"imul":  cpu.OpIMUL,
	"cmp":   cpu.OpCMP,
}

var branchOps = map[string]uint8{
	"je":   cpu.OpJE,
	"jmp":  cpu.OpJMP,
	"call": cpu.OpCALL,
}

var registers = map[string]cpu.Operand{
	"rax": {Kind: cpu.KindReg, Reg: cpu.RAX},
	"rcx": {Kind: cpu.KindReg, Reg: cpu.RCX},
	"rdx": {Kind: cpu.KindReg, Reg: cpu.RDX},
	"rbx": {Kind: cpu.KindReg, Reg: cpu.RBX},
	"rsp": {Kind: cpu.KindReg, Reg: cpu.RSP},
	"rbp": {Kind: cpu.KindReg, Reg: cpu.RBP},
	"rsi": {Kind: cpu.KindReg, Reg: cpu.RSI},
	"rdi": {Kind: cpu.KindReg, Reg: cpu.RDI},
	"r8":  {Kind: cpu.KindReg, Reg: cpu.R8},
	"r9":  {Kind: cpu.KindReg, Reg: cpu.R9},
	"al":  {Kind: cpu.KindReg8, Reg: cpu.RAX},
}

type Assembler struct {
	labels  map[string]int
	globals []string
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int),
	}
}

// Assemble parses code and resolves its labels.
func Assemble(code string) (*cpu.Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*cpu.Program, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, err
	}

	return a.pass2(lines)
}

// pass1 assigns every label the index of the instruction that follows it.
func (a *Assembler) pass1(lines []string) error {
	index := 0

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[lbl] = index
		}

		switch {
		case p.mnemonic == "":
			continue
		case p.mnemonic == ".intel_syntax":
			if len(p.operands) != 1 || p.operands[0] != "noprefix" {
				return fmt.Errorf(".intel_syntax expects noprefix on line %d", lineNo)
			}
			continue
		case p.mnemonic == ".global" || p.mnemonic == ".globl":
			if len(p.operands) != 1 || !isSymbol(p.operands[0]) {
				return fmt.Errorf("%s expects one symbol on line %d", p.mnemonic, lineNo)
			}
			a.globals = append(a.globals, p.operands[0])
			continue
		case strings.HasPrefix(p.mnemonic, "."):
			return fmt.Errorf("unknown directive on line %d: %s", lineNo, p.mnemonic)
		}

		if !isMnemonic(p.mnemonic) {
			return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}
		index++
	}

	for _, g := range a.globals {
		if _, ok := a.labels[g]; !ok {
			return fmt.Errorf("global symbol '%s' is never defined", g)
		}
	}
	return nil
}

func (a *Assembler) pass2(lines []string) (*cpu.Program, error) {
	prog := &cpu.Program{
		Symbols: a.labels,
		Globals: a.globals,
	}

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}

		if p.mnemonic == "" || strings.HasPrefix(p.mnemonic, ".") {
			continue
		}

		ins, err := a.encode(p)
		if err != nil {
			return nil, err
		}
		ins.Line = lineNo
		prog.Instructions = append(prog.Instructions, ins)
	}

	return prog, nil
}

func (a *Assembler) encode(p parsedLine) (cpu.Instruction, error) {
	mnemonic, ops, lineNo := p.mnemonic, p.operands, p.lineNo

	if opcode, ok := zeroOperandOps[mnemonic]; ok {
		if len(ops) != 0 {
			return cpu.Instruction{}, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
		}
		return cpu.Instruction{Op: opcode}, nil
	}

	if opcode, ok := oneOperandOps[mnemonic]; ok {
		if len(ops) != 1 {
			return cpu.Instruction{}, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		dst, err := parseOperand(ops[0], lineNo)
		if err != nil {
			return cpu.Instruction{}, err
		}
		switch {
		case dst.Kind == cpu.KindReg8:
			return cpu.Instruction{}, fmt.Errorf("%s does not take a byte register on line %d", mnemonic, lineNo)
		case dst.Kind == cpu.KindImm && opcode != cpu.OpPUSH:
			return cpu.Instruction{}, fmt.Errorf("%s does not take an immediate on line %d", mnemonic, lineNo)
		case dst.Kind == cpu.KindImm && !fitsImm32(dst.Imm):
			return cpu.Instruction{}, fmt.Errorf("%s immediate %d does not fit in 32 bits on line %d", mnemonic, dst.Imm, lineNo)
		}
		return cpu.Instruction{Op: opcode, Dst: dst}, nil
	}

	if opcode, ok := setOps[mnemonic]; ok {
		if len(ops) != 1 {
			return cpu.Instruction{}, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		dst, err := parseOperand(ops[0], lineNo)
		if err != nil {
			return cpu.Instruction{}, err
		}
		if dst.Kind != cpu.KindReg8 {
			return cpu.Instruction{}, fmt.Errorf("%s expects a byte register on line %d", mnemonic, lineNo)
		}
		return cpu.Instruction{Op: opcode, Dst: dst}, nil
	}

	if opcode, ok := twoOperandOps[mnemonic]; ok {
		if len(ops) != 2 {
			return cpu.Instruction{}, fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
		}
		dst, err := parseOperand(ops[0], lineNo)
		if err != nil {
			return cpu.Instruction{}, err
		}
		src, err := parseOperand(ops[1], lineNo)
		if err != nil {
			return cpu.Instruction{}, err
		}
		if err := checkOperands(opcode, dst, src); err != nil {
			return cpu.Instruction{}, fmt.Errorf("%s on line %d: %w", mnemonic, lineNo, err)
		}
		return cpu.Instruction{Op: opcode, Dst: dst, Src: src}, nil
	}

	if opcode, ok := branchOps[mnemonic]; ok {
		if len(ops) != 1 || !isSymbol(ops[0]) {
			return cpu.Instruction{}, fmt.Errorf("%s expects one symbol on line %d", mnemonic, lineNo)
		}
		target, defined := a.labels[ops[0]]
		if !defined {
			// Calls may leave the program; jumps may not.
			if opcode != cpu.OpCALL {
				return cpu.Instruction{}, fmt.Errorf("undefined label '%s' on line %d", ops[0], lineNo)
			}
			target = -1
		}
		return cpu.Instruction{Op: opcode, Dst: cpu.Operand{Kind: cpu.KindTarget, Target: target, Symbol: ops[0]}}, nil
	}

	return cpu.Instruction{}, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// checkOperands enforces the operand shapes the CPU accepts.
func checkOperands(opcode uint8, dst, src cpu.Operand) error {
	switch {
	case dst.Kind == cpu.KindImm:
		return fmt.Errorf("destination cannot be an immediate")
	case dst.Kind == cpu.KindMem && src.Kind == cpu.KindMem:
		return fmt.Errorf("at most one memory operand")
	case src.Kind == cpu.KindImm && !fitsImm32(src.Imm) && (opcode != cpu.OpMOV || dst.Kind != cpu.KindReg):
		return fmt.Errorf("immediate %d does not fit in 32 bits", src.Imm)
	case opcode == cpu.OpMOVZX:
		if dst.Kind != cpu.KindReg || src.Kind != cpu.KindReg8 {
			return fmt.Errorf("expects a register and a byte register")
		}
	case dst.Kind == cpu.KindReg8 || src.Kind == cpu.KindReg8:
		return fmt.Errorf("byte registers are only valid with movzx and setcc")
	case opcode != cpu.OpMOV && dst.Kind != cpu.KindReg:
		return fmt.Errorf("destination must be a register")
	}
	return nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t[],") {
			break
		}

		if !isSymbol(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		mnemonic, rest = line[:sp], strings.TrimSpace(line[sp+1:])
	}
	p.mnemonic = strings.ToLower(mnemonic)
	if rest == "" {
		return p, nil
	}
	for _, op := range strings.Split(rest, ",") {
		op = strings.TrimSpace(op)
		if op == "" {
			return p, fmt.Errorf("empty operand on line %d", lineNo)
		}
		p.operands = append(p.operands, op)
	}
	return p, nil
}

// stripComments removes a '#' or "//" comment.
func stripComments(line string) string {
	hash := strings.Index(line, "#")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if hash >= 0 {
		cut = hash
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// parseOperand reads a register, "[register]" or a signed integer.
func parseOperand(token string, lineNo int) (cpu.Operand, error) {
	lower := strings.ToLower(token)
	if reg, ok := registers[lower]; ok {
		return reg, nil
	}
	if strings.HasPrefix(lower, "[") && strings.HasSuffix(lower, "]") {
		inner := strings.TrimSpace(lower[1 : len(lower)-1])
		reg, ok := registers[inner]
		if !ok || reg.Kind != cpu.KindReg {
			return cpu.Operand{}, fmt.Errorf("invalid memory operand '%s' on line %d", token, lineNo)
		}
		return cpu.Operand{Kind: cpu.KindMem, Reg: reg.Reg}, nil
	}
	if value, err := strconv.ParseInt(token, 0, 64); err == nil {
		return cpu.Operand{Kind: cpu.KindImm, Imm: value}, nil
	}
	return cpu.Operand{}, fmt.Errorf("invalid operand '%s' on line %d", token, lineNo)
}

// fitsImm32 reports whether v is encodable as a sign-extended 32-bit
// immediate. Only mov into a register takes a full 64-bit immediate.
func fitsImm32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func isMnemonic(m string) bool {
	for _, table := range []map[string]uint8{zeroOperandOps, oneOperandOps, setOps, twoOperandOps, branchOps} {
		if _, ok := table[m]; ok {
			return true
		}
	}
	return false
}

// isSymbol accepts assembler symbol names: letters, digits, '_', '.' and
// '$', not starting with a digit.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == '.', ch == '$':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
