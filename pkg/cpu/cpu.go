// Package cpu executes assembled programs on a simulated subset of x86-64:
// ten general-purpose 64-bit registers, a byte-addressed stack, and the
// ZF/SF/OF flags that signed comparisons read.
package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	OpPUSH uint8 = iota
	OpPOP
	OpMOV
	OpMOVZX
	OpADD
	OpSUB
	OpIMUL
	OpCQO
	OpIDIV
	OpCMP
	OpSETE
	OpSETNE
	OpSETL
	OpSETLE
	OpSETG
	OpSETGE
	OpJE
	OpJMP
	OpCALL
	OpRET
)

// Register numbers follow the hardware encoding order.
const (
	RAX uint8 = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	NumRegs
)

// ArgRegs carry the first six integer arguments of a call.
var ArgRegs = [6]uint8{RDI, RSI, RDX, RCX, R8, R9}

const (
	// StackTop is one past the highest stack address.
	StackTop uint64 = 0x7fff_0000

	// ReturnSentinel is the return address pushed before the entry call.
	// Returning to it halts the machine.
	ReturnSentinel int64 = -1

	DefaultStackSize = 1 << 20
	DefaultMaxSteps  = 10_000_000
)

var (
	ErrDivideByZero   = errors.New("divide by zero")
	ErrDivideOverflow = errors.New("quotient overflow")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrBadAddress     = errors.New("memory access outside the stack")
	ErrStepLimit      = errors.New("step limit reached")
	ErrUnknownSymbol  = errors.New("unknown symbol")
	ErrMisaligned     = errors.New("call with misaligned stack")
	ErrHalted         = errors.New("machine is halted")
)

// Fault is a runtime error located at the instruction that raised it.
type Fault struct {
	PC   int
	Line int // source line of the instruction, 1-based; 0 if unknown
	Err  error
}

func (f *Fault) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("line %d (pc %d): %v", f.Line, f.PC, f.Err)
	}
	return fmt.Sprintf("pc %d: %v", f.PC, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// AlignmentFault records a call made while rsp was not 16-byte aligned.
type AlignmentFault struct {
	PC     int    `json:"pc"`
	Line   int    `json:"line"`
	Target string `json:"target"`
	RSP    uint64 `json:"rsp"`
}

// Options configures a CPU.
type Options struct {
	// StackSize is the number of bytes of stack memory.
	StackSize int
	// MaxSteps bounds the number of executed instructions.
	MaxSteps int
	// StrictAlignment turns a misaligned call into a Fault instead of a
	// recorded AlignmentFault.
	StrictAlignment bool
}

type CPU struct {
	Regs [NumRegs]int64
	PC   int

	ZF bool
	SF bool
	OF bool

	Halted bool
	Steps  int

	// Faults lists every misaligned call seen so far.
	Faults []AlignmentFault

	Memory []byte // stack memory, ending at StackTop

	prog  *Program
	opts  Options
	hosts map[string]HostFunc
}

// New returns a CPU loaded with prog. Zero option fields take defaults.
func New(prog *Program, opts Options) *CPU {
	if opts.StackSize <= 0 {
		opts.StackSize = DefaultStackSize
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	return &CPU{
		Memory: make([]byte, opts.StackSize),
		prog:   prog,
		opts:   opts,
		hosts:  make(map[string]HostFunc),
	}
}

func (c *CPU) stackBase() uint64 {
	return StackTop - uint64(len(c.Memory))
}

// translate maps a stack address to an offset into Memory.
func (c *CPU) translate(addr uint64) (int, error) {
	if addr < c.stackBase() {
		return 0, ErrStackOverflow
	}
	if addr+8 > StackTop {
		return 0, ErrBadAddress
	}
	return int(addr - c.stackBase()), nil
}

// Read64 loads the quadword at addr.
func (c *CPU) Read64(addr uint64) (int64, error) {
	off, err := c.translate(addr)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(c.Memory[off:])), nil
}

// Write64 stores val at addr.
func (c *CPU) Write64(addr uint64, val int64) error {
	off, err := c.translate(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(c.Memory[off:], uint64(val))
	return nil
}

func (c *CPU) rsp() uint64 { return uint64(c.Regs[RSP]) }

func (c *CPU) push(val int64) error {
	if err := c.Write64(c.rsp()-8, val); err != nil {
		return err
	}
	c.Regs[RSP] -= 8
	return nil
}

func (c *CPU) pop() (int64, error) {
	val, err := c.Read64(c.rsp())
	if err != nil {
		return 0, err
	}
	c.Regs[RSP] += 8
	return val, nil
}

// Reset prepares a call to the symbol entry the way a caller would: rsp is
// 16-byte aligned before the return address is pushed.
func (c *CPU) Reset(entry string) error {
	target, ok := c.prog.Symbols[entry]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownSymbol, entry)
	}
	c.Regs = [NumRegs]int64{}
	c.Regs[RSP] = int64(StackTop)
	c.Regs[RBP] = int64(StackTop)
	c.ZF, c.SF, c.OF = false, false, false
	c.Halted = false
	c.Steps = 0
	c.Faults = nil
	if err := c.push(ReturnSentinel); err != nil {
		return err
	}
	c.PC = target
	return nil
}

// Run calls entry with args in the argument registers and executes until it
// returns. The result is the value of rax.
func (c *CPU) Run(entry string, args ...int64) (int64, error) {
	if len(args) > len(ArgRegs) {
		return 0, fmt.Errorf("%d arguments, at most %d are supported", len(args), len(ArgRegs))
	}
	if err := c.Reset(entry); err != nil {
		return 0, err
	}
	for i, a := range args {
		c.Regs[ArgRegs[i]] = a
	}
	for !c.Halted {
		if err := c.Step(); err != nil {
			return 0, err
		}
	}
	return c.Regs[RAX], nil
}

func (c *CPU) fault(err error) error {
	f := &Fault{PC: c.PC, Err: err}
	if c.PC >= 0 && c.PC < len(c.prog.Instructions) {
		f.Line = c.prog.Instructions[c.PC].Line
	}
	return f
}

// load reads the value of a source operand.
func (c *CPU) load(o Operand) (int64, error) {
	switch o.Kind {
	case KindImm:
		return o.Imm, nil
	case KindReg:
		return c.Regs[o.Reg], nil
	case KindReg8:
		return c.Regs[o.Reg] & 0xff, nil
	case KindMem:
		return c.Read64(uint64(c.Regs[o.Reg]))
	}
	return 0, fmt.Errorf("operand %s cannot be read", o)
}

// store writes val to a destination operand.
func (c *CPU) store(o Operand, val int64) error {
	switch o.Kind {
	case KindReg:
		c.Regs[o.Reg] = val
		return nil
	case KindReg8:
		c.Regs[o.Reg] = c.Regs[o.Reg]&^0xff | val&0xff
		return nil
	case KindMem:
		return c.Write64(uint64(c.Regs[o.Reg]), val)
	}
	return fmt.Errorf("operand %s cannot be written", o)
}

// setFlags updates ZF/SF/OF for the subtraction a - b = r.
func (c *CPU) setFlags(a, b, r int64) {
	c.ZF = r == 0
	c.SF = r < 0
	c.OF = (a^b)&(a^r) < 0
}

func (c *CPU) condition(op uint8) bool {
	switch op {
	case OpSETE, OpJE:
		return c.ZF
	case OpSETNE:
		return !c.ZF
	case OpSETL:
		return c.SF != c.OF
	case OpSETLE:
		return c.ZF || c.SF != c.OF
	case OpSETG:
		return !c.ZF && c.SF == c.OF
	case OpSETGE:
		return c.SF == c.OF
	}
	return false
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return ErrHalted
	}
	if c.Steps >= c.opts.MaxSteps {
		return c.fault(ErrStepLimit)
	}
	if c.PC < 0 || c.PC >= len(c.prog.Instructions) {
		return c.fault(fmt.Errorf("pc %d outside the program", c.PC))
	}
	c.Steps++

	ins := c.prog.Instructions[c.PC]
	next := c.PC + 1
	var err error

	switch ins.Op {
	case OpPUSH:
		var v int64
		if v, err = c.load(ins.Dst); err == nil {
			err = c.push(v)
		}

	case OpPOP:
		var v int64
		if v, err = c.pop(); err == nil {
			err = c.store(ins.Dst, v)
		}

	case OpMOV, OpMOVZX:
		var v int64
		if v, err = c.load(ins.Src); err == nil {
			err = c.store(ins.Dst, v)
		}

	case OpADD, OpSUB, OpIMUL, OpCMP:
		var a, b int64
		if a, err = c.load(ins.Dst); err != nil {
			break
		}
		if b, err = c.load(ins.Src); err != nil {
			break
		}
		switch ins.Op {
		case OpADD:
			r := a + b
			c.ZF, c.SF = r == 0, r < 0
			c.OF = (a^r)&(b^r) < 0
			err = c.store(ins.Dst, r)
		case OpSUB:
			r := a - b
			c.setFlags(a, b, r)
			err = c.store(ins.Dst, r)
		case OpIMUL:
			err = c.store(ins.Dst, a*b)
		case OpCMP:
			c.setFlags(a, b, a-b)
		}

	case OpCQO:
		if c.Regs[RAX] < 0 {
			c.Regs[RDX] = -1
		} else {
			c.Regs[RDX] = 0
		}

	case OpIDIV:
		// rdx:rax is always the sign extension of rax here.
		var d int64
		if d, err = c.load(ins.Dst); err != nil {
			break
		}
		switch {
		case d == 0:
			err = ErrDivideByZero
		case c.Regs[RAX] == math.MinInt64 && d == -1:
			err = ErrDivideOverflow
		default:
			c.Regs[RAX], c.Regs[RDX] = c.Regs[RAX]/d, c.Regs[RAX]%d
		}

	case OpSETE, OpSETNE, OpSETL, OpSETLE, OpSETG, OpSETGE:
		var v int64
		if c.condition(ins.Op) {
			v = 1
		}
		err = c.store(ins.Dst, v)

	case OpJE:
		if c.condition(ins.Op) {
			next = ins.Dst.Target
		}

	case OpJMP:
		next = ins.Dst.Target

	case OpCALL:
		next, err = c.call(ins)

	case OpRET:
		var addr int64
		if addr, err = c.pop(); err != nil {
			break
		}
		if addr == ReturnSentinel {
			c.Halted = true
			return nil
		}
		next = int(addr)

	default:
		err = fmt.Errorf("unknown opcode %d", ins.Op)
	}

	if err != nil {
		return c.fault(err)
	}
	c.PC = next
	return nil
}

// call checks the alignment rule and transfers control to a program symbol
// or runs a host function in place.
func (c *CPU) call(ins Instruction) (int, error) {
	if c.rsp()%16 != 0 {
		c.Faults = append(c.Faults, AlignmentFault{
			PC:     c.PC,
			Line:   ins.Line,
			Target: ins.Dst.Symbol,
			RSP:    c.rsp(),
		})
		if c.opts.StrictAlignment {
			return 0, fmt.Errorf("%w: rsp=%#x calling %s", ErrMisaligned, c.rsp(), ins.Dst.Symbol)
		}
	}
	if ins.Dst.Target >= 0 {
		if err := c.push(int64(c.PC + 1)); err != nil {
			return 0, err
		}
		return ins.Dst.Target, nil
	}
	host, ok := c.hosts[ins.Dst.Symbol]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownSymbol, ins.Dst.Symbol)
	}
	var args [6]int64
	for i, r := range ArgRegs {
		args[i] = c.Regs[r]
	}
	c.Regs[RAX] = host(args)
	return c.PC + 1, nil
}
