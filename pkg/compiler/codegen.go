package compiler

import (
	"fmt"
	"math"
)

// FunctionCompiler turns one Function into x86-64 lines. It is a stack
// machine: compiling an expression leaves exactly one value on the runtime
// stack, and consumers pop what they need.
//
// depth tracks how many bytes the body has pushed below the aligned frame.
// It is updated by emit from the instructions themselves, so every call site
// knows whether rsp is 16-byte aligned.
type FunctionCompiler struct {
	name      string
	scope     *Scope
	lines     []Line
	depth     int
	nextLabel int
}

func NewFunctionCompiler() *FunctionCompiler {
	return &FunctionCompiler{}
}

// Compile generates the lines for fn, prologue first. The compiler can be
// reused; all state is reset on each call.
func (fc *FunctionCompiler) Compile(fn *Function) ([]Line, error) {
	fc.name = fn.Name.Name
	fc.scope = NewScope()
	fc.lines = nil
	fc.depth = 0
	fc.nextLabel = 0

	// Spill the argument registers into ordinary slots.
	for i, param := range fn.Params {
		if fc.scope.DeclaredHere(param.Name) {
			return nil, &CompileError{Kind: Redeclaration, Name: param.Name, Span: param.Span()}
		}
		fc.emit(Ins(PUSH, Reg(ArgRegisters[i])))
		fc.emit(fc.scope.Declare(param.Name)...)
	}

	if err := fc.genExpr(fn.Body); err != nil {
		return nil, err
	}
	if !diverges(fn.Body) {
		fc.genReturn()
	}

	// The frame size is only final now.
	return append(fc.scope.Prologue(), fc.lines...), nil
}

// emit appends lines and keeps depth in step with every instruction that
// moves rsp.
func (fc *FunctionCompiler) emit(lines ...Line) {
	for _, l := range lines {
		if ins, ok := l.(Instruction); ok {
			fc.depth += stackEffect(ins)
		}
		fc.lines = append(fc.lines, l)
	}
}

// stackEffect is the number of bytes ins pushes onto the stack.
func stackEffect(ins Instruction) int {
	switch ins.Op {
	case PUSH:
		return wordSize
	case POP:
		return -wordSize
	case SUBQ, ADDQ:
		if len(ins.Operands) != 2 || ins.Operands[0] != Reg(RSP) {
			return 0
		}
		imm, ok := ins.Operands[1].(Imm)
		if !ok {
			return 0
		}
		if ins.Op == SUBQ {
			return int(imm)
		}
		return -int(imm)
	}
	return 0
}

func (fc *FunctionCompiler) newLabel() Label {
	l := Label(fmt.Sprintf(".L%s.%d", fc.name, fc.nextLabel))
	fc.nextLabel++
	return l
}

// genReturn pops the value on top of the stack into rax and leaves the
// function. The epilogue restores rsp from rbp, so it bypasses emit.
func (fc *FunctionCompiler) genReturn() {
	fc.emit(Ins(POP, Reg(RAX)))
	fc.lines = append(fc.lines, fc.scope.Epilogue()...)
	fc.lines = append(fc.lines, Ins(RET))
}

func (fc *FunctionCompiler) genExpr(e Expression) error {
	switch n := e.(type) {

	case *PureExpression:
		return genChain(fc, n.Equality.Chain, fc.genRelational)

	case *IfExpression:
		if err := fc.genExpr(n.Cond); err != nil {
			return err
		}
		elseLabel := fc.newLabel()
		endLabel := fc.newLabel()
		fc.emit(
			Ins(POP, Reg(RAX)),
			Ins(CMP, Reg(RAX), Imm(0)),
			Ins(JE, Symbol{Name: string(elseLabel), Label: true}),
		)
		entry := fc.depth
		if err := fc.genExpr(n.Then); err != nil {
			return err
		}
		thenDepth := fc.depth
		fc.emit(Ins(JMP, Symbol{Name: string(endLabel), Label: true}), elseLabel)
		fc.depth = entry
		if err := fc.genExpr(n.Else); err != nil {
			return err
		}
		if fc.depth != thenDepth {
			panic(fmt.Sprintf("%s: if branches leave the stack at %d and %d bytes", fc.name, thenDepth, fc.depth))
		}
		fc.emit(endLabel)
		return nil

	case *BlockExpression:
		fc.scope.EnterBlock()
		defer fc.scope.LeaveBlock()
		for _, stmt := range n.Statements {
			if err := fc.genStmt(stmt); err != nil {
				return err
			}
		}
		if n.Outcome == nil {
			// Every path has returned. Account for the value a block
			// normally leaves so enclosing code stays balanced.
			fc.depth += wordSize
			return nil
		}
		return fc.genExpr(n.Outcome)
	}
	return fmt.Errorf("unknown expression type %T", e)
}

func (fc *FunctionCompiler) genStmt(s Statement) error {
	switch n := s.(type) {

	case *Assignment:
		if fc.scope.DeclaredHere(n.Target.Name) {
			return &CompileError{Kind: Redeclaration, Name: n.Target.Name, Span: n.Target.Span()}
		}
		if err := fc.genExpr(n.Value); err != nil {
			return err
		}
		fc.emit(fc.scope.Declare(n.Target.Name)...)
		return nil

	case *Return:
		if err := fc.genExpr(n.Value); err != nil {
			return err
		}
		fc.genReturn()
		return nil
	}
	return fmt.Errorf("unknown statement type %T", s)
}

// genChain compiles head op elem op elem ... folding left to right: each
// step pops the right operand into rdi and the left into rax.
func genChain[E Node](fc *FunctionCompiler, chain Chain[E], next func(E) error) error {
	if err := next(chain.Head); err != nil {
		return err
	}
	for _, link := range chain.Tail {
		if err := next(link.Elem); err != nil {
			return err
		}
		fc.emit(Ins(POP, Reg(RDI)), Ins(POP, Reg(RAX)))
		fc.emit(binaryOp(link.Op)...)
		fc.emit(Ins(PUSH, Reg(RAX)))
	}
	return nil
}

var setOps = map[Operator]Opcode{
	EQUAL:      SETE,
	NOT_EQUAL:  SETNE,
	LESS:       SETL,
	LESS_EQ:    SETLE,
	GREATER:    SETG,
	GREATER_EQ: SETGE,
}

// binaryOp computes rax = rax op rdi.
func binaryOp(op Operator) []Line {
	switch op {
	case ADD:
		return []Line{Ins(ADDQ, Reg(RAX), Reg(RDI))}
	case SUB:
		return []Line{Ins(SUBQ, Reg(RAX), Reg(RDI))}
	case MUL:
		return []Line{Ins(IMUL, Reg(RAX), Reg(RDI))}
	case DIV:
		return []Line{Ins(CQO), Ins(IDIV, Reg(RDI))}
	}
	set, ok := setOps[op]
	if !ok {
		panic(fmt.Sprintf("operator %s is not binary", op))
	}
	return []Line{
		Ins(CMP, Reg(RAX), Reg(RDI)),
		Ins(set, Reg(AL)),
		Ins(MOVZX, Reg(RAX), Reg(AL)),
	}
}

func (fc *FunctionCompiler) genRelational(r *Relational) error {
	return genChain(fc, r.Chain, fc.genAdd)
}

func (fc *FunctionCompiler) genAdd(a *Add) error {
	return genChain(fc, a.Chain, fc.genMultiply)
}

func (fc *FunctionCompiler) genMultiply(m *Multiply) error {
	return genChain(fc, m.Chain, fc.genUnary)
}

func (fc *FunctionCompiler) genUnary(u *Unary) error {
	if err := fc.genPrimary(u.Operand); err != nil {
		return err
	}
	if u.Negative {
		fc.emit(
			Ins(POP, Reg(RDI)),
			Ins(MOV, Reg(RAX), Imm(0)),
			Ins(SUBQ, Reg(RAX), Reg(RDI)),
			Ins(PUSH, Reg(RAX)),
		)
	}
	return nil
}

func (fc *FunctionCompiler) genPrimary(p Primary) error {
	switch n := p.(type) {

	case *Integer:
		if fitsImm32(n.Value) {
			fc.emit(Ins(PUSH, Imm(n.Value)))
			return nil
		}
		// push only sign-extends a 32-bit immediate; mov reg, imm64 is movabs.
		fc.emit(Ins(MOV, Reg(RAX), Imm(n.Value)), Ins(PUSH, Reg(RAX)))
		return nil

	case *Identifier:
		lines, err := fc.scope.Lookup(n.Name, n.Span())
		if err != nil {
			return err
		}
		fc.emit(lines...)
		return nil

	case *Parenthesized:
		return fc.genExpr(n.Inner)

	case *Call:
		return fc.genCall(n)
	}
	return fmt.Errorf("unknown primary type %T", p)
}

// genCall evaluates the arguments left to right, moves them into the
// argument registers and calls with rsp 16-byte aligned.
func (fc *FunctionCompiler) genCall(call *Call) error {
	if len(call.Args) > len(ArgRegisters) {
		return fmt.Errorf("%s: call to %s has %d arguments, at most %d are supported",
			call.Span().Start, call.Callee.Name, len(call.Args), len(ArgRegisters))
	}
	for _, arg := range call.Args {
		if err := fc.genExpr(arg); err != nil {
			return err
		}
	}
	for i := len(call.Args) - 1; i >= 0; i-- {
		fc.emit(Ins(POP, Reg(ArgRegisters[i])))
	}
	padding := (16 - fc.depth%16) % 16
	if padding != 0 {
		fc.emit(Ins(SUBQ, Reg(RSP), Imm(padding)))
	}
	fc.emit(Ins(CALL, Symbol{Name: call.Callee.Name}))
	if padding != 0 {
		fc.emit(Ins(ADDQ, Reg(RSP), Imm(padding)))
	}
	fc.emit(Ins(PUSH, Reg(RAX)))
	return nil
}

// fitsImm32 reports whether v can be encoded as a sign-extended 32-bit
// immediate.
func fitsImm32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
