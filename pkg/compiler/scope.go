package compiler

import "fmt"

// wordSize is the size of every value: one signed 64-bit integer.
const wordSize = 8

// Scope maps the names visible in one function to slots in its stack frame.
// Slots are addressed as [rbp - offset]. Names declared inside a block are
// keyed by that block's id, so an inner declaration shadows an outer one
// until the block is left. The frame only grows: leaving a block hides its
// names but keeps their slots.
type Scope struct {
	slots     map[string]int // "name#block" -> offset
	blocks    []int          // active block ids, innermost last
	nextBlock int
	frameSize int
}

func NewScope() *Scope {
	return &Scope{
		slots:     make(map[string]int),
		nextBlock: 1,
	}
}

func slotKey(name string, block int) string {
	return fmt.Sprintf("%s#%d", name, block)
}

// current is the id of the innermost active block; 0 is the function scope.
func (s *Scope) current() int {
	if len(s.blocks) == 0 {
		return 0
	}
	return s.blocks[len(s.blocks)-1]
}

// EnterBlock opens a new lexical block.
func (s *Scope) EnterBlock() {
	s.blocks = append(s.blocks, s.nextBlock)
	s.nextBlock++
}

// LeaveBlock closes the innermost block.
func (s *Scope) LeaveBlock() {
	if len(s.blocks) == 0 {
		panic("LeaveBlock called outside a block")
	}
	s.blocks = s.blocks[:len(s.blocks)-1]
}

// DeclaredHere reports whether name already has a slot in the innermost
// block.
func (s *Scope) DeclaredHere(name string) bool {
	_, ok := s.slots[slotKey(name, s.current())]
	return ok
}

// Declare allocates a new slot for name in the innermost block and returns
// the lines that pop the top of the evaluation stack into it.
// Declaring the same name twice in one block panics.
func (s *Scope) Declare(name string) []Line {
	key := slotKey(name, s.current())
	if _, exists := s.slots[key]; exists {
		panic(fmt.Sprintf("scope: %q declared twice in block %d", name, s.current()))
	}
	s.frameSize += wordSize
	s.slots[key] = s.frameSize
	return []Line{
		Ins(MOV, Reg(RAX), Reg(RBP)),
		Ins(SUBQ, Reg(RAX), Imm(s.frameSize)),
		Ins(POP, Reg(RDI)),
		Ins(MOV, Mem(RAX), Reg(RDI)),
	}
}

// resolve finds the slot offset for name, innermost block first.
func (s *Scope) resolve(name string) (int, bool) {
	for i := len(s.blocks) - 1; i >= 0; i-- {
		if off, ok := s.slots[slotKey(name, s.blocks[i])]; ok {
			return off, true
		}
	}
	off, ok := s.slots[slotKey(name, 0)]
	return off, ok
}

// Lookup returns the lines that push the value of name. span locates the
// reference for the UndefinedSymbol error.
func (s *Scope) Lookup(name string, span Span) ([]Line, error) {
	off, ok := s.resolve(name)
	if !ok {
		return nil, &CompileError{Kind: UndefinedSymbol, Name: name, Span: span}
	}
	return []Line{
		Ins(MOV, Reg(RAX), Reg(RBP)),
		Ins(SUBQ, Reg(RAX), Imm(off)),
		Ins(MOV, Reg(RAX), Mem(RAX)),
		Ins(PUSH, Reg(RAX)),
	}, nil
}

// FrameSize is the number of bytes of locals declared so far.
func (s *Scope) FrameSize() int {
	return s.frameSize
}

// Prologue sets up the frame. Call it after the body has been compiled so
// the reservation covers every slot.
func (s *Scope) Prologue() []Line {
	lines := []Line{
		Ins(PUSH, Reg(RBP)),
		Ins(MOV, Reg(RBP), Reg(RSP)),
	}
	if reserve := alignUp(s.frameSize, 16); reserve > 0 {
		lines = append(lines, Ins(SUBQ, Reg(RSP), Imm(reserve)))
	}
	return lines
}

// Epilogue tears the frame down. It does not include the ret.
func (s *Scope) Epilogue() []Line {
	return []Line{
		Ins(MOV, Reg(RSP), Reg(RBP)),
		Ins(POP, Reg(RBP)),
	}
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
