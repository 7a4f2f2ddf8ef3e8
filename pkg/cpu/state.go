package cpu

import (
	"github.com/segmentio/encoding/json"
)

// State is the JSON-serialisable snapshot of the machine's control state.
type State struct {
	Regs   map[string]int64 `json:"regs"`
	PC     int              `json:"pc"`
	ZF     bool             `json:"zf"`
	SF     bool             `json:"sf"`
	OF     bool             `json:"of"`
	Halted bool             `json:"halted"`
	Steps  int              `json:"steps"`
	Faults []AlignmentFault `json:"alignment_faults,omitempty"`
}

// Snapshot captures the current registers, flags and faults.
func (c *CPU) Snapshot() State {
	regs := make(map[string]int64, NumRegs)
	for i := uint8(0); i < NumRegs; i++ {
		regs[RegName(i)] = c.Regs[i]
	}
	return State{
		Regs:   regs,
		PC:     c.PC,
		ZF:     c.ZF,
		SF:     c.SF,
		OF:     c.OF,
		Halted: c.Halted,
		Steps:  c.Steps,
		Faults: append([]AlignmentFault(nil), c.Faults...),
	}
}

// MarshalState encodes the snapshot as indented JSON.
func (c *CPU) MarshalState() ([]byte, error) {
	return json.MarshalIndent(c.Snapshot(), "", "  ")
}
