package reftrace

import (
	"fmt"
	"strings"

	"github.com/rvcosim/rvcosim/arch"
)

// TriageRegister is included in every mismatch report with both values;
// test programs stash the failing sub-test marker in x30.
const TriageRegister = 30

// MismatchError aggregates every differing register between the model
// and reference snapshots. It is the designed detection outcome, not a
// system fault.
type MismatchError struct {
	// Mismatches holds one entry per differing register, in ascending
	// index order.
	Mismatches []Mismatch

	// ModelX30 and RefX30 are the triage register values from both
	// sides.
	ModelX30 uint32
	RefX30   uint32
}

// Mismatch is a single differing register.
type Mismatch struct {
	Reg   uint8
	Model uint32
	Ref   uint32
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "register mismatches (x30 model=0x%08x, reference=0x%08x):",
		e.ModelX30, e.RefX30)
	for _, m := range e.Mismatches {
		fmt.Fprintf(&b, "\nx%d: model=0x%08x, reference=0x%08x", m.Reg, m.Model, m.Ref)
	}
	return b.String()
}

// Compare diffs the model snapshot against the reference snapshot over
// registers x1-x31. x0 is excluded; it is hardwired to zero on both
// sides. All mismatches are collected before reporting, never just the
// first. A nil return means the snapshots are bit-identical.
func Compare(modelSnap, refSnap *arch.Snapshot) error {
	var mismatches []Mismatch

	for i := uint8(1); i < arch.NumRegisters; i++ {
		mv := modelSnap.Regs.Get(i)
		rv := refSnap.Regs.Get(i)
		if mv != rv {
			mismatches = append(mismatches, Mismatch{Reg: i, Model: mv, Ref: rv})
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &MismatchError{
		Mismatches: mismatches,
		ModelX30:   modelSnap.Regs.Get(TriageRegister),
		RefX30:     refSnap.Regs.Get(TriageRegister),
	}
}
