package arch

// ExitCodeRegister is the register holding the test result under the
// riscv-tests ABI convention (x3/gp).
const ExitCodeRegister = 3

// Snapshot is the architectural state captured at the end of a run.
// It is created once per run and treated as immutable afterwards.
type Snapshot struct {
	// Regs holds the final general-purpose register values.
	Regs RegisterFile

	// ExitCode is the value of x3 at capture, or nil when the run did
	// not capture one (e.g. a reference trace, which has no designated
	// exit register).
	ExitCode *uint32
}

// NewSnapshot builds a snapshot from a register file, recording x3 as
// the exit code.
func NewSnapshot(regs RegisterFile) *Snapshot {
	code := regs.Get(ExitCodeRegister)
	return &Snapshot{Regs: regs, ExitCode: &code}
}

// HasActivity reports whether any register outside x0 is non-zero.
// An all-zero snapshot after a run that was expected to execute
// instructions usually indicates a load or wiring defect rather than a
// logic defect.
func (s *Snapshot) HasActivity() bool {
	for i := uint8(1); i < NumRegisters; i++ {
		if s.Regs.Get(i) != 0 {
			return true
		}
	}
	return false
}
