package debugbus

import "fmt"

// Phase identifies which part of a transaction timed out.
type Phase string

// Transaction phases reported in timeout diagnostics.
const (
	PhaseRequest       Phase = "memory request"
	PhaseWriteComplete Phase = "write completion"
	PhaseReadResponse  Phase = "read response"
	PhaseRegisterRead  Phase = "register read"
)

// TimeoutError reports a debug-bus transaction that exhausted its retry
// budget. It is fatal to the run: the model is stuck, not misconfigured.
type TimeoutError struct {
	// Phase is the transaction phase that timed out.
	Phase Phase

	// Addr is the memory address of the transaction, for memory phases.
	Addr uint32

	// Reg is the register index, for register phases.
	Reg uint8

	// Budget is the attempt budget that was exhausted.
	Budget int
}

func (e *TimeoutError) Error() string {
	if e.Phase == PhaseRegisterRead {
		return fmt.Sprintf("debug bus timeout: %s x%d not acknowledged within %d cycles",
			e.Phase, e.Reg, e.Budget)
	}
	return fmt.Sprintf("debug bus timeout: %s at 0x%08x not acknowledged within %d cycles",
		e.Phase, e.Addr, e.Budget)
}
