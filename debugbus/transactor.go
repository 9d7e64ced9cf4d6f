// Package debugbus drives single request/response exchanges over the
// model's debug bus, hiding cycle-level ready/valid retry behind
// bounded, error-returning transactions.
package debugbus

import (
	"github.com/rvcosim/rvcosim/model"
)

// Width is the memory request width code on the debug bus.
type Width uint8

// Width codes, matching the RTL reqWidth encoding.
const (
	WidthByte Width = 0
	WidthHalf Width = 1
	WidthWord Width = 2
)

// Bytes returns the transfer size for the width code.
func (w Width) Bytes() int {
	switch w {
	case WidthHalf:
		return 2
	case WidthWord:
		return 4
	default:
		return 1
	}
}

// Retry budgets, in clock cycles. A request that is not acknowledged
// within its budget means the model is stuck, not a transient
// condition, so exhaustion is fatal to the run.
const (
	// RequestBudget bounds the cycles spent waiting for the memory
	// request channel to assert ready.
	RequestBudget = 10

	// WriteCompleteBudget bounds the cycles spent waiting for a write
	// to drain (ready reasserting after the request was accepted).
	WriteCompleteBudget = 30

	// ReadResponseBudget bounds the cycles spent waiting for a memory
	// read response. Reads may propagate through pipeline stages, so
	// this is longer than the request budget.
	ReadResponseBudget = 20

	// RegisterResponseBudget bounds the cycles spent waiting for a
	// register read response.
	RegisterResponseBudget = 10
)

// Ticker advances the model by one full clock cycle.
type Ticker func()

// Transactor performs one logical debug-bus transaction at a time. It
// borrows the model per call and holds no state across calls; there is
// never more than one outstanding request.
type Transactor struct {
	m    model.Model
	tick Ticker
}

// New creates a transactor over the given model. tick must advance the
// model by exactly one clock cycle.
func New(m model.Model, tick Ticker) *Transactor {
	return &Transactor{m: m, tick: tick}
}

// WriteMemory writes one value of the given width to model memory. It
// holds the request valid until the bus asserts ready, then waits for
// the write to drain before returning.
func (t *Transactor) WriteMemory(addr, data uint32, width Width) error {
	if err := t.request(addr, data, width, true); err != nil {
		return err
	}

	// The bus reports ready again once the write has retired.
	for attempt := 0; attempt < WriteCompleteBudget; attempt++ {
		t.tick()
		if t.m.GetOutput(model.SigMemInReady) != 0 {
			return nil
		}
	}
	return &TimeoutError{Phase: PhaseWriteComplete, Addr: addr, Budget: WriteCompleteBudget}
}

// ReadMemory reads one value of the given width from model memory.
func (t *Transactor) ReadMemory(addr uint32, width Width) (uint32, error) {
	if err := t.request(addr, 0, width, false); err != nil {
		return 0, err
	}

	for attempt := 0; attempt < ReadResponseBudget; attempt++ {
		if t.m.GetOutput(model.SigMemResValid) != 0 {
			return uint32(t.m.GetOutput(model.SigMemResBits)), nil
		}
		t.tick()
	}
	return 0, &TimeoutError{Phase: PhaseReadResponse, Addr: addr, Budget: ReadResponseBudget}
}

// request drives the memory request fields and valid every cycle until
// ready is observed, then deasserts valid and write.
func (t *Transactor) request(addr, data uint32, width Width, write bool) error {
	accepted := false
	for attempt := 0; attempt < RequestBudget; attempt++ {
		t.m.SetInput(model.SigMemInAddr, uint64(addr))
		t.m.SetInput(model.SigMemInWrite, boolBit(write))
		t.m.SetInput(model.SigMemInData, uint64(data))
		t.m.SetInput(model.SigMemInWidth, uint64(width))
		t.m.SetInput(model.SigMemInInstr, 0)
		t.m.SetInput(model.SigMemInValid, 1)
		ready := t.m.GetOutput(model.SigMemInReady) != 0
		t.tick()
		if ready {
			accepted = true
			break
		}
	}

	t.m.SetInput(model.SigMemInValid, 0)
	t.m.SetInput(model.SigMemInWrite, 0)

	if !accepted {
		return &TimeoutError{Phase: PhaseRequest, Addr: addr, Budget: RequestBudget}
	}
	return nil
}

// ReadRegister reads one general-purpose register through the
// hart-control channel. The register request flag is cleared whether or
// not the read succeeds.
func (t *Transactor) ReadRegister(idx uint8) (value uint32, err error) {
	t.m.SetInput(model.SigHartIDValid, 1)
	t.m.SetInput(model.SigHartIDBits, 0)
	t.m.SetInput(model.SigHartRegValid, 1)
	t.m.SetInput(model.SigHartRegIndex, uint64(idx))
	t.m.SetInput(model.SigHartRegWrite, 0)
	t.m.SetInput(model.SigHartRegData, 0)

	defer t.m.SetInput(model.SigHartRegValid, 0)

	t.tick()

	for attempt := 0; attempt < RegisterResponseBudget; attempt++ {
		if t.m.GetOutput(model.SigRegResValid) != 0 {
			return uint32(t.m.GetOutput(model.SigRegResBits)), nil
		}
		t.tick()
	}
	return 0, &TimeoutError{Phase: PhaseRegisterRead, Reg: idx, Budget: RegisterResponseBudget}
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
