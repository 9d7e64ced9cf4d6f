// Package modeltest provides a scripted in-memory model implementing the
// debug-bus protocol, so transactor and runner suites can exercise the
// full reset/load/run/capture sequence without a generated RTL model.
package modeltest

import (
	"github.com/rvcosim/rvcosim/model"
)

// ResetVector is the power-on PC, matching the RTL reset vector.
const ResetVector = 0x80000000

// ExecFunc is the scripted "program" of the model. It runs once per
// rising clock edge while the core is released (not halted, not in
// reset), with the cycle count since release.
type ExecFunc func(m *Model, cycle uint64)

// Option configures a scripted model.
type Option func(*Model)

// WithMemLatency sets how many cycles a memory request stays pending
// before the bus reports ready again (and, for reads, the response
// asserts valid).
func WithMemLatency(cycles int) Option {
	return func(m *Model) { m.memLatency = cycles }
}

// WithRegLatency sets how many cycles a register read takes before the
// register response asserts valid.
func WithRegLatency(cycles int) Option {
	return func(m *Model) { m.regLatency = cycles }
}

// WithMemNeverReady makes the memory request channel never assert
// ready. Used to exercise transactor retry budgets.
func WithMemNeverReady() Option {
	return func(m *Model) { m.memNeverReady = true }
}

// WithMemNeverResponds accepts memory requests but never asserts
// response valid or completes writes.
func WithMemNeverResponds() Option {
	return func(m *Model) { m.memNeverResponds = true }
}

// WithRegNeverResponds makes register reads never assert response
// valid.
func WithRegNeverResponds() Option {
	return func(m *Model) { m.regNeverResponds = true }
}

// WithExec installs the scripted program.
func WithExec(exec ExecFunc) Option {
	return func(m *Model) { m.exec = exec }
}

// Model is a scripted debug-bus model. It implements model.Model.
type Model struct {
	inputs map[model.Signal]uint64
	uartTx [2]uint64

	mem  map[uint32]byte
	regs [32]uint32
	pc   uint32

	halted        bool
	watchpoint    uint32
	watchpointSet bool

	// Memory channel state. memPending counts down to request
	// completion; memResValid holds until the next accepted request.
	memPending  int
	memIsRead   bool
	memReadData uint32
	memResValid bool

	// Register channel state.
	regPending  int
	regResValid bool
	regResData  uint32

	memLatency       int
	regLatency       int
	memNeverReady    bool
	memNeverResponds bool
	regNeverResponds bool

	exec      ExecFunc
	execCycle uint64

	prevClock uint64

	vcdOpen   bool
	VCDPath   string
	DumpCount int
}

// New constructs a scripted model. With no options the bus accepts
// requests immediately and responds after one cycle.
func New(opts ...Option) *Model {
	m := &Model{
		inputs:     map[model.Signal]uint64{},
		mem:        map[uint32]byte{},
		pc:         ResetVector,
		memLatency: 1,
		regLatency: 1,
		uartTx:     [2]uint64{1, 1}, // UART lines idle high
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements model.Model.
func (m *Model) Name() string { return "modeltest" }

// Capabilities implements model.Model.
func (m *Model) Capabilities() model.Capabilities {
	return model.Capabilities{
		HasRTCClock:    true,
		HasDebugHalted: true,
		UARTCount:      2,
	}
}

// SetInput implements model.Model.
func (m *Model) SetInput(sig model.Signal, value uint64) {
	m.inputs[sig] = value
}

// GetOutput implements model.Model.
func (m *Model) GetOutput(sig model.Signal) uint64 {
	switch sig {
	case model.SigMemInReady:
		if m.memNeverReady || m.memPending > 0 {
			return 0
		}
		return 1
	case model.SigMemResValid:
		return boolBit(m.memResValid)
	case model.SigMemResBits:
		return uint64(m.memReadData)
	case model.SigRegResValid:
		return boolBit(m.regResValid)
	case model.SigRegResBits:
		return uint64(m.regResData)
	case model.SigDebugHalted:
		return boolBit(m.halted)
	case model.UARTTx(0):
		return m.uartTx[0]
	case model.UARTTx(1):
		return m.uartTx[1]
	}
	return 0
}

// Eval implements model.Model. Sequential state advances on the rising
// edge of the clock input.
func (m *Model) Eval() {
	clock := m.inputs[model.SigClock]
	rising := m.prevClock == 0 && clock != 0
	m.prevClock = clock
	if !rising {
		return
	}
	m.posedge()
}

func (m *Model) posedge() {
	if m.inputs[model.SigReset] != 0 {
		// Memory and registers are reset-initialized in the RTL.
		m.mem = map[uint32]byte{}
		m.regs = [32]uint32{}
		m.pc = ResetVector
		m.memPending = 0
		m.memResValid = false
		m.regPending = 0
		m.regResValid = false
		m.execCycle = 0
	}

	// A delivered register response is consumed once the receiver's
	// ready sees it, freeing the channel for the next request.
	if m.regResValid && m.inputs[model.SigRegResReady] != 0 {
		m.regResValid = false
	}

	m.applyHartControl()
	m.stepMemChannel()
	m.stepRegChannel()

	if m.inputs[model.SigReset] == 0 && !m.halted && m.exec != nil {
		m.exec(m, m.execCycle)
		m.execCycle++
	}
}

// applyHartControl consumes hart-control commands. Commands are routed
// only while id_valid selects hart 0; with id_valid low the channel is
// in a don't-care state and internal events own the halt flag.
func (m *Model) applyHartControl() {
	if m.inputs[model.SigHartIDValid] == 0 || m.inputs[model.SigHartIDBits] != 0 {
		return
	}

	if m.inputs[model.SigHartHaltValid] != 0 {
		m.halted = m.inputs[model.SigHartHaltBits] != 0
	}
	if m.inputs[model.SigHartWatchpointValid] != 0 {
		m.watchpoint = uint32(m.inputs[model.SigHartWatchpointAddr])
		m.watchpointSet = true
	}
	if m.inputs[model.SigHartSetPCValid] != 0 {
		m.pc = uint32(m.inputs[model.SigHartSetPCBits])
	}
	if m.inputs[model.SigHartRegValid] != 0 {
		idx := uint8(m.inputs[model.SigHartRegIndex]) & 0x1f
		if m.inputs[model.SigHartRegWrite] != 0 {
			if idx != 0 {
				m.regs[idx] = uint32(m.inputs[model.SigHartRegData])
			}
		} else if m.regPending == 0 && !m.regResValid {
			// Accept the read; the response value latches here.
			m.regPending = m.regLatency
			m.regResData = m.regs[idx]
		}
	}
}

func (m *Model) stepMemChannel() {
	if m.memPending > 0 {
		if m.memNeverResponds {
			return
		}
		m.memPending--
		if m.memPending == 0 && m.memIsRead {
			m.memResValid = true
		}
		return
	}

	if m.memNeverReady || m.inputs[model.SigMemInValid] == 0 {
		return
	}

	// Accept the request; a newly accepted request retires any stale
	// read response.
	m.memResValid = false
	addr := uint32(m.inputs[model.SigMemInAddr])
	width := m.inputs[model.SigMemInWidth]
	if m.inputs[model.SigMemInWrite] != 0 {
		data := uint32(m.inputs[model.SigMemInData])
		m.writeMem(addr, data, width)
		m.memIsRead = false
	} else {
		m.memReadData = m.readMem(addr, width)
		m.memIsRead = true
	}
	m.memPending = m.memLatency
}

func (m *Model) stepRegChannel() {
	if m.inputs[model.SigHartRegValid] == 0 {
		// Request withdrawn; anything in flight retires with it.
		m.regResValid = false
		m.regPending = 0
		return
	}
	if m.regPending > 0 && !m.regNeverResponds {
		m.regPending--
		if m.regPending == 0 {
			m.regResValid = true
		}
	}
}

func (m *Model) writeMem(addr, data uint32, width uint64) {
	size := widthBytes(width)
	for i := uint32(0); i < size; i++ {
		m.mem[addr+i] = byte(data >> (8 * i))
	}
}

func (m *Model) readMem(addr uint32, width uint64) uint32 {
	size := widthBytes(width)
	var v uint32
	for i := uint32(0); i < size; i++ {
		v |= uint32(m.mem[addr+i]) << (8 * i)
	}
	return v
}

func widthBytes(width uint64) uint32 {
	switch width {
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 1
	}
}

// OpenVCD implements model.Model.
func (m *Model) OpenVCD(path string) error {
	m.vcdOpen = true
	m.VCDPath = path
	return nil
}

// DumpVCD implements model.Model.
func (m *Model) DumpVCD(timestamp uint64) {
	if m.vcdOpen {
		m.DumpCount++
	}
}

// CloseVCD implements model.Model.
func (m *Model) CloseVCD() { m.vcdOpen = false }

// Halted reports the internal halt flag.
func (m *Model) Halted() bool { return m.halted }

// PC returns the current program counter.
func (m *Model) PC() uint32 { return m.pc }

// MemWord reads a little-endian word from the scripted memory map.
func (m *Model) MemWord(addr uint32) uint32 { return m.readMem(addr, 2) }

// Reg reads a register directly, bypassing the debug bus.
func (m *Model) Reg(idx uint8) uint32 { return m.regs[idx&0x1f] }

// Script helpers, for use from ExecFunc.

// WriteReg writes a register as the scripted program. x0 stays zero.
func (m *Model) WriteReg(idx uint8, value uint32) {
	if idx != 0 && idx < 32 {
		m.regs[idx] = value
	}
}

// TouchAddr performs a scripted memory access. Touching the configured
// watchpoint address asserts halt autonomously, as the RTL watchpoint
// unit does.
func (m *Model) TouchAddr(addr uint32) {
	if m.watchpointSet && addr == m.watchpoint {
		m.halted = true
	}
}

// DriveUART sets the TX pin level for the given UART index.
func (m *Model) DriveUART(index int, bit uint64) {
	if index >= 0 && index < len(m.uartTx) {
		m.uartTx[index] = bit & 1
	}
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
