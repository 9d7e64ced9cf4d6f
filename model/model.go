// Package model abstracts the cycle-accurate CPU models produced by the
// hardware toolchain behind a signal-level stepping interface.
package model

import "fmt"

// Signal identifies a top-level port of the model by its RTL name.
type Signal string

// Top-level ports shared by all supported models. The names mirror the
// generated RTL port list.
const (
	SigClock    Signal = "clock"
	SigReset    Signal = "reset"
	SigRTCClock Signal = "io_rtcClock"

	// Hart-control channel.
	SigHartIDValid         Signal = "io_debug_hart_in_id_valid"
	SigHartIDBits          Signal = "io_debug_hart_in_id_bits"
	SigHartHaltValid       Signal = "io_debug_hart_in_bits_halt_valid"
	SigHartHaltBits        Signal = "io_debug_hart_in_bits_halt_bits"
	SigHartBreakpointValid Signal = "io_debug_hart_in_bits_breakpoint_valid"
	SigHartBreakpointPC    Signal = "io_debug_hart_in_bits_breakpoint_bits_pc"
	SigHartWatchpointValid Signal = "io_debug_hart_in_bits_watchpoint_valid"
	SigHartWatchpointAddr  Signal = "io_debug_hart_in_bits_watchpoint_bits_addr"
	SigHartSetPCValid      Signal = "io_debug_hart_in_bits_setPC_valid"
	SigHartSetPCBits       Signal = "io_debug_hart_in_bits_setPC_bits_pc"
	SigHartRegValid        Signal = "io_debug_hart_in_bits_register_valid"
	SigHartRegIndex        Signal = "io_debug_hart_in_bits_register_bits_reg"
	SigHartRegWrite        Signal = "io_debug_hart_in_bits_register_bits_write"
	SigHartRegData         Signal = "io_debug_hart_in_bits_register_bits_data"

	// Memory request channel.
	SigMemInValid Signal = "io_debug_mem_in_valid"
	SigMemInReady Signal = "io_debug_mem_in_ready"
	SigMemInAddr  Signal = "io_debug_mem_in_bits_addr"
	SigMemInWrite Signal = "io_debug_mem_in_bits_write"
	SigMemInData  Signal = "io_debug_mem_in_bits_data"
	SigMemInWidth Signal = "io_debug_mem_in_bits_reqWidth"
	SigMemInInstr Signal = "io_debug_mem_in_bits_instr"

	// Memory response channel.
	SigMemResReady Signal = "io_debug_mem_res_ready"
	SigMemResValid Signal = "io_debug_mem_res_valid"
	SigMemResBits  Signal = "io_debug_mem_res_bits"

	// Register response channel.
	SigRegResReady Signal = "io_debug_reg_res_ready"
	SigRegResValid Signal = "io_debug_reg_res_valid"
	SigRegResBits  Signal = "io_debug_reg_res_bits"

	// Halt status, asserted by the model when a watchpoint or
	// breakpoint fires.
	SigDebugHalted Signal = "io_debug_halted"
)

// UARTTx returns the transmit pin signal for the given UART index.
func UARTTx(index int) Signal {
	return Signal(fmt.Sprintf("io_uart_%d_txd", index))
}

// UARTRx returns the receive pin signal for the given UART index.
func UARTRx(index int) Signal {
	return Signal(fmt.Sprintf("io_uart_%d_rxd", index))
}

// Capabilities describes which optional surfaces a model exposes.
type Capabilities struct {
	// HasRTCClock is true when the model has a secondary RTC clock pin.
	HasRTCClock bool

	// HasDebugHalted is true when the model reports halt status on the
	// debug bus. Watchpoint-based early termination requires it.
	HasDebugHalted bool

	// UARTCount is the number of UART peripherals wired to pins.
	UARTCount int
}

// Model is a single cycle-accurate CPU model instance. It is stepped by
// driving the clock signal and calling Eval; all other interaction goes
// through named input and output ports.
//
// A Model is owned by exactly one Runner at a time and is not safe for
// concurrent use. Harnesses that parallelize runs must construct one
// model per run.
type Model interface {
	// Name returns the registered model name.
	Name() string

	// Capabilities reports the optional surfaces this model exposes.
	Capabilities() Capabilities

	// SetInput drives an input port. Unknown signals are ignored.
	SetInput(sig Signal, value uint64)

	// GetOutput samples an output port. Unknown signals read 0.
	GetOutput(sig Signal) uint64

	// Eval settles combinational state after input changes.
	Eval()

	// OpenVCD starts waveform capture to the given path.
	OpenVCD(path string) error

	// DumpVCD records the current state at the given timestamp.
	// No-op unless OpenVCD succeeded.
	DumpVCD(timestamp uint64)

	// CloseVCD finishes waveform capture.
	CloseVCD()
}
