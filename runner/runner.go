// Package runner sequences a co-simulation run: reset, program load,
// entry-point injection, halt release, the cycle-stepping loop, and
// final register capture.
package runner

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rvcosim/rvcosim/arch"
	"github.com/rvcosim/rvcosim/debugbus"
	"github.com/rvcosim/rvcosim/loader"
	"github.com/rvcosim/rvcosim/model"
	"github.com/rvcosim/rvcosim/uart"
)

// Settle tick counts between phases, matching the RTL bring-up
// requirements.
const (
	resetTicks       = 5
	postReleaseTicks = 10
	haltDrainTicks   = 5
)

// Option configures a Runner.
type Option func(*Runner)

// WithVCD enables waveform capture to the given path for the run.
func WithVCD(path string) Option {
	return func(r *Runner) { r.vcdPath = path }
}

// WithUARTConsole decodes the TX pin of the given UART index and writes
// emitted bytes to w during the run loop.
func WithUARTConsole(index int, w io.Writer) Option {
	return func(r *Runner) {
		r.uartIndex = index
		r.console = w
	}
}

// WithUARTDecoder overrides the decoder used for console monitoring.
func WithUARTDecoder(d *uart.Decoder) Option {
	return func(r *Runner) { r.decoder = d }
}

// WithLogger overrides the diagnostic logger. Diagnostics go to stderr
// by default.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithProgress installs a callback invoked once per run-loop cycle.
func WithProgress(fn func(cycle uint64)) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner owns a model exclusively for the duration of a run. It is not
// safe for concurrent use; parallel harnesses need one Runner and one
// model per run.
type Runner struct {
	m    model.Model
	bus  *debugbus.Transactor
	spec Spec

	timestamp  uint64
	rtcCounter uint64
	rtcLevel   uint64
	vcdPath    string
	vcdOpen    bool

	uartIndex int
	console   io.Writer
	decoder   *uart.Decoder

	log      *log.Logger
	progress func(uint64)
}

// New creates a runner over the given model. Watchpoint-based early
// termination requires a model that reports halt status on the debug
// bus; there is no fallback detection strategy.
func New(m model.Model, spec Spec, opts ...Option) (*Runner, error) {
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("runner spec: %w", err)
	}
	if spec.Watchpoint != nil && !m.Capabilities().HasDebugHalted {
		return nil, fmt.Errorf("model %s does not report halt status; watchpoints are unsupported", m.Name())
	}

	r := &Runner{
		m:         m,
		spec:      spec,
		uartIndex: -1,
		log:       log.New(os.Stderr, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.bus = debugbus.New(m, func() { r.tick() })

	if r.console != nil && r.decoder == nil {
		d, err := uart.NewDecoderWithConfig(uart.Config{
			CoreClock: spec.CoreClock,
			BaudRate:  115200,
		})
		if err != nil {
			return nil, err
		}
		r.decoder = d
	}
	if r.console != nil && r.uartIndex >= m.Capabilities().UARTCount {
		return nil, fmt.Errorf("model %s has no UART %d", m.Name(), r.uartIndex)
	}
	return r, nil
}

// Run executes the full reset/load/run/capture sequence and returns the
// captured architectural snapshot. Any debug-bus timeout aborts the run
// with a diagnostic naming the phase and address or register.
func (r *Runner) Run(prog *loader.Program) (*arch.Snapshot, error) {
	if r.vcdPath != "" {
		if err := r.m.OpenVCD(r.vcdPath); err != nil {
			return nil, fmt.Errorf("opening VCD %s: %w", r.vcdPath, err)
		}
		r.vcdOpen = true
		defer r.closeVCD()
	}

	r.resetPhase()

	if err := r.loadPhase(prog); err != nil {
		return nil, fmt.Errorf("program load: %w", err)
	}

	entry := prog.Entry
	if r.spec.EntryPoint != nil {
		entry = *r.spec.EntryPoint
	}
	r.entryPhase(entry)
	r.releasePhase()
	r.runLoop()

	snap, err := r.capturePhase()
	if err != nil {
		return nil, fmt.Errorf("register capture: %w", err)
	}
	return snap, nil
}

// initDebugInterface drives every debug-bus input to its safe default:
// all valid bits low, memory responses always accepted, register
// responses held off until the capture phase.
func (r *Runner) initDebugInterface() {
	for _, sig := range []model.Signal{
		model.SigHartIDValid, model.SigHartIDBits,
		model.SigHartHaltValid, model.SigHartHaltBits,
		model.SigHartBreakpointValid, model.SigHartBreakpointPC,
		model.SigHartWatchpointValid, model.SigHartWatchpointAddr,
		model.SigHartSetPCValid, model.SigHartSetPCBits,
		model.SigHartRegValid, model.SigHartRegIndex,
		model.SigHartRegWrite, model.SigHartRegData,
		model.SigMemInValid, model.SigMemInAddr, model.SigMemInWrite,
		model.SigMemInData, model.SigMemInWidth, model.SigMemInInstr,
	} {
		r.m.SetInput(sig, 0)
	}
	r.m.SetInput(model.SigMemResReady, 1)
	r.m.SetInput(model.SigRegResReady, 0)
}

// resetPhase holds reset high for a few cycles with the core halted.
// Halt is asserted after the blanket defaults, which would otherwise
// clear it again.
func (r *Runner) resetPhase() {
	r.m.SetInput(model.SigClock, 0)
	r.m.SetInput(model.SigReset, 1)

	r.initDebugInterface()

	r.m.SetInput(model.SigHartIDValid, 1)
	r.m.SetInput(model.SigHartIDBits, 0) // hart 0
	r.m.SetInput(model.SigHartHaltValid, 1)
	r.m.SetInput(model.SigHartHaltBits, 1)

	if r.spec.Watchpoint != nil {
		r.m.SetInput(model.SigHartWatchpointValid, 1)
		r.m.SetInput(model.SigHartWatchpointAddr, uint64(*r.spec.Watchpoint))
		r.log.Printf("Setting watchpoint on address: 0x%08x", *r.spec.Watchpoint)
	}

	// Settle combinational state before the first clock edge.
	r.m.Eval()

	for i := 0; i < resetTicks; i++ {
		r.tick()
	}
}

// loadPhase writes every segment into model memory word-by-word. This
// must happen strictly after reset deassertion: the memory is
// reset-initialized and a later reset would clear it back to zero.
func (r *Runner) loadPhase(prog *loader.Program) error {
	r.m.SetInput(model.SigReset, 0)
	r.tick()

	for _, seg := range prog.Segments {
		r.log.Printf("Loading %s (%d bytes) at address 0x%08x", seg.Name, len(seg.Data), seg.Addr)

		data := seg.Data
		words := len(data) / 4
		for i := 0; i < words; i++ {
			word := binary.LittleEndian.Uint32(data[i*4:])
			addr := seg.Addr + uint32(i*4)
			if err := r.bus.WriteMemory(addr, word, debugbus.WidthWord); err != nil {
				return err
			}
		}
		for i := words * 4; i < len(data); i++ {
			addr := seg.Addr + uint32(i)
			if err := r.bus.WriteMemory(addr, uint32(data[i]), debugbus.WidthByte); err != nil {
				return err
			}
		}
	}
	return nil
}

// entryPhase injects the entry PC while halt is still asserted, so the
// fetch pipeline is flushed before execution starts from a well-defined
// address rather than the power-on vector.
func (r *Runner) entryPhase(entry uint32) {
	r.log.Printf("Setting PC to 0x%08x and flushing pipeline", entry)
	r.m.SetInput(model.SigHartIDValid, 1)
	r.m.SetInput(model.SigHartIDBits, 0)
	r.m.SetInput(model.SigHartSetPCValid, 1)
	r.m.SetInput(model.SigHartSetPCBits, uint64(entry))
	r.tick()
	r.m.SetInput(model.SigHartSetPCValid, 0)
	r.tick()
}

// releasePhase deasserts halt attributed to hart 0, then clears the
// hart-control routing entirely. The don't-care state is required so
// the model's own watchpoint logic can assert halt asynchronously
// without fighting a stale deassertion.
func (r *Runner) releasePhase() {
	r.m.SetInput(model.SigMemInValid, 0)
	r.m.SetInput(model.SigHartIDValid, 1)
	r.m.SetInput(model.SigHartIDBits, 0)
	r.m.SetInput(model.SigHartHaltValid, 1)
	r.m.SetInput(model.SigHartHaltBits, 0)
	r.log.Printf("CPU halt released, starting execution")
	r.tick()

	r.m.SetInput(model.SigHartIDValid, 0)
	r.m.SetInput(model.SigHartHaltValid, 0)

	for i := 0; i < postReleaseTicks; i++ {
		r.tick()
	}
}

// runLoop steps the clock up to MaxCycles, sampling the UART pin and
// the halt flag each cycle. Budget exhaustion without a halt is left to
// the caller to judge.
func (r *Runner) runLoop() {
	for cycle := uint64(0); cycle < r.spec.MaxCycles; cycle++ {
		r.tick()
		if r.progress != nil {
			r.progress(cycle + 1)
		}

		if r.decoder != nil {
			txd := uint8(r.m.GetOutput(model.UARTTx(r.uartIndex)))
			if b, ok := r.decoder.Process(txd); ok {
				fmt.Fprintf(r.console, "%c", b)
			}
		}

		if r.m.GetOutput(model.SigDebugHalted) != 0 {
			r.log.Printf("CPU halted at cycle %d, watchpoint triggered", cycle)
			for i := 0; i < haltDrainTicks; i++ {
				r.tick()
			}
			return
		}
	}
	r.log.Printf("Max cycles (%d) reached without halt", r.spec.MaxCycles)
}

// capturePhase halts the core (idempotent if the watchpoint already
// did) and reads all 32 registers through the debug bus.
func (r *Runner) capturePhase() (*arch.Snapshot, error) {
	r.m.SetInput(model.SigHartIDValid, 1)
	r.m.SetInput(model.SigHartIDBits, 0)
	r.m.SetInput(model.SigHartHaltValid, 1)
	r.m.SetInput(model.SigHartHaltBits, 1)
	r.m.SetInput(model.SigRegResReady, 1)
	r.tick()

	var regs arch.RegisterFile
	for idx := uint8(0); idx < arch.NumRegisters; idx++ {
		val, err := r.bus.ReadRegister(idx)
		if err != nil {
			return nil, err
		}
		regs.Set(idx, val)
	}

	return arch.NewSnapshot(regs), nil
}

// tick advances the model by one full clock cycle, toggling the RTC
// clock at its divider and dumping one VCD sample per half-cycle.
func (r *Runner) tick() {
	if r.m.Capabilities().HasRTCClock {
		r.rtcCounter++
		if r.rtcCounter >= r.spec.RTCDivider {
			r.rtcCounter = 0
			r.rtcLevel ^= 1
			r.m.SetInput(model.SigRTCClock, r.rtcLevel)
		}
	}

	r.m.SetInput(model.SigClock, 0)
	r.m.Eval()
	r.dump()

	r.m.SetInput(model.SigClock, 1)
	r.m.Eval()
	r.dump()
}

func (r *Runner) dump() {
	if r.vcdOpen {
		r.m.DumpVCD(r.timestamp)
	}
	r.timestamp++
}

func (r *Runner) closeVCD() {
	if r.vcdOpen {
		r.m.CloseVCD()
		r.vcdOpen = false
	}
}
