package runner

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// Spec holds immutable configuration values for a run.
type Spec struct {
	// MaxCycles bounds the run loop. Exhausting it without a halt is
	// not an error by itself; the caller judges the captured state.
	MaxCycles uint64

	// EntryPoint overrides the program's entry address when non-nil.
	EntryPoint *uint32

	// Watchpoint is the address that halts the core when accessed, or
	// nil to run without one.
	Watchpoint *uint32

	// RTCDivider is the number of main clock ticks per RTC clock
	// toggle, for models that expose a secondary RTC clock.
	RTCDivider uint64

	// CoreClock is the frequency the model represents. It only feeds
	// derived values such as the UART bit period; stepping itself is
	// untimed.
	CoreClock sim.Freq
}

// DefaultSpec returns a Spec with the stock SoC values.
func DefaultSpec() Spec {
	return Spec{
		MaxCycles:  100000,
		RTCDivider: 50,
		CoreClock:  50 * sim.MHz,
	}
}

func (s Spec) validate() error {
	if s.MaxCycles == 0 {
		return fmt.Errorf("max cycles must be > 0")
	}
	if s.RTCDivider == 0 {
		return fmt.Errorf("rtc divider must be > 0")
	}
	if s.CoreClock <= 0 {
		return fmt.Errorf("core clock must be > 0")
	}
	return nil
}
