package uart

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// Config derives the decoder bit period from the core clock frequency
// and the UART baud rate, instead of hard-coding a divider.
type Config struct {
	// CoreClock is the frequency the model is stepped at.
	CoreClock sim.Freq

	// BaudRate is the UART line rate in bits per second.
	BaudRate uint64
}

// DefaultConfig matches the SoC's stock UART: 50 MHz core clock at
// 115200 baud, which rounds to the 435-cycle default period.
func DefaultConfig() Config {
	return Config{
		CoreClock: 50 * sim.MHz,
		BaudRate:  115200,
	}
}

func (c Config) validate() error {
	if c.CoreClock <= 0 {
		return fmt.Errorf("core clock must be > 0")
	}
	if c.BaudRate == 0 {
		return fmt.Errorf("baud rate must be > 0")
	}
	return nil
}

// BitPeriod returns the serial bit period in core clock cycles. The
// UART counter advances when it reaches the divider value, so one bit
// lasts divider+1 cycles (435 for 50 MHz / 115200).
func (c Config) BitPeriod() uint32 {
	divider := uint32(float64(c.CoreClock) / float64(c.BaudRate))
	return divider + 1
}

// NewDecoderWithConfig creates a decoder whose bit period is derived
// from the clock/baud ratio.
func NewDecoderWithConfig(c Config) (*Decoder, error) {
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("uart config: %w", err)
	}
	return NewDecoderWithPeriod(c.BitPeriod()), nil
}
