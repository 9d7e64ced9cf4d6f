// Package uart decodes a bit-serial UART TX line sampled once per
// simulated clock cycle into bytes.
//
// Framing: 1 start bit (0), 8 data bits LSB-first, 1 stop bit (1).
// The line idles high.
package uart

// DefaultBitPeriod is the bit period in core clock cycles for the
// default UART divider. The UART advances when its counter reaches the
// divider value, so each serial bit lasts divider+1 cycles.
const DefaultBitPeriod = 435

const dataBits = 8

// Decoder converts a single-bit serial line into bytes. Feed it one
// sample per clock cycle through Process; it emits at most one byte per
// call. The decoder is restartable: after each byte it returns to idle,
// positioned to catch the next start bit immediately.
type Decoder struct {
	prevBit          uint8
	samples          []uint8
	cyclesSinceStart uint32
	inByte           bool
	bitPeriod        uint32
}

// NewDecoder creates a decoder with the default bit period.
func NewDecoder() *Decoder {
	return NewDecoderWithPeriod(DefaultBitPeriod)
}

// NewDecoderWithPeriod creates a decoder with an explicit bit period in
// clock cycles.
func NewDecoderWithPeriod(bitPeriod uint32) *Decoder {
	return &Decoder{
		prevBit:   1, // idle is high
		samples:   make([]uint8, 0, dataBits),
		bitPeriod: bitPeriod,
	}
}

// Process consumes one clock cycle of the TX line. It returns
// (b, true) when a complete byte has been received.
func (d *Decoder) Process(txd uint8) (byte, bool) {
	bit := txd & 1

	// A falling edge while idle is the start bit.
	if !d.inByte && d.prevBit == 1 && bit == 0 {
		d.inByte = true
		d.cyclesSinceStart = 0
		d.samples = d.samples[:0]
	}

	if d.inByte {
		d.cyclesSinceStart++

		// Sample each data bit once, in the middle of its period:
		// bit k at bitPeriod*(k+1) + bitPeriod/2.
		if len(d.samples) < dataBits {
			k := uint32(len(d.samples))
			sampleTime := d.bitPeriod + d.bitPeriod/2 + k*d.bitPeriod
			if d.cyclesSinceStart == sampleTime {
				d.samples = append(d.samples, bit)
			}
		}

		// Finalize at the middle of the stop bit so the very next
		// cycle can detect the next start bit.
		stopSampleTime := d.bitPeriod*9 + d.bitPeriod/2
		if len(d.samples) == dataBits && d.cyclesSinceStart >= stopSampleTime {
			b := d.decode()
			d.inByte = false
			d.samples = d.samples[:0]
			d.cyclesSinceStart = 0
			d.prevBit = bit
			return b, true
		}
	}

	d.prevBit = bit
	return 0, false
}

func (d *Decoder) decode() byte {
	var b byte
	for i, bit := range d.samples {
		if bit == 1 {
			b |= 1 << i
		}
	}
	return b
}
