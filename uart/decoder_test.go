package uart_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/rvcosim/rvcosim/uart"
)

// frame serializes one byte as the TX line would carry it: a start bit,
// eight data bits LSB-first, and a stop bit, each held for bitPeriod
// cycles.
func frame(b byte, bitPeriod uint32) []uint8 {
	var samples []uint8
	hold := func(bit uint8) {
		for i := uint32(0); i < bitPeriod; i++ {
			samples = append(samples, bit)
		}
	}

	hold(0) // start
	for i := 0; i < 8; i++ {
		hold(uint8(b>>i) & 1)
	}
	hold(1) // stop
	return samples
}

// drain feeds samples to the decoder and collects every emitted byte.
func drain(d *uart.Decoder, samples []uint8) []byte {
	var out []byte
	for _, s := range samples {
		if b, ok := d.Process(s); ok {
			out = append(out, b)
		}
	}
	return out
}

var _ = Describe("Decoder", func() {
	const period = 8

	It("should decode a single framed byte", func() {
		d := uart.NewDecoderWithPeriod(period)

		stream := []uint8{1, 1, 1}
		stream = append(stream, frame(0xa5, period)...)
		stream = append(stream, 1, 1, 1, 1)

		Expect(drain(d, stream)).To(Equal([]byte{0xa5}))
	})

	It("should decode back-to-back bytes with no idle gap", func() {
		d := uart.NewDecoderWithPeriod(period)

		stream := []uint8{1}
		stream = append(stream, frame('H', period)...)
		stream = append(stream, frame('i', period)...)
		stream = append(stream, 1, 1)

		Expect(drain(d, stream)).To(Equal([]byte{'H', 'i'}))
	})

	It("should emit within the stop bit, before the frame ends", func() {
		d := uart.NewDecoderWithPeriod(period)

		// Idle prefix, then one frame. The byte must appear no earlier
		// than the stop-bit sample point and no later than the last
		// cycle of the stop bit.
		idle := uint32(5)
		stream := make([]uint8, idle)
		for i := range stream {
			stream[i] = 1
		}
		stream = append(stream, frame(0x3c, period)...)

		emittedAt := -1
		for i, s := range stream {
			if _, ok := d.Process(s); ok {
				emittedAt = i
				break
			}
		}

		startEdge := int(idle)
		stopSample := startEdge + int(period*9+period/2) - 1
		frameEnd := startEdge + int(period*10) - 1
		Expect(emittedAt).To(BeNumerically(">=", stopSample))
		Expect(emittedAt).To(BeNumerically("<=", frameEnd))
	})

	It("should never emit on an idle line", func() {
		d := uart.NewDecoderWithPeriod(period)

		for i := 0; i < period*40; i++ {
			_, ok := d.Process(1)
			Expect(ok).To(BeFalse())
		}
	})

	It("should decode extreme bit patterns", func() {
		d := uart.NewDecoderWithPeriod(period)

		stream := []uint8{1}
		stream = append(stream, frame(0x00, period)...)
		stream = append(stream, frame(0xff, period)...)
		stream = append(stream, 1)

		Expect(drain(d, stream)).To(Equal([]byte{0x00, 0xff}))
	})

	It("should decode at the default bit period", func() {
		d := uart.NewDecoder()

		stream := []uint8{1, 1}
		stream = append(stream, frame('U', uart.DefaultBitPeriod)...)
		stream = append(stream, 1, 1)

		Expect(drain(d, stream)).To(Equal([]byte{'U'}))
	})
})

var _ = Describe("Config", func() {
	It("should derive the stock 435-cycle period from 50 MHz / 115200", func() {
		Expect(uart.DefaultConfig().BitPeriod()).To(Equal(uint32(uart.DefaultBitPeriod)))
	})

	It("should build a working decoder from a config", func() {
		cfg := uart.Config{CoreClock: 1 * sim.MHz, BaudRate: 125000}
		d, err := uart.NewDecoderWithConfig(cfg)
		Expect(err).NotTo(HaveOccurred())

		// 1 MHz / 125000 baud gives a divider of 8, so a 9-cycle bit.
		stream := []uint8{1}
		stream = append(stream, frame(0x5a, 9)...)
		stream = append(stream, 1)

		Expect(drain(d, stream)).To(Equal([]byte{0x5a}))
	})

	It("should reject a zero baud rate", func() {
		_, err := uart.NewDecoderWithConfig(uart.Config{CoreClock: 1 * sim.MHz})
		Expect(err).To(HaveOccurred())
	})

	It("should reject a zero core clock", func() {
		_, err := uart.NewDecoderWithConfig(uart.Config{BaudRate: 115200})
		Expect(err).To(HaveOccurred())
	})
})
