package debugbus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvcosim/rvcosim/debugbus"
	"github.com/rvcosim/rvcosim/model"
	"github.com/rvcosim/rvcosim/model/modeltest"
)

// newBus wires a transactor over a scripted model with a plain clock
// toggle, returning a tick counter to assert retry budgets against.
func newBus(m *modeltest.Model) (*debugbus.Transactor, *int) {
	ticks := new(int)
	tick := func() {
		*ticks++
		m.SetInput(model.SigClock, 0)
		m.Eval()
		m.SetInput(model.SigClock, 1)
		m.Eval()
	}
	return debugbus.New(m, tick), ticks
}

var _ = Describe("Transactor", func() {
	Describe("WriteMemory", func() {
		It("should write a word the model can read back", func() {
			m := modeltest.New()
			bus, _ := newBus(m)

			err := bus.WriteMemory(0x80000000, 0xcafef00d, debugbus.WidthWord)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.MemWord(0x80000000)).To(Equal(uint32(0xcafef00d)))
		})

		It("should write single bytes without touching neighbours", func() {
			m := modeltest.New()
			bus, _ := newBus(m)

			Expect(bus.WriteMemory(0x80000000, 0xffffffff, debugbus.WidthWord)).To(Succeed())
			Expect(bus.WriteMemory(0x80000001, 0x42, debugbus.WidthByte)).To(Succeed())

			Expect(m.MemWord(0x80000000)).To(Equal(uint32(0xffff42ff)))
		})

		It("should fail after exactly the request budget on a never-ready bus", func() {
			m := modeltest.New(modeltest.WithMemNeverReady())
			bus, ticks := newBus(m)

			err := bus.WriteMemory(0x1000, 1, debugbus.WidthWord)

			var timeout *debugbus.TimeoutError
			Expect(err).To(BeAssignableToTypeOf(timeout))
			timeout = err.(*debugbus.TimeoutError)
			Expect(timeout.Phase).To(Equal(debugbus.PhaseRequest))
			Expect(timeout.Addr).To(Equal(uint32(0x1000)))
			Expect(timeout.Budget).To(Equal(debugbus.RequestBudget))
			Expect(*ticks).To(Equal(debugbus.RequestBudget))
		})

		It("should fail when a write never drains", func() {
			m := modeltest.New(modeltest.WithMemNeverResponds())
			bus, _ := newBus(m)

			err := bus.WriteMemory(0x2000, 1, debugbus.WidthWord)

			var timeout *debugbus.TimeoutError
			Expect(err).To(BeAssignableToTypeOf(timeout))
			timeout = err.(*debugbus.TimeoutError)
			Expect(timeout.Phase).To(Equal(debugbus.PhaseWriteComplete))
			Expect(timeout.Budget).To(Equal(debugbus.WriteCompleteBudget))
		})

		It("should tolerate a slow but live bus", func() {
			m := modeltest.New(modeltest.WithMemLatency(5))
			bus, _ := newBus(m)

			Expect(bus.WriteMemory(0x3000, 0x11223344, debugbus.WidthWord)).To(Succeed())
			Expect(m.MemWord(0x3000)).To(Equal(uint32(0x11223344)))
		})
	})

	Describe("ReadMemory", func() {
		It("should read back written data", func() {
			m := modeltest.New()
			bus, _ := newBus(m)

			Expect(bus.WriteMemory(0x80000004, 0x00c0ffee, debugbus.WidthWord)).To(Succeed())

			val, err := bus.ReadMemory(0x80000004, debugbus.WidthWord)
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(uint32(0x00c0ffee)))
		})

		It("should fail after the read response budget when no response arrives", func() {
			m := modeltest.New(modeltest.WithMemNeverResponds())
			bus, _ := newBus(m)

			_, err := bus.ReadMemory(0x4000, debugbus.WidthWord)

			var timeout *debugbus.TimeoutError
			Expect(err).To(BeAssignableToTypeOf(timeout))
			timeout = err.(*debugbus.TimeoutError)
			Expect(timeout.Phase).To(Equal(debugbus.PhaseReadResponse))
			Expect(timeout.Budget).To(Equal(debugbus.ReadResponseBudget))
		})
	})

	Describe("ReadRegister", func() {
		var m *modeltest.Model

		readRegister := func(bus *debugbus.Transactor, idx uint8) (uint32, error) {
			m.SetInput(model.SigRegResReady, 1)
			return bus.ReadRegister(idx)
		}

		It("should return the register value", func() {
			m = modeltest.New()
			bus, _ := newBus(m)
			m.WriteReg(7, 0x1234)

			val, err := readRegister(bus, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(uint32(0x1234)))
		})

		It("should not return stale data on back-to-back reads", func() {
			m = modeltest.New()
			bus, _ := newBus(m)
			m.WriteReg(1, 0xaaaa)
			m.WriteReg(2, 0xbbbb)

			v1, err := readRegister(bus, 1)
			Expect(err).NotTo(HaveOccurred())
			v2, err := readRegister(bus, 2)
			Expect(err).NotTo(HaveOccurred())

			Expect(v1).To(Equal(uint32(0xaaaa)))
			Expect(v2).To(Equal(uint32(0xbbbb)))
		})

		It("should fail after the register response budget", func() {
			m = modeltest.New(modeltest.WithRegNeverResponds())
			bus, ticks := newBus(m)

			_, err := readRegister(bus, 3)

			var timeout *debugbus.TimeoutError
			Expect(err).To(BeAssignableToTypeOf(timeout))
			timeout = err.(*debugbus.TimeoutError)
			Expect(timeout.Phase).To(Equal(debugbus.PhaseRegisterRead))
			Expect(timeout.Reg).To(Equal(uint8(3)))
			Expect(timeout.Budget).To(Equal(debugbus.RegisterResponseBudget))
			// One tick to issue the request plus one per poll attempt.
			Expect(*ticks).To(Equal(debugbus.RegisterResponseBudget + 1))
		})
	})

	Describe("Width", func() {
		It("should map codes to transfer sizes", func() {
			Expect(debugbus.WidthByte.Bytes()).To(Equal(1))
			Expect(debugbus.WidthHalf.Bytes()).To(Equal(2))
			Expect(debugbus.WidthWord.Bytes()).To(Equal(4))
		})
	})
})
