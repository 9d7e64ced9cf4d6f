package arch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvcosim/rvcosim/arch"
)

var _ = Describe("RegisterFile", func() {
	var regs arch.RegisterFile

	BeforeEach(func() {
		regs = arch.RegisterFile{}
	})

	It("should read back written registers", func() {
		regs.Set(5, 0xdeadbeef)
		Expect(regs.Get(5)).To(Equal(uint32(0xdeadbeef)))
	})

	It("should keep x0 hardwired to zero", func() {
		regs.Set(0, 1)
		regs.Set(0, 0xffffffff)
		regs.Set(0, 42)
		Expect(regs.Get(0)).To(Equal(uint32(0)))
	})

	It("should discard out-of-range writes", func() {
		regs.Set(32, 7)
		regs.Set(200, 7)
		Expect(regs.Get(32)).To(Equal(uint32(0)))
		Expect(regs.Get(200)).To(Equal(uint32(0)))
	})

	It("should keep registers independent", func() {
		for i := uint8(1); i < arch.NumRegisters; i++ {
			regs.Set(i, uint32(i)*3)
		}
		for i := uint8(1); i < arch.NumRegisters; i++ {
			Expect(regs.Get(i)).To(Equal(uint32(i) * 3))
		}
	})
})

var _ = Describe("Snapshot", func() {
	It("should record x3 as the exit code", func() {
		var regs arch.RegisterFile
		regs.Set(3, 1)

		snap := arch.NewSnapshot(regs)

		Expect(snap.ExitCode).NotTo(BeNil())
		Expect(*snap.ExitCode).To(Equal(uint32(1)))
	})

	Describe("HasActivity", func() {
		It("should be false for an all-zero register file", func() {
			snap := arch.NewSnapshot(arch.RegisterFile{})
			Expect(snap.HasActivity()).To(BeFalse())
		})

		It("should be true when any register outside x0 is set", func() {
			var regs arch.RegisterFile
			regs.Set(17, 1)
			snap := arch.NewSnapshot(regs)
			Expect(snap.HasActivity()).To(BeTrue())
		})
	})
})
