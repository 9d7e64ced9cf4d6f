// Package arch holds the architectural state captured from a simulated core.
package arch

// NumRegisters is the number of general-purpose registers in RV32.
const NumRegisters = 32

// RegisterFile represents the RV32 integer register file.
// x0 is hardwired to zero: reads always return 0 and writes are discarded.
type RegisterFile struct {
	regs [NumRegisters]uint32
}

// Get reads a register value. Index 0 and out-of-range indices return 0.
func (r *RegisterFile) Get(idx uint8) uint32 {
	if idx >= NumRegisters {
		return 0
	}
	return r.regs[idx]
}

// Set writes a value to a register. Writes to index 0 and out-of-range
// indices are silently discarded.
func (r *RegisterFile) Set(idx uint8, value uint32) {
	if idx == 0 || idx >= NumRegisters {
		return
	}
	r.regs[idx] = value
}
