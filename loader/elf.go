// Package loader extracts loadable byte ranges and symbol addresses
// from RV32 program images.
package loader

import (
	"debug/elf"
	"fmt"
	"os"
)

// Segment is one loadable byte range of a program image.
type Segment struct {
	// Addr is the address where the bytes should be written.
	Addr uint32
	// Name is the originating section name, for diagnostics.
	Name string
	// Data contains the bytes to load.
	Data []byte
}

// Program represents a program image ready for upload over the debug
// bus.
type Program struct {
	// Entry is the address execution should begin at.
	Entry uint32
	// Segments contains the loadable byte ranges in file order.
	Segments []Segment
}

// Load parses an RV32 ELF binary and returns its loadable ranges.
// Loadable means allocatable, occupying file space, and non-empty;
// NOBITS sections (BSS) are skipped because the model's memory is
// reset-initialized to zero.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{Entry: uint32(f.Entry)}

	for _, sec := range f.Sections {
		if sec.Flags&elf.SHF_ALLOC == 0 || sec.Type == elf.SHT_NOBITS || sec.Size == 0 {
			continue
		}

		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read section %s at 0x%x: %w",
				sec.Name, sec.Addr, err)
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr: uint32(sec.Addr),
			Name: sec.Name,
			Data: data,
		})
	}

	return prog, nil
}

// FindSymbol resolves a named symbol to its address. A missing symbol
// is not an error: it degrades to "not found", since running without a
// watchpoint is a valid configuration.
func FindSymbol(path, name string) (uint32, bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	syms, err := f.Symbols()
	if err != nil {
		if err == elf.ErrNoSymbols {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read symbol table: %w", err)
	}

	for _, sym := range syms {
		if sym.Name == name {
			return uint32(sym.Value), true, nil
		}
	}
	return 0, false, nil
}

// DefaultLoadAddr is where raw binaries land when no load address is
// given, matching the SoC's memory base.
const DefaultLoadAddr = 0x80000000

// LoadRaw wraps a flat binary file as a single-segment program loaded
// at loadAddr. The entry point defaults to the load address when entry
// is nil.
func LoadRaw(path string, loadAddr uint32, entry *uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary file: %w", err)
	}

	entryPoint := loadAddr
	if entry != nil {
		entryPoint = *entry
	}

	return &Program{
		Entry: entryPoint,
		Segments: []Segment{
			{Addr: loadAddr, Name: "raw", Data: data},
		},
	}, nil
}
