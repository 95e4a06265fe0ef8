// SPDX-License-Identifier: Unlicense OR MIT

package segment

import (
	"unsafe"
)

// Allocator supplies the raw storage for a table and its register.
type Allocator interface {
	// Alloc returns size zeroed bytes aligned to align.
	Alloc(size, align uintptr) ([]byte, error)
}

// CPU is the processor a table is activated on. GDT.Load calls
// the methods in declaration order.
type CPU interface {
	// LoadTable executes LGDT with reg as operand.
	LoadTable(reg *Register)
	// SetCS makes sel the code segment. It cannot be done with a
	// plain move and needs a far control transfer.
	SetCS(sel Selector)
	SetDS(sel Selector)
	SetES(sel Selector)
	SetSS(sel Selector)
	// SetGS loads the thread-local storage segment.
	SetGS(sel Selector)
}

// State is the lifecycle state of a GDT.
type State uint8

const (
	Uninitialized State = iota
	Allocated
	Activated
)

// GDT owns a descriptor table and the register that points to it
// for the lifetime of the process. The zero value is
// Uninitialized.
//
// A GDT is not safe for concurrent use. Init, then all Entry calls,
// then Load, are expected from a single boot thread.
type GDT struct {
	state State
	table *Table
	reg   *Register
}

const tableAlign = 8

// Init allocates the table and the register from a.
//
//go:nosplit
func (g *GDT) Init(a Allocator) error {
	if g.state != Uninitialized {
		return ErrState
	}
	tb, err := a.Alloc(TableSize, tableAlign)
	if err != nil || uintptr(len(tb)) < TableSize {
		return ErrAlloc
	}
	// The table should be 8-byte aligned for best performance.
	if uintptr(unsafe.Pointer(&tb[0]))%tableAlign != 0 {
		return ErrAlign
	}
	rb, err := a.Alloc(RegisterSize, 1)
	if err != nil || uintptr(len(rb)) < RegisterSize {
		return ErrAlloc
	}
	g.table = (*Table)(unsafe.Pointer(&tb[0]))
	g.reg = (*Register)(unsafe.Pointer(&rb[0]))
	g.table.clear()
	*g.reg = NewRegister(uintptr(unsafe.Pointer(g.table)))
	g.state = Allocated
	return nil
}

// Entry encodes a descriptor and stores it at index. Entries
// written after Load take effect at the next Load.
//
//go:nosplit
func (g *GDT) Entry(index int, base, limit uint64, access, granularity uint8) error {
	if g.state == Uninitialized {
		return ErrState
	}
	return g.table.Set(index, NewDescriptor(base, limit, access, granularity))
}

// Load activates the table on cpu and reloads the segment
// registers: the table register first, then CS through a far
// transfer, then DS, ES and SS with data and finally GS with tls.
// Once started the sequence cannot fail in software; a bad table
// or selector faults the processor.
//
//go:nosplit
func (g *GDT) Load(cpu CPU, code, data, tls Selector) error {
	if g.state == Uninitialized {
		return ErrState
	}
	cpu.LoadTable(g.reg)
	cpu.SetCS(code)
	cpu.SetDS(data)
	cpu.SetES(data)
	cpu.SetSS(data)
	cpu.SetGS(tls)
	g.state = Activated
	return nil
}

func (g *GDT) State() State {
	return g.state
}

// Table returns the live table, or nil before Init.
func (g *GDT) Table() *Table {
	return g.table
}

// Register returns the table register, or nil before Init.
func (g *GDT) Register() *Register {
	return g.reg
}

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Allocated:
		return "allocated"
	case Activated:
		return "activated"
	default:
		return "unknown"
	}
}
