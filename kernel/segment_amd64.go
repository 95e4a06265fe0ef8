// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"unsafe"

	"eliasnaur.com/segboot/segment"
)

// Setting up the processor segments. Segmenting is largely
// disabled in 64-bit mode, but a GDT is nevertheless required and
// CS must select a long mode code segment.

// The system descriptor table, never replaced after
// initialization.
var systemGDT segment.GDT

// cpu is the processor the system table is loaded on.
var cpu segment.CPU = hardwareCPU{}

// hardwareCPU issues the segment instructions on the executing
// processor.
type hardwareCPU struct{}

// Init allocates the system descriptor table and its register from
// the boot arena. Failure is fatal.
//
//go:nosplit
func Init() {
	if !bootArena.ready() {
		bootArena.init(bootHeap[:])
	}
	if err := systemGDT.Init(&bootArena); err != nil {
		fatalError(err)
	}
}

// Entry writes descriptor index of the system table. An index
// outside the table is fatal.
//
//go:nosplit
func Entry(index int, base, limit uint64, access, granularity uint8) {
	if err := systemGDT.Entry(index, base, limit, access, granularity); err != nil {
		fatalError(err)
	}
}

// Load activates the system table and reloads the segment
// registers. CS is loaded with code, DS, ES and SS with data and GS
// with tls.
//
//go:nosplit
func Load(code, data, tls uint16) {
	err := systemGDT.Load(cpu, segment.Selector(code), segment.Selector(data), segment.Selector(tls))
	if err != nil {
		fatalError(err)
	}
	outputString("gdt: loaded table at ")
	outputUint64(uint64(systemGDT.Register().Addr()))
	outputString(" limit ")
	outputUint64(uint64(systemGDT.Register().Limit()))
	outputString("\n")
}

//go:nosplit
func initGDT() {
	Init()
	if err := segment.InstallFlat(&systemGDT, true); err != nil {
		fatalError(err)
	}
	Load(uint16(segment.KernelCodeSelector), uint16(segment.KernelDataSelector), uint16(segment.TLSSelector))
}

//go:nosplit
func (hardwareCPU) LoadTable(reg *segment.Register) {
	lgdt(uint64(uintptr(unsafe.Pointer(reg))))
}

//go:nosplit
func (hardwareCPU) SetCS(sel segment.Selector) {
	setCSReg(uint16(sel))
}

//go:nosplit
func (hardwareCPU) SetDS(sel segment.Selector) {
	setDSReg(uint16(sel))
}

//go:nosplit
func (hardwareCPU) SetES(sel segment.Selector) {
	setESReg(uint16(sel))
}

//go:nosplit
func (hardwareCPU) SetSS(sel segment.Selector) {
	setSSReg(uint16(sel))
}

//go:nosplit
func (hardwareCPU) SetGS(sel segment.Selector) {
	setGSReg(uint16(sel))
}

func lgdt(addr uint64)
func setCSReg(seg uint16)
func setDSReg(seg uint16)
func setESReg(seg uint16)
func setSSReg(seg uint16)
func setGSReg(seg uint16)
