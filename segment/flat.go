// SPDX-License-Identifier: Unlicense OR MIT

package segment

// Table indices of the flat memory model. Every segment spans the
// whole 4GiB address space.
const (
	// Mandatory null selector.
	NullIndex = iota
	// Ring 0 code.
	KernelCodeIndex
	// Ring 0 data, also used for ES and SS.
	KernelDataIndex
	// Thread-local storage emulation, loaded into GS.
	TLSIndex
)

// Selectors of the flat model.
const (
	KernelCodeSelector = Selector(KernelCodeIndex<<3) | Selector(Ring0)
	KernelDataSelector = Selector(KernelDataIndex<<3) | Selector(Ring0)
	TLSSelector        = Selector(TLSIndex<<3) | Selector(Ring0)
)

const (
	flatLimit = 0xfffff

	flatCode = AccessPresent | AccessCodeData | AccessExecutable | AccessReadWrite // 0x9a
	flatData = AccessPresent | AccessCodeData | AccessReadWrite                    // 0x92

	gran32   = GranPage | GranSize32 // 0xc0
	granLong = GranPage | GranLong   // 0xa0
)

// InstallFlat writes the flat model entries into g. If long is set
// the code segment is a 64-bit segment, otherwise a 32-bit one.
//
//go:nosplit
func InstallFlat(g *GDT, long bool) error {
	codeGran := gran32
	if long {
		codeGran = granLong
	}
	if err := g.Entry(NullIndex, 0, 0, 0, 0); err != nil {
		return err
	}
	if err := g.Entry(KernelCodeIndex, 0, flatLimit, flatCode, codeGran); err != nil {
		return err
	}
	if err := g.Entry(KernelDataIndex, 0, flatLimit, flatData, gran32); err != nil {
		return err
	}
	return g.Entry(TLSIndex, 0, flatLimit, flatData, gran32)
}

// LoadFlat activates g with the flat model selectors.
//
//go:nosplit
func LoadFlat(g *GDT, cpu CPU) error {
	return g.Load(cpu, KernelCodeSelector, KernelDataSelector, TLSSelector)
}
