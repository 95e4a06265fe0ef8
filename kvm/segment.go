// SPDX-License-Identifier: Unlicense OR MIT

// Package kvm installs descriptor tables into KVM virtual CPUs, so
// that tables built for bare metal can be checked on a host.
package kvm

import (
	"eliasnaur.com/segboot/segment"
)

// Segment is the kernel's struct kvm_segment: the hidden part of a
// segment register, as cached by the processor after a load.
type Segment struct {
	Base     uint64
	Limit    uint32
	Selector uint16
	Type     uint8
	Present  uint8
	DPL      uint8
	DB       uint8
	S        uint8
	L        uint8
	G        uint8
	AVL      uint8
	Unusable uint8
	_        uint8
}

// DTable is struct kvm_dtable, the GDTR and IDTR contents.
type DTable struct {
	Base  uint64
	Limit uint16
	_     [3]uint16
}

// Sregs is struct kvm_sregs.
type Sregs struct {
	CS, DS, ES, FS, GS, SS Segment
	TR, LDT                Segment
	GDT, IDT               DTable
	CR0                    uint64
	CR2                    uint64
	CR3                    uint64
	CR4                    uint64
	CR8                    uint64
	EFER                   uint64
	APICBase               uint64
	InterruptBitmap        [(256 + 63) / 64]uint64
}

// SegmentFromDescriptor returns the register state the processor
// caches when sel, naming d, is loaded into a segment register.
func SegmentFromDescriptor(d segment.Descriptor, sel segment.Selector) Segment {
	flags := d.Flags()
	s := Segment{
		Base:     uint64(d.Base()),
		Limit:    d.ByteLimit(),
		Selector: uint16(sel),
		Type:     d.Access() & 0xf,
		Present:  bit(d.Present()),
		DPL:      uint8(d.DPL()),
		DB:       bit(flags&segment.GranSize32 != 0),
		S:        bit(d.Access()&segment.AccessCodeData != 0),
		L:        bit(flags&segment.GranLong != 0),
		G:        bit(d.PageGranular()),
		AVL:      bit(flags&segment.GranAvailable != 0),
	}
	if !d.Present() {
		s.Unusable = 1
	}
	return s
}

func bit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
