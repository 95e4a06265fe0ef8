// SPDX-License-Identifier: Unlicense OR MIT

// Package segment builds x86 segment descriptor tables and
// installs them on a CPU.
package segment

import (
	"encoding/binary"
)

// Descriptor is the hardware representation of a segment
// descriptor. The field order matches the processor layout
// and the struct has no padding.
type Descriptor struct {
	limitLow    uint16
	baseLow     uint16
	baseMid     uint8
	access      uint8
	granularity uint8
	baseHigh    uint8
}

// DescriptorSize is the encoded size of a Descriptor.
const DescriptorSize = 8

// Access byte flags.
const (
	AccessAccessed   uint8 = 1 << 0
	AccessReadWrite  uint8 = 1 << 1 // Readable code or writable data.
	AccessConforming uint8 = 1 << 2 // Conforming code or expand-down data.
	AccessExecutable uint8 = 1 << 3
	AccessCodeData   uint8 = 1 << 4 // Zero for system descriptors.
	AccessPresent    uint8 = 1 << 7
)

// Granularity byte flags. The low nibble holds limit bits 16-19.
const (
	GranAvailable uint8 = 1 << 4
	GranLong      uint8 = 1 << 5
	GranSize32    uint8 = 1 << 6
	GranPage      uint8 = 1 << 7
)

const (
	baseMask  = 0xffffffff
	limitMask = 0xfffff
)

// AccessDPL returns the access byte bits for privilege level dpl.
func AccessDPL(dpl PrivLevel) uint8 {
	return uint8(dpl&3) << 5
}

// NewDescriptor encodes a descriptor. base is truncated to 32 bits
// and limit to 20 bits. Only the high nibble of granularity is
// used; the low nibble is taken from limit. Earlier loaders stored
// granularity unchanged, so a caller that packed limit bits 16..19
// into granularity itself must pass them in limit instead: limit
// 0xffff with granularity 0xcf encodes 0xc0, not 0xcf.
//
//go:nosplit
func NewDescriptor(base, limit uint64, access, granularity uint8) Descriptor {
	base &= baseMask
	limit &= limitMask
	return Descriptor{
		limitLow:    uint16(limit & 0xffff),
		baseLow:     uint16(base & 0xffff),
		baseMid:     uint8(base >> 16),
		access:      access,
		granularity: granularity&0xf0 | uint8(limit>>16)&0x0f,
		baseHigh:    uint8(base >> 24),
	}
}

// DescriptorFromBytes decodes the hardware representation b.
func DescriptorFromBytes(b [DescriptorSize]byte) Descriptor {
	bo := binary.LittleEndian
	return Descriptor{
		limitLow:    bo.Uint16(b[0:]),
		baseLow:     bo.Uint16(b[2:]),
		baseMid:     b[4],
		access:      b[5],
		granularity: b[6],
		baseHigh:    b[7],
	}
}

// Bytes returns the hardware representation of d.
func (d Descriptor) Bytes() [DescriptorSize]byte {
	var b [DescriptorSize]byte
	bo := binary.LittleEndian
	bo.PutUint16(b[0:], d.limitLow)
	bo.PutUint16(b[2:], d.baseLow)
	b[4] = d.baseMid
	b[5] = d.access
	b[6] = d.granularity
	b[7] = d.baseHigh
	return b
}

// Base returns the segment's linear base address.
func (d Descriptor) Base() uint32 {
	return uint32(d.baseHigh)<<24 | uint32(d.baseMid)<<16 | uint32(d.baseLow)
}

// Limit returns the raw 20-bit limit.
func (d Descriptor) Limit() uint32 {
	return uint32(d.granularity&0x0f)<<16 | uint32(d.limitLow)
}

// ByteLimit returns the offset of the last addressable byte,
// scaling the limit by 4KiB for page granular segments.
func (d Descriptor) ByteLimit() uint32 {
	l := d.Limit()
	if d.PageGranular() {
		l = l<<12 | 0xfff
	}
	return l
}

func (d Descriptor) Access() uint8 {
	return d.access
}

// Granularity returns the full granularity byte, including limit
// bits 16-19.
func (d Descriptor) Granularity() uint8 {
	return d.granularity
}

// Flags returns the high nibble of the granularity byte.
func (d Descriptor) Flags() uint8 {
	return d.granularity & 0xf0
}

func (d Descriptor) Present() bool {
	return d.access&AccessPresent != 0
}

// DPL returns the descriptor privilege level.
func (d Descriptor) DPL() PrivLevel {
	return PrivLevel(d.access>>5) & 3
}

func (d Descriptor) PageGranular() bool {
	return d.granularity&GranPage != 0
}

// Code reports whether d describes an executable code/data segment.
func (d Descriptor) Code() bool {
	return d.access&(AccessCodeData|AccessExecutable) == AccessCodeData|AccessExecutable
}

// IsNull reports whether d is the all-zero null descriptor.
func (d Descriptor) IsNull() bool {
	return d == Descriptor{}
}
