// SPDX-License-Identifier: Unlicense OR MIT

package segment

import (
	"encoding/binary"
	"unsafe"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

// RegisterSize is the size of the LGDT operand: a 16-bit limit
// followed by the table address, 10 bytes on amd64.
const RegisterSize = 2 + ptrSize

// Register is the operand of the LGDT instruction. It is a byte
// array to avoid padding between the limit and the address.
type Register [RegisterSize]byte

// registerLimit is the limit loaded with every table.
//
// NOTE: the processor expects the offset of the last valid byte,
// TableSize-1. The loader has always written TableSize+1 and the
// extra two bytes are never selected by any index below
// TableEntries, so the value is kept until the intent is confirmed.
const registerLimit = TableSize + 1

// NewRegister returns the register describing the table at addr.
//
//go:nosplit
func NewRegister(addr uintptr) Register {
	var r Register
	bo := binary.LittleEndian
	bo.PutUint16(r[:2], uint16(registerLimit))
	switch ptrSize {
	case 8:
		bo.PutUint64(r[2:], uint64(addr))
	default:
		bo.PutUint32(r[2:], uint32(addr))
	}
	return r
}

// Limit returns the table limit.
func (r *Register) Limit() uint16 {
	return binary.LittleEndian.Uint16(r[:2])
}

// Addr returns the table address.
func (r *Register) Addr() uintptr {
	bo := binary.LittleEndian
	switch ptrSize {
	case 8:
		return uintptr(bo.Uint64(r[2:]))
	default:
		return uintptr(bo.Uint32(r[2:]))
	}
}
