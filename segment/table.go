// SPDX-License-Identifier: Unlicense OR MIT

package segment

import (
	"unsafe"
)

// TableEntries is the number of descriptors in a Table.
const TableEntries = 16

// Table is the hardware representation of a global descriptor
// table.
type Table [TableEntries]Descriptor

// TableSize is the size in bytes of a Table.
const TableSize = unsafe.Sizeof(Table{})

// Set overwrites the descriptor at index.
//
//go:nosplit
func (t *Table) Set(index int, d Descriptor) error {
	if index < 0 || index >= len(t) {
		return ErrIndexRange
	}
	t[index] = d
	return nil
}

// At returns the descriptor at index.
//
//go:nosplit
func (t *Table) At(index int) (Descriptor, error) {
	if index < 0 || index >= len(t) {
		return Descriptor{}, ErrIndexRange
	}
	return t[index], nil
}

// Bytes returns the hardware representation of the whole table.
func (t *Table) Bytes() []byte {
	b := make([]byte, 0, TableSize)
	for _, d := range t {
		e := d.Bytes()
		b = append(b, e[:]...)
	}
	return b
}

//go:nosplit
func (t *Table) clear() {
	for i := range t {
		t[i] = Descriptor{}
	}
}
