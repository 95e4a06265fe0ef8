// SPDX-License-Identifier: Unlicense OR MIT

package kvm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"eliasnaur.com/segboot/segment"
)

func TestABISizes(t *testing.T) {
	assert.Equal(t, uintptr(24), unsafe.Sizeof(Segment{}))
	assert.Equal(t, uintptr(16), unsafe.Sizeof(DTable{}))
	assert.Equal(t, uintptr(312), unsafe.Sizeof(Sregs{}))
}

func TestSegmentFromDescriptor(t *testing.T) {
	tests := []struct {
		name string
		d    segment.Descriptor
		sel  segment.Selector
		want Segment
	}{
		{
			name: "code32",
			d:    segment.NewDescriptor(0, 0xfffff, 0x9a, 0xcf),
			sel:  0x08,
			want: Segment{Limit: 0xffffffff, Selector: 0x08, Type: 0xa, Present: 1, DB: 1, S: 1, G: 1},
		},
		{
			name: "code64",
			d:    segment.NewDescriptor(0, 0xfffff, 0x9a, 0xaf),
			sel:  0x08,
			want: Segment{Limit: 0xffffffff, Selector: 0x08, Type: 0xa, Present: 1, S: 1, L: 1, G: 1},
		},
		{
			name: "user data",
			d:    segment.NewDescriptor(0x10000, 0xffff, 0xf2, 0x40),
			sel:  0x23,
			want: Segment{Base: 0x10000, Limit: 0xffff, Selector: 0x23, Type: 0x2, Present: 1, DPL: 3, DB: 1, S: 1},
		},
		{
			name: "not present",
			d:    segment.NewDescriptor(0, 0xff, 0x12, 0x00),
			sel:  0x18,
			want: Segment{Limit: 0xff, Selector: 0x18, Type: 0x2, S: 1, Unusable: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentFromDescriptor(tt.d, tt.sel))
		})
	}
}
