// SPDX-License-Identifier: Unlicense OR MIT

package kvm

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Control register and page table bits for long mode.
const (
	_CR0_PG   = 1 << 31
	_CR4_PAE  = 1 << 5
	_EFER_LME = 1 << 8
	_EFER_LMA = 1 << 10

	_PTE_PRESENT = 1 << 0
	_PTE_RW      = 1 << 1
	_PTE_PS      = 1 << 7

	pageSize    = 4096
	hugePage    = 1 << 21
	pageEntries = pageSize / 8
)

// identityMap builds 4-level page tables in m that map the first
// GiB of guest physical memory onto itself with 2MiB pages. It
// returns the guest address of the top level table, for CR3.
func (m *Memory) identityMap() (uint64, error) {
	var tables [3][]byte
	var addrs [3]uint64
	for i := range tables {
		b, err := m.Alloc(pageSize, pageSize)
		if err != nil {
			return 0, fmt.Errorf("kvm: failed to allocate page table: %w", err)
		}
		addr, err := m.GuestAddr(uintptr(unsafe.Pointer(&b[0])))
		if err != nil {
			return 0, err
		}
		tables[i], addrs[i] = b, addr
	}
	pml4, pdpt, pd := tables[0], tables[1], tables[2]
	bo := binary.LittleEndian
	bo.PutUint64(pml4, addrs[1]|_PTE_PRESENT|_PTE_RW)
	bo.PutUint64(pdpt, addrs[2]|_PTE_PRESENT|_PTE_RW)
	for i := 0; i < pageEntries; i++ {
		bo.PutUint64(pd[i*8:], uint64(i)*hugePage|_PTE_PRESENT|_PTE_RW|_PTE_PS)
	}
	return addrs[0], nil
}

// enterLongMode switches s to 64-bit paged mode with an identity
// mapping allocated from the vCPU's memory. A 64-bit code segment
// is only accepted in long mode.
func (c *VCPU) enterLongMode(s *Sregs) error {
	if s.EFER&_EFER_LMA != 0 {
		return nil
	}
	cr3, err := c.mem.identityMap()
	if err != nil {
		return err
	}
	s.CR3 = cr3
	s.CR4 |= _CR4_PAE
	s.EFER |= _EFER_LME | _EFER_LMA
	s.CR0 |= _CR0_PE | _CR0_PG
	return nil
}
