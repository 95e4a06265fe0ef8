// SPDX-License-Identifier: Unlicense OR MIT

package kvm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Memory is guest physical memory backed by an anonymous mapping.
// It hands out storage for descriptor tables with a bump
// allocator, so a segment.GDT built in it is visible to the guest.
type Memory struct {
	mem       []byte
	guestBase uint64
	next      uintptr
}

// NewMemory maps size bytes of guest memory at guest physical
// address guestBase. Both must be page aligned.
func NewMemory(size int, guestBase uint64) (*Memory, error) {
	pageSize := unix.Getpagesize()
	if size <= 0 || size%pageSize != 0 || guestBase%uint64(pageSize) != 0 {
		return nil, fmt.Errorf("kvm: memory size %#x or base %#x not page aligned", size, guestBase)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("kvm: failed to map guest memory: %w", err)
	}
	return &Memory{mem: mem, guestBase: guestBase}, nil
}

// Alloc implements segment.Allocator. The mapping is page aligned
// so offset alignment is address alignment.
func (m *Memory) Alloc(size, align uintptr) ([]byte, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("kvm: alignment %d is not a power of two", align)
	}
	start := (m.next + align - 1) &^ (align - 1)
	end := start + size
	if end > uintptr(len(m.mem)) {
		return nil, errors.New("kvm: out of guest memory")
	}
	m.next = end
	b := m.mem[start:end:end]
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// GuestAddr translates a host address inside the mapping to a
// guest physical address.
func (m *Memory) GuestAddr(host uintptr) (uint64, error) {
	start := uintptr(unsafe.Pointer(&m.mem[0]))
	if host < start || host >= start+uintptr(len(m.mem)) {
		return 0, fmt.Errorf("kvm: host address %#x outside guest memory", host)
	}
	return m.guestBase + uint64(host-start), nil
}

// Read returns n bytes of guest memory at guest physical address
// addr.
func (m *Memory) Read(addr uint64, n int) ([]byte, error) {
	if n < 0 || addr < m.guestBase || addr-m.guestBase > uint64(len(m.mem)) {
		return nil, fmt.Errorf("kvm: guest range %#x+%d outside guest memory", addr, n)
	}
	off := addr - m.guestBase
	if uint64(n) > uint64(len(m.mem))-off {
		return nil, fmt.Errorf("kvm: guest range %#x+%d outside guest memory", addr, n)
	}
	return m.mem[off : off+uint64(n)], nil
}

// GuestBase returns the guest physical address of the first byte.
func (m *Memory) GuestBase() uint64 {
	return m.guestBase
}

func (m *Memory) Size() int {
	return len(m.mem)
}

// Close unmaps the memory. Tables allocated from m must not be
// used afterwards.
func (m *Memory) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
