// SPDX-License-Identifier: Unlicense OR MIT

package kvm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"eliasnaur.com/segboot/segment"
)

// ioctl requests from <linux/kvm.h>.
const (
	_KVM_GET_API_VERSION        = 0xae00
	_KVM_CREATE_VM              = 0xae01
	_KVM_CREATE_VCPU            = 0xae41
	_KVM_SET_USER_MEMORY_REGION = 0x4020ae46
	_KVM_GET_SREGS              = 0x8138ae83
	_KVM_SET_SREGS              = 0x4138ae84

	apiVersion = 12

	_CR0_PE = 1 << 0
)

// DevicePath is the KVM device node.
const DevicePath = "/dev/kvm"

// userspaceMemoryRegion is struct kvm_userspace_memory_region.
type userspaceMemoryRegion struct {
	Slot          uint32
	Flags         uint32
	GuestPhysAddr uint64
	MemorySize    uint64
	UserspaceAddr uint64
}

// System is an open KVM device.
type System struct {
	fd int
}

// VM is a virtual machine with a single memory slot.
type VM struct {
	fd  int
	mem *Memory
}

// VCPU is a virtual processor. It implements segment.CPU by
// writing the segment state a real processor would cache into the
// vCPU's special registers. Errors are sticky and reported by Err.
// A VCPU is not safe for concurrent use.
type VCPU struct {
	fd  int
	mem *Memory
	err error
}

// Open opens the KVM device and checks its API version.
func Open() (*System, error) {
	fd, err := unix.Open(DevicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("kvm: open %s: %w", DevicePath, err)
	}
	v, err := ioctl(fd, _KVM_GET_API_VERSION, 0)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: KVM_GET_API_VERSION: %w", err)
	}
	if v != apiVersion {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: unsupported API version %d", v)
	}
	return &System{fd: fd}, nil
}

func (s *System) Close() error {
	return unix.Close(s.fd)
}

// NewVM creates a virtual machine with mem as its physical memory.
func (s *System) NewVM(mem *Memory) (*VM, error) {
	fd, err := ioctl(s.fd, _KVM_CREATE_VM, 0)
	if err != nil {
		return nil, fmt.Errorf("kvm: KVM_CREATE_VM: %w", err)
	}
	vm := &VM{fd: int(fd), mem: mem}
	region := userspaceMemoryRegion{
		GuestPhysAddr: mem.guestBase,
		MemorySize:    uint64(len(mem.mem)),
		UserspaceAddr: uint64(uintptr(unsafe.Pointer(&mem.mem[0]))),
	}
	if _, err := ioctl(vm.fd, _KVM_SET_USER_MEMORY_REGION, uintptr(unsafe.Pointer(&region))); err != nil {
		vm.Close()
		return nil, fmt.Errorf("kvm: KVM_SET_USER_MEMORY_REGION: %w", err)
	}
	return vm, nil
}

func (vm *VM) Close() error {
	return unix.Close(vm.fd)
}

// NewVCPU creates virtual processor 0.
func (vm *VM) NewVCPU() (*VCPU, error) {
	fd, err := ioctl(vm.fd, _KVM_CREATE_VCPU, 0)
	if err != nil {
		return nil, fmt.Errorf("kvm: KVM_CREATE_VCPU: %w", err)
	}
	return &VCPU{fd: int(fd), mem: vm.mem}, nil
}

func (c *VCPU) Close() error {
	return unix.Close(c.fd)
}

// Sregs returns the special registers of c.
func (c *VCPU) Sregs() (Sregs, error) {
	var sregs Sregs
	if _, err := ioctl(c.fd, _KVM_GET_SREGS, uintptr(unsafe.Pointer(&sregs))); err != nil {
		return Sregs{}, fmt.Errorf("kvm: KVM_GET_SREGS: %w", err)
	}
	return sregs, nil
}

// SetSregs replaces the special registers of c.
func (c *VCPU) SetSregs(sregs *Sregs) error {
	if _, err := ioctl(c.fd, _KVM_SET_SREGS, uintptr(unsafe.Pointer(sregs))); err != nil {
		return fmt.Errorf("kvm: KVM_SET_SREGS: %w", err)
	}
	return nil
}

// Err returns the first error of the segment loads.
func (c *VCPU) Err() error {
	return c.err
}

// LoadTable points the vCPU's GDTR at the table described by reg,
// which must live in the vCPU's guest memory. The vCPU is switched
// to protected mode, where the boot code runs.
func (c *VCPU) LoadTable(reg *segment.Register) {
	c.update(func(s *Sregs) error {
		base, err := c.mem.GuestAddr(reg.Addr())
		if err != nil {
			return err
		}
		s.GDT = DTable{Base: base, Limit: reg.Limit()}
		s.CR0 |= _CR0_PE
		return nil
	})
}

// SetCS loads the code segment. A 64-bit code segment first
// switches the vCPU to long mode, as the boot loader has done before
// a long mode kernel runs.
func (c *VCPU) SetCS(sel segment.Selector) {
	c.update(func(s *Sregs) error {
		d, err := c.descriptor(s.GDT, sel)
		if err != nil {
			return err
		}
		if d.Flags()&segment.GranLong != 0 {
			if err := c.enterLongMode(s); err != nil {
				return err
			}
		}
		s.CS = SegmentFromDescriptor(d, sel)
		return nil
	})
}

func (c *VCPU) SetDS(sel segment.Selector) { c.setSegment(sel, func(s *Sregs) *Segment { return &s.DS }) }
func (c *VCPU) SetES(sel segment.Selector) { c.setSegment(sel, func(s *Sregs) *Segment { return &s.ES }) }
func (c *VCPU) SetSS(sel segment.Selector) { c.setSegment(sel, func(s *Sregs) *Segment { return &s.SS }) }
func (c *VCPU) SetGS(sel segment.Selector) { c.setSegment(sel, func(s *Sregs) *Segment { return &s.GS }) }

func (c *VCPU) setSegment(sel segment.Selector, reg func(s *Sregs) *Segment) {
	c.update(func(s *Sregs) error {
		d, err := c.descriptor(s.GDT, sel)
		if err != nil {
			return err
		}
		*reg(s) = SegmentFromDescriptor(d, sel)
		return nil
	})
}

// descriptor reads the descriptor sel names from the table in gdt,
// as the processor does on a segment load.
func (c *VCPU) descriptor(gdt DTable, sel segment.Selector) (segment.Descriptor, error) {
	if sel.LDT() {
		return segment.Descriptor{}, fmt.Errorf("kvm: selector %#x refers to an LDT", uint16(sel))
	}
	off := uint64(sel.Index()) * segment.DescriptorSize
	if off+segment.DescriptorSize-1 > uint64(gdt.Limit) {
		return segment.Descriptor{}, fmt.Errorf("kvm: selector %#x outside table limit %#x", uint16(sel), gdt.Limit)
	}
	b, err := c.mem.Read(gdt.Base+off, segment.DescriptorSize)
	if err != nil {
		return segment.Descriptor{}, err
	}
	var raw [segment.DescriptorSize]byte
	copy(raw[:], b)
	return segment.DescriptorFromBytes(raw), nil
}

func (c *VCPU) update(f func(s *Sregs) error) {
	if c.err != nil {
		return
	}
	sregs, err := c.Sregs()
	if err == nil {
		err = f(&sregs)
	}
	if err == nil {
		err = c.SetSregs(&sregs)
	}
	c.err = err
}

func ioctl(fd int, req, arg uintptr) (uintptr, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return 0, errno
	}
	return r, nil
}

var errNoKVM = errors.New("kvm: device not available")

// Available reports whether the KVM device can be opened.
func Available() error {
	s, err := Open()
	if err != nil {
		return fmt.Errorf("%w: %v", errNoKVM, err)
	}
	return s.Close()
}
