// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"math/bits"
	"unsafe"
)

const (
	// arenaBlock is the allocation granularity of an arena.
	arenaBlock = 8
	// bootHeapSize is the size of the static boot arena.
	bootHeapSize = 4096
)

// arena is a simple allocator for structures needed before the
// memory manager runs, tracking free blocks with a bitmap.
// Allocations are never freed.
type arena struct {
	mem []byte
	// bits represent each block with one bit. 1 means free, 0
	// means allocated.
	bits []uint64
	// blocks is the number of blocks in mem.
	blocks int
}

var (
	// Backing memory of the boot arena. uint64 forces 8-byte
	// alignment.
	bootHeap  [bootHeapSize / arenaBlock]uint64
	bootBits  [(bootHeapSize/arenaBlock + 63) / 64]uint64
	bootArena = arena{bits: bootBits[:]}
)

// init sets up a to allocate from mem, which must be 8-byte
// aligned.
//
//go:nosplit
func (a *arena) init(mem []uint64) {
	if len(mem) == 0 {
		fatal("arena: empty backing memory")
	}
	a.mem = unsafe.Slice((*byte)(unsafe.Pointer(&mem[0])), len(mem)*arenaBlock)
	a.blocks = len(mem)
	if need := (a.blocks + 63) / 64; len(a.bits) < need {
		fatal("arena: bitmap too small")
	}
	for i := range a.bits {
		a.bits[i] = 0
	}
	for i := 0; i < a.blocks; i++ {
		a.bits[i/64] |= 1 << (64 - i%64 - 1)
	}
}

//go:nosplit
func (a *arena) ready() bool {
	return a.mem != nil
}

// Alloc returns size zeroed bytes aligned to align, which must be a
// power of two.
//
//go:nosplit
func (a *arena) Alloc(size, align uintptr) ([]byte, error) {
	if size == 0 {
		return nil, kernError("arena: zero sized allocation")
	}
	if align == 0 || align&(align-1) != 0 {
		return nil, kernError("arena: alignment is not a power of two")
	}
	n := int((size + arenaBlock - 1) / arenaBlock)
	base := uintptr(unsafe.Pointer(&a.mem[0]))
	for start := a.nextFree(0); start >= 0 && start+n <= a.blocks; start = a.nextFree(start + 1) {
		if (base+uintptr(start)*arenaBlock)%align != 0 {
			continue
		}
		if !a.isFreeRun(start, n) {
			continue
		}
		for i := start; i < start+n; i++ {
			a.mark(i)
		}
		mem := a.mem[start*arenaBlock : start*arenaBlock+int(size) : start*arenaBlock+int(size)]
		for i := range mem {
			mem[i] = 0
		}
		return mem, nil
	}
	return nil, kernError("arena: out of memory")
}

//go:nosplit
func (a *arena) isFreeRun(start, n int) bool {
	for i := start; i < start+n; i++ {
		if !a.free(i) {
			return false
		}
	}
	return true
}

//go:nosplit
func (a *arena) free(idx int) bool {
	mask := uint64(1) << (64 - idx%64 - 1)
	return a.bits[idx/64]&mask != 0
}

//go:nosplit
func (a *arena) mark(idx int) {
	mask := uint64(1) << (64 - idx%64 - 1)
	a.bits[idx/64] &^= mask
}

// nextFree returns the index of the first free block at or after
// idx, or -1.
//
//go:nosplit
func (a *arena) nextFree(idx int) int {
	for idx < a.blocks {
		w := a.bits[idx/64] << (idx % 64)
		if w == 0 {
			// Skip the rest of the word.
			idx = (idx/64 + 1) * 64
			continue
		}
		idx += bits.LeadingZeros64(w)
		if idx >= a.blocks {
			break
		}
		return idx
	}
	return -1
}
