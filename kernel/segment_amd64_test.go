// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eliasnaur.com/segboot/segment"
)

type cpuOp struct {
	op  string
	sel segment.Selector
}

// fakeCPU records segment instructions instead of executing them.
type fakeCPU struct {
	ops []cpuOp
	reg segment.Register
}

func (c *fakeCPU) LoadTable(r *segment.Register) {
	c.reg = *r
	c.ops = append(c.ops, cpuOp{op: "lgdt"})
}

func (c *fakeCPU) SetCS(s segment.Selector) { c.ops = append(c.ops, cpuOp{"cs", s}) }
func (c *fakeCPU) SetDS(s segment.Selector) { c.ops = append(c.ops, cpuOp{"ds", s}) }
func (c *fakeCPU) SetES(s segment.Selector) { c.ops = append(c.ops, cpuOp{"es", s}) }
func (c *fakeCPU) SetSS(s segment.Selector) { c.ops = append(c.ops, cpuOp{"ss", s}) }
func (c *fakeCPU) SetGS(s segment.Selector) { c.ops = append(c.ops, cpuOp{"gs", s}) }

// withFakeHardware replaces the processor and the console for the
// duration of the test and resets the system table.
func withFakeHardware(t *testing.T) (*fakeCPU, *bytes.Buffer) {
	t.Helper()
	oldCPU, oldOut := cpu, consoleOut
	fc := new(fakeCPU)
	out := new(bytes.Buffer)
	cpu = fc
	consoleOut = func(b byte) { out.WriteByte(b) }
	systemGDT = segment.GDT{}
	bootArena = arena{bits: bootBits[:]}
	t.Cleanup(func() {
		cpu, consoleOut = oldCPU, oldOut
		systemGDT = segment.GDT{}
		bootArena = arena{bits: bootBits[:]}
	})
	return fc, out
}

func TestBootSequence(t *testing.T) {
	fc, _ := withFakeHardware(t)

	Init()
	Entry(1, 0, 0xfffff, 0x9a, 0xcf)
	Entry(2, 0, 0xfffff, 0x92, 0xcf)
	Load(0x08, 0x10, 0x18)

	assert.Equal(t, []cpuOp{
		{op: "lgdt"},
		{"cs", 0x08},
		{"ds", 0x10},
		{"es", 0x10},
		{"ss", 0x10},
		{"gs", 0x18},
	}, fc.ops)
	assert.Equal(t, segment.Activated, systemGDT.State())

	tbl := systemGDT.Table()
	assert.Equal(t, uintptr(unsafe.Pointer(tbl)), fc.reg.Addr())
	assert.Equal(t, uint16(129), fc.reg.Limit())
	assert.Equal(t, uintptr(unsafe.Pointer(&bootHeap[0])), fc.reg.Addr())

	b := tbl.Bytes()
	assert.Equal(t, []byte{0xff, 0xff, 0x00, 0x00, 0x00, 0x9a, 0xcf, 0x00}, b[8:16])
	assert.Equal(t, []byte{0xff, 0xff, 0x00, 0x00, 0x00, 0x92, 0xcf, 0x00}, b[16:24])
}

func TestBoot(t *testing.T) {
	fc, out := withFakeHardware(t)

	Boot()

	require.Len(t, fc.ops, 6)
	assert.Equal(t, cpuOp{"cs", segment.KernelCodeSelector}, fc.ops[1])
	assert.Equal(t, cpuOp{"gs", segment.TLSSelector}, fc.ops[5])
	code := systemGDT.Table()[segment.KernelCodeIndex]
	assert.Equal(t, uint8(0xaf), code.Granularity())
	assert.NoError(t, segment.Verify(systemGDT.Table()))

	assert.Contains(t, out.String(), "gdt: loaded table at 0x")
	assert.Contains(t, out.String(), " limit 0x81\n")
}

func TestOutputUint64(t *testing.T) {
	_, out := withFakeHardware(t)
	tests := []struct {
		v    uint64
		want string
	}{
		{0, "0x0"},
		{0x81, "0x81"},
		{0xdeadbeef, "0xdeadbeef"},
		{^uint64(0), "0xffffffffffffffff"},
	}
	for _, tt := range tests {
		out.Reset()
		outputUint64(tt.v)
		assert.Equal(t, tt.want, out.String())
	}
}

func TestFatalErrorMessages(t *testing.T) {
	assert.Equal(t, "segment: descriptor index out of range", segment.ErrIndexRange.Error())
	assert.Equal(t, "arena: out of memory", kernError("arena: out of memory").Error())
}
