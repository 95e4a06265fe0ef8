// SPDX-License-Identifier: Unlicense OR MIT

package segment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectors(t *testing.T) {
	assert.Equal(t, Selector(0x08), KernelCodeSelector)
	assert.Equal(t, Selector(0x10), KernelDataSelector)
	assert.Equal(t, Selector(0x18), TLSSelector)

	s := NewSelector(5, Ring3)
	assert.Equal(t, Selector(0x2b), s)
	assert.Equal(t, 5, s.Index())
	assert.Equal(t, Ring3, s.RPL())
	assert.False(t, s.LDT())
	assert.True(t, Selector(0x0c).LDT())
}

func TestInstallFlat(t *testing.T) {
	tests := []struct {
		name     string
		long     bool
		codeGran uint8
	}{
		{"protected", false, 0xcf},
		{"long", true, 0xaf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGDT(t)
			require.NoError(t, InstallFlat(g, tt.long))
			tbl := g.Table()

			assert.True(t, tbl[NullIndex].IsNull())
			code := tbl[KernelCodeIndex]
			assert.Equal(t, uint8(0x9a), code.Access())
			assert.Equal(t, tt.codeGran, code.Granularity())
			assert.True(t, code.Code())
			for _, i := range []int{KernelDataIndex, TLSIndex} {
				assert.Equal(t, uint8(0x92), tbl[i].Access())
				assert.Equal(t, uint8(0xcf), tbl[i].Granularity())
				assert.False(t, tbl[i].Code())
			}
			assert.NoError(t, Verify(tbl))

			cpu := new(recordingCPU)
			require.NoError(t, LoadFlat(g, cpu))
			assert.Equal(t, cpuCall{"cs", KernelCodeSelector}, cpu.calls[1])
			assert.Equal(t, cpuCall{"gs", TLSSelector}, cpu.calls[5])
		})
	}
}

func TestVerify(t *testing.T) {
	g := newTestGDT(t)
	require.NoError(t, InstallFlat(g, false))

	require.NoError(t, g.Entry(5, 0, 0xfffff, 0x9a, GranPage|GranSize32|GranLong))
	assert.Equal(t, ErrCodeMode, Verify(g.Table()))

	// Non-present entries are not checked.
	require.NoError(t, g.Entry(5, 0, 0xfffff, 0x1a, GranPage|GranSize32|GranLong))
	assert.NoError(t, Verify(g.Table()))

	require.NoError(t, g.Entry(NullIndex, 0, 0xffff, 0, 0))
	assert.Equal(t, ErrNullEntry, Verify(g.Table()))
}

func TestDump(t *testing.T) {
	g := newTestGDT(t)
	require.NoError(t, InstallFlat(g, true))

	var buf bytes.Buffer
	require.NoError(t, g.Table().Dump(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "code")
	assert.Contains(t, lines[0], "ff ff 00 00 00 9a af 00")
	assert.Contains(t, lines[1], "data")
	assert.Contains(t, lines[2], "limit 0xffffffff")
}
