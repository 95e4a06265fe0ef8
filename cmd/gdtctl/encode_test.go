// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name        string
		base, limit uint64
		access      uint8
		gran        uint8
		verbose     bool
		want        string
		wantContain []string
	}{
		{
			name:   "kernel code",
			limit:  0xfffff,
			access: 0x9a,
			gran:   0xcf,
			want:   "ff ff 00 00 00 9a cf 00\n",
		},
		{
			name:   "kernel data",
			limit:  0xfffff,
			access: 0x92,
			gran:   0xcf,
			want:   "ff ff 00 00 00 92 cf 00\n",
		},
		{
			name:        "truncated",
			base:        1<<32 | 0x12345678,
			limit:       0x1abcde,
			access:      0xf2,
			gran:        0x40,
			verbose:     true,
			wantContain: []string{"de bc 78 56 34 f2 4a 12\n", "Truncating", "dpl 3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			encodeBase, encodeLimit, encodeAccess, encodeGran = tt.base, tt.limit, tt.access, tt.gran
			verbose = tt.verbose

			out, err := captureOutput(t, runEncode)
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, out)
			}
			for _, s := range tt.wantContain {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestEncodeCommandJSON(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	encodeBase, encodeLimit, encodeAccess, encodeGran = 0, 0xfffff, 0x9a, 0xaf

	out, err := captureOutput(t, runEncode)
	require.NoError(t, err)

	var d descriptorJSON
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "ffff0000009aaf00", d.Bytes)
	assert.Equal(t, uint32(0xfffff), d.Limit)
	assert.Equal(t, uint32(0xffffffff), d.ByteLimit)
	assert.True(t, d.Code)
	assert.True(t, d.Present)
}

func TestEncodeCommandQuiet(t *testing.T) {
	resetFlags(t)
	quiet = true
	out, err := captureOutput(t, runEncode)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}
