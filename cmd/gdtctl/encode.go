// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"eliasnaur.com/segboot/segment"
)

var (
	encodeBase   uint64
	encodeLimit  uint64
	encodeAccess uint8
	encodeGran   uint8
)

func init() {
	cmd := newEncodeCmd()
	cmd.Flags().Uint64Var(&encodeBase, "base", 0, "Segment base address (truncated to 32 bits)")
	cmd.Flags().Uint64Var(&encodeLimit, "limit", 0xfffff, "Segment limit (truncated to 20 bits)")
	cmd.Flags().Uint8Var(&encodeAccess, "access", 0x92, "Access byte")
	cmd.Flags().Uint8Var(&encodeGran, "gran", 0xcf, "Granularity byte (high nibble used)")
	rootCmd.AddCommand(cmd)
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Encode a segment descriptor",
		Long: `The encode command prints the 8 byte hardware representation of a
segment descriptor.

Example:
  gdtctl encode --access 0x9a --gran 0xcf
  gdtctl encode --base 0x10000 --limit 0xffff --access 0xf2 --gran 0x40 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode()
		},
	}
}

type descriptorJSON struct {
	Index       int    `json:"index"`
	Selector    uint16 `json:"selector"`
	Bytes       string `json:"bytes"`
	Base        uint32 `json:"base"`
	Limit       uint32 `json:"limit"`
	ByteLimit   uint32 `json:"byte_limit"`
	Access      uint8  `json:"access"`
	Granularity uint8  `json:"granularity"`
	DPL         uint8  `json:"dpl"`
	Present     bool   `json:"present"`
	Code        bool   `json:"code"`
}

func newDescriptorJSON(index int, d segment.Descriptor) descriptorJSON {
	b := d.Bytes()
	return descriptorJSON{
		Index:       index,
		Selector:    uint16(segment.NewSelector(index, d.DPL())),
		Bytes:       hex.EncodeToString(b[:]),
		Base:        d.Base(),
		Limit:       d.Limit(),
		ByteLimit:   d.ByteLimit(),
		Access:      d.Access(),
		Granularity: d.Granularity(),
		DPL:         uint8(d.DPL()),
		Present:     d.Present(),
		Code:        d.Code(),
	}
}

func runEncode() error {
	if encodeBase > 0xffffffff || encodeLimit > 0xfffff {
		printVerbose("Truncating base %#x limit %#x\n", encodeBase, encodeLimit)
	}
	d := segment.NewDescriptor(encodeBase, encodeLimit, encodeAccess, encodeGran)
	if jsonOut {
		return printJSON(newDescriptorJSON(0, d))
	}
	b := d.Bytes()
	printInfo("% x\n", b[:])
	printVerbose("base %#08x limit %#05x access %#02x gran %#02x dpl %d\n",
		d.Base(), d.Limit(), d.Access(), d.Granularity(), d.DPL())
	return nil
}
