// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eliasnaur.com/segboot/kvm"
	"eliasnaur.com/segboot/segment"
)

var kvmLong bool

func init() {
	cmd := newKVMCmd()
	cmd.Flags().BoolVar(&kvmLong, "long", false, "Use a 64-bit code segment")
	rootCmd.AddCommand(cmd)
}

func newKVMCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kvm",
		Short: "Load the flat model table into a KVM virtual CPU",
		Long: `The kvm command builds the flat model table in guest memory, loads it
into a virtual CPU with the boot sequence (LGDT, CS, DS, ES, SS, GS) and prints
the segment registers the virtual CPU ends up with. It needs access to /dev/kvm.

Example:
  gdtctl kvm
  gdtctl kvm --long --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKVM()
		},
	}
}

type segmentJSON struct {
	Name     string `json:"name"`
	Selector uint16 `json:"selector"`
	Base     uint64 `json:"base"`
	Limit    uint32 `json:"limit"`
	Type     uint8  `json:"type"`
	DPL      uint8  `json:"dpl"`
	DB       uint8  `json:"db"`
	L        uint8  `json:"l"`
	G        uint8  `json:"g"`
	Present  uint8  `json:"present"`
}

type sregsJSON struct {
	GDTBase  uint64        `json:"gdt_base"`
	GDTLimit uint16        `json:"gdt_limit"`
	Segments []segmentJSON `json:"segments"`
}

func runKVM() error {
	g, mem, err := buildFlat(kvmLong)
	if err != nil {
		return err
	}
	defer mem.Close()

	printVerbose("Opening %s\n", kvm.DevicePath)
	sys, err := kvm.Open()
	if err != nil {
		return err
	}
	defer sys.Close()
	vm, err := sys.NewVM(mem)
	if err != nil {
		return err
	}
	defer vm.Close()
	vcpu, err := vm.NewVCPU()
	if err != nil {
		return err
	}
	defer vcpu.Close()

	if err := segment.LoadFlat(g, vcpu); err != nil {
		return err
	}
	if err := vcpu.Err(); err != nil {
		return fmt.Errorf("failed to load table: %w", err)
	}
	sregs, err := vcpu.Sregs()
	if err != nil {
		return err
	}

	out := sregsJSON{GDTBase: sregs.GDT.Base, GDTLimit: sregs.GDT.Limit}
	for _, s := range []struct {
		name string
		seg  kvm.Segment
	}{
		{"cs", sregs.CS}, {"ds", sregs.DS}, {"es", sregs.ES}, {"ss", sregs.SS}, {"gs", sregs.GS},
	} {
		out.Segments = append(out.Segments, segmentJSON{
			Name:     s.name,
			Selector: s.seg.Selector,
			Base:     s.seg.Base,
			Limit:    s.seg.Limit,
			Type:     s.seg.Type,
			DPL:      s.seg.DPL,
			DB:       s.seg.DB,
			L:        s.seg.L,
			G:        s.seg.G,
			Present:  s.seg.Present,
		})
	}
	if jsonOut {
		return printJSON(out)
	}
	printInfo("gdtr base %#x limit %d\n", out.GDTBase, out.GDTLimit)
	for _, s := range out.Segments {
		printInfo("%s sel %#04x base %#x limit %#x type %#x dpl %d db %d l %d g %d present %d\n",
			s.Name, s.Selector, s.Base, s.Limit, s.Type, s.DPL, s.DB, s.L, s.G, s.Present)
	}
	return nil
}
