// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eliasnaur.com/segboot/kvm"
	"eliasnaur.com/segboot/segment"
)

const (
	// Guest memory at 1MiB: a page for the table and three for the
	// long mode page tables.
	guestMemSize = 4 * 4096
	guestMemBase = 0x100000
)

var dumpLong bool

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpLong, "long", false, "Use a 64-bit code segment")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump the flat model descriptor table",
		Long: `The dump command builds the flat model table the kernel boots with
and prints its entries, its register and the verification result.

Example:
  gdtctl dump
  gdtctl dump --long --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump()
		},
	}
}

// buildFlat builds the flat model table in fresh guest memory.
func buildFlat(long bool) (*segment.GDT, *kvm.Memory, error) {
	mem, err := kvm.NewMemory(guestMemSize, guestMemBase)
	if err != nil {
		return nil, nil, err
	}
	g := new(segment.GDT)
	if err := g.Init(mem); err != nil {
		mem.Close()
		return nil, nil, fmt.Errorf("failed to allocate table: %w", err)
	}
	if err := segment.InstallFlat(g, long); err != nil {
		mem.Close()
		return nil, nil, fmt.Errorf("failed to install flat model: %w", err)
	}
	return g, mem, nil
}

type tableJSON struct {
	Base    uint64           `json:"base"`
	Limit   uint16           `json:"limit"`
	Entries []descriptorJSON `json:"entries"`
	Verify  string           `json:"verify"`
}

func runDump() error {
	g, mem, err := buildFlat(dumpLong)
	if err != nil {
		return err
	}
	defer mem.Close()

	base, err := mem.GuestAddr(g.Register().Addr())
	if err != nil {
		return err
	}
	verr := segment.Verify(g.Table())
	status := "ok"
	if verr != nil {
		status = verr.Error()
	}

	if jsonOut {
		out := tableJSON{Base: base, Limit: g.Register().Limit(), Verify: status}
		for i, d := range g.Table() {
			if !d.IsNull() {
				out.Entries = append(out.Entries, newDescriptorJSON(i, d))
			}
		}
		return printJSON(out)
	}

	printInfo("table base %#x limit %d (%d entries, %d bytes)\n", base, g.Register().Limit(), segment.TableEntries, segment.TableSize)
	if !quiet {
		if err := g.Table().Dump(os.Stdout); err != nil {
			return err
		}
	}
	printVerbose("register % x\n", g.Register()[:])
	printInfo("verify: %s\n", status)
	return verr
}
