// SPDX-License-Identifier: Unlicense OR MIT

package segment

import (
	"fmt"
	"io"
)

// Verify checks t for mistakes that fault the processor on the
// first segment load.
func Verify(t *Table) error {
	if !t[NullIndex].IsNull() {
		return ErrNullEntry
	}
	for _, d := range t {
		if !d.Present() || !d.Code() {
			continue
		}
		// The L and D/B bits are mutually exclusive for code.
		if d.Flags()&(GranLong|GranSize32) == GranLong|GranSize32 {
			return ErrCodeMode
		}
	}
	return nil
}

// Dump writes a line for every non-null entry of t.
func (t *Table) Dump(w io.Writer) error {
	for i, d := range t {
		if d.IsNull() {
			continue
		}
		kind := "data"
		if d.Code() {
			kind = "code"
		}
		b := d.Bytes()
		_, err := fmt.Fprintf(w, "%2d sel %#04x %s base %#08x limit %#08x dpl %d access %#02x gran %#02x present %t bytes % x\n",
			i, uint16(NewSelector(i, d.DPL())), kind, d.Base(), d.ByteLimit(), d.DPL(), d.Access(), d.Granularity(), d.Present(), b[:])
		if err != nil {
			return err
		}
	}
	return nil
}
