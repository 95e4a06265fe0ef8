// SPDX-License-Identifier: Unlicense OR MIT

package kernel

import (
	"eliasnaur.com/segboot/segment"
)

// kernError is an error type usable in kernel code.
type kernError string

// Serial port used for kernel output.
const COM1 = 0x3f8

// consoleOut writes a byte to the kernel console.
var consoleOut = func(b byte) {
	outb(COM1, b)
}

// Boot sets up the processor segments. It is called once by the
// boot processor before any other kernel code runs.
//
//go:nosplit
func Boot() {
	initGDT()
}

//go:nosplit
func fatalError(err error) {
	// Only constant error types are supported, because the
	// compiler generated Error wrappers are not nosplit.
	switch err := err.(type) {
	case kernError:
		fatal(string(err))
	case segment.Error:
		fatal(string(err))
	default:
		fatal("unsupported error")
	}
}

//go:nosplit
func fatal(msg string) {
	outputString("fatal error: ")
	outputString(msg)
	outputString("\n")
	halt()
}

//go:nosplit
func outputString(b string) {
	for i := 0; i < len(b); i++ {
		consoleOut(b[i])
	}
}

//go:nosplit
func outputUint64(v uint64) {
	onlyZero := true
	outputString("0x")
	for i := 15; i >= 0; i-- {
		// Extract the ith nibble.
		nib := byte((v >> (i * 4)) & 0xf)
		if onlyZero && i > 0 && nib == 0 {
			// Skip leading zeros.
			continue
		}
		onlyZero = false
		switch {
		case nib <= 9:
			consoleOut(nib + '0')
		default:
			consoleOut(nib - 10 + 'a')
		}
	}
}

//go:nosplit
func (k kernError) Error() string {
	return string(k)
}

func halt()
func outb(port uint16, b uint8)
