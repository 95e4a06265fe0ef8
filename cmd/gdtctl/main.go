// SPDX-License-Identifier: Unlicense OR MIT

// Command gdtctl builds and inspects x86 global descriptor tables.
package main

func main() {
	execute()
}
