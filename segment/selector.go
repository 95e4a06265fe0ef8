// SPDX-License-Identifier: Unlicense OR MIT

package segment

// PrivLevel is a processor privilege level, 0 (most privileged)
// through 3.
type PrivLevel uint8

const (
	Ring0 PrivLevel = 0
	Ring3 PrivLevel = 3
)

// Selector is a segment selector: a table index shifted left by 3,
// the table indicator bit and the requested privilege level.
type Selector uint16

const selectorLDT Selector = 1 << 2

// NewSelector returns the GDT selector for index requested at
// privilege level rpl.
func NewSelector(index int, rpl PrivLevel) Selector {
	return Selector(index)<<3 | Selector(rpl&3)
}

// Index returns the descriptor table index of s.
func (s Selector) Index() int {
	return int(s >> 3)
}

// RPL returns the requested privilege level of s.
func (s Selector) RPL() PrivLevel {
	return PrivLevel(s & 3)
}

// LDT reports whether s refers to a local descriptor table.
func (s Selector) LDT() bool {
	return s&selectorLDT != 0
}
