// SPDX-License-Identifier: Unlicense OR MIT

package segment

// Error is the error type of the package. Values are constants so
// they can be returned before any allocator is available.
type Error string

const (
	ErrIndexRange Error = "segment: descriptor index out of range"
	ErrState      Error = "segment: operation not valid in current state"
	ErrAlloc      Error = "segment: table allocation failed"
	ErrAlign      Error = "segment: allocation is misaligned"
	ErrNullEntry  Error = "segment: entry 0 is not the null descriptor"
	ErrCodeMode   Error = "segment: code segment is both long and 32-bit"
)

//go:nosplit
func (e Error) Error() string {
	return string(e)
}
