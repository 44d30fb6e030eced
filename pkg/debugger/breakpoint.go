package debugger

import "github.com/remu/remu/pkg/isa"

// Breakpoint is an address-based pause trigger, checked before each fetch.
// Uniqueness is by Addr (spec.md §3).
type Breakpoint struct {
	ID   int
	Addr isa.Word
}
