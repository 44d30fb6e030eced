package debugger

import (
	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// Watchpoint is a write-based pause trigger, backed by a memory write
// tracer over a 4-byte span. The watchpoint and its tracer share ID: removal
// must delete both together (spec.md §3).
type Watchpoint struct {
	ID   int
	Span memory.Span
}

// watchpointSpan derives the inclusive 4-byte span a watchpoint covers from
// its base address.
func watchpointSpan(addr isa.Word) memory.Span {
	return memory.Span{Lo: addr, Hi: addr + 3}
}
