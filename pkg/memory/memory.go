// Package memory implements the emulator's flat physical memory window
// and the tracer registries that back watchpoints.
package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/remu/remu/pkg/isa"
)

// ErrInvalidAddress indicates a memory access outside the mapped region.
var ErrInvalidAddress = fmt.Errorf("memory: invalid address")

// Span is an inclusive address range [Lo, Hi].
type Span struct {
	Lo, Hi isa.Word
}

// Contains reports whether addr falls within the span, inclusive.
func (s Span) Contains(addr isa.Word) bool {
	return addr >= s.Lo && addr <= s.Hi
}

// TraceFunc is the callback invoked when a tracer's span is touched by a
// matching access. numOfBytes is the width of the access (1, 2 or 4).
type TraceFunc func(vaddr isa.Word, data isa.Word, numOfBytes int)

// Tracer is an observer registered against a span of addresses. It fires
// whenever a traced access touches that span.
type Tracer struct {
	ID      int
	Span    Span
	Handler TraceFunc
}

func (t Tracer) inSpan(vaddr isa.Word) bool {
	return t.Span.Contains(vaddr)
}

// Memory owns a contiguous physical buffer mapped at isa.MemBase plus the
// read and write tracer registries that back watchpoints. It has no
// internal synchronization: the emulator is single-threaded (see
// SPEC_FULL.md §5), so none is needed.
type Memory struct {
	phys []byte

	readTracers  []Tracer
	writeTracers []Tracer
	nextTracerID int
}

// New allocates a zeroed physical memory window of isa.MemSize bytes.
func New() *Memory {
	return &Memory{phys: make([]byte, isa.MemSize)}
}

// IsValidAddr reports whether vaddr falls inside the mapped window.
func (m *Memory) IsValidAddr(vaddr isa.Word) bool {
	return vaddr >= isa.MemBase && vaddr < isa.MemBase+isa.MemSize
}

// IsValidMemSpan reports whether span lies entirely inside the mapped
// window and is well formed (Lo <= Hi).
func (m *Memory) IsValidMemSpan(span Span) bool {
	return span.Lo <= span.Hi && span.Lo >= isa.MemBase && span.Hi < isa.MemBase+isa.MemSize
}

func (m *Memory) offset(vaddr isa.Word, width int) (int, error) {
	if !m.IsValidAddr(vaddr) || !m.IsValidAddr(vaddr+isa.Word(width-1)) {
		return 0, fmt.Errorf("%w: 0x%08x", ErrInvalidAddress, vaddr)
	}
	return int(vaddr - isa.MemBase), nil
}

// ReadU8, ReadU16 and ReadU32 perform untraced typed loads.
func (m *Memory) ReadU8(vaddr isa.Word) (uint8, error) {
	off, err := m.offset(vaddr, 1)
	if err != nil {
		return 0, err
	}
	return m.phys[off], nil
}

func (m *Memory) ReadU16(vaddr isa.Word) (uint16, error) {
	off, err := m.offset(vaddr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.phys[off:]), nil
}

func (m *Memory) ReadU32(vaddr isa.Word) (uint32, error) {
	off, err := m.offset(vaddr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.phys[off:]), nil
}

// WriteU8, WriteU16 and WriteU32 perform untraced typed stores.
func (m *Memory) WriteU8(vaddr isa.Word, v uint8) error {
	off, err := m.offset(vaddr, 1)
	if err != nil {
		return err
	}
	m.phys[off] = v
	return nil
}

func (m *Memory) WriteU16(vaddr isa.Word, v uint16) error {
	off, err := m.offset(vaddr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.phys[off:], v)
	return nil
}

func (m *Memory) WriteU32(vaddr isa.Word, v uint32) error {
	off, err := m.offset(vaddr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.phys[off:], v)
	return nil
}

// ReadU8WithTrace, ReadU16WithTrace and ReadU32WithTrace perform the typed
// load and then fire any read tracer whose span contains vaddr, in
// registration order.
func (m *Memory) ReadU8WithTrace(vaddr isa.Word) (uint8, error) {
	v, err := m.ReadU8(vaddr)
	if err != nil {
		return 0, err
	}
	m.traceRead(vaddr, isa.Word(v), 1)
	return v, nil
}

func (m *Memory) ReadU16WithTrace(vaddr isa.Word) (uint16, error) {
	v, err := m.ReadU16(vaddr)
	if err != nil {
		return 0, err
	}
	m.traceRead(vaddr, isa.Word(v), 2)
	return v, nil
}

func (m *Memory) ReadU32WithTrace(vaddr isa.Word) (uint32, error) {
	v, err := m.ReadU32(vaddr)
	if err != nil {
		return 0, err
	}
	m.traceRead(vaddr, v, 4)
	return v, nil
}

// WriteU8WithTrace, WriteU16WithTrace and WriteU32WithTrace perform the
// typed store and then fire any write tracer whose span contains vaddr.
// The tracer observes the post-write value.
func (m *Memory) WriteU8WithTrace(vaddr isa.Word, v uint8) error {
	if err := m.WriteU8(vaddr, v); err != nil {
		return err
	}
	m.traceWrite(vaddr, isa.Word(v), 1)
	return nil
}

func (m *Memory) WriteU16WithTrace(vaddr isa.Word, v uint16) error {
	if err := m.WriteU16(vaddr, v); err != nil {
		return err
	}
	m.traceWrite(vaddr, isa.Word(v), 2)
	return nil
}

func (m *Memory) WriteU32WithTrace(vaddr isa.Word, v uint32) error {
	if err := m.WriteU32(vaddr, v); err != nil {
		return err
	}
	m.traceWrite(vaddr, v, 4)
	return nil
}

func (m *Memory) traceRead(vaddr, data isa.Word, n int) {
	for _, t := range m.readTracers {
		if t.inSpan(vaddr) {
			t.Handler(vaddr, data, n)
		}
	}
}

func (m *Memory) traceWrite(vaddr, data isa.Word, n int) {
	for _, t := range m.writeTracers {
		if t.inSpan(vaddr) {
			t.Handler(vaddr, data, n)
		}
	}
}

// AddReadTracer registers t against the read-tracer list and returns its
// id (equal to t.ID, which the caller is expected to have assigned via
// NextTracerID).
func (m *Memory) AddReadTracer(t Tracer) int {
	m.readTracers = append(m.readTracers, t)
	return t.ID
}

// AddWriteTracer registers t against the write-tracer list.
func (m *Memory) AddWriteTracer(t Tracer) int {
	m.writeTracers = append(m.writeTracers, t)
	return t.ID
}

// RemoveReadTracer removes the first read tracer with the given id, if
// any. It is not an error to remove an id that is not present.
func (m *Memory) RemoveReadTracer(id int) {
	m.readTracers = removeTracer(m.readTracers, id)
}

// RemoveWriteTracer removes the first write tracer with the given id.
func (m *Memory) RemoveWriteTracer(id int) {
	m.writeTracers = removeTracer(m.writeTracers, id)
}

func removeTracer(list []Tracer, id int) []Tracer {
	for i, t := range list {
		if t.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// NextTracerID hands out a monotonically increasing id for tracers
// (shared between the read and write registries, matching the
// reference debugger where watchpoint ids and their backing write-tracer
// ids are the same value).
func (m *Memory) NextTracerID() int {
	id := m.nextTracerID
	m.nextTracerID++
	return id
}

// LoadBytes copies raw bytes into physical memory starting at base,
// returning ErrInvalidAddress if any byte of the range falls outside the
// mapped window.
func (m *Memory) LoadBytes(base isa.Word, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := base + isa.Word(len(data)) - 1
	if !m.IsValidAddr(base) || !m.IsValidAddr(end) {
		return fmt.Errorf("%w: load [0x%08x, 0x%08x]", ErrInvalidAddress, base, end)
	}
	off, _ := m.offset(base, len(data))
	copy(m.phys[off:], data)
	return nil
}
