// Package decode maps a 32-bit RISC-V-like instruction word to an
// executable Operation. Dispatch is keyed on the low 7 bits of the word
// (the opcode); a 128-slot array indexed by those bits beats a map for
// this workload and keeps hashing off the hot path.
package decode

import (
	"fmt"

	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// CPU is the subset of processor state an Operation needs. It lets this
// package stay independent of pkg/cpu (which itself depends on decode to
// obtain the dispatch table), avoiding an import cycle.
type CPU interface {
	PC() isa.Word
	SetPC(isa.Word)
	NPC() isa.Word
	SetNPC(isa.Word)
	Reg(i uint32) isa.Word
	SetReg(i uint32, v isa.Word)
	CSR(i int) isa.Word
	SetCSR(i int, v isa.Word)
}

// Operation is the executable semantics of one instruction. It freely
// mutates cpu and mem; mem accesses route through the traced API so
// watchpoints observe guest loads and stores.
type Operation func(cpu CPU, mem *memory.Memory, raw uint32) error

// ErrHaltRequested is returned by ebreak to unwind the step loop cleanly.
// It is not a fatal error: the debugger treats it as "pause here".
var ErrHaltRequested = fmt.Errorf("decode: halt requested")

// IllegalInstructionError is raised for an unrecognized opcode/funct
// combination or a malformed encoding. It carries the offending address
// and raw bits for diagnostics, per SPEC_FULL.md §7.
type IllegalInstructionError struct {
	Addr isa.Word
	Raw  uint32
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction at 0x%08x: 0x%08x", e.Addr, e.Raw)
}

// Trap is raised by ecall. The core does not vector to mtvec (Non-goal);
// it is a fatal error unless the caller chooses to special-case it.
type Trap struct {
	Cause isa.ExceptionCause
	PC    isa.Word
}

func (e *Trap) Error() string {
	return fmt.Sprintf("trap at 0x%08x: cause=%d", e.PC, e.Cause)
}

// Operand field extraction, all on a 32-bit word, bit 0 = LSB.
func opcode(inst uint32) uint32 { return inst & 0x7F }
func rd(inst uint32) uint32     { return (inst >> 7) & 0x1F }
func rs1(inst uint32) uint32    { return (inst >> 15) & 0x1F }
func rs2(inst uint32) uint32    { return (inst >> 20) & 0x1F }
func funct3(inst uint32) uint32 { return (inst >> 12) & 0x7 }
func funct7(inst uint32) uint32 { return (inst >> 25) & 0x7F }
func shamt(inst uint32) uint32  { return (inst >> 20) & 0x3F }

func bits(inst uint32, hi, lo uint) uint32 {
	width := hi - lo + 1
	mask := uint32(1)<<width - 1
	return (inst >> lo) & mask
}

// signExtend sign-extends the low `width` bits of x to a full int32,
// returned as its uint32 bit pattern. Re-truncating the result to width
// bits always reproduces the original pattern (SPEC_FULL.md §8 invariant 2).
func signExtend(x uint32, width uint) uint32 {
	shift := 32 - width
	return uint32(int32(x<<shift) >> shift)
}

func immI(inst uint32) uint32 { return signExtend(bits(inst, 31, 20), 12) }

func immS(inst uint32) uint32 {
	raw := (bits(inst, 31, 25) << 5) | bits(inst, 11, 7)
	return signExtend(raw, 12)
}

func immB(inst uint32) uint32 {
	raw := (bits(inst, 31, 31) << 12) | (bits(inst, 30, 25) << 5) |
		(bits(inst, 11, 8) << 1) | (bits(inst, 7, 7) << 11)
	return signExtend(raw, 13)
}

func immU(inst uint32) uint32 {
	return bits(inst, 31, 12) << 12
}

func immJ(inst uint32) uint32 {
	raw := (bits(inst, 31, 31) << 20) | (bits(inst, 30, 21) << 1) |
		(bits(inst, 20, 20) << 11) | (bits(inst, 19, 12) << 12)
	return signExtend(raw, 21)
}

// opcode values, named per spec.md §4.2.
const (
	opRType   = 0b0110011
	opLoad    = 0b0000011
	opStore   = 0b0100011
	opIArith  = 0b0010011
	opBranch  = 0b1100011
	opLUI     = 0b0110111
	opAUIPC   = 0b0010111
	opJAL     = 0b1101111
	opJALR    = 0b1100111
	opFence   = 0b0001111
	opSystem  = 0b1110011
)

// table is the 128-slot opcode dispatch table. Most slots are nil;
// Decode turns a nil slot into an IllegalInstructionError.
var table [128]Operation

func init() {
	table[opRType] = execRType
	table[opLoad] = execLoad
	table[opStore] = execStore
	table[opIArith] = execIArith
	table[opBranch] = execBranch
	table[opLUI] = execLUI
	table[opAUIPC] = execAUIPC
	table[opJAL] = execJAL
	table[opJALR] = execJALR
	table[opFence] = execFence
	table[opSystem] = execSystem
}

// Instruction wraps the raw 32-bit bit pattern; Decode resolves its
// operation handle. Instructions are ephemeral, constructed fresh on every
// fetch.
type Instruction struct {
	bits uint32
}

// New wraps a fetched 32-bit word.
func New(bits uint32) Instruction {
	return Instruction{bits: bits}
}

// Bits returns the raw encoding.
func (i Instruction) Bits() uint32 { return i.bits }

// Decode resolves the instruction's opcode to an Operation. addr is only
// used to annotate IllegalInstructionError.
func (i Instruction) Decode(addr isa.Word) (Operation, error) {
	op := table[opcode(i.bits)]
	if op == nil {
		return nil, &IllegalInstructionError{Addr: addr, Raw: i.bits}
	}
	return op, nil
}

func setReg(cpu CPU, i uint32, v isa.Word) {
	if i == 0 {
		return // x0 writes are silently discarded
	}
	cpu.SetReg(i, v)
}

func illegal(cpu CPU, raw uint32) error {
	return &IllegalInstructionError{Addr: cpu.PC(), Raw: raw}
}
