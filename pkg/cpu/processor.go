// Package cpu implements the fetch-decode-execute stepper: the processor
// holds the program counter pair and the general/CSR registers, and
// drives pkg/decode's dispatch table against a pkg/memory.Memory.
package cpu

import (
	"fmt"
	"io"

	"github.com/remu/remu/pkg/decode"
	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// Processor holds PC/next-PC and the register file. It keeps a
// non-owning reference to Memory (spec.md §3 ownership model).
type Processor struct {
	pc, npc isa.Word
	regs    [isa.RegNum]isa.Word
	csrs    [isa.CSRCount]isa.Word

	mem *memory.Memory
}

// New creates a processor with all registers zero and pc = npc = isa.MemBase.
func New(mem *memory.Memory) *Processor {
	return &Processor{pc: isa.MemBase, npc: isa.MemBase, mem: mem}
}

// PC returns the address of the currently executing instruction.
func (p *Processor) PC() isa.Word { return p.pc }

// SetPC overwrites the current program counter.
func (p *Processor) SetPC(v isa.Word) { p.pc = v }

// NPC returns the address that will become PC after this step.
func (p *Processor) NPC() isa.Word { return p.npc }

// SetNPC overwrites the next program counter; branch and jump semantics
// call this to redirect control flow.
func (p *Processor) SetNPC(v isa.Word) { p.npc = v }

// Reg reads general register i. Index 0 always reads as zero regardless
// of any prior write (spec.md §3 invariant).
func (p *Processor) Reg(i uint32) isa.Word {
	if i == 0 {
		return 0
	}
	return p.regs[i]
}

// SetReg writes general register i. Writes to index 0 are silently
// discarded.
func (p *Processor) SetReg(i uint32, v isa.Word) {
	if i == 0 {
		return
	}
	p.regs[i] = v
}

// CSR reads machine-mode control/status slot i.
func (p *Processor) CSR(i int) isa.Word { return p.csrs[i] }

// SetCSR writes machine-mode control/status slot i.
func (p *Processor) SetCSR(i int, v isa.Word) { p.csrs[i] = v }

// Memory returns the processor's memory reference, for commands and the
// expression evaluator that need to dereference guest addresses.
func (p *Processor) Memory() *memory.Memory { return p.mem }

// RegByName resolves an ABI register name to its current value. It
// reports an error for unrecognized names rather than panicking, since
// this is reachable from user-typed expressions.
func (p *Processor) RegByName(name string) (isa.Word, error) {
	i, ok := isa.RegByName(name)
	if !ok {
		return 0, &UnknownRegisterError{Name: name}
	}
	return p.Reg(uint32(i)), nil
}

// UnknownRegisterError is returned by RegByName for an unrecognized ABI
// name.
type UnknownRegisterError struct{ Name string }

func (e *UnknownRegisterError) Error() string {
	return "unknown reg name: " + e.Name
}

// fetchInst reads the instruction word at pc, pre-seeds npc to pc+4, and
// returns the decoded instruction token.
func (p *Processor) fetchInst() (decode.Instruction, error) {
	bits, err := p.mem.ReadU32(p.pc)
	if err != nil {
		return decode.Instruction{}, err
	}
	p.npc = p.pc + 4
	return decode.New(bits), nil
}

// Step fetches, decodes and executes exactly one instruction, then
// advances pc to the npc value set during execute (spec.md §8 invariant
// 4). It returns decode.ErrHaltRequested for ebreak, a *decode.Trap for
// ecall, or any other decode/memory error, leaving pc unchanged on error.
func (p *Processor) Step() error {
	inst, err := p.fetchInst()
	if err != nil {
		return err
	}
	op, err := inst.Decode(p.pc)
	if err != nil {
		return err
	}
	if err := op(p, p.mem, inst.Bits()); err != nil {
		return err
	}
	p.pc = p.npc
	return nil
}

// Execute invokes Step up to n times, stopping early only when a step
// returns an error (halt request, trap, or a fatal decode/memory error).
func (p *Processor) Execute(n uint64) error {
	for ; n > 0; n-- {
		if err := p.Step(); err != nil {
			return err
		}
	}
	return nil
}

// PrintGeneralReg writes the register dump in the reference format: ABI
// name, hex value, four per line separated by tabs (spec.md §6).
func (p *Processor) PrintGeneralReg(w io.Writer) {
	for i := 0; i < isa.RegNum; i += 4 {
		for j := 0; j < 4; j++ {
			sep := ",\t"
			if j == 3 {
				sep = "\n"
			}
			fmt.Fprintf(w, "%s = 0x%08x%s", isa.RegNames[i+j], p.Reg(uint32(i+j)), sep)
		}
	}
}
