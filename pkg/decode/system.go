package decode

import (
	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// execFence implements FENCE/FENCE.I (opcode 0b0001111) as a pure no-op:
// this core has no pipeline or instruction cache to synchronize.
func execFence(cpu CPU, mem *memory.Memory, raw uint32) error {
	return nil
}

// execSystem implements the SYSTEM opcode (0b1110011): ecall/ebreak and
// the six CSR instructions.
func execSystem(cpu CPU, mem *memory.Memory, raw uint32) error {
	switch funct3(raw) {
	case 0b000: // ecall / ebreak, distinguished by immI
		switch immI(raw) {
		case 0: // ecall
			return &Trap{Cause: isa.ECallFromMMode, PC: cpu.PC()}
		case 1: // ebreak
			return ErrHaltRequested
		default:
			return illegal(cpu, raw)
		}
	case 0b001: // csrrw
		return csrReadModifyWrite(cpu, raw, true, func(old, _ uint32) uint32 {
			return cpu.Reg(rs1(raw))
		})
	case 0b010: // csrrs
		return csrReadModifyWrite(cpu, raw, rs1(raw) != 0, func(old, _ uint32) uint32 {
			return old | cpu.Reg(rs1(raw))
		})
	case 0b011: // csrrc
		return csrReadModifyWrite(cpu, raw, rs1(raw) != 0, func(old, _ uint32) uint32 {
			return old &^ cpu.Reg(rs1(raw))
		})
	case 0b101: // csrrwi
		return csrReadModifyWrite(cpu, raw, true, func(old, _ uint32) uint32 {
			return rs1(raw)
		})
	case 0b110: // csrrsi
		return csrReadModifyWrite(cpu, raw, rs1(raw) != 0, func(old, _ uint32) uint32 {
			return old | rs1(raw)
		})
	case 0b111: // csrrci
		return csrReadModifyWrite(cpu, raw, rs1(raw) != 0, func(old, _ uint32) uint32 {
			return old &^ rs1(raw)
		})
	default:
		return illegal(cpu, raw)
	}
}

// csrReadModifyWrite implements the standard CSR read-modify-write
// pattern: the old value is read into rd (unless rd == 0, a harmless
// optimization since x0 discards writes anyway), then newValue(old, _) is
// written back unless shouldWrite is false (the immediate/rs1-is-x0 forms
// of csrrs/csrrc/csrrsi/csrrci skip the write per the standard table).
// The CSR number is immI's low bits, indexed into the fixed machine-mode
// slot order documented in SPEC_FULL.md §4.
func csrReadModifyWrite(cpu CPU, raw uint32, shouldWrite bool, newValue func(old, _ uint32) uint32) error {
	csr := int(immI(raw) & 0xFFF)
	if csr >= isa.CSRCount {
		return illegal(cpu, raw)
	}
	old := cpu.CSR(csr)
	if rd(raw) != 0 {
		setReg(cpu, rd(raw), old)
	}
	if shouldWrite {
		cpu.SetCSR(csr, newValue(old, 0))
	}
	return nil
}
