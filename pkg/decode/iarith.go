package decode

import "github.com/remu/remu/pkg/memory"

// execIArith implements the immediate ALU group (opcode 0b0010011).
//
// The C++ original this was distilled from falls through from the slli
// case straight into the shift-right case, because it forgot a break.
// slli is given its own terminal case here instead (SPEC_FULL.md §4).
func execIArith(cpu CPU, mem *memory.Memory, raw uint32) error {
	a := cpu.Reg(rs1(raw))
	imm := immI(raw)
	var result uint32
	switch funct3(raw) {
	case 0b000: // addi
		result = a + imm
	case 0b010: // slti
		result = boolToWord(int32(a) < int32(imm))
	case 0b011: // sltiu
		result = boolToWord(a < imm)
	case 0b100: // xori
		result = a ^ imm
	case 0b110: // ori
		result = a | imm
	case 0b111: // andi
		result = a & imm
	case 0b001: // slli
		if funct7(raw) != 0 {
			return illegal(cpu, raw)
		}
		result = a << (shamt(raw) & 0x1F)
	case 0b101:
		switch funct7(raw) {
		case 0: // srli
			result = a >> (shamt(raw) & 0x1F)
		case 0b0100000: // srai
			result = uint32(int32(a) >> (shamt(raw) & 0x1F))
		default:
			return illegal(cpu, raw)
		}
	default:
		return illegal(cpu, raw)
	}
	setReg(cpu, rd(raw), result)
	return nil
}
