package decode

import "github.com/remu/remu/pkg/memory"

// execRType dispatches the register-register ALU group (opcode 0b0110011)
// on (funct7, funct3), covering both the base integer ops and the M
// multiply/divide extension.
func execRType(cpu CPU, mem *memory.Memory, raw uint32) error {
	a := cpu.Reg(rs1(raw))
	b := cpu.Reg(rs2(raw))
	funct := (funct7(raw) << 3) | funct3(raw)
	var result uint32
	switch funct {
	case 0b000_0000_000: // add
		result = a + b
	case 0b010_0000_000: // sub
		result = a - b
	case 0b000_0000_001: // sll
		result = a << (b & 0x1F)
	case 0b000_0000_010: // slt
		result = boolToWord(int32(a) < int32(b))
	case 0b000_0000_011: // sltu
		result = boolToWord(a < b)
	case 0b000_0000_100: // xor
		result = a ^ b
	case 0b000_0000_101: // srl
		result = a >> (b & 0x1F)
	case 0b010_0000_101: // sra
		result = uint32(int32(a) >> (b & 0x1F))
	case 0b000_0000_110: // or
		result = a | b
	case 0b000_0000_111: // and
		result = a & b

	case 0b000_0001_000: // mul
		result = a * b
	case 0b000_0001_001: // mulh
		result = uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case 0b000_0001_010: // mulhsu
		result = uint32((int64(int32(a)) * int64(uint64(b))) >> 32)
	case 0b000_0001_011: // mulhu
		result = uint32((uint64(a) * uint64(b)) >> 32)
	case 0b000_0001_100: // div
		result = divSigned(int32(a), int32(b))
	case 0b000_0001_101: // divu
		result = divUnsigned(a, b)
	case 0b000_0001_110: // rem
		result = remSigned(int32(a), int32(b))
	case 0b000_0001_111: // remu
		result = remUnsigned(a, b)
	default:
		return illegal(cpu, raw)
	}
	setReg(cpu, rd(raw), result)
	return nil
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// divSigned implements the RISC-V div semantics: division by zero yields
// -1, and the INT_MIN/-1 overflow case yields INT_MIN, both per the
// architectural definition (SPEC_FULL.md §4, resolving the C++ original's
// unguarded division).
func divSigned(a, b int32) uint32 {
	if b == 0 {
		return 0xFFFFFFFF
	}
	if a == -2147483648 && b == -1 {
		return 0x80000000
	}
	return uint32(a / b)
}

func divUnsigned(a, b uint32) uint32 {
	if b == 0 {
		return 0xFFFFFFFF
	}
	return a / b
}

func remSigned(a, b int32) uint32 {
	if b == 0 {
		return uint32(a)
	}
	if a == -2147483648 && b == -1 {
		return 0
	}
	return uint32(a % b)
}

func remUnsigned(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
