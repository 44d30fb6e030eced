package decode

import "github.com/remu/remu/pkg/memory"

// execBranch implements beq/bne/blt/bge/bltu/bgeu (opcode 0b1100011,
// B-form). On a taken branch, npc is overwritten with pc + sign-extended
// immB; otherwise npc is left at its pre-seeded pc+4.
func execBranch(cpu CPU, mem *memory.Memory, raw uint32) error {
	a, b := cpu.Reg(rs1(raw)), cpu.Reg(rs2(raw))
	var taken bool
	switch funct3(raw) {
	case 0b000: // beq
		taken = a == b
	case 0b001: // bne
		taken = a != b
	case 0b100: // blt
		taken = int32(a) < int32(b)
	case 0b101: // bge
		taken = int32(a) >= int32(b)
	case 0b110: // bltu
		taken = a < b
	case 0b111: // bgeu
		taken = a >= b
	default:
		return illegal(cpu, raw)
	}
	if taken {
		cpu.SetNPC(cpu.PC() + immB(raw))
	}
	return nil
}
