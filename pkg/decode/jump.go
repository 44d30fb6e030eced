package decode

import "github.com/remu/remu/pkg/memory"

// execJAL implements JAL (opcode 0b1101111, J-form): rd = pc + 4,
// npc = pc + sign-extended immJ.
func execJAL(cpu CPU, mem *memory.Memory, raw uint32) error {
	setReg(cpu, rd(raw), cpu.PC()+4)
	cpu.SetNPC(cpu.PC() + immJ(raw))
	return nil
}

// execJALR implements JALR (opcode 0b1100111, I-form). The return address
// is computed before rd is written, in case rd == rs1.
func execJALR(cpu CPU, mem *memory.Memory, raw uint32) error {
	ret := cpu.PC() + 4
	target := (cpu.Reg(rs1(raw)) + immI(raw)) &^ 1
	cpu.SetNPC(target)
	setReg(cpu, rd(raw), ret)
	return nil
}
