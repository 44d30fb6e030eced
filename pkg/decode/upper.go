package decode

import "github.com/remu/remu/pkg/memory"

// execLUI implements LUI (opcode 0b0110111, U-form): rd = immU << 12
// (the shift is already folded into the immU decoder), sign-extended as
// a 32-bit value -- which, at 32 bits, is simply itself.
func execLUI(cpu CPU, mem *memory.Memory, raw uint32) error {
	setReg(cpu, rd(raw), immU(raw))
	return nil
}

// execAUIPC implements AUIPC (opcode 0b0010111, U-form): rd = pc + immU.
func execAUIPC(cpu CPU, mem *memory.Memory, raw uint32) error {
	setReg(cpu, rd(raw), cpu.PC()+immU(raw))
	return nil
}
