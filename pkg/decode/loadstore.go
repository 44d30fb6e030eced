package decode

import "github.com/remu/remu/pkg/memory"

// execLoad implements lb/lh/lw/lbu/lhu (opcode 0b0000011, I-form). The
// effective address is rs1 + sign-extended immI; all loads use the traced
// memory API so watchpoints on read spans (if any existed) would fire,
// though the debugger only installs write-tracers for watchpoints.
func execLoad(cpu CPU, mem *memory.Memory, raw uint32) error {
	addr := cpu.Reg(rs1(raw)) + immI(raw)
	var result uint32
	switch funct3(raw) {
	case 0b000: // lb
		v, err := mem.ReadU8WithTrace(addr)
		if err != nil {
			return err
		}
		result = signExtend(uint32(v), 8)
	case 0b100: // lbu
		v, err := mem.ReadU8WithTrace(addr)
		if err != nil {
			return err
		}
		result = uint32(v)
	case 0b001: // lh
		v, err := mem.ReadU16WithTrace(addr)
		if err != nil {
			return err
		}
		result = signExtend(uint32(v), 16)
	case 0b101: // lhu
		v, err := mem.ReadU16WithTrace(addr)
		if err != nil {
			return err
		}
		result = uint32(v)
	case 0b010: // lw
		v, err := mem.ReadU32WithTrace(addr)
		if err != nil {
			return err
		}
		result = v
	default:
		return illegal(cpu, raw)
	}
	setReg(cpu, rd(raw), result)
	return nil
}

// execStore implements sb/sh/sw (opcode 0b0100011, S-form). The effective
// address is rs1 + sign-extended immS.
func execStore(cpu CPU, mem *memory.Memory, raw uint32) error {
	addr := cpu.Reg(rs1(raw)) + immS(raw)
	v := cpu.Reg(rs2(raw))
	switch funct3(raw) {
	case 0b000: // sb
		return mem.WriteU8WithTrace(addr, uint8(v))
	case 0b001: // sh
		return mem.WriteU16WithTrace(addr, uint16(v))
	case 0b010: // sw
		return mem.WriteU32WithTrace(addr, v)
	default:
		return illegal(cpu, raw)
	}
}
