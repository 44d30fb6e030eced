package decode

import (
	"errors"
	"testing"

	"github.com/remu/remu/pkg/isa"
	"github.com/remu/remu/pkg/memory"
)

// fakeCPU is a minimal CPU implementation for exercising decode in
// isolation from pkg/cpu.
type fakeCPU struct {
	pc, npc isa.Word
	regs    [32]isa.Word
	csr     [isa.CSRCount]isa.Word
}

func (f *fakeCPU) PC() isa.Word         { return f.pc }
func (f *fakeCPU) SetPC(v isa.Word)     { f.pc = v }
func (f *fakeCPU) NPC() isa.Word        { return f.npc }
func (f *fakeCPU) SetNPC(v isa.Word)    { f.npc = v }
func (f *fakeCPU) Reg(i uint32) isa.Word { return f.regs[i] }
func (f *fakeCPU) SetReg(i uint32, v isa.Word) {
	if i == 0 {
		return
	}
	f.regs[i] = v
}
func (f *fakeCPU) CSR(i int) isa.Word      { return f.csr[i] }
func (f *fakeCPU) SetCSR(i int, v isa.Word) { f.csr[i] = v }

func encodeR(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeI(opcode, funct3, rd, rs1, imm uint32) uint32 {
	return ((imm & 0xFFF) << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeS(opcode, funct3, rs1, rs2, imm uint32) uint32 {
	imm11_5 := (imm >> 5) & 0x7F
	imm4_0 := imm & 0x1F
	return (imm11_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (imm4_0 << 7) | opcode
}

func encodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	b12 := (u >> 12) & 1
	b10_5 := (u >> 5) & 0x3F
	b4_1 := (u >> 1) & 0xF
	b11 := (u >> 11) & 1
	return (b12 << 31) | (b10_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (b4_1 << 8) | (b11 << 7) | opcode
}

func encodeU(opcode, rd, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | (rd << 7) | opcode
}

func encodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	b20 := (u >> 20) & 1
	b10_1 := (u >> 1) & 0x3FF
	b11 := (u >> 11) & 1
	b19_12 := (u >> 12) & 0xFF
	return (b20 << 31) | (b10_1 << 21) | (b11 << 20) | (b19_12 << 12) | (rd << 7) | opcode
}

func run(t *testing.T, cpu *fakeCPU, mem *memory.Memory, raw uint32) error {
	t.Helper()
	inst := New(raw)
	op, err := inst.Decode(cpu.pc)
	if err != nil {
		return err
	}
	return op(cpu, mem, raw)
}

func TestAddRegisterZeroInvariant(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	// add x0, x1, x2 -- writes to x0 must be discarded.
	raw := encodeR(opRType, 0, 0, 0, 1, 2)
	cpu.regs[1], cpu.regs[2] = 5, 7
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[0] != 0 {
		t.Fatalf("x0 = %d, want 0", cpu.regs[0])
	}
}

func TestADDI(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	raw := encodeI(opIArith, 0b000, 1, 0, uint32(5))
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[1] != 5 {
		t.Fatalf("x1 = %d, want 5", cpu.regs[1])
	}
	raw2 := encodeI(opIArith, 0b000, 2, 1, 0xFFFFFFFF) // imm = -1
	if err := run(t, cpu, mem, raw2); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[2] != 4 {
		t.Fatalf("x2 = %d, want 4", cpu.regs[2])
	}
}

func TestSLLIIsTerminalNotFallthrough(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.regs[1] = 1
	raw := encodeI(opIArith, 0b001, 2, 1, 4) // slli x2, x1, 4
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[2] != 16 {
		t.Fatalf("slli result = %d, want 16 (no fallthrough into srli/srai)", cpu.regs[2])
	}
}

func TestSRAISignExtends(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.regs[1] = 0xFFFFFFF8 // -8
	raw := (uint32(0b0100000) << 25) | encodeI(opIArith, 0b101, 2, 1, 1)
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if int32(cpu.regs[2]) != -4 {
		t.Fatalf("srai result = %d, want -4", int32(cpu.regs[2]))
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.regs[1] = isa.MemBase // rs1 base
	cpu.regs[2] = 0xCAFEBABE  // value to store

	sw := encodeS(opStore, 0b010, 1, 2, 0x100)
	if err := run(t, cpu, mem, sw); err != nil {
		t.Fatal(err)
	}
	lw := encodeI(opLoad, 0b010, 3, 1, 0x100)
	if err := run(t, cpu, mem, lw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[3] != 0xCAFEBABE {
		t.Fatalf("lw result = 0x%x, want 0xCAFEBABE", cpu.regs[3])
	}
}

func TestBranchTakenAndNotTaken(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	mem := memory.New()
	cpu.regs[1], cpu.regs[2] = 1, 1
	cpu.npc = cpu.pc + 4
	raw := encodeB(opBranch, 0b000, 1, 2, -8) // beq x1, x2, -8
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.npc != cpu.pc-8 {
		t.Fatalf("npc = 0x%x, want pc-8", cpu.npc)
	}

	cpu.regs[2] = 2
	cpu.npc = cpu.pc + 4
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.npc != cpu.pc+4 {
		t.Fatalf("npc = 0x%x, want pc+4 (not taken)", cpu.npc)
	}
}

func TestJAL(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	mem := memory.New()
	raw := encodeJ(opJAL, 1, 0x100)
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[1] != cpu.pc+4 {
		t.Fatalf("rd = 0x%x, want pc+4", cpu.regs[1])
	}
	if cpu.npc != cpu.pc+0x100 {
		t.Fatalf("npc = 0x%x, want pc+0x100", cpu.npc)
	}
}

func TestJALRClearsLowBit(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	mem := memory.New()
	cpu.regs[1] = isa.MemBase + 0x101
	raw := encodeI(opJALR, 0, 2, 1, 0)
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.npc&1 != 0 {
		t.Fatalf("npc low bit not cleared: 0x%x", cpu.npc)
	}
	if cpu.regs[2] != cpu.pc+4 {
		t.Fatalf("rd = 0x%x, want pc+4", cpu.regs[2])
	}
}

func TestJALRComputesReturnBeforeWritingRD(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	mem := memory.New()
	cpu.regs[1] = isa.MemBase + 0x10 // rs1 == rd below
	raw := encodeI(opJALR, 0, 1, 1, 0)
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.npc != isa.MemBase+0x10 {
		t.Fatalf("npc = 0x%x, want 0x%x (computed before rd write)", cpu.npc, isa.MemBase+0x10)
	}
	if cpu.regs[1] != cpu.pc+4 {
		t.Fatalf("rd = 0x%x, want pc+4", cpu.regs[1])
	}
}

func TestLUIAndAUIPC(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	mem := memory.New()
	lui := encodeU(opLUI, 1, 0x12345000)
	if err := run(t, cpu, mem, lui); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[1] != 0x12345000 {
		t.Fatalf("lui = 0x%x, want 0x12345000", cpu.regs[1])
	}
	auipc := encodeU(opAUIPC, 2, 0)
	if err := run(t, cpu, mem, auipc); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[2] != cpu.pc {
		t.Fatalf("auipc = 0x%x, want pc 0x%x", cpu.regs[2], cpu.pc)
	}
}

func TestDivByZeroAndOverflow(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.regs[1] = 10
	cpu.regs[2] = 0
	raw := encodeR(opRType, 0b100, 0b0000001, 3, 1, 2) // div x3, x1, x2
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if int32(cpu.regs[3]) != -1 {
		t.Fatalf("div by zero = %d, want -1", int32(cpu.regs[3]))
	}

	cpu.regs[1] = 0x80000000 // INT_MIN
	cpu.regs[2] = 0xFFFFFFFF // -1
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[3] != 0x80000000 {
		t.Fatalf("INT_MIN/-1 = 0x%x, want 0x80000000", cpu.regs[3])
	}
}

func TestDivuRemByZero(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.regs[1], cpu.regs[2] = 10, 0
	divu := encodeR(opRType, 0b101, 0b0000001, 3, 1, 2)
	if err := run(t, cpu, mem, divu); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[3] != 0xFFFFFFFF {
		t.Fatalf("divu by zero = 0x%x, want 0xFFFFFFFF", cpu.regs[3])
	}

	rem := encodeR(opRType, 0b110, 0b0000001, 4, 1, 2)
	if err := run(t, cpu, mem, rem); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[4] != 10 {
		t.Fatalf("rem by zero = %d, want dividend 10", cpu.regs[4])
	}
}

func TestIllegalOpcode(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	raw := uint32(0b1111111) // opcode with no table entry
	_, err := New(raw).Decode(cpu.pc)
	var illegalErr *IllegalInstructionError
	if !errors.As(err, &illegalErr) {
		t.Fatalf("expected IllegalInstructionError, got %v", err)
	}
	if illegalErr.Addr != isa.MemBase {
		t.Fatalf("addr = 0x%x, want 0x%x", illegalErr.Addr, isa.MemBase)
	}
}

func TestEbreakRequestsHalt(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	raw := encodeI(opSystem, 0, 0, 0, 1) // ebreak
	err := run(t, cpu, mem, raw)
	if !errors.Is(err, ErrHaltRequested) {
		t.Fatalf("expected ErrHaltRequested, got %v", err)
	}
}

func TestEcallRaisesTrap(t *testing.T) {
	cpu := &fakeCPU{pc: isa.MemBase}
	mem := memory.New()
	raw := encodeI(opSystem, 0, 0, 0, 0) // ecall
	err := run(t, cpu, mem, raw)
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected *Trap, got %v", err)
	}
	if trap.Cause != isa.ECallFromMMode {
		t.Fatalf("cause = %v, want ECallFromMMode", trap.Cause)
	}
}

func TestCSRReadModifyWrite(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.csr[isa.CSRMScratch] = 0x42
	cpu.regs[1] = 0x99
	// csrrw x2, mscratch, x1
	raw := encodeI(opSystem, 0b001, 2, 1, uint32(isa.CSRMScratch))
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[2] != 0x42 {
		t.Fatalf("old value = 0x%x, want 0x42", cpu.regs[2])
	}
	if cpu.csr[isa.CSRMScratch] != 0x99 {
		t.Fatalf("new value = 0x%x, want 0x99", cpu.csr[isa.CSRMScratch])
	}
}

func TestCSRRSWithX0SourceSkipsWrite(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	cpu.csr[isa.CSRMScratch] = 0x42
	raw := encodeI(opSystem, 0b010, 1, 0, uint32(isa.CSRMScratch)) // csrrs x1, mscratch, x0
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
	if cpu.regs[1] != 0x42 {
		t.Fatalf("rd = 0x%x, want 0x42", cpu.regs[1])
	}
	if cpu.csr[isa.CSRMScratch] != 0x42 {
		t.Fatalf("csr mutated despite rs1==x0")
	}
}

func TestFenceIsNoop(t *testing.T) {
	cpu := &fakeCPU{}
	mem := memory.New()
	raw := encodeI(opFence, 0, 0, 0, 0)
	if err := run(t, cpu, mem, raw); err != nil {
		t.Fatal(err)
	}
}

func TestSignExtendRoundTrip(t *testing.T) {
	widths := []uint{8, 12, 13, 16, 20, 21}
	for _, w := range widths {
		for _, v := range []uint32{0, 1, (1 << (w - 1)) - 1, 1 << (w - 1), (1 << w) - 1} {
			got := signExtend(v, w) & ((1 << w) - 1)
			if got != v {
				t.Errorf("signExtend(%d, width=%d) truncated back = %d, want %d", v, w, got, v)
			}
		}
	}
}
