package vm

import (
	"testing"

	"mcl/asm"
)

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func mustLoad(t *testing.T, src string) *asm.Program {
	t.Helper()
	prog, err := asm.Load(src)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return prog
}

func TestCPUArithmeticPrecedence(t *testing.T) {
	// 2 + 3 * 4 - 1 computed with explicit register moves, mirroring the
	// precedence scenario in the spec's worked examples: result 13 in R5.
	prog := mustLoad(t, `
	MVR i:3, 10
	MVR i:4, 11
	MULT 10, 11
	MVR 0, 12
	MVR i:2, 10
	ADD 10, 12
	MVR 0, 12
	MVR i:1, 10
	SUB 12, 10
	MVR 0, 5
	HALT
`)
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(100)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, cpu.Registers[5] == 13, "expected R5=13, got %d", cpu.Registers[5])
}

func TestCPUDivByZeroFaults(t *testing.T) {
	prog := mustLoad(t, `
	MVR i:0, 5
	MVR i:7, 6
	DIV 6, 5
`)
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(10)
	assert(t, outcome == Faulted, "expected Faulted, got %v", outcome)
	assert(t, f.Kind == DivByZero, "expected DivByZero, got %v", f.Kind)
}

func TestCPUDivSignedTruncation(t *testing.T) {
	prog := mustLoad(t, `
	MVR i:65529, 5
	MVR i:2, 6
	DIV 5, 6
	HALT
`)
	// 65529 as int16 is -7; -7/2 truncates toward zero to -3 (65533).
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(10)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, int16(cpu.Registers[0]) == -3, "expected quotient -3, got %d", int16(cpu.Registers[0]))
	assert(t, int16(cpu.Registers[1]) == -1, "expected remainder -1, got %d", int16(cpu.Registers[1]))
}

func TestCPURegisterOnlyInvariantEnforcedAtLoad(t *testing.T) {
	_, err := asm.Load("MVR i:1, i:2\n")
	assert(t, err != nil, "expected load-time error for immediate MVR destination")
}

func TestCPUKeyinDemo(t *testing.T) {
	// §8 scenario 3 verbatim: KEYIN writes to the RAM address given by its
	// (immediate) operand, not to a register.
	prog := mustLoad(t, `
	KEYIN i:0x1000
	KEYIN i:0x1001
	READ i:0x1000, 5
	READ i:0x1001, 6
	ADD 5, 6
	HALT
`)
	cpu := NewCPU(prog.Instructions)
	codes := []uint16{7, 4}
	i := 0
	cpu.KeySource = func() (uint16, bool) {
		if i >= len(codes) {
			return 0, false
		}
		v := codes[i]
		i++
		return v, true
	}
	outcome, f := cpu.Run(10)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, cpu.Registers[0] == 11, "expected R0=11, got %d", cpu.Registers[0])
	assert(t, cpu.Registers[5] == 7, "expected R5=7, got %d", cpu.Registers[5])
	assert(t, cpu.Registers[6] == 4, "expected R6=4, got %d", cpu.Registers[6])
	assert(t, cpu.RAM[0x1000] == 7, "expected RAM[0x1000]=7, got %d", cpu.RAM[0x1000])
	assert(t, cpu.RAM[0x1001] == 4, "expected RAM[0x1001]=4, got %d", cpu.RAM[0x1001])
}

func TestCPUSelectorRoundTrip(t *testing.T) {
	prog := mustLoad(t, `
	MVR i:0x00010001, GPU
	MVR GPU, 5
	HALT
`)
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(10)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, cpu.GPU.editBuffer == 1, "expected edit_buffer=1")
	assert(t, cpu.GPU.displayBuffer == 1, "expected display_buffer=1")
	assert(t, cpu.Registers[5] == 0x0001, "expected R5 to carry the low word of the selector, got %#x", cpu.Registers[5])
}

func TestCPUJbtUnsignedCompare(t *testing.T) {
	// §4.1: JBT t,x,y | if x>y (unsigned): PC=t else PC++. 0xFFFF > 1
	// unsigned, so the jump to "taken" fires and sets R5=1; falling through
	// would set R5=99 instead.
	prog := mustLoad(t, `
	MVR i:0xFFFF, 10
	MVR i:1, 11
	JBT taken, 10, 11
	MVR i:99, 5
	HALT
taken:
	MVR i:1, 5
	HALT
`)
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(10)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, cpu.Registers[5] == 1, "expected the unsigned-greater branch taken, R5=1, got %d", cpu.Registers[5])
}

func TestCPUJbtFallsThroughWhenNotGreater(t *testing.T) {
	prog := mustLoad(t, `
	MVR i:1, 10
	MVR i:1, 11
	JBT taken, 10, 11
	MVR i:99, 5
	HALT
taken:
	MVR i:1, 5
	HALT
`)
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(10)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, cpu.Registers[5] == 99, "expected fall-through when x is not > y, R5=99, got %d", cpu.Registers[5])
}

func TestCPUBadPCFaults(t *testing.T) {
	cpu := NewCPU(nil)
	outcome, f := cpu.Step()
	assert(t, outcome == Faulted, "expected Faulted, got %v", outcome)
	assert(t, f.Kind == BadPC, "expected BadPC, got %v", f.Kind)
}

func TestCPUJumpAndLink(t *testing.T) {
	prog := mustLoad(t, `
	JAL callee
	HALT
callee:
	MVR i:42, 7
	JMP 2
`)
	cpu := NewCPU(prog.Instructions)
	outcome, f := cpu.Run(10)
	assert(t, outcome == Halted, "expected Halted, got %v (%v)", outcome, f)
	assert(t, cpu.Registers[7] == 42, "expected callee to run, R7=42, got %d", cpu.Registers[7])
	assert(t, cpu.Registers[2] == 1, "expected R2 to hold return address 1, got %d", cpu.Registers[2])
}
