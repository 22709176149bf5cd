package vm

import (
	"context"
	"testing"
	"time"

	"mcl/asm"
)

func TestHostRunUntilBreakHitsBreakpoint(t *testing.T) {
	prog := mustLoad(t, `
	MVR i:1, 5
	MVR i:2, 5
	MVR i:3, 5
	HALT
`)
	cpu := NewCPU(prog.Instructions)
	host := NewHost(cpu, time.Millisecond, prog.SourceLineOf)
	host.SetBreakpoint(prog.SourceLineOf[2], true)

	outcome, f := host.RunUntilBreak(context.Background())
	assert(t, outcome == Running, "expected Running (breakpoint hit), got %v (%v)", outcome, f)
	assert(t, cpu.Registers[5] == 2, "expected to have stopped before the third MVR, R5=%d", cpu.Registers[5])
}

func TestHostRunUntilBreakRunsToHalt(t *testing.T) {
	prog := mustLoad(t, "HALT\n")
	cpu := NewCPU(prog.Instructions)
	host := NewHost(cpu, time.Millisecond, prog.SourceLineOf)

	outcome, _ := host.RunUntilBreak(context.Background())
	assert(t, outcome == Halted, "expected Halted, got %v", outcome)
}

func TestHostRunUntilBreakHonorsCancellation(t *testing.T) {
	prog := mustLoad(t, `
loop:
	JMP loop
`)
	cpu := NewCPU(prog.Instructions)
	host := NewHost(cpu, time.Millisecond, prog.SourceLineOf)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	outcome, f := host.RunUntilBreak(ctx)
	assert(t, outcome == Running, "expected Running on cancellation, got %v (%v)", outcome, f)
}

func TestStdinKeySourceSignalsEOF(t *testing.T) {
	ch := make(chan uint16)
	close(ch)
	src := StdinKeySource(ch)
	_, ok := src()
	assert(t, !ok, "expected ok=false on a closed channel")
}

func TestHostToggleBreakpointIsASwitch(t *testing.T) {
	prog := mustLoad(t, "HALT\n")
	cpu := NewCPU(prog.Instructions)
	host := NewHost(cpu, time.Millisecond, prog.SourceLineOf)

	line := prog.SourceLineOf[0]
	assert(t, !host.breakpoints[line], "expected no breakpoint initially")
	host.ToggleBreakpoint(line)
	assert(t, host.breakpoints[line], "expected ToggleBreakpoint to set the breakpoint")
	host.ToggleBreakpoint(line)
	assert(t, !host.breakpoints[line], "expected a second toggle to clear the breakpoint")
}

func TestHostCurrentLineMatchesPC(t *testing.T) {
	prog := mustLoad(t, "MVR i:1, 5\nHALT\n")
	cpu := NewCPU(prog.Instructions)
	host := NewHost(cpu, time.Millisecond, prog.SourceLineOf)
	assert(t, host.CurrentLine() == prog.SourceLineOf[0], "expected current line to track PC")
}

func TestOpAsmImported(t *testing.T) {
	// Sanity check that this package's tests can reach into asm without an
	// import cycle, since cpu.go depends on it directly.
	var _ asm.Opcode
}
