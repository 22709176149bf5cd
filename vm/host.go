package vm

import (
	"context"
	"time"
)

// Breakpoints is a set of source lines (as recorded in asm.Program's
// SourceLineOf) at which RunUntilBreak should stop before executing.
type Breakpoints map[uint32]bool

// Host drives a CPU on a clock, the role the spec's design notes assign to
// a thin outer collaborator (§4.5, §9): the core itself has no concept of
// wall-clock time, breakpoints, or rendering, and the host never reaches
// into CPU state except between ticks.
type Host struct {
	CPU *CPU

	// Tick is the clock period; the spec allows 0.5Hz-1kHz (§4.5).
	Tick time.Duration

	// SourceLineOf lets RunUntilBreak translate PC to a source line for
	// breakpoint matching, mirroring asm.Program.SourceLineOf.
	SourceLineOf []uint32

	breakpoints Breakpoints

	// OnDirty is called after any tick that left the GPU dirty, so a
	// display collaborator knows to re-render (§4.5). It is optional.
	OnDirty func(snapshot [gpuHeight]uint32)
}

// NewHost wires a CPU to a clock period and an optional line table.
func NewHost(cpu *CPU, tick time.Duration, sourceLineOf []uint32) *Host {
	return &Host{
		CPU:          cpu,
		Tick:         tick,
		SourceLineOf: sourceLineOf,
		breakpoints:  make(Breakpoints),
	}
}

// SetBreakpoint sets (on=true) or clears (on=false) a breakpoint on a
// 1-based source line.
func (h *Host) SetBreakpoint(line uint32, on bool) {
	if on {
		h.breakpoints[line] = true
	} else {
		delete(h.breakpoints, line)
	}
}

func (h *Host) currentLine() uint32 {
	if int(h.CPU.PC) < len(h.SourceLineOf) {
		return h.SourceLineOf[h.CPU.PC]
	}
	return 0
}

// CurrentLine exposes the source line under the PC to a debugger
// collaborator (§4.5).
func (h *Host) CurrentLine() uint32 {
	return h.currentLine()
}

// ToggleBreakpoint flips a breakpoint on a source line, the REPL's "b" /
// "break <line>" command (mirrors GVM's execProgramDebugMode, which adds
// the line if absent and removes it if already set).
func (h *Host) ToggleBreakpoint(line uint32) {
	h.SetBreakpoint(line, !h.breakpoints[line])
}

// StepOne advances exactly one instruction, notifying OnDirty if the tick
// touched the display buffer.
func (h *Host) StepOne() (Outcome, *Fault) {
	h.CPU.GPU.Dirty = false
	outcome, f := h.CPU.Step()
	if h.CPU.GPU.Dirty && h.OnDirty != nil {
		h.OnDirty(h.CPU.GPU.Snapshot())
	}
	return outcome, f
}

// RunUntilBreak runs on the host's clock until a breakpoint line is hit,
// the program halts or faults, or ctx is cancelled. Cancellation surfaces
// as (Running, nil): the caller asked to stop, this is not a VM outcome.
func (h *Host) RunUntilBreak(ctx context.Context) (Outcome, *Fault) {
	ticker := time.NewTicker(h.Tick)
	defer ticker.Stop()

	// Always take the first step immediately rather than waiting a full
	// tick, so a single-instruction program under a slow clock still runs.
	first := true

	for {
		if !first {
			select {
			case <-ctx.Done():
				return Running, nil
			case <-ticker.C:
			}
		}
		first = false

		if h.breakpoints[h.currentLine()] {
			return Running, nil
		}

		outcome, f := h.StepOne()
		if outcome != Running {
			return outcome, f
		}
	}
}

// ReadRegister exposes register state to a debugger collaborator (§4.5).
func (h *Host) ReadRegister(idx int) uint16 {
	if idx < 0 || idx >= numRegisters {
		return 0
	}
	return h.CPU.Registers[idx]
}

// ReadRAM exposes RAM state to a debugger collaborator (§4.5).
func (h *Host) ReadRAM(addr uint16) uint16 {
	return h.CPU.RAM[addr]
}

// StdinKeySource adapts a blocking character-code channel (fed by internal/keyboard
// or a headless stdin reader) into a KeySource: ok is false once the
// channel is closed, which happens on EOF in headless mode (§4.5 "EOF on
// stdin in headless mode surfaces as an orderly Halted").
func StdinKeySource(codes <-chan uint16) KeySource {
	return func() (uint16, bool) {
		code, ok := <-codes
		return code, ok
	}
}
