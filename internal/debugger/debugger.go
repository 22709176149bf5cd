// Package debugger implements the interactive single-step REPL named in
// §6.4 ("--debug enters single-step mode"). Grounded on GVM's
// execProgramDebugMode: a command loop offering next/run/break, printing
// machine state after each step. Line editing and history use
// github.com/peterh/liner in place of the teacher's bare bufio.Reader,
// the richer line editor the rest of the example pack reaches for.
package debugger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"mcl/vm"
)

// REPL drives a vm.Host one instruction (or one breakpoint) at a time,
// printing registers and the current source line after each step.
type REPL struct {
	host   *vm.Host
	source []string
	line   *liner.State
}

// New builds a REPL over host. source is the original .mcl or .asm text,
// one string per line (source[0] is line 1), for the "current line"
// banner; nil disables it.
func New(host *vm.Host, source []string) *REPL {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	return &REPL{host: host, source: source, line: l}
}

func (r *REPL) Close() error {
	return r.line.Close()
}

// Run prints the startup banner and drives the command loop until the
// program halts, faults, or the user quits.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Println("Commands:\n\tn or next: execute next instruction\n\tr or run: run until breakpoint or halt\n\tb or break <line>: toggle breakpoint on line\n\treg: dump registers\n\tlist or program: print the loaded source\n\tq or quit: exit")
	r.printState()

	for {
		text, err := r.line.Prompt("-> ")
		if err != nil {
			return nil
		}
		r.line.AppendHistory(text)
		cmd := strings.ToLower(strings.TrimSpace(text))

		switch {
		case cmd == "n" || cmd == "next":
			outcome, fault := r.host.StepOne()
			r.printState()
			if done := r.reportIfDone(outcome, fault); done {
				return nil
			}
		case cmd == "r" || cmd == "run":
			outcome, fault := r.host.RunUntilBreak(ctx)
			fmt.Println("breakpoint or halt")
			r.printState()
			if done := r.reportIfDone(outcome, fault); done {
				return nil
			}
		case strings.HasPrefix(cmd, "b") || strings.HasPrefix(cmd, "break"):
			r.toggleBreak(cmd)
		case cmd == "reg" || cmd == "registers":
			r.printRegisters()
		case cmd == "list" || cmd == "program":
			r.printProgram()
		case cmd == "q" || cmd == "quit":
			return nil
		case cmd == "":
			// ignore blank lines
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

func (r *REPL) reportIfDone(outcome vm.Outcome, fault *vm.Fault) bool {
	if fault != nil {
		fmt.Println("fault:", fault)
		return true
	}
	if outcome == vm.Halted {
		fmt.Println("halted")
		return true
	}
	return false
}

func (r *REPL) toggleBreak(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) < 2 {
		fmt.Println("usage: break <line>")
		return
	}
	n, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		fmt.Println("unknown line number:", err)
		return
	}
	r.host.ToggleBreakpoint(uint32(n))
}

func (r *REPL) printState() {
	line := r.host.CurrentLine()
	if r.source != nil && line >= 1 && int(line) <= len(r.source) {
		fmt.Printf("%4d: %s\n", line, r.source[line-1])
	}
	r.printRegisters()
}

// printProgram lists every line of the loaded source text, GVM's
// PrintProgram rendered over whatever source text the caller handed us
// (MCL assembly text, since there is no .mcl-to-text disassembly step).
func (r *REPL) printProgram() {
	for i, line := range r.source {
		fmt.Printf("%d: %s\n", i, line)
	}
}

func (r *REPL) printRegisters() {
	for i := 0; i < 32; i += 8 {
		for j := i; j < i+8; j++ {
			fmt.Printf("R%-3d=%-6d", j, r.host.ReadRegister(j))
		}
		fmt.Println()
	}
}
