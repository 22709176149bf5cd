// Command mcl is the thin CLI driver named in §6.5: "compile" lowers an AST
// to assembly text, "run" loads assembly and drives a vm.Host to
// completion, either headless or through internal/display and
// internal/keyboard. Grounded on GVM's root main.go (single entry point,
// argument-count dispatch, `-debug` entering a single-step loop), rebuilt
// over two subcommands and github.com/pborman/getopt/v2 in place of
// GVM's flag.Bool, since neither subcommand's flags are a single boolean.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"mcl/asm"
	"mcl/ast"
	"mcl/codegen"
	"mcl/internal/debugger"
	"mcl/internal/display"
	"mcl/internal/keyboard"
	"mcl/vm"
)

// Exit codes named in §6.5: 0 success/HALT, 1 compile error, 2 load error,
// 3 runtime fault.
const (
	exitOK           = 0
	exitCompileError = 1
	exitLoadError    = 2
	exitRuntimeFault = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitCompileError)
	}

	var code int
	switch os.Args[1] {
	case "compile":
		code = runCompile(os.Args[2:])
	case "run":
		code = runRun(os.Args[2:])
	default:
		usage()
		code = exitCompileError
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  mcl compile <in.mcl> [-o out.asm] [--debug] [--validate-only]")
	fmt.Fprintln(os.Stderr, "  mcl run <in.asm> [--headless] [--scale N] [--debug]")
}

func runCompile(args []string) int {
	set := getopt.New()
	outPath := set.StringLong("output", 'o', "", "assembly output path (default stdout)")
	debugFlag := set.BoolLong("debug", 0, "print generator diagnostics to stderr")
	validateOnly := set.BoolLong("validate-only", 0, "load-check the generated assembly and exit")
	set.Parse(append([]string{"compile"}, args...))

	rest := set.Args()
	if len(rest) != 1 {
		usage()
		return exitCompileError
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile:", err)
		return exitCompileError
	}

	prog, err := ast.DecodeProgram(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile:", err)
		return exitCompileError
	}

	text, err := codegen.Generate(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile:", err)
		return exitCompileError
	}

	if *debugFlag {
		fmt.Fprintf(os.Stderr, "generated %d lines of assembly\n", strings.Count(text, "\n"))
	}

	if *validateOnly {
		if _, err := asm.Load(text); err != nil {
			fmt.Fprintln(os.Stderr, "compile:", err)
			return exitLoadError
		}
		fmt.Println("ok")
		return exitOK
	}

	if *outPath == "" {
		fmt.Print(text)
		return exitOK
	}
	if err := os.WriteFile(*outPath, []byte(text), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "compile:", err)
		return exitCompileError
	}
	return exitOK
}

func runRun(args []string) int {
	set := getopt.New()
	headless := set.BoolLong("headless", 0, "run without a display or interactive keyboard")
	scale := set.IntLong("scale", 0, 8, "display pixel scale")
	debugFlag := set.BoolLong("debug", 0, "enter single-step debug mode")
	set.Parse(append([]string{"run"}, args...))

	rest := set.Args()
	if len(rest) != 1 {
		usage()
		return exitLoadError
	}

	text, err := os.ReadFile(rest[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		return exitLoadError
	}

	prog, err := asm.Load(string(text))
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		return exitLoadError
	}

	cpu := vm.NewCPU(prog.Instructions)
	host := vm.NewHost(cpu, time.Millisecond, prog.SourceLineOf)

	var keys *keyboard.Source
	if *headless {
		cpu.KeySource = vm.StdinKeySource(stdinLineChan())
	} else {
		keys, err = keyboard.Open()
		if err != nil {
			fmt.Fprintln(os.Stderr, "run:", err)
			return exitLoadError
		}
		defer keys.Close()
		cpu.KeySource = vm.StdinKeySource(keys.Codes())
	}

	var window *display.Window
	if !*headless {
		window = display.NewWindow(*scale)
		host.OnDirty = window.SetFrame
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *debugFlag {
		sourceLines := strings.Split(string(text), "\n")
		repl := debugger.New(host, sourceLines)
		defer repl.Close()
		if err := repl.Run(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "run:", err)
			return exitRuntimeFault
		}
		return exitOK
	}

	if window != nil {
		go func() {
			outcome, fault := host.RunUntilBreak(ctx)
			reportOutcome(outcome, fault)
		}()
		if err := display.Run(window, "mcl"); err != nil {
			fmt.Fprintln(os.Stderr, "run:", err)
			return exitRuntimeFault
		}
		return exitOK
	}

	outcome, fault := host.RunUntilBreak(ctx)
	return reportOutcome(outcome, fault)
}

func reportOutcome(outcome vm.Outcome, fault *vm.Fault) int {
	if fault != nil {
		fmt.Fprintln(os.Stderr, "fault:", fault)
		return exitRuntimeFault
	}
	if outcome == vm.Halted {
		return exitOK
	}
	return exitOK
}

// stdinLineChan feeds raw stdin bytes to KEYIN in headless mode (§4.5: EOF
// surfaces as an orderly Halted, not a fault), translated through the same
// character table interactive mode uses.
func stdinLineChan() <-chan uint16 {
	out := make(chan uint16, 16)
	go func() {
		defer close(out)
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if code, ok := keyboard.CharCode(buf[0]); ok {
					out <- code
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}
