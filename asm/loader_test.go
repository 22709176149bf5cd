package asm

import (
	"errors"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestLoadSimpleProgram(t *testing.T) {
	src := `
start:
	MVR i:5, 5
	ADD 5, 5
	HALT
`
	prog, err := Load(src)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(prog.Instructions) == 3, "expected 3 instructions, got %d", len(prog.Instructions))
	assert(t, prog.Labels["start"] == 0, "expected label start at 0, got %d", prog.Labels["start"])
	assert(t, prog.Instructions[0].Op == OpMVR, "expected MVR, got %s", prog.Instructions[0].Op)
	assert(t, prog.Instructions[2].Op == OpHalt, "expected HALT, got %s", prog.Instructions[2].Op)
}

func TestLoadLabelReference(t *testing.T) {
	src := `
	JMP loop
loop:
	HALT
`
	prog, err := Load(src)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, prog.Instructions[0].Operands[0].Kind == OperandImmediate, "expected resolved label to be an immediate")
	assert(t, prog.Instructions[0].Operands[0].Value == 1, "expected label to resolve to instruction index 1, got %d", prog.Instructions[0].Operands[0].Value)
}

func TestLoadUndefinedLabel(t *testing.T) {
	_, err := Load("JMP nowhere\n")
	assert(t, errors.Is(err, ErrUndefinedLabel), "expected ErrUndefinedLabel, got %v", err)
}

func TestLoadRegisterOnlyInvariant(t *testing.T) {
	_, err := Load("NOT i:5\n")
	assert(t, errors.Is(err, ErrRegisterOnly), "expected ErrRegisterOnly, got %v", err)
}

func TestLoadRejectsLoadToGPU(t *testing.T) {
	_, err := Load("LOAD i:1, GPU\n")
	assert(t, errors.Is(err, ErrLoadToGPU), "expected ErrLoadToGPU, got %v", err)
}

func TestLoadWideImmediateOnlyForMVRSource(t *testing.T) {
	_, err := Load("MVR i:0x00010001, GPU\n")
	assert(t, err == nil, "expected wide immediate to GPU to be accepted, got %v", err)

	_, err = Load("ADD i:0x00010001, 5\n")
	assert(t, errors.Is(err, ErrImmediateTooLarge), "expected ErrImmediateTooLarge outside MVR's source slot, got %v", err)
}

func TestLoadBadRegister(t *testing.T) {
	_, err := Load("ADD 40, 5\n")
	assert(t, errors.Is(err, ErrBadRegister), "expected ErrBadRegister, got %v", err)
}

func TestLoadWrongOperandCount(t *testing.T) {
	_, err := Load("HALT 5\n")
	assert(t, errors.Is(err, ErrWrongOperandCount), "expected ErrWrongOperandCount, got %v", err)
}

func TestLoadErrorReportsLine(t *testing.T) {
	_, err := Load("MVR i:1, 5\nJMP nowhere\n")
	var loadErr *LoadError
	assert(t, errors.As(err, &loadErr), "expected *LoadError, got %T", err)
	assert(t, loadErr.Line == 2, "expected error on line 2, got %d", loadErr.Line)
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	src := "// a comment\n\n   ; another style\nHALT // trailing\n"
	prog, err := Load(src)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(prog.Instructions) == 1, "expected 1 instruction, got %d", len(prog.Instructions))
}

func TestInstructionString(t *testing.T) {
	ins := Instruction{Op: OpAdd, NumOps: 2, Operands: [4]Operand{RegOperand(5), ImmOperand(3)}}
	assert(t, ins.String() == "ADD 5, i:3", "unexpected rendering: %q", ins.String())
}
