package vm

import (
	"errors"
	"fmt"

	"mcl/asm"
)

var (
	errDivByZero      = errors.New("division by zero")
	errInvalidOperand = errors.New("invalid operand")
	errOutOfRange     = errors.New("value out of range")
	errBadPC          = errors.New("program counter out of range")
)

const numRegisters = 32

// KeySource supplies the next key code for KEYIN (§4.5). It blocks until a
// key is available, an error, or the source is closed; ok is false on EOF
// or cancellation, which KEYIN surfaces as an orderly Halted outcome rather
// than a fault (§4.5 "EOF on stdin in headless mode is not a fault").
type KeySource func() (code uint16, ok bool)

// CPU is the register file, flat memory, program counter, and GPU unit
// that together execute one loaded program (§3 "CPU core").
type CPU struct {
	Registers [numRegisters]uint16
	RAM       [1 << 16]uint16
	PC        uint16

	GPU GPU

	Program []asm.Instruction

	// KeySource is consulted by KEYIN. A nil source makes KEYIN fault with
	// InvalidOperand, which only happens if a host wires up a CPU without
	// ever providing one.
	KeySource KeySource
}

// NewCPU loads program into a freshly zeroed CPU.
func NewCPU(program []asm.Instruction) *CPU {
	return &CPU{Program: program}
}

// Step executes exactly one instruction and reports what happened (§4.1
// "step() advances one instruction; returns one of {Running, Halted,
// Fault(kind)}"). On any outcome other than Running, PC is left pointing at
// the instruction that produced it.
func (c *CPU) Step() (Outcome, *Fault) {
	if int(c.PC) >= len(c.Program) {
		return Faulted, c.fault(BadPC, fmt.Errorf("%w: pc=%d, program has %d instructions", errBadPC, c.PC, len(c.Program)))
	}

	ins := c.Program[c.PC]
	nextPC := c.PC + 1

	switch ins.Op {
	case asm.OpLoad:
		dst, err := c.regIndex(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(InvalidOperand, err)
		}
		v, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		c.Registers[dst] = v

	case asm.OpRead:
		addr, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		dst, err := c.regIndex(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(InvalidOperand, err)
		}
		c.Registers[dst] = c.RAM[addr]

	case asm.OpMVR:
		v, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if ins.Operands[1].Kind == asm.OperandGPU {
			// Widen back to the immediate's full 32 bits when the source
			// was an immediate, so selector writes like MVR i:W, GPU keep
			// bits above 16 (§6.4).
			wide := uint32(v)
			if ins.Operands[0].Kind == asm.OperandImmediate {
				wide = ins.Operands[0].Value
			}
			c.GPU.WriteSelector(wide)
			break
		}
		dst, err := c.regIndex(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(InvalidOperand, err)
		}
		c.Registers[dst] = v

	case asm.OpMVM:
		v, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		addr, err := c.value(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		c.RAM[addr] = v

	case asm.OpAdd, asm.OpSub, asm.OpMult, asm.OpDiv,
		asm.OpAnd, asm.OpOr, asm.OpXor, asm.OpShl, asm.OpShr, asm.OpShlr:
		a, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		b, err := c.value(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if (ins.Op == asm.OpDiv) && b == 0 {
			return Faulted, c.fault(DivByZero, fmt.Errorf("%w", errDivByZero))
		}
		r0, r1 := arith(ins.Op, a, b)
		c.Registers[0] = r0
		c.Registers[1] = r1

	case asm.OpNot:
		reg, err := c.regIndex(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(InvalidOperand, err)
		}
		c.Registers[0] = ^c.Registers[reg]

	case asm.OpJmp:
		target, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		nextPC = uint16(target)

	case asm.OpJal:
		target, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		c.Registers[2] = nextPC
		nextPC = uint16(target)

	case asm.OpJz, asm.OpJnz:
		a, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		target, err := c.value(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		zero := a == 0
		if (ins.Op == asm.OpJz) == zero {
			nextPC = uint16(target)
		}

	case asm.OpJbt:
		target, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		x, err := c.value(ins.Operands[1])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		y, err := c.value(ins.Operands[2])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if uint16(x) > uint16(y) {
			nextPC = uint16(target)
		}

	case asm.OpKeyin:
		addr, err := c.value(ins.Operands[0])
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if c.KeySource == nil {
			return Faulted, c.fault(InvalidOperand, fmt.Errorf("%w: no key source attached", errInvalidOperand))
		}
		code, ok := c.KeySource()
		if !ok {
			return Halted, nil
		}
		c.RAM[uint16(addr)] = code

	case asm.OpHalt:
		return Halted, nil

	case asm.OpDrline:
		args, err := c.values4(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.DrawLine(int(args[0]), int(args[1]), int(args[2]), int(args[3])); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpDrgrd:
		args, err := c.values4(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.DrawGrid(int(args[0]), int(args[1]), int(args[2]), int(args[3])); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpClrgrid:
		args, err := c.values4(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.ClearGrid(int(args[0]), int(args[1]), int(args[2]), int(args[3])); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpLdspr:
		id, data, err := c.values2(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.LoadSprite(int(id), data); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpDrspr:
		id, x, y, err := c.values3(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.DrawSprite(int(id), int(x), int(y)); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpLdtxt:
		id, code, err := c.values2(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.LoadText(int(id), code); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpDrtxt:
		id, x, y, err := c.values3(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.DrawText(int(id), int(x), int(y)); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	case asm.OpScrlbfr:
		offx, offy, err := c.values2(ins)
		if err != nil {
			return Faulted, c.fault(kindOf(err), err)
		}
		if err := c.GPU.ScrollBuffer(int16(offx), int16(offy)); err != nil {
			return Faulted, c.fault(OutOfRange, err)
		}

	default:
		return Faulted, c.fault(InvalidOperand, fmt.Errorf("%w: unimplemented opcode %s", errInvalidOperand, ins.Op))
	}

	c.PC = nextPC
	return Running, nil
}

// Run steps the CPU until it halts or faults, up to maxSteps iterations (a
// host-side safety valve against runaway programs; the core itself has no
// concept of a step budget).
func (c *CPU) Run(maxSteps int) (Outcome, *Fault) {
	for i := 0; i < maxSteps; i++ {
		outcome, f := c.Step()
		if outcome != Running {
			return outcome, f
		}
	}
	return Running, nil
}

func (c *CPU) fault(kind FaultKind, err error) *Fault {
	text := "?"
	if int(c.PC) < len(c.Program) {
		text = c.Program[c.PC].String()
	}
	return &Fault{Kind: kind, PC: c.PC, Instruction: fmt.Sprintf("%s (%v)", text, err)}
}

// kindOf classifies an operand-resolution error into a FaultKind so callers
// deep in Step don't have to thread the kind alongside the error.
func kindOf(err error) FaultKind {
	switch {
	case errors.Is(err, errOutOfRange):
		return OutOfRange
	case errors.Is(err, errInvalidOperand):
		return InvalidOperand
	default:
		return InvalidOperand
	}
}

// regIndex resolves an operand that must name a register (§6.1's
// register-only positions).
func (c *CPU) regIndex(o asm.Operand) (int, error) {
	if o.Kind != asm.OperandRegister {
		return 0, fmt.Errorf("%w: expected register, got %s", errInvalidOperand, o)
	}
	if int(o.Value) >= numRegisters {
		return 0, fmt.Errorf("%w: register %d", errOutOfRange, o.Value)
	}
	return int(o.Value), nil
}

// value resolves an operand to its 16-bit runtime value: a register's
// contents, an immediate's literal value, or the GPU selector's low word
// (§4.1, §6.4).
func (c *CPU) value(o asm.Operand) (uint16, error) {
	switch o.Kind {
	case asm.OperandRegister:
		if int(o.Value) >= numRegisters {
			return 0, fmt.Errorf("%w: register %d", errOutOfRange, o.Value)
		}
		return c.Registers[o.Value], nil
	case asm.OperandImmediate:
		return uint16(o.Value), nil
	case asm.OperandGPU:
		return uint16(c.GPU.ReadSelector()), nil
	default:
		return 0, fmt.Errorf("%w: %s", errInvalidOperand, o)
	}
}

func (c *CPU) values2(ins asm.Instruction) (uint16, uint16, error) {
	a, err := c.value(ins.Operands[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := c.value(ins.Operands[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (c *CPU) values3(ins asm.Instruction) (uint16, uint16, uint16, error) {
	a, b, err := c.values2(ins)
	if err != nil {
		return 0, 0, 0, err
	}
	v, err := c.value(ins.Operands[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return a, b, v, nil
}

func (c *CPU) values4(ins asm.Instruction) ([4]uint16, error) {
	var out [4]uint16
	for i := 0; i < 4; i++ {
		v, err := c.value(ins.Operands[i])
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// arith computes the ALU result and secondary register for a two-operand
// arithmetic/bitwise/shift opcode (§3 "R0 ALU output, R1 secondary/
// remainder"). DIV truncates toward zero, C-style, per the resolved open
// question recorded in SPEC_FULL.md.
func arith(op asm.Opcode, a, b uint16) (r0, r1 uint16) {
	switch op {
	case asm.OpAdd:
		return a + b, 0
	case asm.OpSub:
		return a - b, 0
	case asm.OpMult:
		p := uint32(a) * uint32(b)
		return uint16(p), uint16(p >> 16)
	case asm.OpDiv:
		sa, sb := int16(a), int16(b)
		q := sa / sb
		r := sa % sb
		return uint16(q), uint16(r)
	case asm.OpAnd:
		return a & b, 0
	case asm.OpOr:
		return a | b, 0
	case asm.OpXor:
		return a ^ b, 0
	case asm.OpShl:
		return a << (b & 0xF), 0
	case asm.OpShr:
		return a >> (b & 0xF), 0
	case asm.OpShlr:
		n := b & 0xF
		return (a << n) | (a >> (16 - n)), 0
	default:
		return 0, 0
	}
}
