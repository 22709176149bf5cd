package codegen

import (
	"fmt"

	"mcl/ast"
)

var arithOpcodes = map[string]string{
	"+": "ADD", "-": "SUB", "*": "MULT", "/": "DIV",
	"&": "AND", "|": "OR", "^": "XOR", "<<": "SHL", ">>": "SHR",
}

// builtinOpcodes is the 1:1 lowering from a GPU builtin call's name to its
// instruction (§4.2, supplementing the spec with direct source-level
// access to the drawing primitives).
var builtinOpcodes = map[string]string{
	"drline": "DRLINE", "drgrd": "DRGRD", "clrgrid": "CLRGRID",
	"ldspr": "LDSPR", "drspr": "DRSPR", "ldtxt": "LDTXT", "drtxt": "DRTXT",
	"scrlbfr": "SCRLBFR",
}

// genExpr lowers an expression to a register holding its value. owned
// reports whether the caller must release the register once done with it:
// a fresh temporary is owned, a reference to a variable's own register
// (returned directly, not copied) is not.
func (g *Generator) genExpr(e ast.Expr) (reg int, owned bool, err error) {
	switch v := e.(type) {
	case *ast.IntLit:
		r, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR i:%d, %d", uint16(v.Value), r)
		return r, true, nil

	case *ast.CharLit:
		r, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR i:%d, %d", v.Value, r)
		return r, true, nil

	case *ast.Ident:
		sym, ok := g.syms.Lookup(v.Name)
		if !ok {
			return 0, false, fmt.Errorf("undefined identifier %q", v.Name)
		}
		if sym.Storage.InRegister {
			return sym.Storage.Register, false, nil
		}
		r, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("READ i:%d, %d", sym.Storage.Addr, r)
		return r, true, nil

	case *ast.BinOp:
		return g.genBinOp(v)

	case *ast.UnaryOp:
		return g.genUnaryOp(v)

	case *ast.IndexExpr:
		addrReg, owned, err := g.genIndexAddr(v)
		if err != nil {
			return 0, false, err
		}
		dst, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("READ %d, %d", addrReg, dst)
		if owned {
			g.alloc.releaseTemp(addrReg)
		}
		return dst, true, nil

	case *ast.CallExpr:
		return g.genCall(v)

	default:
		return 0, false, fmt.Errorf("unsupported expression %T", e)
	}
}

var errRegisterPoolExhausted = fmt.Errorf("register pool exhausted")

func (g *Generator) genBinOp(v *ast.BinOp) (int, bool, error) {
	switch v.Op {
	case "==", "!=", "<", ">", "<=", ">=":
		return g.genCompare(v.Op, v.Left, v.Right)
	case "&&", "||":
		return g.genLogical(v.Op, v.Left, v.Right)
	case "%":
		return g.genArith("DIV", v.Left, v.Right, 1)
	default:
		opcode, ok := arithOpcodes[v.Op]
		if !ok {
			return 0, false, fmt.Errorf("unsupported operator %q", v.Op)
		}
		return g.genArith(opcode, v.Left, v.Right, 0)
	}
}

// genArith evaluates left and right, emits opcode, and copies the ALU
// result register (0 for the primary result, 1 for DIV's remainder out of
// %) into a fresh temporary.
func (g *Generator) genArith(opcode string, left, right ast.Expr, resultSrc int) (int, bool, error) {
	lreg, lowned, err := g.genExpr(left)
	if err != nil {
		return 0, false, err
	}
	rreg, rowned, err := g.genExpr(right)
	if err != nil {
		return 0, false, err
	}
	g.emit("%s %d, %d", opcode, lreg, rreg)
	if lowned {
		g.alloc.releaseTemp(lreg)
	}
	if rowned {
		g.alloc.releaseTemp(rreg)
	}
	dst, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR %d, %d", resultSrc, dst)
	return dst, true, nil
}

// compareDecompose reduces the six comparison operators to the three the
// CPU can test directly (==, !=, and sign-of-difference for <), plus an
// operand swap and/or a result negation (§4.1: there is no dedicated
// compare instruction, only SUB's sign and zero behavior via JZ/JNZ/JBT).
func compareDecompose(op string) (base string, swap, negate bool) {
	switch op {
	case "==":
		return "==", false, false
	case "!=":
		return "!=", false, false
	case "<":
		return "<", false, false
	case ">":
		return "<", true, false
	case "<=":
		return "<", true, true
	case ">=":
		return "<", false, true
	default:
		return "", false, false
	}
}

func (g *Generator) genCompare(op string, left, right ast.Expr) (int, bool, error) {
	base, swap, negate := compareDecompose(op)
	lExpr, rExpr := left, right
	if swap {
		lExpr, rExpr = right, left
	}

	lreg, lowned, err := g.genExpr(lExpr)
	if err != nil {
		return 0, false, err
	}
	rreg, rowned, err := g.genExpr(rExpr)
	if err != nil {
		return 0, false, err
	}
	g.emit("SUB %d, %d", lreg, rreg)
	diff, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR %d, %d", 0, diff)
	if lowned {
		g.alloc.releaseTemp(lreg)
	}
	if rowned {
		g.alloc.releaseTemp(rreg)
	}

	resultReg, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	trueLabel := g.syms.NewLabel("true")
	endLabel := g.syms.NewLabel("end")

	switch base {
	case "==":
		g.emit("JZ %d, %s", diff, trueLabel)
	case "!=":
		g.emit("JNZ %d, %s", diff, trueLabel)
	case "<":
		// diff = lreg-rreg wraps mod 2^16; lreg<rreg iff diff is negative,
		// which as an unsigned 16-bit word lands above 0x7FFF - exactly
		// JBT's "x>y (unsigned)" test with diff as x and 0x7FFF as y (§4.1).
		g.emit("JBT %s, %d, i:0x7FFF", trueLabel, diff)
	}
	g.alloc.releaseTemp(diff)

	falseVal, trueVal := 0, 1
	if negate {
		falseVal, trueVal = 1, 0
	}
	g.emit("MVR i:%d, %d", falseVal, resultReg)
	g.emit("JMP %s", endLabel)
	g.emitLabel(trueLabel)
	g.emit("MVR i:%d, %d", trueVal, resultReg)
	g.emitLabel(endLabel)
	return resultReg, true, nil
}

func (g *Generator) genLogical(op string, left, right ast.Expr) (int, bool, error) {
	resultReg, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	lreg, lowned, err := g.genExpr(left)
	if err != nil {
		return 0, false, err
	}

	shortLabel := g.syms.NewLabel("short")
	endLabel := g.syms.NewLabel("end")
	if op == "&&" {
		g.emit("JZ %d, %s", lreg, shortLabel)
	} else {
		g.emit("JNZ %d, %s", lreg, shortLabel)
	}
	if lowned {
		g.alloc.releaseTemp(lreg)
	}

	rreg, rowned, err := g.genExpr(right)
	if err != nil {
		return 0, false, err
	}
	g.emit("MVR %d, %d", rreg, resultReg)
	if rowned {
		g.alloc.releaseTemp(rreg)
	}
	g.emit("JMP %s", endLabel)

	g.emitLabel(shortLabel)
	shortVal := 0
	if op == "||" {
		shortVal = 1
	}
	g.emit("MVR i:%d, %d", shortVal, resultReg)
	g.emitLabel(endLabel)
	return resultReg, true, nil
}

func (g *Generator) genUnaryOp(v *ast.UnaryOp) (int, bool, error) {
	switch v.Op {
	case "-":
		reg, owned, err := g.genExpr(v.X)
		if err != nil {
			return 0, false, err
		}
		zero, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR i:0, %d", zero)
		g.emit("SUB %d, %d", zero, reg)
		g.alloc.releaseTemp(zero)
		if owned {
			g.alloc.releaseTemp(reg)
		}
		dst, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR %d, %d", 0, dst)
		return dst, true, nil

	case "~":
		reg, owned, err := g.genExpr(v.X)
		if err != nil {
			return 0, false, err
		}
		g.emit("NOT %d", reg)
		if owned {
			g.alloc.releaseTemp(reg)
		}
		dst, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR %d, %d", 0, dst)
		return dst, true, nil

	case "!":
		reg, owned, err := g.genExpr(v.X)
		if err != nil {
			return 0, false, err
		}
		dst, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		trueLabel := g.syms.NewLabel("true")
		endLabel := g.syms.NewLabel("end")
		g.emit("JZ %d, %s", reg, trueLabel)
		if owned {
			g.alloc.releaseTemp(reg)
		}
		g.emit("MVR i:0, %d", dst)
		g.emit("JMP %s", endLabel)
		g.emitLabel(trueLabel)
		g.emit("MVR i:1, %d", dst)
		g.emitLabel(endLabel)
		return dst, true, nil

	case "@":
		ident, ok := v.X.(*ast.Ident)
		if !ok {
			return 0, false, fmt.Errorf("address-of requires a variable operand")
		}
		sym, ok := g.syms.Lookup(ident.Name)
		if !ok {
			return 0, false, fmt.Errorf("undefined identifier %q", ident.Name)
		}
		if sym.Storage.InRegister {
			return 0, false, fmt.Errorf("cannot take the address of register-resident variable %q", ident.Name)
		}
		dst, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR i:%d, %d", sym.Storage.Addr, dst)
		return dst, true, nil

	case "*":
		ptrReg, owned, err := g.genExpr(v.X)
		if err != nil {
			return 0, false, err
		}
		dst, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("READ %d, %d", ptrReg, dst)
		if owned {
			g.alloc.releaseTemp(ptrReg)
		}
		return dst, true, nil

	default:
		return 0, false, fmt.Errorf("unsupported unary operator %q", v.Op)
	}
}

// genIndexAddr computes the RAM address of arr[idx] into a fresh register:
// base (the array's compile-time RAM address) plus idx * elemSize (§3
// "T[N] ... RAM").
func (g *Generator) genIndexAddr(v *ast.IndexExpr) (int, bool, error) {
	ident, ok := v.Array.(*ast.Ident)
	if !ok {
		return 0, false, fmt.Errorf("index target must be a variable")
	}
	sym, ok := g.syms.Lookup(ident.Name)
	if !ok {
		return 0, false, fmt.Errorf("undefined identifier %q", ident.Name)
	}
	if sym.Storage.InRegister {
		return 0, false, fmt.Errorf("array %q must be RAM-resident", ident.Name)
	}
	elemSize := uint16(1)
	if sym.Type != nil && sym.Type.Elem != nil {
		elemSize = uint16(sym.Type.Elem.Size())
	}

	idxReg, idxOwned, err := g.genExpr(v.Index)
	if err != nil {
		return 0, false, err
	}
	if elemSize != 1 {
		g.emit("MULT %d, i:%d", idxReg, elemSize)
		scaled, ok := g.alloc.acquireTemp()
		if !ok {
			return 0, false, errRegisterPoolExhausted
		}
		g.emit("MVR %d, %d", 0, scaled)
		if idxOwned {
			g.alloc.releaseTemp(idxReg)
		}
		idxReg, idxOwned = scaled, true
	}
	g.emit("ADD %d, i:%d", idxReg, sym.Storage.Addr)
	addr, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR %d, %d", 0, addr)
	if idxOwned {
		g.alloc.releaseTemp(idxReg)
	}
	return addr, true, nil
}

// genAssign stores valReg into target's storage.
func (g *Generator) genAssign(target ast.Expr, valReg int) error {
	switch t := target.(type) {
	case *ast.Ident:
		sym, ok := g.syms.Lookup(t.Name)
		if !ok {
			return fmt.Errorf("undefined identifier %q", t.Name)
		}
		if !sym.Writable {
			return fmt.Errorf("%q is not assignable", t.Name)
		}
		if sym.Storage.InRegister {
			g.emit("MVR %d, %d", valReg, sym.Storage.Register)
		} else {
			g.emit("MVM %d, i:%d", valReg, sym.Storage.Addr)
		}
		return nil

	case *ast.IndexExpr:
		addrReg, owned, err := g.genIndexAddr(t)
		if err != nil {
			return err
		}
		g.emit("MVM %d, %d", valReg, addrReg)
		if owned {
			g.alloc.releaseTemp(addrReg)
		}
		return nil

	case *ast.UnaryOp:
		if t.Op != "*" {
			return fmt.Errorf("invalid assignment target")
		}
		ptrReg, owned, err := g.genExpr(t.X)
		if err != nil {
			return err
		}
		g.emit("MVM %d, %d", valReg, ptrReg)
		if owned {
			g.alloc.releaseTemp(ptrReg)
		}
		return nil

	default:
		return fmt.Errorf("invalid assignment target %T", target)
	}
}
