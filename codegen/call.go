package codegen

import (
	"fmt"

	"mcl/ast"
)

// genCall lowers a call expression: the malloc/free built-ins (§3's
// compile-time bump allocator), the GPU drawing built-ins (1:1 opcode
// lowering), or a user function call under the save/restore calling
// convention (§3, §4.4).
func (g *Generator) genCall(v *ast.CallExpr) (int, bool, error) {
	switch v.Callee {
	case "malloc":
		return g.genMalloc(v)
	case "free":
		return g.genFree(v)
	}
	if opcode, ok := builtinOpcodes[v.Callee]; ok {
		return g.genBuiltinCall(opcode, v)
	}
	return g.genUserCall(v)
}

// genMalloc requires a compile-time-constant size, consistent with the
// symbol table's bump-allocator heap cursor (§3 "A heap cursor is
// maintained at compile time for malloc(N)") - there is no runtime heap to
// allocate from.
func (g *Generator) genMalloc(v *ast.CallExpr) (int, bool, error) {
	if len(v.Args) != 1 {
		return 0, false, fmt.Errorf("malloc takes exactly one argument")
	}
	lit, ok := v.Args[0].(*ast.IntLit)
	if !ok {
		return 0, false, fmt.Errorf("malloc's argument must be a compile-time constant")
	}
	addr := g.syms.Alloc(uint16(lit.Value))
	dst, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR i:%d, %d", addr, dst)
	return dst, true, nil
}

// genFree releases nothing: the bump heap is never reclaimed (§9, §3 "free
// is a no-op" - a documented limitation, not a bug). The only code emitted
// is a single MVR i:0 giving the call expression the value 0; the argument
// is not evaluated.
func (g *Generator) genFree(v *ast.CallExpr) (int, bool, error) {
	dst, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR i:0, %d", dst)
	return dst, true, nil
}

func (g *Generator) genBuiltinCall(opcode string, v *ast.CallExpr) (int, bool, error) {
	regs := make([]int, len(v.Args))
	owned := make([]bool, len(v.Args))
	for i, a := range v.Args {
		r, o, err := g.genExpr(a)
		if err != nil {
			return 0, false, err
		}
		regs[i] = r
		owned[i] = o
	}

	switch len(regs) {
	case 2:
		g.emit("%s %d, %d", opcode, regs[0], regs[1])
	case 3:
		g.emit("%s %d, %d, %d", opcode, regs[0], regs[1], regs[2])
	case 4:
		g.emit("%s %d, %d, %d, %d", opcode, regs[0], regs[1], regs[2], regs[3])
	default:
		return 0, false, fmt.Errorf("%s takes 2-4 arguments, got %d", opcode, len(regs))
	}

	for i, r := range regs {
		if owned[i] {
			g.alloc.releaseTemp(r)
		}
	}

	dst, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR i:0, %d", dst)
	return dst, true, nil
}

// genUserCall evaluates every argument, saves every register the call
// might clobber, places arguments in R4,R5,R6,... (§3 calling convention),
// jumps, copies the R0 return value into a fresh temporary, then restores
// the saved registers in reverse push order.
func (g *Generator) genUserCall(v *ast.CallExpr) (int, bool, error) {
	sym, ok := g.syms.Lookup(v.Callee)
	if !ok || !sym.IsFunc {
		return 0, false, fmt.Errorf("undefined function %q", v.Callee)
	}
	if len(v.Args) != len(sym.Params) {
		return 0, false, fmt.Errorf("%s takes %d arguments, got %d", v.Callee, len(sym.Params), len(v.Args))
	}

	argRegs := make([]int, len(v.Args))
	argOwned := make([]bool, len(v.Args))
	for i, a := range v.Args {
		r, o, err := g.genExpr(a)
		if err != nil {
			return 0, false, err
		}
		argRegs[i] = r
		argOwned[i] = o
	}

	toSave := g.liveForSave()
	for _, r := range toSave {
		g.emit("SUB %d, i:1", stackPointer)
		g.emit("MVR %d, %d", 0, stackPointer)
		g.emit("MVM %d, %d", r, stackPointer)
	}

	for i, r := range argRegs {
		dst := firstArgRegister + i
		if dst > lastGeneralRegister {
			return 0, false, fmt.Errorf("too many arguments to %s to pass in registers", v.Callee)
		}
		g.emit("MVR %d, %d", r, dst)
	}
	for i, r := range argRegs {
		if argOwned[i] {
			g.alloc.releaseTemp(r)
		}
	}

	g.emit("JAL %s", sym.Label)

	// Copy the return value out of R0 before the restore sequence, whose
	// ADD overwrites R0.
	dst, ok := g.alloc.acquireTemp()
	if !ok {
		return 0, false, errRegisterPoolExhausted
	}
	g.emit("MVR %d, %d", 0, dst)

	for i := len(toSave) - 1; i >= 0; i-- {
		r := toSave[i]
		g.emit("READ %d, %d", stackPointer, r)
		g.emit("ADD %d, i:1", stackPointer)
		g.emit("MVR %d, %d", 0, stackPointer)
	}
	return dst, true, nil
}
