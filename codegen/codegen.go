package codegen

import (
	"fmt"
	"strings"

	"mcl/ast"
	"mcl/symtab"
	"mcl/types"
)

// stackPointer and linkRegister are the two registers the calling
// convention reserves outside the general pool (§3 "R2 link register,
// R3/R4 SW-convention SP/FP").
const (
	linkRegister  = 2
	stackPointer  = 3
	firstArgRegister = 4
	stackTop      = 0xFFFF
)

// Generator lowers an *ast.Program to MCL assembly text. One Generator is
// used for exactly one compile, matching the purity guarantee in the
// symtab package doc comment: same AST in, byte-identical assembly out.
type Generator struct {
	syms  *symtab.Table
	lines []string
	alloc *allocator

	// paramRegs holds the registers bound to the current function's
	// parameters, kept alongside the allocator's own live set so a call
	// site also protects them (§3 calling convention: "args in R4,R5,R6...").
	paramRegs []int

	breakTargets    []string
	continueTargets []string
}

// Generate lowers prog into assembly text ready for asm.Load.
func Generate(prog *ast.Program) (string, error) {
	g := &Generator{syms: symtab.New()}

	for _, f := range prog.Funcs {
		sym := &symtab.Symbol{
			Name:       f.Name,
			IsFunc:     true,
			Params:     paramTypes(f),
			ReturnType: f.ReturnType,
			Label:      "func_" + f.Name,
		}
		if err := g.syms.Declare(sym); err != nil {
			return "", fmt.Errorf("duplicate function %q", f.Name)
		}
	}

	mainSym, ok := g.syms.Lookup("main")
	if !ok {
		return "", fmt.Errorf("no main function declared")
	}

	g.emit("MVR i:%d, %d", stackTop, stackPointer)
	g.emit("JAL %s", mainSym.Label)
	g.emit("HALT")

	for _, f := range prog.Funcs {
		if err := g.genFunc(f); err != nil {
			return "", fmt.Errorf("function %s: %w", f.Name, err)
		}
	}

	return strings.Join(g.lines, "\n") + "\n", nil
}

func paramTypes(f *ast.FuncDecl) []*types.Type {
	out := make([]*types.Type, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}

func (g *Generator) emit(format string, args ...interface{}) {
	g.lines = append(g.lines, fmt.Sprintf(format, args...))
}

func (g *Generator) emitLabel(name string) {
	g.lines = append(g.lines, name+":")
}

func (g *Generator) genFunc(f *ast.FuncDecl) error {
	g.alloc = newAllocator()
	g.paramRegs = nil
	g.syms.PushScope()
	defer g.syms.PopScope()

	sym, _ := g.syms.Lookup(f.Name)
	g.emitLabel(sym.Label)

	for i, p := range f.Params {
		reg := firstArgRegister + i
		if reg > lastGeneralRegister {
			return fmt.Errorf("too many parameters for %q to hold in registers", f.Name)
		}
		if reg != firstArgRegister && !g.alloc.reserve(reg) {
			return fmt.Errorf("parameter registers exhausted in %q", f.Name)
		}
		if err := g.syms.Declare(&symtab.Symbol{
			Name:     p.Name,
			Type:     p.Type,
			Storage:  symtab.Storage{InRegister: true, Register: reg},
			Writable: true,
		}); err != nil {
			return err
		}
		g.paramRegs = append(g.paramRegs, reg)
	}

	if err := g.genBlock(f.Body); err != nil {
		return err
	}

	// Fall-through return for a void function whose body doesn't end in an
	// explicit return statement.
	g.emit("JMP %d", linkRegister)
	return nil
}

// reserve claims a specific register for a parameter binding (§4.4:
// parameters land in consecutive registers starting at R4, R4 itself
// outside the general pool).
func (a *allocator) reserve(r int) bool {
	for i, v := range a.free {
		if v == r {
			a.free = append(a.free[:i], a.free[i+1:]...)
			a.liveOrder = append(a.liveOrder, r)
			return true
		}
	}
	return false
}

// liveForSave is every register a call site must protect: the link
// register (always, since a nested call's JAL overwrites it) plus every
// currently bound parameter and local variable register (§3: a call
// clobbers the whole register file, so this is a conservative save-all
// policy rather than computed interprocedural liveness). paramRegs and the
// allocator's liveVarRegs overlap for every parameter past the first - R4
// is reserved outside the allocator, but R5 and up are both a paramRegs
// entry and a reserved allocator binding - so the result is deduplicated
// rather than pushed and popped twice per call.
func (g *Generator) liveForSave() []int {
	seen := map[int]bool{linkRegister: true}
	out := []int{linkRegister}
	for _, regs := range [][]int{g.paramRegs, g.alloc.liveVarRegs()} {
		for _, r := range regs {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func (g *Generator) genBlock(stmts []ast.Stmt) error {
	g.syms.PushScope()
	var declaredRegs []int

	for _, s := range stmts {
		if vd, ok := s.(*ast.VarDecl); ok {
			reg, isReg, err := g.genVarDecl(vd)
			if err != nil {
				g.syms.PopScope()
				return err
			}
			if isReg {
				declaredRegs = append(declaredRegs, reg)
			}
			continue
		}
		if err := g.genStmt(s); err != nil {
			g.syms.PopScope()
			return err
		}
	}

	for _, r := range declaredRegs {
		g.alloc.unbindVar(r)
	}
	g.syms.PopScope()
	return nil
}

func (g *Generator) genVarDecl(vd *ast.VarDecl) (reg int, isReg bool, err error) {
	sym := &symtab.Symbol{Name: vd.Name, Type: vd.Type, Writable: true}

	if r, ok := g.alloc.bindVar(); ok {
		sym.Storage = symtab.Storage{InRegister: true, Register: r}
		reg, isReg = r, true
	} else {
		addr := g.syms.Alloc(uint16(vd.Type.Size()))
		sym.Storage = symtab.Storage{InRegister: false, Addr: addr}
	}

	if err := g.syms.Declare(sym); err != nil {
		return 0, false, err
	}

	if vd.Init != nil {
		valReg, owned, err := g.genExpr(vd.Init)
		if err != nil {
			return 0, false, err
		}
		if err := g.genAssign(&ast.Ident{Name: vd.Name, Type: vd.Type}, valReg); err != nil {
			return 0, false, err
		}
		if owned {
			g.alloc.releaseTemp(valReg)
		}
	}

	return reg, isReg, nil
}

func (g *Generator) genStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.Assign:
		valReg, owned, err := g.genExpr(v.Value)
		if err != nil {
			return err
		}
		if err := g.genAssign(v.Target, valReg); err != nil {
			return err
		}
		if owned {
			g.alloc.releaseTemp(valReg)
		}
		return nil

	case *ast.ExprStmt:
		reg, owned, err := g.genExpr(v.X)
		if err != nil {
			return err
		}
		if owned {
			g.alloc.releaseTemp(reg)
		}
		return nil

	case *ast.ReturnStmt:
		if v.Value != nil {
			reg, owned, err := g.genExpr(v.Value)
			if err != nil {
				return err
			}
			g.emit("MVR %d, %d", reg, 0)
			if owned {
				g.alloc.releaseTemp(reg)
			}
		}
		g.emit("JMP %d", linkRegister)
		return nil

	case *ast.IfStmt:
		return g.genIf(v)

	case *ast.WhileStmt:
		return g.genWhile(v)

	case *ast.ForStmt:
		return g.genFor(v)

	case *ast.SwitchStmt:
		return g.genSwitch(v)

	case *ast.BreakStmt:
		if len(g.breakTargets) == 0 {
			return fmt.Errorf("break outside a loop or switch")
		}
		g.emit("JMP %s", g.breakTargets[len(g.breakTargets)-1])
		return nil

	case *ast.ContinueStmt:
		if len(g.continueTargets) == 0 {
			return fmt.Errorf("continue outside a loop")
		}
		g.emit("JMP %s", g.continueTargets[len(g.continueTargets)-1])
		return nil

	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
}

func (g *Generator) genIf(v *ast.IfStmt) error {
	condReg, owned, err := g.genExpr(v.Cond)
	if err != nil {
		return err
	}
	elseLabel := g.syms.NewLabel("false")
	endLabel := g.syms.NewLabel("end")

	target := endLabel
	if v.Else != nil {
		target = elseLabel
	}
	g.emit("JZ %d, %s", condReg, target)
	if owned {
		g.alloc.releaseTemp(condReg)
	}

	if err := g.genBlock(v.Then); err != nil {
		return err
	}
	if v.Else != nil {
		g.emit("JMP %s", endLabel)
		g.emitLabel(elseLabel)
		if err := g.genBlock(v.Else); err != nil {
			return err
		}
	}
	g.emitLabel(endLabel)
	return nil
}

func (g *Generator) genWhile(v *ast.WhileStmt) error {
	startLabel := g.syms.NewLabel("loop")
	endLabel := g.syms.NewLabel("end")

	g.breakTargets = append(g.breakTargets, endLabel)
	g.continueTargets = append(g.continueTargets, startLabel)
	defer g.popLoop()

	g.emitLabel(startLabel)
	condReg, owned, err := g.genExpr(v.Cond)
	if err != nil {
		return err
	}
	g.emit("JZ %d, %s", condReg, endLabel)
	if owned {
		g.alloc.releaseTemp(condReg)
	}
	if err := g.genBlock(v.Body); err != nil {
		return err
	}
	g.emit("JMP %s", startLabel)
	g.emitLabel(endLabel)
	return nil
}

func (g *Generator) genFor(v *ast.ForStmt) error {
	if v.Init != nil {
		if err := g.genStmt(v.Init); err != nil {
			return err
		}
	}

	startLabel := g.syms.NewLabel("loop")
	contLabel := g.syms.NewLabel("cont")
	endLabel := g.syms.NewLabel("end")

	g.breakTargets = append(g.breakTargets, endLabel)
	g.continueTargets = append(g.continueTargets, contLabel)
	defer g.popLoop()

	g.emitLabel(startLabel)
	if v.Cond != nil {
		condReg, owned, err := g.genExpr(v.Cond)
		if err != nil {
			return err
		}
		g.emit("JZ %d, %s", condReg, endLabel)
		if owned {
			g.alloc.releaseTemp(condReg)
		}
	}
	if err := g.genBlock(v.Body); err != nil {
		return err
	}
	g.emitLabel(contLabel)
	if v.Post != nil {
		if err := g.genStmt(v.Post); err != nil {
			return err
		}
	}
	g.emit("JMP %s", startLabel)
	g.emitLabel(endLabel)
	return nil
}

func (g *Generator) popLoop() {
	g.breakTargets = g.breakTargets[:len(g.breakTargets)-1]
	g.continueTargets = g.continueTargets[:len(g.continueTargets)-1]
}

// genSwitch lowers a switch to a chain of SUB+JZ comparisons followed by
// the case bodies laid out in source order with natural fallthrough
// (§4.4); a default clause is assumed last, the common style and a
// documented scope limitation for an otherwise-reorderable clause.
func (g *Generator) genSwitch(v *ast.SwitchStmt) error {
	tagReg, tagOwned, err := g.genExpr(v.Tag)
	if err != nil {
		return err
	}

	endLabel := g.syms.NewLabel("end")
	g.breakTargets = append(g.breakTargets, endLabel)
	defer func() { g.breakTargets = g.breakTargets[:len(g.breakTargets)-1] }()

	bodyLabels := make([]string, len(v.Cases))
	defaultIdx := -1
	for i, c := range v.Cases {
		bodyLabels[i] = g.syms.NewLabel("case")
		if c.Value == nil {
			defaultIdx = i
		}
	}

	for i, c := range v.Cases {
		if c.Value == nil {
			continue
		}
		valReg, valOwned, err := g.genExpr(c.Value)
		if err != nil {
			return err
		}
		g.emit("SUB %d, %d", tagReg, valReg)
		diff, ok := g.alloc.acquireTemp()
		if !ok {
			return fmt.Errorf("register pool exhausted lowering switch")
		}
		g.emit("MVR %d, %d", 0, diff)
		g.emit("JZ %d, %s", diff, bodyLabels[i])
		g.alloc.releaseTemp(diff)
		if valOwned {
			g.alloc.releaseTemp(valReg)
		}
	}
	if tagOwned {
		g.alloc.releaseTemp(tagReg)
	}
	if defaultIdx >= 0 {
		g.emit("JMP %s", bodyLabels[defaultIdx])
	} else {
		g.emit("JMP %s", endLabel)
	}

	for i, c := range v.Cases {
		g.emitLabel(bodyLabels[i])
		if err := g.genBlock(c.Body); err != nil {
			return err
		}
	}
	g.emitLabel(endLabel)
	return nil
}
