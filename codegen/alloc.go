// Package codegen lowers a type-checked mcl/ast.Program into MCL assembly
// text that mcl/asm.Load can parse, following the calling convention and
// register-allocation rules described in the specification (§3, §4.4).
package codegen

// allocator manages the R5-R31 general-purpose register pool for one
// function compilation (§3 "linear-scan register allocator... R0/R1 never
// bound to named vars, R3/R4 reserved as SP/FP only when needed").
//
// Two kinds of user draw from the same pool: named variables (bound for
// the lifetime of their scope, tracked in liveOrder so a call site can
// save and restore them) and expression temporaries (acquired and
// released within a single expression's lowering).
type allocator struct {
	free      []int
	liveOrder []int
}

const firstGeneralRegister = 5
const lastGeneralRegister = 31

func newAllocator() *allocator {
	a := &allocator{}
	for r := lastGeneralRegister; r >= firstGeneralRegister; r-- {
		a.free = append(a.free, r)
	}
	return a
}

// acquireTemp reserves a scratch register for one expression's lowering.
// ok is false when the pool is exhausted; callers treat that as a compile
// error rather than spilling mid-expression.
func (a *allocator) acquireTemp() (int, bool) {
	if len(a.free) == 0 {
		return 0, false
	}
	r := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	return r, true
}

func (a *allocator) releaseTemp(r int) {
	a.free = append(a.free, r)
}

// bindVar reserves a register for the lifetime of a variable's scope. When
// the pool is exhausted, ok is false and the caller falls back to a RAM
// binding (§3's "storage(register-or-RAM)" - the simple form of spilling
// this allocator performs: new bindings spill to RAM once registers run
// out, rather than evicting a live register mid-lifetime).
func (a *allocator) bindVar() (int, bool) {
	r, ok := a.acquireTemp()
	if !ok {
		return 0, false
	}
	a.liveOrder = append(a.liveOrder, r)
	return r, true
}

func (a *allocator) unbindVar(r int) {
	for i, v := range a.liveOrder {
		if v == r {
			a.liveOrder = append(a.liveOrder[:i], a.liveOrder[i+1:]...)
			break
		}
	}
	a.releaseTemp(r)
}

// liveVarRegs returns the registers currently bound to named variables, in
// binding order - what a call site must save and restore around a call
// (§3: every call clobbers the full register file, so this allocator
// conservatively protects everything live rather than computing exact
// interprocedural liveness).
func (a *allocator) liveVarRegs() []int {
	out := make([]int, len(a.liveOrder))
	copy(out, a.liveOrder)
	return out
}
