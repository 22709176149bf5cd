package codegen

import (
	"testing"

	"mcl/asm"
	"mcl/ast"
	"mcl/types"
	"mcl/vm"
)

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func intLit(n int32) *ast.IntLit { return &ast.IntLit{Value: n, Type: types.IntType} }
func ident(name string) *ast.Ident { return &ast.Ident{Name: name, Type: types.IntType} }

func runProgram(t *testing.T, prog *ast.Program) *vm.CPU {
	t.Helper()
	text, err := Generate(prog)
	assert(t, err == nil, "Generate failed: %v", err)

	loaded, err := asm.Load(text)
	assert(t, err == nil, "Load failed: %v\n--- generated ---\n%s", err, text)

	cpu := vm.NewCPU(loaded.Instructions)
	outcome, f := cpu.Run(100000)
	assert(t, outcome == vm.Halted, "expected Halted, got %v (%v)\n--- generated ---\n%s", outcome, f, text)
	return cpu
}

func TestCodegenArithmeticPrecedence(t *testing.T) {
	// 2 + 3 * 4 - 1
	expr := &ast.BinOp{
		Op: "-",
		Left: &ast.BinOp{
			Op:   "+",
			Left: intLit(2),
			Right: &ast.BinOp{
				Op: "*", Left: intLit(3), Right: intLit(4), Type: types.IntType,
			},
			Type: types.IntType,
		},
		Right: intLit(1),
		Type:  types.IntType,
	}
	prog := &ast.Program{Funcs: []*ast.FuncDecl{
		{Name: "main", ReturnType: types.IntType, Body: []ast.Stmt{&ast.ReturnStmt{Value: expr}}},
	}}
	cpu := runProgram(t, prog)
	assert(t, cpu.Registers[0] == 13, "expected R0=13, got %d", cpu.Registers[0])
}

func TestCodegenRecursiveFactorial(t *testing.T) {
	// func fact(n int) int { if (n <= 1) return 1; return n * fact(n-1); }
	// func main() int { return fact(5); }
	factBody := []ast.Stmt{
		&ast.IfStmt{
			Cond: &ast.BinOp{Op: "<=", Left: ident("n"), Right: intLit(1), Type: types.IntType},
			Then: []ast.Stmt{&ast.ReturnStmt{Value: intLit(1)}},
		},
		&ast.ReturnStmt{Value: &ast.BinOp{
			Op:   "*",
			Left: ident("n"),
			Right: &ast.CallExpr{
				Callee: "fact",
				Args: []ast.Expr{&ast.BinOp{
					Op: "-", Left: ident("n"), Right: intLit(1), Type: types.IntType,
				}},
				Type: types.IntType,
			},
			Type: types.IntType,
		}},
	}

	prog := &ast.Program{Funcs: []*ast.FuncDecl{
		{
			Name:       "fact",
			Params:     []ast.Param{{Name: "n", Type: types.IntType}},
			ReturnType: types.IntType,
			Body:       factBody,
			Recursive:  true,
		},
		{
			Name:       "main",
			ReturnType: types.IntType,
			Body:       []ast.Stmt{&ast.ReturnStmt{Value: &ast.CallExpr{Callee: "fact", Args: []ast.Expr{intLit(5)}, Type: types.IntType}}},
		},
	}}

	cpu := runProgram(t, prog)
	assert(t, cpu.Registers[0] == 120, "expected fact(5)=120, got %d", cpu.Registers[0])
}

func TestCodegenWhileLoop(t *testing.T) {
	// func main() int { int i = 0; int sum = 0; while (i < 5) { sum = sum + i; i = i + 1; } return sum; }
	body := []ast.Stmt{
		&ast.VarDecl{Name: "i", Type: types.IntType, Init: intLit(0)},
		&ast.VarDecl{Name: "sum", Type: types.IntType, Init: intLit(0)},
		&ast.WhileStmt{
			Cond: &ast.BinOp{Op: "<", Left: ident("i"), Right: intLit(5), Type: types.IntType},
			Body: []ast.Stmt{
				&ast.Assign{Target: ident("sum"), Value: &ast.BinOp{Op: "+", Left: ident("sum"), Right: ident("i"), Type: types.IntType}},
				&ast.Assign{Target: ident("i"), Value: &ast.BinOp{Op: "+", Left: ident("i"), Right: intLit(1), Type: types.IntType}},
			},
		},
		&ast.ReturnStmt{Value: ident("sum")},
	}
	prog := &ast.Program{Funcs: []*ast.FuncDecl{{Name: "main", ReturnType: types.IntType, Body: body}}}
	cpu := runProgram(t, prog)
	assert(t, cpu.Registers[0] == 10, "expected R0=10, got %d", cpu.Registers[0])
}
