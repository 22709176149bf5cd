package ast

import "testing"

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestDecodeProgramSimpleReturn(t *testing.T) {
	src := `{
		"funcs": [
			{
				"name": "main",
				"return_type": {"kind": "int"},
				"body": [
					{"kind": "return", "value": {"kind": "int_lit", "value": 7, "type": {"kind": "int"}}}
				]
			}
		]
	}`
	prog, err := DecodeProgram([]byte(src))
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(prog.Funcs) == 1, "expected 1 func, got %d", len(prog.Funcs))
	assert(t, prog.Funcs[0].Name == "main", "expected main, got %s", prog.Funcs[0].Name)
	ret, ok := prog.Funcs[0].Body[0].(*ReturnStmt)
	assert(t, ok, "expected a ReturnStmt")
	lit, ok := ret.Value.(*IntLit)
	assert(t, ok, "expected an IntLit")
	assert(t, lit.Value == 7, "expected 7, got %d", lit.Value)
}

func TestDecodeProgramWhileLoop(t *testing.T) {
	src := `{
		"funcs": [
			{
				"name": "main",
				"return_type": {"kind": "int"},
				"body": [
					{"kind": "var_decl", "name": "i", "type": {"kind": "int"}, "init": {"kind": "int_lit", "value": 0, "type": {"kind": "int"}}},
					{"kind": "while",
					 "cond": {"kind": "binop", "op": "<", "left": {"kind": "ident", "name": "i", "type": {"kind": "int"}}, "right": {"kind": "int_lit", "value": 3, "type": {"kind": "int"}}, "type": {"kind": "int"}},
					 "body": [
						{"kind": "assign", "target": {"kind": "ident", "name": "i", "type": {"kind": "int"}}, "value": {"kind": "binop", "op": "+", "left": {"kind": "ident", "name": "i", "type": {"kind": "int"}}, "right": {"kind": "int_lit", "value": 1, "type": {"kind": "int"}}, "type": {"kind": "int"}}}
					 ]},
					{"kind": "return", "value": {"kind": "ident", "name": "i", "type": {"kind": "int"}}}
				]
			}
		]
	}`
	prog, err := DecodeProgram([]byte(src))
	assert(t, err == nil, "unexpected error: %v", err)
	body := prog.Funcs[0].Body
	assert(t, len(body) == 3, "expected 3 statements, got %d", len(body))
	ws, ok := body[1].(*WhileStmt)
	assert(t, ok, "expected a WhileStmt")
	assert(t, len(ws.Body) == 1, "expected 1 loop body statement, got %d", len(ws.Body))
}

func TestDecodeProgramRejectsUnknownKind(t *testing.T) {
	src := `{"funcs": [{"name": "main", "return_type": {"kind": "int"}, "body": [{"kind": "frobnicate"}]}]}`
	_, err := DecodeProgram([]byte(src))
	assert(t, err != nil, "expected an error for an unknown statement kind")
}
