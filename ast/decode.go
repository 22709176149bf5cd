package ast

import (
	"encoding/json"
	"fmt"

	"mcl/types"
)

// DecodeProgram reads the JSON AST format cmd/mcl's compile command accepts
// in place of MCL source text (§1 reaffirms the lexer/parser itself is a
// non-goal; this is the serialized stand-in a caller hands to codegen
// instead of hand-building a Program in Go, as the test suites do). Each
// node is an object tagged by "kind" naming one of the Stmt/Expr variants
// above; Type fields use the same tagged shape over types.Kind.
func DecodeProgram(data []byte) (*Program, error) {
	var raw struct {
		Funcs []json.RawMessage `json:"funcs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	prog := &Program{Funcs: make([]*FuncDecl, 0, len(raw.Funcs))}
	for _, fm := range raw.Funcs {
		fd, err := decodeFunc(fm)
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, fd)
	}
	return prog, nil
}

func decodeFunc(data json.RawMessage) (*FuncDecl, error) {
	var raw struct {
		Name       string            `json:"name"`
		Params     []json.RawMessage `json:"params"`
		ReturnType json.RawMessage   `json:"return_type"`
		Body       []json.RawMessage `json:"body"`
		Recursive  bool              `json:"recursive"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode func: %w", err)
	}
	rt, err := decodeType(raw.ReturnType)
	if err != nil {
		return nil, err
	}
	fd := &FuncDecl{Name: raw.Name, ReturnType: rt, Recursive: raw.Recursive}
	for _, pm := range raw.Params {
		var p struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(pm, &p); err != nil {
			return nil, fmt.Errorf("decode param: %w", err)
		}
		pt, err := decodeType(p.Type)
		if err != nil {
			return nil, err
		}
		fd.Params = append(fd.Params, Param{Name: p.Name, Type: pt})
	}
	for _, sm := range raw.Body {
		s, err := decodeStmt(sm)
		if err != nil {
			return nil, err
		}
		fd.Body = append(fd.Body, s)
	}
	return fd, nil
}

func decodeType(data json.RawMessage) (*types.Type, error) {
	if len(data) == 0 || string(data) == "null" {
		return types.VoidType, nil
	}
	var raw struct {
		Kind string          `json:"kind"`
		Elem json.RawMessage `json:"elem"`
		Len  int             `json:"len"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode type: %w", err)
	}
	switch raw.Kind {
	case "void", "":
		return types.VoidType, nil
	case "int":
		return types.IntType, nil
	case "char":
		return types.CharType, nil
	case "pointer":
		elem, err := decodeType(raw.Elem)
		if err != nil {
			return nil, err
		}
		return types.PointerTo(elem), nil
	case "array":
		elem, err := decodeType(raw.Elem)
		if err != nil {
			return nil, err
		}
		return types.ArrayOf(elem, raw.Len), nil
	default:
		return nil, fmt.Errorf("unknown type kind %q", raw.Kind)
	}
}

func decodeStmt(data json.RawMessage) (Stmt, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode stmt: %w", err)
	}
	switch head.Kind {
	case "var_decl":
		var raw struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
			Init json.RawMessage `json:"init"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		t, err := decodeType(raw.Type)
		if err != nil {
			return nil, err
		}
		init, err := decodeOptExpr(raw.Init)
		if err != nil {
			return nil, err
		}
		return &VarDecl{Name: raw.Name, Type: t, Init: init}, nil

	case "assign":
		var raw struct {
			Target json.RawMessage `json:"target"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		target, err := decodeExpr(raw.Target)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(raw.Value)
		if err != nil {
			return nil, err
		}
		return &Assign{Target: target, Value: value}, nil

	case "expr_stmt":
		var raw struct {
			X json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		x, err := decodeExpr(raw.X)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x}, nil

	case "return":
		var raw struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		v, err := decodeOptExpr(raw.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: v}, nil

	case "if":
		var raw struct {
			Cond json.RawMessage   `json:"cond"`
			Then []json.RawMessage `json:"then"`
			Else []json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		cond, err := decodeExpr(raw.Cond)
		if err != nil {
			return nil, err
		}
		thenStmts, err := decodeStmts(raw.Then)
		if err != nil {
			return nil, err
		}
		elseStmts, err := decodeStmts(raw.Else)
		if err != nil {
			return nil, err
		}
		return &IfStmt{Cond: cond, Then: thenStmts, Else: elseStmts}, nil

	case "while":
		var raw struct {
			Cond json.RawMessage   `json:"cond"`
			Body []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		cond, err := decodeExpr(raw.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(raw.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Cond: cond, Body: body}, nil

	case "for":
		var raw struct {
			Init json.RawMessage   `json:"init"`
			Cond json.RawMessage   `json:"cond"`
			Post json.RawMessage   `json:"post"`
			Body []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		init, err := decodeOptStmt(raw.Init)
		if err != nil {
			return nil, err
		}
		cond, err := decodeOptExpr(raw.Cond)
		if err != nil {
			return nil, err
		}
		post, err := decodeOptStmt(raw.Post)
		if err != nil {
			return nil, err
		}
		body, err := decodeStmts(raw.Body)
		if err != nil {
			return nil, err
		}
		return &ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil

	case "switch":
		var raw struct {
			Tag   json.RawMessage `json:"tag"`
			Cases []struct {
				Value json.RawMessage   `json:"value"`
				Body  []json.RawMessage `json:"body"`
			} `json:"cases"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		tag, err := decodeExpr(raw.Tag)
		if err != nil {
			return nil, err
		}
		sw := &SwitchStmt{Tag: tag}
		for _, c := range raw.Cases {
			v, err := decodeOptExpr(c.Value)
			if err != nil {
				return nil, err
			}
			body, err := decodeStmts(c.Body)
			if err != nil {
				return nil, err
			}
			sw.Cases = append(sw.Cases, CaseClause{Value: v, Body: body})
		}
		return sw, nil

	case "break":
		return &BreakStmt{}, nil
	case "continue":
		return &ContinueStmt{}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", head.Kind)
	}
}

func decodeStmts(raws []json.RawMessage) ([]Stmt, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]Stmt, 0, len(raws))
	for _, r := range raws {
		s, err := decodeStmt(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeOptStmt(data json.RawMessage) (Stmt, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	return decodeStmt(data)
}

func decodeOptExpr(data json.RawMessage) (Expr, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	return decodeExpr(data)
}

func decodeExpr(data json.RawMessage) (Expr, error) {
	var head struct {
		Kind string          `json:"kind"`
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode expr: %w", err)
	}
	t, err := decodeType(head.Type)
	if err != nil {
		return nil, err
	}

	switch head.Kind {
	case "int_lit":
		var raw struct {
			Value int32 `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return &IntLit{Value: raw.Value, Type: t}, nil

	case "char_lit":
		var raw struct {
			Value byte `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return &CharLit{Value: raw.Value, Type: t}, nil

	case "ident":
		var raw struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return &Ident{Name: raw.Name, Type: t}, nil

	case "binop":
		var raw struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		left, err := decodeExpr(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(raw.Right)
		if err != nil {
			return nil, err
		}
		return &BinOp{Op: raw.Op, Left: left, Right: right, Type: t}, nil

	case "unop":
		var raw struct {
			Op string          `json:"op"`
			X  json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		x, err := decodeExpr(raw.X)
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: raw.Op, X: x, Type: t}, nil

	case "index":
		var raw struct {
			Array json.RawMessage `json:"array"`
			Index json.RawMessage `json:"index"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		arr, err := decodeExpr(raw.Array)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpr(raw.Index)
		if err != nil {
			return nil, err
		}
		return &IndexExpr{Array: arr, Index: idx, Type: t}, nil

	case "call":
		var raw struct {
			Callee string            `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		call := &CallExpr{Callee: raw.Callee, Type: t}
		for _, a := range raw.Args {
			ae, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, ae)
		}
		return call, nil

	default:
		return nil, fmt.Errorf("unknown expression kind %q", head.Kind)
	}
}
