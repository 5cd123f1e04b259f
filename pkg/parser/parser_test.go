package parser

import (
	"testing"

	"github.com/iGentAI/ferrous/pkg/ast"
)

func parse(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	chunk, err := Parse(src, "test")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return chunk
}

func TestLocalAssign(t *testing.T) {
	chunk := parse(t, "local x, y = 1, 2")
	if len(chunk.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(chunk.Stmts))
	}
	stmt, ok := chunk.Stmts[0].(*ast.LocalAssignStmt)
	if !ok {
		t.Fatalf("expected *ast.LocalAssignStmt, got %T", chunk.Stmts[0])
	}
	if len(stmt.Names) != 2 || stmt.Names[0] != "x" || stmt.Names[1] != "y" {
		t.Fatalf("unexpected names: %+v", stmt.Names)
	}
	if len(stmt.Exprs) != 2 {
		t.Fatalf("expected 2 exprs, got %d", len(stmt.Exprs))
	}
}

func TestIfElseif(t *testing.T) {
	chunk := parse(t, `
		if x == 1 then
			return "a"
		elseif x == 2 then
			return "b"
		else
			return "c"
		end
	`)
	stmt, ok := chunk.Stmts[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", chunk.Stmts[0])
	}
	if len(stmt.Clauses) != 2 || stmt.Else == nil {
		t.Fatalf("expected 2 clauses + else, got %d clauses, else=%v", len(stmt.Clauses), stmt.Else)
	}
}

func TestNumericFor(t *testing.T) {
	chunk := parse(t, "for i = 1, 10, 2 do print(i) end")
	stmt, ok := chunk.Stmts[0].(*ast.NumericForStmt)
	if !ok {
		t.Fatalf("expected *ast.NumericForStmt, got %T", chunk.Stmts[0])
	}
	if stmt.Var != "i" || stmt.Step == nil {
		t.Fatalf("unexpected for-stmt: %+v", stmt)
	}
}

func TestGenericFor(t *testing.T) {
	chunk := parse(t, "for k, v in pairs(t) do end")
	stmt, ok := chunk.Stmts[0].(*ast.GenericForStmt)
	if !ok {
		t.Fatalf("expected *ast.GenericForStmt, got %T", chunk.Stmts[0])
	}
	if len(stmt.Names) != 2 {
		t.Fatalf("expected 2 loop vars, got %d", len(stmt.Names))
	}
}

func TestFunctionDeclAndMethod(t *testing.T) {
	chunk := parse(t, `
		function obj:method(a, b)
			return a + b
		end
	`)
	stmt, ok := chunk.Stmts[0].(*ast.FunctionDeclStmt)
	if !ok {
		t.Fatalf("expected *ast.FunctionDeclStmt, got %T", chunk.Stmts[0])
	}
	if !stmt.IsMethod {
		t.Fatalf("expected IsMethod=true")
	}
	if len(stmt.Func.Params) != 3 || stmt.Func.Params[0] != "self" {
		t.Fatalf("expected implicit self param, got %+v", stmt.Func.Params)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3)
	chunk := parse(t, "return 1 + 2 * 3")
	ret := chunk.Stmts[0].(*ast.ReturnStmt)
	bin := ret.Exprs[0].(*ast.BinaryExpr)
	if bin.Op != "+" {
		t.Fatalf("expected top-level '+', got %q", bin.Op)
	}
	rhs, ok := bin.Right.(*ast.BinaryExpr)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected rhs '*', got %+v", bin.Right)
	}
}

func TestConcatRightAssoc(t *testing.T) {
	// a .. b .. c should parse as a .. (b .. c)
	chunk := parse(t, `return a .. b .. c`)
	ret := chunk.Stmts[0].(*ast.ReturnStmt)
	bin := ret.Exprs[0].(*ast.BinaryExpr)
	if bin.Op != ".." {
		t.Fatalf("expected '..', got %q", bin.Op)
	}
	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected right-associative nesting, got %+v", bin.Right)
	}
	if _, ok := bin.Left.(*ast.NameExpr); !ok {
		t.Fatalf("expected left leaf to be a NameExpr, got %+v", bin.Left)
	}
}

func TestPowRightAssocAndUnaryBinding(t *testing.T) {
	// -2^2 == -(2^2)
	chunk := parse(t, "return -2^2")
	ret := chunk.Stmts[0].(*ast.ReturnStmt)
	un, ok := ret.Exprs[0].(*ast.UnaryExpr)
	if !ok || un.Op != "-" {
		t.Fatalf("expected top-level unary '-', got %+v", ret.Exprs[0])
	}
	if _, ok := un.Operand.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected '^' under unary minus, got %+v", un.Operand)
	}
}

func TestTableConstructor(t *testing.T) {
	chunk := parse(t, `return {1, 2, x = 3, [4+0] = "four"}`)
	ret := chunk.Stmts[0].(*ast.ReturnStmt)
	tbl := ret.Exprs[0].(*ast.TableExpr)
	if len(tbl.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(tbl.Fields))
	}
	if tbl.Fields[0].Key != nil {
		t.Fatalf("expected first field to be positional")
	}
	nameKey, ok := tbl.Fields[2].Key.(*ast.StringExpr)
	if !ok || nameKey.Value != "x" {
		t.Fatalf("expected field 2 key 'x', got %+v", tbl.Fields[2].Key)
	}
}

func TestMethodCallChain(t *testing.T) {
	chunk := parse(t, `a.b:c(1)["d"] = 2`)
	stmt, ok := chunk.Stmts[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected *ast.AssignStmt, got %T", chunk.Stmts[0])
	}
	idx, ok := stmt.Targets[0].(*ast.IndexExpr)
	if !ok {
		t.Fatalf("expected IndexExpr target, got %T", stmt.Targets[0])
	}
	call, ok := idx.Object.(*ast.CallExpr)
	if !ok || call.Method != "c" {
		t.Fatalf("expected method call 'c' nested inside index, got %+v", idx.Object)
	}
}

func TestLocalFunction(t *testing.T) {
	chunk := parse(t, "local function f(x) return x end")
	stmt, ok := chunk.Stmts[0].(*ast.FunctionDeclStmt)
	if !ok || !stmt.IsLocal || stmt.LocalName != "f" {
		t.Fatalf("unexpected local function decl: %+v", chunk.Stmts[0])
	}
}
