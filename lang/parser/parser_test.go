// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package parser

import (
	"testing"

	"github.com/lumalang/luma/lang/ast"
	"github.com/lumalang/luma/lang/token"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// mustParse asserts that src parses without error and returns the chunk.
func mustParse(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	chunk, err := New("test.luma", src).ParseChunk()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return chunk
}

// parseWithError parses src and asserts it fails.
func parseWithError(t *testing.T, src string) error {
	t.Helper()
	_, err := New("test.luma", src).ParseChunk()
	if err == nil {
		t.Fatal("expected a parse error, got none")
	}
	return err
}

// oneStmt returns the sole statement of chunk, failing if there isn't
// exactly one.
func oneStmt(t *testing.T, chunk *ast.Chunk) ast.Statement {
	t.Helper()
	if len(chunk.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(chunk.Statements))
	}
	return chunk.Statements[0]
}

// ---------------------------------------------------------------------------
// Local declarations
// ---------------------------------------------------------------------------

func TestLocalStmtWithoutInitializer(t *testing.T) {
	chunk := mustParse(t, "local x")
	stmt, ok := oneStmt(t, chunk).(*ast.LocalStmt)
	if !ok {
		t.Fatalf("expected *ast.LocalStmt, got %T", oneStmt(t, chunk))
	}
	if len(stmt.Names) != 1 || stmt.Names[0] != "x" {
		t.Errorf("names = %v, want [x]", stmt.Names)
	}
	if len(stmt.Exprs) != 0 {
		t.Errorf("exprs = %v, want none", stmt.Exprs)
	}
}

func TestLocalStmtMultipleNamesAndValues(t *testing.T) {
	chunk := mustParse(t, "local a, b, c = 1, 2, 3")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	if got, want := stmt.Names, []string{"a", "b", "c"}; !stringSliceEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	if len(stmt.Exprs) != 3 {
		t.Fatalf("expected 3 initializers, got %d", len(stmt.Exprs))
	}
	for i, want := range []float64{1, 2, 3} {
		n, ok := stmt.Exprs[i].(*ast.NumberExpr)
		if !ok || n.Value != want {
			t.Errorf("expr[%d] = %#v, want NumberExpr(%v)", i, stmt.Exprs[i], want)
		}
	}
}

func TestLocalFunctionStmt(t *testing.T) {
	chunk := mustParse(t, "local function f(a, b) return a end")
	stmt, ok := oneStmt(t, chunk).(*ast.LocalFuncStmt)
	if !ok {
		t.Fatalf("expected *ast.LocalFuncStmt, got %T", oneStmt(t, chunk))
	}
	if stmt.Name != "f" {
		t.Errorf("name = %q, want f", stmt.Name)
	}
	if got, want := stmt.Fn.Params, []string{"a", "b"}; !stringSliceEqual(got, want) {
		t.Errorf("params = %v, want %v", got, want)
	}
}

// ---------------------------------------------------------------------------
// Assignment and call statements
// ---------------------------------------------------------------------------

func TestSimpleAssignment(t *testing.T) {
	chunk := mustParse(t, "x = 1")
	stmt, ok := oneStmt(t, chunk).(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected *ast.AssignStmt, got %T", oneStmt(t, chunk))
	}
	if len(stmt.Targets) != 1 || len(stmt.Exprs) != 1 {
		t.Errorf("targets=%v exprs=%v", stmt.Targets, stmt.Exprs)
	}
}

func TestMultipleAssignment(t *testing.T) {
	chunk := mustParse(t, "a, b = b, a")
	stmt := oneStmt(t, chunk).(*ast.AssignStmt)
	if len(stmt.Targets) != 2 || len(stmt.Exprs) != 2 {
		t.Errorf("expected 2 targets and 2 exprs, got %d and %d", len(stmt.Targets), len(stmt.Exprs))
	}
}

func TestFieldAssignment(t *testing.T) {
	chunk := mustParse(t, "t.x = 1")
	stmt := oneStmt(t, chunk).(*ast.AssignStmt)
	field, ok := stmt.Targets[0].(*ast.FieldExpr)
	if !ok {
		t.Fatalf("expected *ast.FieldExpr target, got %T", stmt.Targets[0])
	}
	key, ok := field.Key.(*ast.StringExpr)
	if !ok || key.Value != "x" {
		t.Errorf("field key = %#v, want StringExpr(x)", field.Key)
	}
}

func TestIndexAssignment(t *testing.T) {
	chunk := mustParse(t, "t[1] = 2")
	stmt := oneStmt(t, chunk).(*ast.AssignStmt)
	field, ok := stmt.Targets[0].(*ast.FieldExpr)
	if !ok {
		t.Fatalf("expected *ast.FieldExpr target, got %T", stmt.Targets[0])
	}
	if _, ok := field.Key.(*ast.NumberExpr); !ok {
		t.Errorf("field key = %#v, want NumberExpr", field.Key)
	}
}

func TestCallStatement(t *testing.T) {
	chunk := mustParse(t, "print(1, 2)")
	stmt, ok := oneStmt(t, chunk).(*ast.CallStmt)
	if !ok {
		t.Fatalf("expected *ast.CallStmt, got %T", oneStmt(t, chunk))
	}
	if len(stmt.Call.Args) != 2 {
		t.Errorf("expected 2 args, got %d", len(stmt.Call.Args))
	}
}

func TestMethodCallStatement(t *testing.T) {
	chunk := mustParse(t, "obj:method(1)")
	stmt := oneStmt(t, chunk).(*ast.CallStmt)
	if stmt.Call.Method != "method" {
		t.Errorf("method = %q, want method", stmt.Call.Method)
	}
}

func TestBareExpressionIsNotAValidStatement(t *testing.T) {
	parseWithError(t, "1 + 1")
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestDoBlock(t *testing.T) {
	chunk := mustParse(t, "do local x = 1 end")
	stmt, ok := oneStmt(t, chunk).(*ast.DoStmt)
	if !ok {
		t.Fatalf("expected *ast.DoStmt, got %T", oneStmt(t, chunk))
	}
	if len(stmt.Body) != 1 {
		t.Errorf("expected 1 body statement, got %d", len(stmt.Body))
	}
}

func TestWhileLoop(t *testing.T) {
	chunk := mustParse(t, "while true do break end")
	stmt, ok := oneStmt(t, chunk).(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected *ast.WhileStmt, got %T", oneStmt(t, chunk))
	}
	if _, ok := stmt.Cond.(*ast.BoolExpr); !ok {
		t.Errorf("cond = %#v, want BoolExpr", stmt.Cond)
	}
	if len(stmt.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(stmt.Body))
	}
	if _, ok := stmt.Body[0].(*ast.BreakStmt); !ok {
		t.Errorf("body[0] = %#v, want BreakStmt", stmt.Body[0])
	}
}

func TestRepeatUntilLoop(t *testing.T) {
	chunk := mustParse(t, "repeat x = x + 1 until x > 10")
	stmt, ok := oneStmt(t, chunk).(*ast.RepeatStmt)
	if !ok {
		t.Fatalf("expected *ast.RepeatStmt, got %T", oneStmt(t, chunk))
	}
	if _, ok := stmt.Cond.(*ast.BinaryExpr); !ok {
		t.Errorf("cond = %#v, want BinaryExpr", stmt.Cond)
	}
}

func TestIfElseifElse(t *testing.T) {
	chunk := mustParse(t, `
if a then
    b = 1
elseif c then
    b = 2
else
    b = 3
end`)
	stmt, ok := oneStmt(t, chunk).(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", oneStmt(t, chunk))
	}
	if len(stmt.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(stmt.Clauses))
	}
	if len(stmt.Else) != 1 {
		t.Errorf("expected 1 else statement, got %d", len(stmt.Else))
	}
}

func TestIfWithoutElse(t *testing.T) {
	chunk := mustParse(t, "if a then b = 1 end")
	stmt := oneStmt(t, chunk).(*ast.IfStmt)
	if stmt.Else != nil {
		t.Errorf("expected no else clause, got %v", stmt.Else)
	}
}

func TestNumericForLoop(t *testing.T) {
	chunk := mustParse(t, "for i = 1, 10 do end")
	stmt, ok := oneStmt(t, chunk).(*ast.NumForStmt)
	if !ok {
		t.Fatalf("expected *ast.NumForStmt, got %T", oneStmt(t, chunk))
	}
	if stmt.Name != "i" {
		t.Errorf("name = %q, want i", stmt.Name)
	}
	if stmt.Step != nil {
		t.Errorf("expected no step, got %#v", stmt.Step)
	}
}

func TestNumericForLoopWithStep(t *testing.T) {
	chunk := mustParse(t, "for i = 1, 10, 2 do end")
	stmt := oneStmt(t, chunk).(*ast.NumForStmt)
	if stmt.Step == nil {
		t.Fatal("expected a step expression")
	}
}

func TestGenericForLoop(t *testing.T) {
	chunk := mustParse(t, "for k, v in pairs(t) do end")
	stmt, ok := oneStmt(t, chunk).(*ast.GenForStmt)
	if !ok {
		t.Fatalf("expected *ast.GenForStmt, got %T", oneStmt(t, chunk))
	}
	if got, want := stmt.Names, []string{"k", "v"}; !stringSliceEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	if len(stmt.Exprs) != 1 {
		t.Errorf("expected 1 iterator expression, got %d", len(stmt.Exprs))
	}
}

func TestBreakStatement(t *testing.T) {
	chunk := mustParse(t, "while true do break end")
	stmt := oneStmt(t, chunk).(*ast.WhileStmt)
	if _, ok := stmt.Body[0].(*ast.BreakStmt); !ok {
		t.Errorf("expected BreakStmt, got %#v", stmt.Body[0])
	}
}

// ---------------------------------------------------------------------------
// Function declarations
// ---------------------------------------------------------------------------

func TestFunctionStmtSimpleName(t *testing.T) {
	chunk := mustParse(t, "function f(a, b) return a + b end")
	stmt, ok := oneStmt(t, chunk).(*ast.FuncStmt)
	if !ok {
		t.Fatalf("expected *ast.FuncStmt, got %T", oneStmt(t, chunk))
	}
	ident, ok := stmt.Target.(*ast.Identifier)
	if !ok || ident.Name != "f" {
		t.Errorf("target = %#v, want Identifier(f)", stmt.Target)
	}
	if stmt.Method {
		t.Error("expected Method = false")
	}
}

func TestFunctionStmtDottedName(t *testing.T) {
	chunk := mustParse(t, "function t.a.b() end")
	stmt := oneStmt(t, chunk).(*ast.FuncStmt)
	field, ok := stmt.Target.(*ast.FieldExpr)
	if !ok {
		t.Fatalf("expected *ast.FieldExpr target, got %T", stmt.Target)
	}
	key := field.Key.(*ast.StringExpr)
	if key.Value != "b" {
		t.Errorf("outer key = %q, want b", key.Value)
	}
}

func TestFunctionStmtMethodName(t *testing.T) {
	chunk := mustParse(t, "function account:deposit(amount) end")
	stmt := oneStmt(t, chunk).(*ast.FuncStmt)
	if !stmt.Method {
		t.Error("expected Method = true")
	}
	field, ok := stmt.Target.(*ast.FieldExpr)
	if !ok {
		t.Fatalf("expected *ast.FieldExpr target, got %T", stmt.Target)
	}
	key := field.Key.(*ast.StringExpr)
	if key.Value != "deposit" {
		t.Errorf("key = %q, want deposit", key.Value)
	}
}

func TestFunctionExprVararg(t *testing.T) {
	chunk := mustParse(t, "local f = function(...) end")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	fn, ok := stmt.Exprs[0].(*ast.FuncExpr)
	if !ok {
		t.Fatalf("expected *ast.FuncExpr, got %T", stmt.Exprs[0])
	}
	if !fn.IsVararg {
		t.Error("expected IsVararg = true")
	}
}

func TestReturnStatement(t *testing.T) {
	chunk := mustParse(t, "function f() return 1, 2 end")
	stmt := oneStmt(t, chunk).(*ast.FuncStmt)
	if len(stmt.Fn.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(stmt.Fn.Body))
	}
	ret, ok := stmt.Fn.Body[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected *ast.ReturnStmt, got %T", stmt.Fn.Body[0])
	}
	if len(ret.Exprs) != 2 {
		t.Errorf("expected 2 return values, got %d", len(ret.Exprs))
	}
}

func TestReturnWithNoValues(t *testing.T) {
	chunk := mustParse(t, "function f() return end")
	stmt := oneStmt(t, chunk).(*ast.FuncStmt)
	ret := stmt.Fn.Body[0].(*ast.ReturnStmt)
	if ret.Exprs != nil {
		t.Errorf("expected no return values, got %v", ret.Exprs)
	}
}

// ---------------------------------------------------------------------------
// Expressions: literals
// ---------------------------------------------------------------------------

func TestNilLiteral(t *testing.T) {
	chunk := mustParse(t, "local x = nil")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	if _, ok := stmt.Exprs[0].(*ast.NilExpr); !ok {
		t.Errorf("expected NilExpr, got %#v", stmt.Exprs[0])
	}
}

func TestBoolLiterals(t *testing.T) {
	chunk := mustParse(t, "local a, b = true, false")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	tv, ok := stmt.Exprs[0].(*ast.BoolExpr)
	if !ok || !tv.Value {
		t.Errorf("exprs[0] = %#v, want BoolExpr(true)", stmt.Exprs[0])
	}
	fv, ok := stmt.Exprs[1].(*ast.BoolExpr)
	if !ok || fv.Value {
		t.Errorf("exprs[1] = %#v, want BoolExpr(false)", stmt.Exprs[1])
	}
}

func TestNumberLiteral(t *testing.T) {
	chunk := mustParse(t, "local x = 3.5")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	n, ok := stmt.Exprs[0].(*ast.NumberExpr)
	if !ok || n.Value != 3.5 {
		t.Errorf("exprs[0] = %#v, want NumberExpr(3.5)", stmt.Exprs[0])
	}
}

func TestHexNumberLiteral(t *testing.T) {
	chunk := mustParse(t, "local x = 0xFF")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	n := stmt.Exprs[0].(*ast.NumberExpr)
	if n.Value != 255 {
		t.Errorf("value = %v, want 255", n.Value)
	}
}

func TestStringLiteral(t *testing.T) {
	chunk := mustParse(t, `local s = "hello"`)
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	s, ok := stmt.Exprs[0].(*ast.StringExpr)
	if !ok || s.Value != "hello" {
		t.Errorf("exprs[0] = %#v, want StringExpr(hello)", stmt.Exprs[0])
	}
}

func TestVarargExpr(t *testing.T) {
	chunk := mustParse(t, "function f(...) local a = ... end")
	stmt := oneStmt(t, chunk).(*ast.FuncStmt)
	local := stmt.Fn.Body[0].(*ast.LocalStmt)
	if _, ok := local.Exprs[0].(*ast.VarargExpr); !ok {
		t.Errorf("expected VarargExpr, got %#v", local.Exprs[0])
	}
}

func TestTableConstructorEmpty(t *testing.T) {
	chunk := mustParse(t, "local t = {}")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	table, ok := stmt.Exprs[0].(*ast.TableExpr)
	if !ok {
		t.Fatalf("expected *ast.TableExpr, got %T", stmt.Exprs[0])
	}
	if len(table.Fields) != 0 {
		t.Errorf("expected no fields, got %d", len(table.Fields))
	}
}

func TestTableConstructorMixed(t *testing.T) {
	chunk := mustParse(t, `local t = {1, 2, x = 3, [4] = 5}`)
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	table := stmt.Exprs[0].(*ast.TableExpr)
	if len(table.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(table.Fields))
	}
	if table.Fields[0].Key != nil {
		t.Errorf("field[0] key = %#v, want nil (positional)", table.Fields[0].Key)
	}
	xkey, ok := table.Fields[2].Key.(*ast.StringExpr)
	if !ok || xkey.Value != "x" {
		t.Errorf("field[2] key = %#v, want StringExpr(x)", table.Fields[2].Key)
	}
	if _, ok := table.Fields[3].Key.(*ast.NumberExpr); !ok {
		t.Errorf("field[3] key = %#v, want NumberExpr", table.Fields[3].Key)
	}
}

// ---------------------------------------------------------------------------
// Expressions: operators and precedence
// ---------------------------------------------------------------------------

func TestBinaryArithmeticPrecedence(t *testing.T) {
	// '*' binds tighter than '+': 1 + 2 * 3 == 1 + (2 * 3)
	chunk := mustParse(t, "local x = 1 + 2 * 3")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	add, ok := stmt.Exprs[0].(*ast.BinaryExpr)
	if !ok || add.Op != token.PLUS {
		t.Fatalf("expected top-level PLUS, got %#v", stmt.Exprs[0])
	}
	mul, ok := add.Right.(*ast.BinaryExpr)
	if !ok || mul.Op != token.STAR {
		t.Errorf("right operand = %#v, want STAR BinaryExpr", add.Right)
	}
}

func TestExponentiationIsRightAssociative(t *testing.T) {
	// 2 ^ 3 ^ 2 == 2 ^ (3 ^ 2)
	chunk := mustParse(t, "local x = 2 ^ 3 ^ 2")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	outer := stmt.Exprs[0].(*ast.BinaryExpr)
	if outer.Op != token.CARET {
		t.Fatalf("expected CARET, got %s", outer.Op)
	}
	if _, ok := outer.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("right should itself be a BinaryExpr for right-assoc ^, got %#v", outer.Right)
	}
	if _, ok := outer.Left.(*ast.NumberExpr); !ok {
		t.Errorf("left should be NumberExpr, got %#v", outer.Left)
	}
}

func TestConcatIsRightAssociative(t *testing.T) {
	chunk := mustParse(t, `local x = "a" .. "b" .. "c"`)
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	outer := stmt.Exprs[0].(*ast.BinaryExpr)
	if outer.Op != token.DOTDOT {
		t.Fatalf("expected DOTDOT, got %s", outer.Op)
	}
	if _, ok := outer.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("right should be BinaryExpr for right-assoc .., got %#v", outer.Right)
	}
}

func TestUnaryMinus(t *testing.T) {
	chunk := mustParse(t, "local x = -5")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	u, ok := stmt.Exprs[0].(*ast.UnaryExpr)
	if !ok || u.Op != token.MINUS {
		t.Fatalf("expected unary MINUS, got %#v", stmt.Exprs[0])
	}
}

func TestUnaryNot(t *testing.T) {
	chunk := mustParse(t, "local x = not true")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	u, ok := stmt.Exprs[0].(*ast.UnaryExpr)
	if !ok || u.Op != token.NOT {
		t.Fatalf("expected unary NOT, got %#v", stmt.Exprs[0])
	}
}

func TestUnaryLength(t *testing.T) {
	chunk := mustParse(t, "local x = #t")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	u, ok := stmt.Exprs[0].(*ast.UnaryExpr)
	if !ok || u.Op != token.HASH {
		t.Fatalf("expected unary HASH, got %#v", stmt.Exprs[0])
	}
}

func TestLogicalOperators(t *testing.T) {
	chunk := mustParse(t, "local x = a and b or c")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	or, ok := stmt.Exprs[0].(*ast.BinaryExpr)
	if !ok || or.Op != token.OR {
		t.Fatalf("expected top-level OR, got %#v", stmt.Exprs[0])
	}
	and, ok := or.Left.(*ast.BinaryExpr)
	if !ok || and.Op != token.AND {
		t.Errorf("left operand = %#v, want AND BinaryExpr", or.Left)
	}
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	chunk := mustParse(t, "local x = (1 + 2) * 3")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	mul, ok := stmt.Exprs[0].(*ast.BinaryExpr)
	if !ok || mul.Op != token.STAR {
		t.Fatalf("expected top-level STAR, got %#v", stmt.Exprs[0])
	}
	if _, ok := mul.Left.(*ast.BinaryExpr); !ok {
		t.Errorf("left should be the parenthesized BinaryExpr, got %#v", mul.Left)
	}
}

// ---------------------------------------------------------------------------
// Suffixed expressions: field access, indexing, calls
// ---------------------------------------------------------------------------

func TestChainedFieldAccess(t *testing.T) {
	chunk := mustParse(t, "local x = a.b.c")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	outer, ok := stmt.Exprs[0].(*ast.FieldExpr)
	if !ok {
		t.Fatalf("expected *ast.FieldExpr, got %T", stmt.Exprs[0])
	}
	if _, ok := outer.Obj.(*ast.FieldExpr); !ok {
		t.Errorf("outer.Obj = %#v, want nested FieldExpr", outer.Obj)
	}
}

func TestIndexExpr(t *testing.T) {
	chunk := mustParse(t, "local x = a[1]")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	field := stmt.Exprs[0].(*ast.FieldExpr)
	if _, ok := field.Key.(*ast.NumberExpr); !ok {
		t.Errorf("key = %#v, want NumberExpr", field.Key)
	}
}

func TestChainedCalls(t *testing.T) {
	chunk := mustParse(t, "local x = f()()")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	outer, ok := stmt.Exprs[0].(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", stmt.Exprs[0])
	}
	if _, ok := outer.Fn.(*ast.CallExpr); !ok {
		t.Errorf("outer.Fn = %#v, want nested CallExpr", outer.Fn)
	}
}

func TestMethodCallExpr(t *testing.T) {
	chunk := mustParse(t, "local x = obj:method(1, 2)")
	stmt := oneStmt(t, chunk).(*ast.LocalStmt)
	call := stmt.Exprs[0].(*ast.CallExpr)
	if call.Method != "method" {
		t.Errorf("method = %q, want method", call.Method)
	}
	if len(call.Args) != 2 {
		t.Errorf("expected 2 args, got %d", len(call.Args))
	}
}

// ---------------------------------------------------------------------------
// Error cases
// ---------------------------------------------------------------------------

func TestMissingEndIsAnError(t *testing.T) {
	parseWithError(t, "function f() return 1")
}

func TestMissingThenIsAnError(t *testing.T) {
	parseWithError(t, "if true x = 1 end")
}

func TestUnexpectedTokenIsAnError(t *testing.T) {
	parseWithError(t, "local = 1")
}

func TestTrailingGarbageAfterChunkIsAnError(t *testing.T) {
	parseWithError(t, "local x = 1 end")
}

// ---------------------------------------------------------------------------
// Larger programs
// ---------------------------------------------------------------------------

func TestComplexProgram(t *testing.T) {
	chunk := mustParse(t, `
local Account = {}

function Account.new(balance)
    local self = { balance = balance }
    return self
end

function Account:deposit(amount)
    self.balance = self.balance + amount
end

for i = 1, 10 do
    if i % 2 == 0 then
        print(i)
    end
end
`)
	if len(chunk.Statements) != 4 {
		t.Fatalf("expected 4 top-level statements, got %d", len(chunk.Statements))
	}
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
