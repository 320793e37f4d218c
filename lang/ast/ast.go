// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ast defines the syntax tree produced by the parser and
// consumed by codegen. It mirrors Lua 5.1's small surface grammar:
// statements, expressions, and the function bodies that close over
// them.
package ast

import "github.com/lumalang/luma/lang/token"

// Node is implemented by every AST node, for position reporting.
type Node interface {
	Position() token.Position
}

// Chunk is a parsed top-level source file: a list of statements
// executed as the body of an implicit vararg function.
type Chunk struct {
	Statements []Statement
}

func (c *Chunk) Position() token.Position {
	if len(c.Statements) > 0 {
		return c.Statements[0].Position()
	}
	return token.Position{}
}

// Statement is implemented by every statement node.
type Statement interface {
	Node
	statementNode()
}

// Expression is implemented by every expression node.
type Expression interface {
	Node
	expressionNode()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// LocalStmt declares one or more locals, optionally initialized:
// local a, b = 1, 2
type LocalStmt struct {
	Pos   token.Position
	Names []string
	Exprs []Expression
}

func (s *LocalStmt) Position() token.Position { return s.Pos }
func (*LocalStmt) statementNode()             {}

// AssignStmt assigns to one or more existing variables/fields:
// a, t.b, t[c] = 1, 2, 3
type AssignStmt struct {
	Pos     token.Position
	Targets []Expression
	Exprs   []Expression
}

func (s *AssignStmt) Position() token.Position { return s.Pos }
func (*AssignStmt) statementNode()             {}

// CallStmt is a bare call used as a statement: f(x)
type CallStmt struct {
	Pos  token.Position
	Call *CallExpr
}

func (s *CallStmt) Position() token.Position { return s.Pos }
func (*CallStmt) statementNode()             {}

// DoStmt is an explicit do...end block introducing a new scope.
type DoStmt struct {
	Pos  token.Position
	Body []Statement
}

func (s *DoStmt) Position() token.Position { return s.Pos }
func (*DoStmt) statementNode()             {}

// WhileStmt is while Cond do Body end.
type WhileStmt struct {
	Pos  token.Position
	Cond Expression
	Body []Statement
}

func (s *WhileStmt) Position() token.Position { return s.Pos }
func (*WhileStmt) statementNode()             {}

// RepeatStmt is repeat Body until Cond — Cond may reference locals
// declared in Body, per Lua's scoping rule for repeat/until.
type RepeatStmt struct {
	Pos  token.Position
	Body []Statement
	Cond Expression
}

func (s *RepeatStmt) Position() token.Position { return s.Pos }
func (*RepeatStmt) statementNode()             {}

// IfClause is one if/elseif arm.
type IfClause struct {
	Cond Expression
	Body []Statement
}

// IfStmt is if C1 then B1 elseif C2 then B2 ... else Be end.
type IfStmt struct {
	Pos     token.Position
	Clauses []IfClause
	Else    []Statement
}

func (s *IfStmt) Position() token.Position { return s.Pos }
func (*IfStmt) statementNode()             {}

// NumForStmt is for Name = Start, Stop[, Step] do Body end.
type NumForStmt struct {
	Pos   token.Position
	Name  string
	Start Expression
	Stop  Expression
	Step  Expression // nil if omitted
	Body  []Statement
}

func (s *NumForStmt) Position() token.Position { return s.Pos }
func (*NumForStmt) statementNode()             {}

// GenForStmt is for Names in Exprs do Body end.
type GenForStmt struct {
	Pos   token.Position
	Names []string
	Exprs []Expression
	Body  []Statement
}

func (s *GenForStmt) Position() token.Position { return s.Pos }
func (*GenForStmt) statementNode()             {}

// FuncStmt is function Name(...) ... end or function t.a.b(...) ... end,
// sugar for assigning a FuncExpr to the named target. Method is true for
// "function t:m(...)" declarations, which prepend an implicit self
// parameter.
type FuncStmt struct {
	Pos    token.Position
	Target Expression // Identifier or chain of FieldExpr
	Method bool
	Fn     *FuncExpr
}

func (s *FuncStmt) Position() token.Position { return s.Pos }
func (*FuncStmt) statementNode()             {}

// LocalFuncStmt is local function Name(...) ... end.
type LocalFuncStmt struct {
	Pos  token.Position
	Name string
	Fn   *FuncExpr
}

func (s *LocalFuncStmt) Position() token.Position { return s.Pos }
func (*LocalFuncStmt) statementNode()             {}

// ReturnStmt is return [Exprs].
type ReturnStmt struct {
	Pos   token.Position
	Exprs []Expression
}

func (s *ReturnStmt) Position() token.Position { return s.Pos }
func (*ReturnStmt) statementNode()             {}

// BreakStmt is break.
type BreakStmt struct {
	Pos token.Position
}

func (s *BreakStmt) Position() token.Position { return s.Pos }
func (*BreakStmt) statementNode()             {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// NilExpr is the literal nil.
type NilExpr struct{ Pos token.Position }

func (e *NilExpr) Position() token.Position { return e.Pos }
func (*NilExpr) expressionNode()            {}

// BoolExpr is true or false.
type BoolExpr struct {
	Pos   token.Position
	Value bool
}

func (e *BoolExpr) Position() token.Position { return e.Pos }
func (*BoolExpr) expressionNode()            {}

// NumberExpr is a numeric literal, already parsed to float64.
type NumberExpr struct {
	Pos   token.Position
	Value float64
}

func (e *NumberExpr) Position() token.Position { return e.Pos }
func (*NumberExpr) expressionNode()            {}

// StringExpr is a string literal with escapes already decoded.
type StringExpr struct {
	Pos   token.Position
	Value string
}

func (e *StringExpr) Position() token.Position { return e.Pos }
func (*StringExpr) expressionNode()            {}

// VarargExpr is ... inside a vararg function.
type VarargExpr struct{ Pos token.Position }

func (e *VarargExpr) Position() token.Position { return e.Pos }
func (*VarargExpr) expressionNode()            {}

// Identifier is a bare name reference, resolved by codegen to a local,
// an upvalue, or a global.
type Identifier struct {
	Pos  token.Position
	Name string
}

func (e *Identifier) Position() token.Position { return e.Pos }
func (*Identifier) expressionNode()            {}

// FieldExpr is Obj.Name or Obj[Key].
type FieldExpr struct {
	Pos token.Position
	Obj Expression
	Key Expression // StringExpr for Obj.Name, any expr for Obj[Key]
}

func (e *FieldExpr) Position() token.Position { return e.Pos }
func (*FieldExpr) expressionNode()            {}

// CallExpr is Fn(Args) or, when Method is non-empty, Recv:Method(Args).
type CallExpr struct {
	Pos    token.Position
	Fn     Expression
	Method string
	Args   []Expression
}

func (e *CallExpr) Position() token.Position { return e.Pos }
func (*CallExpr) expressionNode()            {}

// BinaryExpr is Left Op Right.
type BinaryExpr struct {
	Pos   token.Position
	Op    token.Type
	Left  Expression
	Right Expression
}

func (e *BinaryExpr) Position() token.Position { return e.Pos }
func (*BinaryExpr) expressionNode()            {}

// UnaryExpr is Op Operand (-, not, #).
type UnaryExpr struct {
	Pos     token.Position
	Op      token.Type
	Operand Expression
}

func (e *UnaryExpr) Position() token.Position { return e.Pos }
func (*UnaryExpr) expressionNode()            {}

// TableField is one entry of a table constructor. Key is nil for
// positional entries (appended to the array part).
type TableField struct {
	Key   Expression
	Value Expression
}

// TableExpr is a table constructor: { [k]=v, name=v, v, ... }.
type TableExpr struct {
	Pos    token.Position
	Fields []TableField
}

func (e *TableExpr) Position() token.Position { return e.Pos }
func (*TableExpr) expressionNode()            {}

// FuncExpr is a function literal: function(Params[, ...]) Body end.
type FuncExpr struct {
	Pos      token.Position
	Params   []string
	IsVararg bool
	Body     []Statement
}

func (e *FuncExpr) Position() token.Position { return e.Pos }
func (*FuncExpr) expressionNode()            {}
