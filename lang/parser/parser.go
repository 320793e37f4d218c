// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package parser implements a recursive-descent / Pratt parser for Luma
// source text, producing the ast package's syntax tree.
//
// Design overview:
//
//   - Statements are parsed with straightforward recursive descent.
//   - Expressions are parsed with a Pratt (top-down operator precedence) table.
//   - The parser stops at the first error; callers needing partial trees
//     for recovery should catch the returned error and fall back to the
//     last known-good chunk.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lumalang/luma/lang/ast"
	"github.com/lumalang/luma/lang/lexer"
	"github.com/lumalang/luma/lang/token"
)

// ---------------------------------------------------------------------------
// Precedence levels (Pratt)
// ---------------------------------------------------------------------------

type precedence int

const (
	precLowest precedence = iota
	precOr                // or
	precAnd               // and
	precCmp               // == ~= < > <= >=
	precConcat            // .. (right assoc)
	precAdd               // + -
	precMul               // * / %
	precUnary             // not # -x
	precPow               // ^ (right assoc)
)

var infixPrecedence = map[token.Type]precedence{
	token.OR:      precOr,
	token.AND:     precAnd,
	token.EQ:      precCmp,
	token.NEQ:     precCmp,
	token.LT:      precCmp,
	token.GT:      precCmp,
	token.LTE:     precCmp,
	token.GTE:     precCmp,
	token.DOTDOT:  precConcat,
	token.PLUS:    precAdd,
	token.MINUS:   precAdd,
	token.STAR:    precMul,
	token.SLASH:   precMul,
	token.PERCENT: precMul,
	token.CARET:   precPow,
}

// rightAssoc holds the operators that bind to the right.
var rightAssoc = map[token.Type]bool{
	token.DOTDOT: true,
	token.CARET:  true,
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser holds the mutable state for a single parse run.
type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token
}

// New initializes a Parser over source text from filename.
func New(filename, source string) *Parser {
	p := &Parser{lex: lexer.New(filename, source)}
	p.advance()
	p.advance()
	return p
}

// ParseChunk parses the whole input as a top-level chunk.
func (p *Parser) ParseChunk() (chunk *ast.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe.err
				return
			}
			panic(r)
		}
	}()
	stmts := p.parseBlock()
	p.expect(token.EOF)
	return &ast.Chunk{Statements: stmts}, nil
}

// parseError is panicked internally to unwind to ParseChunk's recover,
// avoiding an error return threaded through every recursive-descent call.
type parseError struct{ err error }

func (p *Parser) fail(pos token.Position, format string, args ...interface{}) {
	panic(parseError{fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))})
}

// ---------------------------------------------------------------------------
// Token navigation
// ---------------------------------------------------------------------------

func (p *Parser) advance() {
	p.cur = p.peek
	for {
		p.peek = p.lex.NextToken()
		if p.peek.Type != token.COMMENT {
			break
		}
	}
}

func (p *Parser) expect(typ token.Type) token.Token {
	if p.cur.Type != typ {
		p.fail(p.cur.Pos, "expected %s, got %s %q", typ, p.cur.Type, p.cur.Literal)
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *Parser) curIs(typ token.Type) bool  { return p.cur.Type == typ }
func (p *Parser) peekIs(typ token.Type) bool { return p.peek.Type == typ }

func blockEnd(typ token.Type) bool {
	switch typ {
	case token.EOF, token.END, token.ELSE, token.ELSEIF, token.UNTIL:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() []ast.Statement {
	var stmts []ast.Statement
	for !blockEnd(p.cur.Type) {
		if p.curIs(token.RETURN) {
			stmts = append(stmts, p.parseReturnStmt())
			break
		}
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.SEMICOLON:
		p.advance()
		return nil
	case token.DO:
		return p.parseDoStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.REPEAT:
		return p.parseRepeatStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.FUNCTION:
		return p.parseFuncStmt()
	case token.LOCAL:
		return p.parseLocalStmt()
	case token.BREAK:
		pos := p.cur.Pos
		p.advance()
		return &ast.BreakStmt{Pos: pos}
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseDoStmt() ast.Statement {
	pos := p.expect(token.DO).Pos
	body := p.parseBlock()
	p.expect(token.END)
	return &ast.DoStmt{Pos: pos, Body: body}
}

func (p *Parser) parseWhileStmt() ast.Statement {
	pos := p.expect(token.WHILE).Pos
	cond := p.parseExpr(precLowest)
	p.expect(token.DO)
	body := p.parseBlock()
	p.expect(token.END)
	return &ast.WhileStmt{Pos: pos, Cond: cond, Body: body}
}

func (p *Parser) parseRepeatStmt() ast.Statement {
	pos := p.expect(token.REPEAT).Pos
	body := p.parseBlock()
	p.expect(token.UNTIL)
	cond := p.parseExpr(precLowest)
	return &ast.RepeatStmt{Pos: pos, Body: body, Cond: cond}
}

func (p *Parser) parseIfStmt() ast.Statement {
	pos := p.expect(token.IF).Pos
	stmt := &ast.IfStmt{Pos: pos}
	cond := p.parseExpr(precLowest)
	p.expect(token.THEN)
	body := p.parseBlock()
	stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})
	for p.curIs(token.ELSEIF) {
		p.advance()
		cond := p.parseExpr(precLowest)
		p.expect(token.THEN)
		body := p.parseBlock()
		stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})
	}
	if p.curIs(token.ELSE) {
		p.advance()
		stmt.Else = p.parseBlock()
	}
	p.expect(token.END)
	return stmt
}

func (p *Parser) parseForStmt() ast.Statement {
	pos := p.expect(token.FOR).Pos
	name := p.expect(token.IDENT).Literal
	if p.curIs(token.ASSIGN) {
		p.advance()
		start := p.parseExpr(precLowest)
		p.expect(token.COMMA)
		stop := p.parseExpr(precLowest)
		var step ast.Expression
		if p.curIs(token.COMMA) {
			p.advance()
			step = p.parseExpr(precLowest)
		}
		p.expect(token.DO)
		body := p.parseBlock()
		p.expect(token.END)
		return &ast.NumForStmt{Pos: pos, Name: name, Start: start, Stop: stop, Step: step, Body: body}
	}

	names := []string{name}
	for p.curIs(token.COMMA) {
		p.advance()
		names = append(names, p.expect(token.IDENT).Literal)
	}
	p.expect(token.IN)
	exprs := p.parseExprList()
	p.expect(token.DO)
	body := p.parseBlock()
	p.expect(token.END)
	return &ast.GenForStmt{Pos: pos, Names: names, Exprs: exprs, Body: body}
}

func (p *Parser) parseFuncStmt() ast.Statement {
	pos := p.expect(token.FUNCTION).Pos
	var target ast.Expression = &ast.Identifier{Pos: p.cur.Pos, Name: p.expect(token.IDENT).Literal}
	method := false
	for p.curIs(token.DOT) {
		p.advance()
		nameTok := p.expect(token.IDENT)
		target = &ast.FieldExpr{Pos: nameTok.Pos, Obj: target, Key: &ast.StringExpr{Pos: nameTok.Pos, Value: nameTok.Literal}}
	}
	if p.curIs(token.COLON) {
		p.advance()
		nameTok := p.expect(token.IDENT)
		target = &ast.FieldExpr{Pos: nameTok.Pos, Obj: target, Key: &ast.StringExpr{Pos: nameTok.Pos, Value: nameTok.Literal}}
		method = true
	}
	fn := p.parseFuncBody(pos, method)
	return &ast.FuncStmt{Pos: pos, Target: target, Method: method, Fn: fn}
}

func (p *Parser) parseLocalStmt() ast.Statement {
	pos := p.expect(token.LOCAL).Pos
	if p.curIs(token.FUNCTION) {
		p.advance()
		name := p.expect(token.IDENT).Literal
		fn := p.parseFuncBody(pos, false)
		return &ast.LocalFuncStmt{Pos: pos, Name: name, Fn: fn}
	}

	names := []string{p.expect(token.IDENT).Literal}
	for p.curIs(token.COMMA) {
		p.advance()
		names = append(names, p.expect(token.IDENT).Literal)
	}
	var exprs []ast.Expression
	if p.curIs(token.ASSIGN) {
		p.advance()
		exprs = p.parseExprList()
	}
	return &ast.LocalStmt{Pos: pos, Names: names, Exprs: exprs}
}

func (p *Parser) parseReturnStmt() ast.Statement {
	pos := p.expect(token.RETURN).Pos
	var exprs []ast.Expression
	if !blockEnd(p.cur.Type) && !p.curIs(token.SEMICOLON) {
		exprs = p.parseExprList()
	}
	if p.curIs(token.SEMICOLON) {
		p.advance()
	}
	return &ast.ReturnStmt{Pos: pos, Exprs: exprs}
}

// parseExprStmt parses either a bare call statement or an assignment,
// disambiguated by what follows the first parsed expression.
func (p *Parser) parseExprStmt() ast.Statement {
	pos := p.cur.Pos
	first := p.parseSuffixedExpr()
	if p.curIs(token.ASSIGN) || p.curIs(token.COMMA) {
		targets := []ast.Expression{first}
		for p.curIs(token.COMMA) {
			p.advance()
			targets = append(targets, p.parseSuffixedExpr())
		}
		p.expect(token.ASSIGN)
		exprs := p.parseExprList()
		return &ast.AssignStmt{Pos: pos, Targets: targets, Exprs: exprs}
	}
	call, ok := first.(*ast.CallExpr)
	if !ok {
		p.fail(pos, "syntax error: expression used as statement")
	}
	return &ast.CallStmt{Pos: pos, Call: call}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExprList() []ast.Expression {
	exprs := []ast.Expression{p.parseExpr(precLowest)}
	for p.curIs(token.COMMA) {
		p.advance()
		exprs = append(exprs, p.parseExpr(precLowest))
	}
	return exprs
}

func (p *Parser) parseExpr(minPrec precedence) ast.Expression {
	left := p.parseUnary()
	for {
		prec, ok := infixPrecedence[p.cur.Type]
		if !ok || prec < minPrec {
			return left
		}
		op := p.cur.Type
		pos := p.cur.Pos
		p.advance()
		nextMin := prec + 1
		if rightAssoc[op] {
			nextMin = prec
		}
		right := p.parseExpr(nextMin)
		left = &ast.BinaryExpr{Pos: pos, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expression {
	switch p.cur.Type {
	case token.NOT, token.MINUS, token.HASH:
		op := p.cur.Type
		pos := p.cur.Pos
		p.advance()
		operand := p.parseExpr(precUnary)
		return &ast.UnaryExpr{Pos: pos, Op: op, Operand: operand}
	default:
		return p.parsePow()
	}
}

// parsePow handles '^' binding tighter than unary minus on its left
// operand's right side (so that -2^2 == -4, matching Lua).
func (p *Parser) parsePow() ast.Expression {
	left := p.parseSuffixedExpr()
	if p.curIs(token.CARET) {
		pos := p.cur.Pos
		p.advance()
		right := p.parseExpr(precPow)
		return &ast.BinaryExpr{Pos: pos, Op: token.CARET, Left: left, Right: right}
	}
	return left
}

// parsePrimaryExpr parses a literal, a parenthesized expression, a table
// constructor, a function literal, or a bare identifier — the atoms that
// parseSuffixedExpr then chains field/index/call suffixes onto.
func (p *Parser) parsePrimaryExpr() ast.Expression {
	pos := p.cur.Pos
	switch p.cur.Type {
	case token.NIL:
		p.advance()
		return &ast.NilExpr{Pos: pos}
	case token.TRUE:
		p.advance()
		return &ast.BoolExpr{Pos: pos, Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BoolExpr{Pos: pos, Value: false}
	case token.NUMBER:
		lit := p.cur.Literal
		p.advance()
		return &ast.NumberExpr{Pos: pos, Value: parseNumber(lit)}
	case token.STRING:
		lit := p.cur.Literal
		p.advance()
		return &ast.StringExpr{Pos: pos, Value: lit}
	case token.ELLIPSIS:
		p.advance()
		return &ast.VarargExpr{Pos: pos}
	case token.FUNCTION:
		p.advance()
		return p.parseFuncBody(pos, false)
	case token.LBRACE:
		return p.parseTableExpr()
	case token.LPAREN:
		p.advance()
		e := p.parseExpr(precLowest)
		p.expect(token.RPAREN)
		return e
	case token.IDENT:
		name := p.cur.Literal
		p.advance()
		return &ast.Identifier{Pos: pos, Name: name}
	default:
		p.fail(pos, "unexpected token %s %q", p.cur.Type, p.cur.Literal)
		return nil
	}
}

func (p *Parser) parseSuffixedExpr() ast.Expression {
	expr := p.parsePrimaryExpr()
	for {
		pos := p.cur.Pos
		switch p.cur.Type {
		case token.DOT:
			p.advance()
			nameTok := p.expect(token.IDENT)
			expr = &ast.FieldExpr{Pos: pos, Obj: expr, Key: &ast.StringExpr{Pos: nameTok.Pos, Value: nameTok.Literal}}
		case token.LBRACKET:
			p.advance()
			key := p.parseExpr(precLowest)
			p.expect(token.RBRACKET)
			expr = &ast.FieldExpr{Pos: pos, Obj: expr, Key: key}
		case token.COLON:
			p.advance()
			name := p.expect(token.IDENT).Literal
			args := p.parseArgs()
			expr = &ast.CallExpr{Pos: pos, Fn: expr, Method: name, Args: args}
		case token.LPAREN, token.STRING, token.LBRACE:
			args := p.parseArgs()
			expr = &ast.CallExpr{Pos: pos, Fn: expr, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgs() []ast.Expression {
	switch p.cur.Type {
	case token.STRING:
		lit := p.cur.Literal
		pos := p.cur.Pos
		p.advance()
		return []ast.Expression{&ast.StringExpr{Pos: pos, Value: lit}}
	case token.LBRACE:
		return []ast.Expression{p.parseTableExpr()}
	default:
		p.expect(token.LPAREN)
		var args []ast.Expression
		if !p.curIs(token.RPAREN) {
			args = p.parseExprList()
		}
		p.expect(token.RPAREN)
		return args
	}
}

func (p *Parser) parseTableExpr() ast.Expression {
	pos := p.expect(token.LBRACE).Pos
	t := &ast.TableExpr{Pos: pos}
	for !p.curIs(token.RBRACE) {
		var field ast.TableField
		switch {
		case p.curIs(token.LBRACKET):
			p.advance()
			key := p.parseExpr(precLowest)
			p.expect(token.RBRACKET)
			p.expect(token.ASSIGN)
			field = ast.TableField{Key: key, Value: p.parseExpr(precLowest)}
		case p.curIs(token.IDENT) && p.peekIs(token.ASSIGN):
			nameTok := p.cur
			p.advance()
			p.advance()
			field = ast.TableField{
				Key:   &ast.StringExpr{Pos: nameTok.Pos, Value: nameTok.Literal},
				Value: p.parseExpr(precLowest),
			}
		default:
			field = ast.TableField{Value: p.parseExpr(precLowest)}
		}
		t.Fields = append(t.Fields, field)
		if p.curIs(token.COMMA) || p.curIs(token.SEMICOLON) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBRACE)
	return t
}

func (p *Parser) parseFuncBody(pos token.Position, method bool) *ast.FuncExpr {
	p.expect(token.LPAREN)
	fn := &ast.FuncExpr{Pos: pos}
	if method {
		fn.Params = append(fn.Params, "self")
	}
	for !p.curIs(token.RPAREN) {
		if p.curIs(token.ELLIPSIS) {
			p.advance()
			fn.IsVararg = true
			break
		}
		fn.Params = append(fn.Params, p.expect(token.IDENT).Literal)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RPAREN)
	fn.Body = p.parseBlock()
	p.expect(token.END)
	return fn
}

func parseNumber(lit string) float64 {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		n, err := strconv.ParseUint(lit[2:], 16, 64)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0
	}
	return f
}
