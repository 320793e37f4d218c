// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package codegen lowers an *ast.Chunk directly to a *vm.Proto tree, the
// way lparser.c/lcode.c collapse Lua's own grammar straight to register
// bytecode in a single pass rather than staging through a separate IR.
// It is, like the rest of the front end, an external collaborator to the
// core VM: the interpreter only ever sees the Proto this package produces,
// never the AST that produced it.
//
// The compiler enforces one restriction the stock Lua bytecode format
// does not: a function's RETURN instruction must be the last instruction
// in the prototype (checked by vm.Verify), so "return" may only appear as
// the final statement of a function's own top-level body, not nested
// inside an if/while/for/do/repeat block. Lua's grammar allows the latter
// (a return ending any block); this compiler rejects it with a plain
// error instead of threading every block through a shared epilogue.
package codegen

import (
	"fmt"

	"github.com/lumalang/luma/lang/ast"
	"github.com/lumalang/luma/lang/token"
	"github.com/lumalang/luma/lang/vm"
)

// Options controls the compilation pipeline.
type Options struct {
	// Optimize is the pipeline switch behind lumac -optimize. No code path
	// reads it: codegen does no constant folding and has no optimization
	// pass, so the emitted bytecode is the same either way.
	Optimize bool
}

// Compile lowers a parsed chunk to a top-level vararg function prototype,
// interning string constants against g's string table. The returned Proto
// tree (it and every nested Proto reachable through Protos) is not yet
// known to g's collector — callers that intend to run the result register
// it by passing it to Thread.Load, the pipeline's single registration
// point, the way lumac's -emit=bytecode path never registers at all
// because it only dumps the tree to disk and never runs it.
func Compile(g *vm.Global, filename string, chunk *ast.Chunk, opts Options) (proto *vm.Proto, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(codegenError); ok {
				err = ce.err
				return
			}
			panic(r)
		}
	}()

	fs := newFuncState(nil, g, filename, opts)
	fs.proto.IsVararg = true
	fs.proto.NumParams = 0
	fs.compileTop(chunk.Statements)
	return fs.proto, nil
}

type codegenError struct{ err error }

func (fs *funcState) fail(pos token.Position, format string, args ...interface{}) {
	panic(codegenError{fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...))})
}

// localVar binds a source name to the register holding it for the
// remainder of its lexical scope.
type localVar struct {
	name string
	reg  int
}

// blockScope tracks one lexical block's first local slot (for scope exit)
// and, for loop bodies, the break jumps awaiting a patch to the loop's
// exit point.
type blockScope struct {
	isLoop     bool
	firstLocal int
	breakJumps []int
}

// funcState holds the compilation state for one function body: its
// growing Proto, the active local-variable stack, the open block scopes,
// register allocation, and a link to the enclosing function for upvalue
// resolution.
type funcState struct {
	g      *vm.Global
	opts   Options
	parent *funcState
	proto  *vm.Proto

	actives []localVar
	blocks  []*blockScope

	freereg int

	upvalueIndex map[string]int
	constIndex   map[vm.Value]int
}

func newFuncState(parent *funcState, g *vm.Global, source string, opts Options) *funcState {
	fs := &funcState{
		g:            g,
		opts:         opts,
		parent:       parent,
		proto:        &vm.Proto{Source: source},
		upvalueIndex: make(map[string]int),
		constIndex:   make(map[vm.Value]int),
	}
	return fs
}

// emit appends an instruction and returns its pc.
func (fs *funcState) emit(instr vm.Instruction) int {
	fs.proto.Code = append(fs.proto.Code, instr)
	fs.proto.Lines = append(fs.proto.Lines, 0)
	return len(fs.proto.Code) - 1
}

func (fs *funcState) emitAt(pos token.Position, instr vm.Instruction) int {
	pc := fs.emit(instr)
	fs.proto.Lines[pc] = pos.Line
	return pc
}

// patchJump rewrites the sBx field of the jump instruction at pc so it
// targets target, using the same (target - (pc+1)) convention the
// interpreter applies to every forward and backward jump.
func (fs *funcState) patchJump(pc, target int) {
	instr := fs.proto.Code[pc]
	fs.proto.Code[pc] = vm.EncodeSBx(instr.OpCode(), instr.A(), target-(pc+1))
}

func (fs *funcState) here() int { return len(fs.proto.Code) }

// reserveReg allocates and returns the next free register, bumping
// MaxStack if needed.
func (fs *funcState) reserveReg() int {
	r := fs.freereg
	fs.freereg++
	if fs.freereg > fs.proto.MaxStack {
		fs.proto.MaxStack = fs.freereg
	}
	return r
}

func (fs *funcState) resetFree() {
	fs.freereg = len(fs.actives)
}

func (fs *funcState) enterBlock(isLoop bool) *blockScope {
	b := &blockScope{isLoop: isLoop, firstLocal: len(fs.actives)}
	fs.blocks = append(fs.blocks, b)
	return b
}

// leaveBlock pops the innermost block, truncating locals back to scope
// entry, and returns any break jumps collected within it (for a loop
// block; always empty otherwise, since break binds to the nearest
// enclosing loop).
func (fs *funcState) leaveBlock() []int {
	n := len(fs.blocks)
	b := fs.blocks[n-1]
	fs.blocks = fs.blocks[:n-1]
	fs.actives = fs.actives[:b.firstLocal]
	return b.breakJumps
}

// ---------------------------------------------------------------------------
// Variable resolution
// ---------------------------------------------------------------------------

type varKind int

const (
	varLocal varKind = iota
	varUpval
	varGlobal
)

func (fs *funcState) resolveLocal(name string) (int, bool) {
	for i := len(fs.actives) - 1; i >= 0; i-- {
		if fs.actives[i].name == name {
			return fs.actives[i].reg, true
		}
	}
	return 0, false
}

// resolveVar finds name as a local, an upvalue (threading a fresh
// UpvalDesc through every enclosing funcState between the binding site
// and here), or falls back to global.
func (fs *funcState) resolveVar(name string) (varKind, int) {
	if reg, ok := fs.resolveLocal(name); ok {
		return varLocal, reg
	}
	if idx, ok := fs.upvalueIndex[name]; ok {
		return varUpval, idx
	}
	if fs.parent == nil {
		return varGlobal, 0
	}
	switch k, idx := fs.parent.resolveVar(name); k {
	case varLocal:
		ui := len(fs.proto.Upvalues)
		fs.proto.Upvalues = append(fs.proto.Upvalues, vm.UpvalDesc{Name: name, InStack: true, Index: idx})
		fs.upvalueIndex[name] = ui
		return varUpval, ui
	case varUpval:
		ui := len(fs.proto.Upvalues)
		fs.proto.Upvalues = append(fs.proto.Upvalues, vm.UpvalDesc{Name: name, InStack: false, Index: idx})
		fs.upvalueIndex[name] = ui
		return varUpval, ui
	default:
		return varGlobal, 0
	}
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

func (fs *funcState) kConst(v vm.Value) int {
	if idx, ok := fs.constIndex[v]; ok {
		return idx
	}
	idx := len(fs.proto.Constants)
	fs.proto.Constants = append(fs.proto.Constants, v)
	fs.constIndex[v] = idx
	return idx
}

func (fs *funcState) kString(s string) int {
	return fs.kConst(fs.g.NewString(s))
}

// litOperand returns the RK-encoded constant-pool operand for a literal
// expression, or ok=false if e is not a literal.
func (fs *funcState) litOperand(e ast.Expression) (int, bool) {
	switch v := e.(type) {
	case *ast.NilExpr:
		return vm.RKAsK(fs.kConst(vm.Nil)), true
	case *ast.BoolExpr:
		return vm.RKAsK(fs.kConst(vm.Bool(v.Value))), true
	case *ast.NumberExpr:
		return vm.RKAsK(fs.kConst(vm.Number(v.Value))), true
	case *ast.StringExpr:
		return vm.RKAsK(fs.kString(v.Value)), true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Top level / function bodies
// ---------------------------------------------------------------------------

func (fs *funcState) compileTop(stmts []ast.Statement) {
	fs.compileBody(stmts, true)
}

// compileFuncBody compiles e as a nested function prototype of fs,
// leaving the fresh funcState's Proto ready to append to fs.proto.Protos.
func (fs *funcState) compileFuncBody(e *ast.FuncExpr) *funcState {
	inner := newFuncState(fs, fs.g, fs.proto.Source, fs.opts)
	inner.proto.LineDefined = e.Pos.Line
	inner.proto.IsVararg = e.IsVararg
	inner.proto.NumParams = len(e.Params)
	for _, name := range e.Params {
		inner.actives = append(inner.actives, localVar{name: name, reg: inner.reserveReg()})
	}
	inner.compileBody(e.Body, true)
	return inner
}

// compileBody compiles a statement list that is the entire body of a
// block. isFuncTop must be true only for a function's own top-level
// statement list, which alone may end in a return statement; an implicit
// "return" is appended when the body does not already end in one.
func (fs *funcState) compileBody(stmts []ast.Statement, isFuncTop bool) {
	returned := false
	for i, s := range stmts {
		if ret, ok := s.(*ast.ReturnStmt); ok {
			if !isFuncTop {
				fs.fail(ret.Pos, "return is only supported as the final statement of a function body")
			}
			if i != len(stmts)-1 {
				fs.fail(ret.Pos, "return must be the last statement of the block")
			}
			fs.compileReturn(ret)
			returned = true
			continue
		}
		fs.compileStmt(s)
		fs.resetFree()
	}
	if isFuncTop && !returned {
		fs.emit(vm.Encode(vm.OpReturn, 0, 1, 0))
	}
}

func (fs *funcState) compileReturn(ret *ast.ReturnStmt) {
	base := fs.freereg
	for _, e := range ret.Exprs {
		r := fs.reserveReg()
		fs.compileExpr(r, e)
	}
	fs.emitAt(ret.Pos, vm.Encode(vm.OpReturn, base, len(ret.Exprs)+1, 0))
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (fs *funcState) compileStmt(s ast.Statement) {
	switch v := s.(type) {
	case *ast.LocalStmt:
		fs.compileLocalStmt(v)
	case *ast.AssignStmt:
		fs.compileAssignStmt(v)
	case *ast.CallStmt:
		fs.compileCall(v.Call, v.Pos, 0)
	case *ast.DoStmt:
		fs.enterBlock(false)
		fs.compileBody(v.Body, false)
		fs.leaveBlock()
	case *ast.WhileStmt:
		fs.compileWhileStmt(v)
	case *ast.RepeatStmt:
		fs.compileRepeatStmt(v)
	case *ast.IfStmt:
		fs.compileIfStmt(v)
	case *ast.NumForStmt:
		fs.compileNumForStmt(v)
	case *ast.GenForStmt:
		fs.compileGenForStmt(v)
	case *ast.FuncStmt:
		fs.compileFuncStmt(v)
	case *ast.LocalFuncStmt:
		fs.compileLocalFuncStmt(v)
	case *ast.BreakStmt:
		fs.compileBreakStmt(v)
	case *ast.ReturnStmt:
		fs.fail(v.Pos, "return is only supported as the final statement of a function body")
	default:
		fs.fail(s.Position(), "codegen: unsupported statement %T", s)
	}
}

func (fs *funcState) compileLocalStmt(s *ast.LocalStmt) {
	regs := fs.compileExprListAdjust(s.Exprs, len(s.Names))
	for i, name := range s.Names {
		fs.actives = append(fs.actives, localVar{name: name, reg: regs[i]})
	}
}

func (fs *funcState) compileLocalFuncStmt(s *ast.LocalFuncStmt) {
	reg := fs.reserveReg()
	fs.actives = append(fs.actives, localVar{name: s.Name, reg: reg})
	fs.compileExpr(reg, s.Fn)
}

func (fs *funcState) compileFuncStmt(s *ast.FuncStmt) {
	reg := fs.compileExprToNewReg(s.Fn)
	fs.compileAssign(s.Target, reg)
}

func (fs *funcState) compileAssignStmt(s *ast.AssignStmt) {
	regs := fs.compileExprListAdjust(s.Exprs, len(s.Targets))
	for i, t := range s.Targets {
		fs.compileAssign(t, regs[i])
	}
}

// compileAssign stores the value already sitting in srcReg into target.
func (fs *funcState) compileAssign(target ast.Expression, srcReg int) {
	switch v := target.(type) {
	case *ast.Identifier:
		switch k, idx := fs.resolveVar(v.Name); k {
		case varLocal:
			if idx != srcReg {
				fs.emitAt(v.Pos, vm.Encode(vm.OpMove, idx, srcReg, 0))
			}
		case varUpval:
			fs.emitAt(v.Pos, vm.Encode(vm.OpSetUpval, srcReg, idx, 0))
		default:
			fs.emitAt(v.Pos, vm.EncodeBx(vm.OpSetGlobal, srcReg, fs.kString(v.Name)))
		}
	case *ast.FieldExpr:
		objReg := fs.compileExprToNewReg(v.Obj)
		keyOperand := fs.compileExprRK(v.Key)
		fs.emitAt(v.Pos, vm.Encode(vm.OpSetTable, objReg, keyOperand, srcReg))
	default:
		fs.fail(target.Position(), "codegen: invalid assignment target %T", target)
	}
}

func (fs *funcState) compileBreakStmt(s *ast.BreakStmt) {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if fs.blocks[i].isLoop {
			pc := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
			fs.blocks[i].breakJumps = append(fs.blocks[i].breakJumps, pc)
			return
		}
	}
	fs.fail(s.Pos, "break outside a loop")
}

func (fs *funcState) compileWhileStmt(s *ast.WhileStmt) {
	top := fs.here()
	condReg := fs.compileExprToNewReg(s.Cond)
	fs.emitAt(s.Pos, vm.Encode(vm.OpTest, condReg, 0, 0))
	jExit := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))

	fs.enterBlock(true)
	fs.compileBody(s.Body, false)
	breaks := fs.leaveBlock()

	jBack := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
	fs.patchJump(jBack, top)
	end := fs.here()
	fs.patchJump(jExit, end)
	for _, j := range breaks {
		fs.patchJump(j, end)
	}
	fs.resetFree()
}

func (fs *funcState) compileRepeatStmt(s *ast.RepeatStmt) {
	top := fs.here()
	fs.enterBlock(true)
	fs.compileBody(s.Body, false)
	// Cond is compiled before leaving the block: repeat/until's condition
	// may reference locals declared in the body.
	condReg := fs.compileExprToNewReg(s.Cond)
	breaks := fs.leaveBlock()

	fs.emitAt(s.Pos, vm.Encode(vm.OpTest, condReg, 0, 0))
	jBack := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
	fs.patchJump(jBack, top)
	end := fs.here()
	for _, j := range breaks {
		fs.patchJump(j, end)
	}
	fs.resetFree()
}

func (fs *funcState) compileIfStmt(s *ast.IfStmt) {
	var endJumps []int
	for i, clause := range s.Clauses {
		condReg := fs.compileExprToNewReg(clause.Cond)
		fs.emitAt(clause.Cond.Position(), vm.Encode(vm.OpTest, condReg, 0, 0))
		jFalse := fs.emitAt(clause.Cond.Position(), vm.EncodeSBx(vm.OpJmp, 0, 0))

		fs.enterBlock(false)
		fs.compileBody(clause.Body, false)
		fs.leaveBlock()

		hasMore := i < len(s.Clauses)-1 || len(s.Else) > 0
		if hasMore {
			endJumps = append(endJumps, fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0)))
		}
		fs.patchJump(jFalse, fs.here())
		fs.resetFree()
	}
	if len(s.Else) > 0 {
		fs.enterBlock(false)
		fs.compileBody(s.Else, false)
		fs.leaveBlock()
	}
	end := fs.here()
	for _, j := range endJumps {
		fs.patchJump(j, end)
	}
	fs.resetFree()
}

func (fs *funcState) compileNumForStmt(s *ast.NumForStmt) {
	base := fs.reserveReg() // start
	fs.compileExpr(base, s.Start)
	fs.reserveReg() // limit
	fs.compileExpr(base+1, s.Stop)
	fs.reserveReg() // step
	if s.Step != nil {
		fs.compileExpr(base+2, s.Step)
	} else {
		fs.emitAt(s.Pos, vm.EncodeBx(vm.OpLoadK, base+2, fs.kConst(vm.Number(1))))
	}
	loopVarReg := fs.reserveReg()

	prepPC := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpForPrep, base, 0))
	bodyStart := fs.here()

	fs.enterBlock(true)
	fs.actives = append(fs.actives, localVar{name: s.Name, reg: loopVarReg})
	fs.compileBody(s.Body, false)
	breaks := fs.leaveBlock()

	loopPC := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpForLoop, base, 0))
	fs.patchJump(prepPC, loopPC)
	fs.patchJump(loopPC, bodyStart)
	end := fs.here()
	for _, j := range breaks {
		fs.patchJump(j, end)
	}
	fs.resetFree()
}

func (fs *funcState) compileGenForStmt(s *ast.GenForStmt) {
	fs.compileExprListAdjust(s.Exprs, 3) // f, state, control
	varBase := fs.freereg
	for range s.Names {
		fs.reserveReg()
	}
	fBase := varBase - 3

	initJmp := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
	bodyStart := fs.here()

	fs.enterBlock(true)
	for i, name := range s.Names {
		fs.actives = append(fs.actives, localVar{name: name, reg: varBase + i})
	}
	fs.compileBody(s.Body, false)
	breaks := fs.leaveBlock()

	tforPC := fs.emitAt(s.Pos, vm.Encode(vm.OpTForLoop, fBase, 0, len(s.Names)))
	jBack := fs.emitAt(s.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
	fs.patchJump(initJmp, tforPC)
	fs.patchJump(jBack, bodyStart)
	end := fs.here()
	for _, j := range breaks {
		fs.patchJump(j, end)
	}
	fs.resetFree()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// compileExpr emits code that leaves e's value in register dst, which the
// caller must already have reserved.
func (fs *funcState) compileExpr(dst int, e ast.Expression) {
	switch v := e.(type) {
	case *ast.NilExpr:
		fs.emitAt(v.Pos, vm.Encode(vm.OpLoadNil, dst, 0, 0))
	case *ast.BoolExpr:
		b := 0
		if v.Value {
			b = 1
		}
		fs.emitAt(v.Pos, vm.Encode(vm.OpLoadBool, dst, b, 0))
	case *ast.NumberExpr:
		fs.emitAt(v.Pos, vm.EncodeBx(vm.OpLoadK, dst, fs.kConst(vm.Number(v.Value))))
	case *ast.StringExpr:
		fs.emitAt(v.Pos, vm.EncodeBx(vm.OpLoadK, dst, fs.kString(v.Value)))
	case *ast.VarargExpr:
		fs.emitAt(v.Pos, vm.Encode(vm.OpVararg, dst, 2, 0))
	case *ast.Identifier:
		switch k, idx := fs.resolveVar(v.Name); k {
		case varLocal:
			if idx != dst {
				fs.emitAt(v.Pos, vm.Encode(vm.OpMove, dst, idx, 0))
			}
		case varUpval:
			fs.emitAt(v.Pos, vm.Encode(vm.OpGetUpval, dst, idx, 0))
		default:
			fs.emitAt(v.Pos, vm.EncodeBx(vm.OpGetGlobal, dst, fs.kString(v.Name)))
		}
	case *ast.FieldExpr:
		objReg := fs.compileExprRK(v.Obj)
		keyOperand := fs.compileExprRK(v.Key)
		fs.emitAt(v.Pos, vm.Encode(vm.OpGetTable, dst, objReg, keyOperand))
	case *ast.CallExpr:
		base := fs.compileCall(v, v.Pos, 1)
		if base != dst {
			fs.emitAt(v.Pos, vm.Encode(vm.OpMove, dst, base, 0))
		}
	case *ast.TableExpr:
		fs.compileTableExpr(dst, v)
	case *ast.FuncExpr:
		inner := fs.compileFuncBody(v)
		idx := len(fs.proto.Protos)
		fs.proto.Protos = append(fs.proto.Protos, inner.proto)
		fs.emitAt(v.Pos, vm.EncodeBx(vm.OpClosure, dst, idx))
		for _, u := range inner.proto.Upvalues {
			if u.InStack {
				fs.emit(vm.Encode(vm.OpMove, 0, u.Index, 0))
			} else {
				fs.emit(vm.Encode(vm.OpGetUpval, 0, u.Index, 0))
			}
		}
	case *ast.UnaryExpr:
		fs.compileUnaryExpr(dst, v)
	case *ast.BinaryExpr:
		fs.compileBinaryExpr(dst, v)
	default:
		fs.fail(e.Position(), "codegen: unsupported expression %T", e)
	}
}

// compileExprToNewReg reserves a fresh register and compiles e into it,
// except for calls, which already land their sole result in a register
// of their own choosing.
func (fs *funcState) compileExprToNewReg(e ast.Expression) int {
	if call, ok := e.(*ast.CallExpr); ok {
		return fs.compileCall(call, call.Pos, 1)
	}
	dst := fs.reserveReg()
	fs.compileExpr(dst, e)
	return dst
}

// compileExprRK returns an RK operand for e: a constant-pool index for
// literals, the register directly for an already-resident local, or a
// fresh register otherwise.
func (fs *funcState) compileExprRK(e ast.Expression) int {
	if idx, ok := fs.litOperand(e); ok {
		return idx
	}
	if id, ok := e.(*ast.Identifier); ok {
		if reg, ok := fs.resolveLocal(id.Name); ok {
			return reg
		}
	}
	return fs.compileExprToNewReg(e)
}

// compileExprListAdjust compiles exprs into exactly want freshly allocated,
// contiguous registers: missing values are padded with nil, extra values
// are still evaluated (for side effects) and discarded.
//
// Luma, like the rest of this front end, does not propagate multiple
// return values through an expression list: a trailing call or ... only
// ever contributes a single value here, never "all remaining results".
func (fs *funcState) compileExprListAdjust(exprs []ast.Expression, want int) []int {
	regs := make([]int, 0, want)
	n := len(exprs)
	for i := 0; i < n && i < want; i++ {
		regs = append(regs, fs.compileExprToNewReg(exprs[i]))
	}
	for i := n; i < want; i++ {
		r := fs.reserveReg()
		fs.emit(vm.Encode(vm.OpLoadNil, r, 0, 0))
		regs = append(regs, r)
	}
	for i := want; i < n; i++ {
		fs.compileExprToNewReg(exprs[i])
	}
	return regs
}

func (fs *funcState) compileTableExpr(dst int, v *ast.TableExpr) {
	fs.emitAt(v.Pos, vm.Encode(vm.OpNewTable, dst, 0, 0))
	arrIdx := 1
	for _, f := range v.Fields {
		if f.Key == nil {
			valReg := fs.compileExprToNewReg(f.Value)
			kIdx := fs.kConst(vm.Number(float64(arrIdx)))
			fs.emitAt(v.Pos, vm.Encode(vm.OpSetTable, dst, vm.RKAsK(kIdx), valReg))
			arrIdx++
			continue
		}
		keyOperand := fs.compileExprRK(f.Key)
		valReg := fs.compileExprToNewReg(f.Value)
		fs.emitAt(v.Pos, vm.Encode(vm.OpSetTable, dst, keyOperand, valReg))
	}
}

// compileCall lays out fn (and, for a method call, the implicit self
// argument) and the argument list in contiguous registers starting at a
// freshly reserved funcReg, emits CALL, and returns funcReg — where the
// sole requested result (if nresults==1) is left by the interpreter.
func (fs *funcState) compileCall(call *ast.CallExpr, pos token.Position, nresults int) int {
	funcReg := fs.reserveReg()
	nargs := len(call.Args)

	if call.Method != "" {
		objReg := fs.reserveReg()
		fs.compileExpr(objReg, call.Fn)
		mIdx := fs.kString(call.Method)
		fs.emitAt(pos, vm.Encode(vm.OpSelf, funcReg, objReg, vm.RKAsK(mIdx)))
		nargs++
	} else {
		fs.compileExpr(funcReg, call.Fn)
	}

	for _, a := range call.Args {
		r := fs.reserveReg()
		fs.compileExpr(r, a)
	}

	fs.emitAt(pos, vm.Encode(vm.OpCall, funcReg, nargs+1, nresults+1))
	return funcReg
}

var unaryOp = map[token.Type]vm.OpCode{
	token.MINUS: vm.OpUnm,
	token.NOT:   vm.OpNot,
	token.HASH:  vm.OpLen,
}

func (fs *funcState) compileUnaryExpr(dst int, v *ast.UnaryExpr) {
	op, ok := unaryOp[v.Op]
	if !ok {
		fs.fail(v.Pos, "codegen: unsupported unary operator %s", v.Op)
	}
	operand := fs.compileExprToNewReg(v.Operand)
	fs.emitAt(v.Pos, vm.Encode(op, dst, operand, 0))
}

var arithOp = map[token.Type]vm.OpCode{
	token.PLUS:    vm.OpAdd,
	token.MINUS:   vm.OpSub,
	token.STAR:    vm.OpMul,
	token.SLASH:   vm.OpDiv,
	token.PERCENT: vm.OpMod,
	token.CARET:   vm.OpPow,
}

func (fs *funcState) compileBinaryExpr(dst int, v *ast.BinaryExpr) {
	switch v.Op {
	case token.AND:
		fs.compileAndOr(dst, v, true)
		return
	case token.OR:
		fs.compileAndOr(dst, v, false)
		return
	case token.DOTDOT:
		fs.compileConcat(dst, v)
		return
	}

	if op, ok := arithOp[v.Op]; ok {
		l := fs.compileExprRK(v.Left)
		r := fs.compileExprRK(v.Right)
		fs.emitAt(v.Pos, vm.Encode(op, dst, l, r))
		return
	}

	switch v.Op {
	case token.EQ, token.NEQ:
		l := fs.compileExprRK(v.Left)
		r := fs.compileExprRK(v.Right)
		want := 1
		if v.Op == token.NEQ {
			want = 0
		}
		fs.emitAt(v.Pos, vm.Encode(vm.OpEq, want, l, r))
		fs.compileRelationalResult(dst, v.Pos)
	case token.LT, token.GT:
		l, r := fs.compileExprRK(v.Left), fs.compileExprRK(v.Right)
		if v.Op == token.GT {
			l, r = r, l
		}
		fs.emitAt(v.Pos, vm.Encode(vm.OpLt, 1, l, r))
		fs.compileRelationalResult(dst, v.Pos)
	case token.LTE, token.GTE:
		l, r := fs.compileExprRK(v.Left), fs.compileExprRK(v.Right)
		if v.Op == token.GTE {
			l, r = r, l
		}
		fs.emitAt(v.Pos, vm.Encode(vm.OpLe, 1, l, r))
		fs.compileRelationalResult(dst, v.Pos)
	default:
		fs.fail(v.Pos, "codegen: unsupported binary operator %s", v.Op)
	}
}

// compileRelationalResult materializes the boolean result of the
// comparison opcode just emitted into dst. A conditional opcode (EQ/LT/LE)
// takes its paired JMP exactly when the comparison matches the A operand
// supplied by the caller, so here "jump taken" always means "the
// comparison the caller asked about is true": the JMP lands on a
// LOADBOOL-true, and falling through (comparison false) lands on a
// LOADBOOL-false that skips over it.
func (fs *funcState) compileRelationalResult(dst int, pos token.Position) {
	jTrue := fs.emitAt(pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
	fs.emitAt(pos, vm.Encode(vm.OpLoadBool, dst, 0, 1)) // false, skip next
	fs.patchJump(jTrue, fs.here())
	fs.emitAt(pos, vm.Encode(vm.OpLoadBool, dst, 1, 0)) // true
}

// compileAndOr compiles Left <and|or> Right with Lua's short-circuit
// value semantics (the result is whichever operand decided it, not a
// coerced boolean) using TESTSET: if Left's truthiness already decides
// the expression, TESTSET copies it to dst and the following JMP skips
// evaluating Right.
func (fs *funcState) compileAndOr(dst int, v *ast.BinaryExpr, isAnd bool) {
	lReg := fs.compileExprToNewReg(v.Left)
	c := 0
	if isAnd {
		c = 0
	} else {
		c = 1
	}
	fs.emitAt(v.Pos, vm.Encode(vm.OpTestSet, dst, lReg, c))
	jSkip := fs.emitAt(v.Pos, vm.EncodeSBx(vm.OpJmp, 0, 0))
	fs.compileExpr(dst, v.Right)
	fs.patchJump(jSkip, fs.here())
}

func (fs *funcState) compileConcat(dst int, v *ast.BinaryExpr) {
	base := fs.freereg
	fs.compileExprToNewReg(v.Left)
	fs.compileExprToNewReg(v.Right)
	fs.emitAt(v.Pos, vm.Encode(vm.OpConcat, dst, base, base+1))
}
