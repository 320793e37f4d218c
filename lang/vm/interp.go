// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// Call invokes fn with args, waiting for nresults values (-1 means
// multret: return everything the callee produces). This is the host-facing
// entry point (spec §6's call/pCall) and is also how tag-methods and
// stdlib functions invoke callbacks.
func (th *Thread) Call(fn Value, args []Value, nresults int) ([]Value, error) {
	base := th.top
	th.push(fn)
	for _, a := range args {
		th.push(a)
	}
	res := th.callAt(base, len(args), nresults)
	th.top = base
	return res, nil
}

// callAt executes the call whose function value already sits at stack
// index funcIndex with nargs arguments above it, dispatching to the Lua
// interpreter, a Go closure, or (recursively) a __call metamethod.
func (th *Thread) callAt(funcIndex, nargs, nresults int) []Value {
	fnv := th.stack[funcIndex]
	switch obj := fnv.Callable().(type) {
	case *LuaClosure:
		return th.callLua(obj, funcIndex, nargs, nresults)
	case *CClosure:
		return th.callGo(obj, funcIndex, nargs, nresults)
	default:
		h, ok := th.global.tagMethod(fnv, TMCall)
		if !ok {
			th.raise(ErrRuntime, "attempt to call a %s value", fnv.TypeName())
		}
		// __call receives the original value as an extra leading argument:
		// shift args right and splice h into the function slot.
		th.ensureStack(th.top + 1)
		copy(th.stack[funcIndex+2:th.top+1], th.stack[funcIndex+1:th.top])
		th.stack[funcIndex] = h
		th.stack[funcIndex+1] = fnv
		th.top++
		return th.callAt(funcIndex, nargs+1, nresults)
	}
}

func adjustResults(res []Value, want int) []Value {
	if want < 0 {
		return res
	}
	if len(res) >= want {
		return res[:want]
	}
	out := make([]Value, want)
	copy(out, res)
	for i := len(res); i < want; i++ {
		out[i] = Nil
	}
	return out
}

func (th *Thread) callGo(c *CClosure, funcIndex, nargs, nresults int) []Value {
	if len(th.calls) > maxCallDepth {
		th.raise(ErrRuntime, "stack overflow")
	}
	argsBase := funcIndex + 1
	th.calls = append(th.calls, callInfo{
		fn: th.stack[funcIndex], base: argsBase, top: argsBase + nargs,
		isGo: true, nargs: nargs, nresults: nresults, errHandler: -1,
	})
	th.top = argsBase + nargs
	th.fireHook(MaskCall, 0)

	n, err := c.Fn(th)
	if err != nil {
		th.calls = th.calls[:len(th.calls)-1]
		if re, ok := err.(*RuntimeError); ok {
			panic(re)
		}
		panic(th.global.newRuntimeError(ErrRuntime, "%s", err.Error()))
	}

	resStart := th.top - n
	results := append([]Value(nil), th.stack[resStart:th.top]...)
	th.calls = th.calls[:len(th.calls)-1]
	th.top = funcIndex
	th.fireHook(MaskRet, 0)
	return adjustResults(results, nresults)
}

const maxCallDepth = 200

// callLua runs a freshly invoked Lua closure to completion (including any
// nested non-tail calls, handled by recursing into callLua again) and
// returns its results. TAILCALL is handled inside the instruction loop by
// overwriting the current frame in place rather than recursing, so a chain
// of N tail calls never grows Go's own call stack (spec invariant 7).
func (th *Thread) callLua(cl *LuaClosure, funcIndex, nargs, nresults int) []Value {
	if len(th.calls) > maxCallDepth {
		th.raise(ErrRuntime, "stack overflow")
	}
	base := funcIndex + 1
	th.setupLuaFrame(cl, base, nargs)

	th.calls = append(th.calls, callInfo{
		fn: th.stack[funcIndex], base: base, nresults: nresults, errHandler: -1,
	})
	th.fireHook(MaskCall, 0)

	results := th.run(len(th.calls) - 1)

	th.top = funcIndex
	th.fireHook(MaskRet, 0)
	return adjustResults(results, nresults)
}

// setupLuaFrame places fixed parameters in registers base..base+nparams-1,
// stashes extra actual arguments as varargs when the proto is vararg, and
// ensures the register window up to MaxStack is nil-initialized.
func (th *Thread) setupLuaFrame(cl *LuaClosure, base, nargs int) {
	proto := cl.Proto
	th.ensureStack(base + proto.MaxStack + 8)

	var varargs []Value
	if proto.IsVararg && nargs > proto.NumParams {
		varargs = append([]Value(nil), th.stack[base+proto.NumParams:base+nargs]...)
	}
	for i := nargs; i < proto.MaxStack; i++ {
		th.stack[base+i] = Nil
	}
	th.top = base + proto.MaxStack
	th.pendingVarargs = varargs
}

// run executes instructions for the call frame at calls[ci] until it
// returns, handling nested CALL by recursion and TAILCALL/loop constructs
// in place. Returns the callee's result values.
func (th *Thread) run(ci int) []Value {
	frame := &th.calls[ci]
	cl := frame.fn.Callable().(*LuaClosure)
	proto := cl.Proto
	base := frame.base
	varargs := th.pendingVarargs
	th.pendingVarargs = nil
	th.calls[ci].varargs = varargs
	pc := 0

	reg := func(i int) Value { return th.stack[base+i] }
	setReg := func(i int, v Value) { th.stack[base+i] = v }
	rk := func(operand int) Value {
		if IsK(operand) {
			return proto.Constants[IndexK(operand)]
		}
		return reg(operand)
	}

	for {
		instr := proto.Code[pc]
		frame.savedPC = pc + 1
		th.fireLineHook(proto.LineAt(pc))
		pc++

		switch instr.OpCode() {
		case OpMove:
			setReg(instr.A(), reg(instr.B()))

		case OpLoadK:
			setReg(instr.A(), proto.Constants[instr.Bx()])

		case OpLoadBool:
			setReg(instr.A(), Bool(instr.B() != 0))
			if instr.C() != 0 {
				pc++
			}

		case OpLoadNil:
			for i := instr.A(); i <= instr.A()+instr.B(); i++ {
				setReg(i, Nil)
			}

		case OpGetUpval:
			setReg(instr.A(), cl.Ups[instr.B()].Get())

		case OpSetUpval:
			cl.Ups[instr.B()].Set(reg(instr.A()))

		case OpGetGlobal:
			key := proto.Constants[instr.Bx()]
			setReg(instr.A(), th.index(tableValue(th.globals), key))

		case OpSetGlobal:
			key := proto.Constants[instr.Bx()]
			th.newindex(tableValue(th.globals), key, reg(instr.A()))

		case OpGetTable:
			setReg(instr.A(), th.index(reg(instr.B()), rk(instr.C())))

		case OpSetTable:
			th.newindex(reg(instr.A()), rk(instr.B()), rk(instr.C()))

		case OpNewTable:
			setReg(instr.A(), tableValue(th.newTable(fbToInt(instr.B()), fbToInt(instr.C()))))

		case OpSelf:
			obj := reg(instr.B())
			setReg(instr.A()+1, obj)
			setReg(instr.A(), th.index(obj, rk(instr.C())))

		case OpAdd:
			setReg(instr.A(), th.arith(TMAdd, rk(instr.B()), rk(instr.C())))
		case OpSub:
			setReg(instr.A(), th.arith(TMSub, rk(instr.B()), rk(instr.C())))
		case OpMul:
			setReg(instr.A(), th.arith(TMMul, rk(instr.B()), rk(instr.C())))
		case OpDiv:
			setReg(instr.A(), th.arith(TMDiv, rk(instr.B()), rk(instr.C())))
		case OpMod:
			setReg(instr.A(), th.arith(TMMod, rk(instr.B()), rk(instr.C())))
		case OpPow:
			setReg(instr.A(), th.arith(TMPow, rk(instr.B()), rk(instr.C())))

		case OpUnm:
			setReg(instr.A(), th.unm(reg(instr.B())))

		case OpNot:
			setReg(instr.A(), Bool(reg(instr.B()).IsFalsy()))

		case OpLen:
			setReg(instr.A(), th.length(reg(instr.B())))

		case OpConcat:
			v := reg(instr.C())
			for i := instr.C() - 1; i >= instr.B(); i-- {
				v = th.concat(reg(i), v)
			}
			setReg(instr.A(), v)

		case OpJmp:
			pc += instr.SBx()

		case OpEq:
			if th.equals(rk(instr.B()), rk(instr.C())) != (instr.A() != 0) {
				pc++
			} else {
				pc += proto.Code[pc].SBx()
				pc++
			}

		case OpLt:
			if th.less(rk(instr.B()), rk(instr.C())) != (instr.A() != 0) {
				pc++
			} else {
				pc += proto.Code[pc].SBx()
				pc++
			}

		case OpLe:
			if th.lessEqual(rk(instr.B()), rk(instr.C())) != (instr.A() != 0) {
				pc++
			} else {
				pc += proto.Code[pc].SBx()
				pc++
			}

		case OpTest:
			if reg(instr.A()).Truthy() != (instr.C() != 0) {
				pc++
			} else {
				pc += proto.Code[pc].SBx()
				pc++
			}

		case OpTestSet:
			v := reg(instr.B())
			if v.Truthy() != (instr.C() != 0) {
				pc++
			} else {
				setReg(instr.A(), v)
				pc += proto.Code[pc].SBx()
				pc++
			}

		case OpCall:
			funcIndex := base + instr.A()
			nargs := instr.B() - 1
			if instr.B() == 0 {
				nargs = th.top - funcIndex - 1
			}
			nres := instr.C() - 1
			results := th.callAt(funcIndex, nargs, nres)
			th.spliceResults(funcIndex, results, instr.C())

		case OpTailCall:
			funcIndex := base + instr.A()
			nargs := instr.B() - 1
			if instr.B() == 0 {
				nargs = th.top - funcIndex - 1
			}
			if next, ok := th.tryMergeTailCall(frame, funcIndex, nargs); ok {
				cl, proto, pc = next.cl, next.proto, 0
				base = frame.base
				varargs = next.varargs
				th.calls[ci].varargs = varargs
				reg = func(i int) Value { return th.stack[base+i] }
				setReg = func(i int, v Value) { th.stack[base+i] = v }
				rk = func(operand int) Value {
					if IsK(operand) {
						return proto.Constants[IndexK(operand)]
					}
					return reg(operand)
				}
				continue
			}
			// Callee is a Go function or needs __call: degrade to CALL+RETURN.
			results := th.callAt(funcIndex, nargs, -1)
			th.closeUpvalues(base)
			return results

		case OpReturn:
			start := instr.A()
			n := instr.B() - 1
			if instr.B() == 0 {
				n = th.top - (base + start)
			}
			results := append([]Value(nil), th.stack[base+start:base+start+n]...)
			th.closeUpvalues(base)
			return results

		case OpForLoop:
			init := reg(instr.A()).num
			limit := reg(instr.A() + 1).num
			step := reg(instr.A() + 2).num
			init += step
			if (step > 0 && init <= limit) || (step < 0 && init >= limit) {
				setReg(instr.A(), Number(init))
				setReg(instr.A()+3, Number(init))
				pc += instr.SBx()
			}

		case OpForPrep:
			init := reg(instr.A()).num
			step := reg(instr.A() + 2).num
			setReg(instr.A(), Number(init-step))
			pc += instr.SBx()

		case OpTForLoop:
			fn := reg(instr.A())
			state := reg(instr.A() + 1)
			control := reg(instr.A() + 2)
			res := th.callAt(stackPush2(th, fn, state, control), 2, instr.C())
			for i, v := range res {
				setReg(instr.A()+3+i, v)
			}
			for i := len(res); i < instr.C(); i++ {
				setReg(instr.A()+3+i, Nil)
			}
			if res0 := reg(instr.A() + 3); !res0.IsNil() {
				setReg(instr.A()+2, res0)
				pc += proto.Code[pc].SBx()
			}
			pc++

		case OpSetList:
			t, _ := reg(instr.A()).AsTable()
			batch := instr.C()
			if batch == 0 {
				batch = proto.Code[pc].Bx()
				pc++
			}
			n := instr.B()
			if n == 0 {
				n = th.top - (base + instr.A() + 1)
			}
			const fieldsPerFlush = 50
			for i := 1; i <= n; i++ {
				if err := t.Set(Number(float64((batch-1)*fieldsPerFlush+i)), reg(instr.A()+i)); err != nil {
					th.raise(ErrRuntime, "%s", err.Error())
				}
			}

		case OpClose:
			th.closeUpvalues(base + instr.A())

		case OpClosure:
			inner := proto.Protos[instr.Bx()]
			nc := &LuaClosure{Proto: inner, Env: cl.Env}
			nc.Ups = make([]*Upvalue, len(inner.Upvalues))
			for i, desc := range inner.Upvalues {
				if desc.InStack {
					nc.Ups[i] = th.findOrCreateUpvalue(base + desc.Index)
				} else {
					nc.Ups[i] = cl.Ups[desc.Index]
				}
			}
			th.global.gc.Register(nc)
			setReg(instr.A(), functionValue(nc))
			pc += len(inner.Upvalues)

		case OpVararg:
			n := instr.B() - 1
			if n < 0 {
				n = len(varargs)
			}
			for i := 0; i < n; i++ {
				if i < len(varargs) {
					setReg(instr.A()+i, varargs[i])
				} else {
					setReg(instr.A()+i, Nil)
				}
			}
			if instr.B() == 0 {
				th.top = base + instr.A() + n
			}

		default:
			th.raise(ErrRuntime, "invalid opcode %v", instr.OpCode())
		}

		th.global.gc.MaybeStep()
	}
}

// spliceResults writes a callee's results back starting at funcIndex, per
// the CALL opcode's C-encoded expectation (0 means "keep everything on the
// stack", matching multret chaining into a following VARARG/CALL/SETLIST).
func (th *Thread) spliceResults(funcIndex int, results []Value, cEncoded int) {
	if cEncoded == 0 {
		th.ensureStack(funcIndex + len(results))
		for i, v := range results {
			th.stack[funcIndex+i] = v
		}
		th.top = funcIndex + len(results)
		return
	}
	want := cEncoded - 1
	adjusted := adjustResults(results, want)
	for i, v := range adjusted {
		th.stack[funcIndex+i] = v
	}
}

type tailTarget struct {
	cl      *LuaClosure
	proto   *Proto
	varargs []Value
}

// tryMergeTailCall implements TAILCALL's frame reuse (spec §4.7/invariant
// 7): when the callee is itself a Lua closure, copy it and its arguments
// down to the current frame's base, close upvalues above that point, bump
// the tail-call counter, and report the new closure so run's loop can
// continue without recursing. Returns ok=false for Go callees or __call
// targets, which the caller degrades to an ordinary CALL+RETURN.
func (th *Thread) tryMergeTailCall(frame *callInfo, funcIndex, nargs int) (tailTarget, bool) {
	fnv := th.stack[funcIndex]
	cl, ok := fnv.Callable().(*LuaClosure)
	if !ok {
		return tailTarget{}, false
	}
	th.closeUpvalues(frame.base)

	copy(th.stack[frame.base:frame.base+1+nargs], th.stack[funcIndex:funcIndex+1+nargs])
	th.setupLuaFrame(cl, frame.base, nargs)
	frame.fn = fnv
	frame.tailcalls++
	varargs := th.pendingVarargs
	th.pendingVarargs = nil
	return tailTarget{cl: cl, proto: cl.Proto, varargs: varargs}, true
}

// newTable creates a table sized from NEWTABLE's floating-point-encoded
// hints (B/C hold a byte in Lua's "floating byte" format: for values >= 8
// the top 5 bits are an exponent); fbToInt decodes them before they reach
// here, and the hint only affects pre-sizing.
func (th *Thread) newTable(narray, nhash int) *Table {
	t := NewTable(narray, nhash)
	th.global.gc.Register(t)
	return t
}

func fbToInt(fb int) int {
	if fb < 8 {
		return fb
	}
	mantissa := fb & 7
	exp := (fb >> 3) - 1
	return (mantissa + 8) << uint(exp)
}

func stackPush2(th *Thread, fn, state, control Value) int {
	base := th.top
	th.push(fn)
	th.push(state)
	th.push(control)
	return base
}

// fireHook invokes the installed call/return hook if MaskCall/MaskRet is
// set and we are not already inside a hook (re-entrancy guard, spec
// §4.7's hook point list).
func (th *Thread) fireHook(kind HookMask, line int) {
	if th.hookFunc == nil || th.inHook || th.hookMask&kind == 0 {
		return
	}
	th.inHook = true
	th.hookFunc(th, HookEvent{Kind: kind, Line: line})
	th.inHook = false
}

func (th *Thread) fireLineHook(line int) {
	if th.hookFunc == nil || th.inHook {
		return
	}
	if th.hookMask&MaskCount != 0 {
		th.hookLeft--
		if th.hookLeft <= 0 {
			th.hookLeft = th.hookCount
			th.inHook = true
			th.hookFunc(th, HookEvent{Kind: MaskCount, Line: line})
			th.inHook = false
		}
	}
	if th.hookMask&MaskLine != 0 {
		th.inHook = true
		th.hookFunc(th, HookEvent{Kind: MaskLine, Line: line})
		th.inHook = false
	}
}
