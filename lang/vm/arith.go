// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "math"

// arith implements x <op> y for the six arithmetic opcodes: coerce both
// operands to numbers if possible, else consult __<op> on x then y, else
// raise a typed error (spec §4.8's arithmetic dispatch).
func (th *Thread) arith(op TM, x, y Value) Value {
	xn, xok := ToNumber(x)
	yn, yok := ToNumber(y)
	if xok && yok {
		return Number(applyArith(op, xn, yn))
	}

	if h, ok := th.global.tagMethod(x, op); ok {
		return th.call1(h, x, y)
	}
	if h, ok := th.global.tagMethod(y, op); ok {
		return th.call1(h, x, y)
	}

	bad := x
	if xok {
		bad = y
	}
	th.raise(ErrRuntime, "attempt to perform arithmetic on a %s value", bad.TypeName())
	return Nil
}

func applyArith(op TM, a, b float64) float64 {
	switch op {
	case TMAdd:
		return a + b
	case TMSub:
		return a - b
	case TMMul:
		return a * b
	case TMDiv:
		return a / b
	case TMMod:
		r := math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r
	case TMPow:
		return math.Pow(a, b)
	default:
		return math.NaN()
	}
}

// unm implements unary minus with __unm fallback.
func (th *Thread) unm(x Value) Value {
	if xn, ok := ToNumber(x); ok {
		return Number(-xn)
	}
	if h, ok := th.global.tagMethod(x, TMUnm); ok {
		return th.call1(h, x, x)
	}
	th.raise(ErrRuntime, "attempt to perform arithmetic on a %s value", x.TypeName())
	return Nil
}

// length implements the LEN opcode: strings use byte length, tables use
// Table.Len unless __len overrides it.
func (th *Thread) length(x Value) Value {
	switch x.kind {
	case KString:
		s, _ := x.AsString()
		return Number(float64(s.Len()))
	case KTable:
		if h, ok := th.global.tagMethod(x, TMLen); ok {
			return th.call1(h, x, Nil)
		}
		t, _ := x.AsTable()
		return Number(float64(t.Len()))
	default:
		if h, ok := th.global.tagMethod(x, TMLen); ok {
			return th.call1(h, x, Nil)
		}
		th.raise(ErrRuntime, "attempt to get length of a %s value", x.TypeName())
		return Nil
	}
}

// concat implements CONCAT's pairwise step: string/number operands
// concatenate directly; otherwise __concat is consulted on either operand.
func (th *Thread) concat(x, y Value) Value {
	if concatable(x) && concatable(y) {
		return stringValue(th.global.internString(concatString(th.global, x) + concatString(th.global, y)))
	}
	if h, ok := th.global.tagMethod(x, TMConcat); ok {
		return th.call1(h, x, y)
	}
	if h, ok := th.global.tagMethod(y, TMConcat); ok {
		return th.call1(h, x, y)
	}
	bad := x
	if concatable(x) {
		bad = y
	}
	th.raise(ErrRuntime, "attempt to concatenate a %s value", bad.TypeName())
	return Nil
}

func concatable(v Value) bool { return v.kind == KString || v.kind == KNumber }

func concatString(g *Global, v Value) string {
	if v.kind == KNumber {
		return NumberToString(v.num)
	}
	s, _ := v.AsString()
	return s.Value()
}

// equals implements EQ: same-kind comparison, with __eq consulted only
// when both operands are tables or both are userdata sharing a metatable
// (spec §4.8).
func (th *Thread) equals(x, y Value) bool {
	if x.kind != y.kind {
		return false
	}
	if RawEqual(x, y) {
		return true
	}
	if x.kind != KTable && x.kind != KUserdata {
		return false
	}
	mtx := th.global.metatableFor(x)
	mty := th.global.metatableFor(y)
	if mtx == nil || mtx != mty {
		return false
	}
	h, ok := th.global.tagMethod(x, TMEq)
	if !ok {
		return false
	}
	res := th.call1(h, x, y)
	return res.Truthy() // open question #1: non-boolean __eq result coerces to truthiness
}

// less implements LT: numeric/string ordering, else __lt.
func (th *Thread) less(x, y Value) bool {
	if x.kind == KNumber && y.kind == KNumber {
		return x.num < y.num
	}
	if x.kind == KString && y.kind == KString {
		sx, _ := x.AsString()
		sy, _ := y.AsString()
		return sx.Value() < sy.Value()
	}
	if h, ok := th.global.tagMethod(x, TMLt); ok {
		return th.call1(h, x, y).Truthy()
	}
	if h, ok := th.global.tagMethod(y, TMLt); ok {
		return th.call1(h, x, y).Truthy()
	}
	th.raise(ErrRuntime, "attempt to compare two %s values", x.TypeName())
	return false
}

// lessEqual implements LE: numeric/string ordering, else __le, else
// `not (y < x)` fallback (spec §4.8).
func (th *Thread) lessEqual(x, y Value) bool {
	if x.kind == KNumber && y.kind == KNumber {
		return x.num <= y.num
	}
	if x.kind == KString && y.kind == KString {
		sx, _ := x.AsString()
		sy, _ := y.AsString()
		return sx.Value() <= sy.Value()
	}
	if h, ok := th.global.tagMethod(x, TMLe); ok {
		return th.call1(h, x, y).Truthy()
	}
	if h, ok := th.global.tagMethod(y, TMLe); ok {
		return th.call1(h, x, y).Truthy()
	}
	return !th.less(y, x)
}

// call1 invokes a tag-method expecting exactly one result, used
// throughout arithmetic/comparison dispatch.
func (th *Thread) call1(fn, a, b Value) Value {
	res, err := th.Call(fn, []Value{a, b}, 1)
	if err != nil {
		panic(err)
	}
	if len(res) == 0 {
		return Nil
	}
	return res[0]
}

// index implements GETTABLE/indexing chain lookup (__index), following a
// table or function chain to a bounded depth to prevent cycles (spec
// §4.8).
func (th *Thread) index(t Value, key Value) Value {
	const maxDepth = 100
	cur := t
	for depth := 0; depth < maxDepth; depth++ {
		if tbl, ok := cur.AsTable(); ok {
			v := tbl.Get(key)
			if !v.IsNil() {
				return v
			}
			h, ok := th.global.tagMethod(cur, TMIndex)
			if !ok {
				return Nil
			}
			if h.kind == KFunction {
				return th.call1(h, cur, key)
			}
			cur = h
			continue
		}
		h, ok := th.global.tagMethod(cur, TMIndex)
		if !ok {
			th.raise(ErrRuntime, "attempt to index a %s value", cur.TypeName())
		}
		if h.kind == KFunction {
			return th.call1(h, cur, key)
		}
		cur = h
	}
	th.raise(ErrRuntime, "'__index' chain too long; possible loop")
	return Nil
}

// newindex implements SETTABLE/the newindex chain (__newindex).
func (th *Thread) newindex(t Value, key, val Value) {
	const maxDepth = 100
	cur := t
	for depth := 0; depth < maxDepth; depth++ {
		if tbl, ok := cur.AsTable(); ok {
			if !tbl.Get(key).IsNil() {
				if err := tbl.Set(key, val); err != nil {
					th.raise(ErrRuntime, "%s", err.Error())
				}
				return
			}
			h, ok := th.global.tagMethod(cur, TMNewIndex)
			if !ok {
				if err := tbl.Set(key, val); err != nil {
					th.raise(ErrRuntime, "%s", err.Error())
				}
				return
			}
			if h.kind == KFunction {
				if _, err := th.Call(h, []Value{cur, key, val}, 0); err != nil {
					panic(err)
				}
				return
			}
			cur = h
			continue
		}
		h, ok := th.global.tagMethod(cur, TMNewIndex)
		if !ok {
			th.raise(ErrRuntime, "attempt to index a %s value", cur.TypeName())
		}
		if h.kind == KFunction {
			if _, err := th.Call(h, []Value{cur, key, val}, 0); err != nil {
				panic(err)
			}
			return
		}
		cur = h
	}
	th.raise(ErrRuntime, "'__newindex' chain too long; possible loop")
}
