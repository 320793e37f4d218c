// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package base installs the unqualified global functions every Luma chunk
// sees by default: print, type, tostring, tonumber, pairs/ipairs/next,
// pcall/xpcall, setmetatable/getmetatable, rawget/rawset/rawequal/rawlen,
// collectgarbage, error, assert, select, unpack. Registration contract
// only (spec.md's scope note): bodies are the minimal Lua 5.1-compatible
// behavior needed to drive the end-to-end scenarios.
package base

import (
	"fmt"
	"os"

	"github.com/lumalang/luma/lang/vm"
)

// Open installs the base library's functions into th's globals table.
func Open(th *vm.Thread) {
	g := th.Globals()
	reg := func(name string, fn vm.GoFunction) {
		_ = g.Set(th.NewString(name), th.Register(name, fn))
	}

	reg("print", builtinPrint)
	reg("type", builtinType)
	reg("tostring", builtinToString)
	reg("tonumber", builtinToNumber)
	reg("pairs", builtinPairs)
	reg("ipairs", builtinIPairs)
	reg("next", builtinNext)
	reg("pcall", builtinPCall)
	reg("xpcall", builtinXPCall)
	reg("setmetatable", builtinSetMetatable)
	reg("getmetatable", builtinGetMetatable)
	reg("rawget", builtinRawGet)
	reg("rawset", builtinRawSet)
	reg("rawequal", builtinRawEqual)
	reg("rawlen", builtinRawLen)
	reg("collectgarbage", builtinCollectGarbage)
	reg("error", builtinError)
	reg("assert", builtinAssert)
	reg("select", builtinSelect)
	reg("unpack", builtinUnpack)

	_ = g.Set(th.NewString("_VERSION"), th.NewString("Luma 5.1"))
	_ = g.Set(th.NewString("_G"), vm.TableValueOf(g))
}

// ToString renders v the way tostring() does: __tostring wins if present,
// otherwise the core's metamethod-free rendering.
func ToString(th *vm.Thread, v vm.Value) string {
	if mt := th.Global().Metatable(v); mt != nil {
		if callable := mt.Get(th.NewString("__tostring")); callable.Kind() == vm.KFunction {
			results, err := th.Call(callable, []vm.Value{v}, 1)
			if err == nil && len(results) > 0 {
				if s, ok := results[0].AsString(); ok {
					return s.Value()
				}
			}
		}
	}
	return th.Global().ToStringNoMeta(v)
}

func builtinPrint(th *vm.Thread) (int, error) {
	n := th.NArgs()
	parts := make([]interface{}, n)
	for i := 0; i < n; i++ {
		parts[i] = ToString(th, th.Arg(i))
	}
	line := ""
	for i, p := range parts {
		if i > 0 {
			line += "\t"
		}
		line += p.(string)
	}
	fmt.Fprintln(os.Stdout, line)
	return 0, nil
}

func builtinType(th *vm.Thread) (int, error) {
	th.PushResult(th.NewString(th.Arg(0).TypeName()))
	return 1, nil
}

func builtinToString(th *vm.Thread) (int, error) {
	th.PushResult(th.NewString(ToString(th, th.Arg(0))))
	return 1, nil
}

func builtinToNumber(th *vm.Thread) (int, error) {
	v := th.Arg(0)
	if th.NArgs() >= 2 {
		base, ok := v.AsString()
		if !ok {
			th.PushResult(vm.Nil)
			return 1, nil
		}
		baseN := int(th.Arg(1).AsNumber())
		n, err := parseInBase(base.Value(), baseN)
		if err != nil {
			th.PushResult(vm.Nil)
			return 1, nil
		}
		th.PushResult(vm.Number(n))
		return 1, nil
	}
	if n, ok := vm.ToNumber(v); ok {
		th.PushResult(vm.Number(n))
		return 1, nil
	}
	th.PushResult(vm.Nil)
	return 1, nil
}

func parseInBase(s string, base int) (float64, error) {
	var n int64
	var err error
	_, err = fmt.Sscanf(s, "%d", &n)
	if base == 10 || base == 0 {
		return float64(n), err
	}
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var acc int64
	for _, c := range s {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'z':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			d = int64(c-'A') + 10
		default:
			return 0, fmt.Errorf("invalid digit %q", c)
		}
		if d >= int64(base) {
			return 0, fmt.Errorf("digit %q out of range for base %d", c, base)
		}
		acc = acc*int64(base) + d
	}
	if neg {
		acc = -acc
	}
	return float64(acc), nil
}

func builtinNext(th *vm.Thread) (int, error) {
	t, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'next' (table expected)")
	}
	key := th.Arg(1)
	nk, nv, ok := t.Next(key)
	if !ok {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	th.PushResult(nk)
	th.PushResult(nv)
	return 2, nil
}

func builtinPairs(th *vm.Thread) (int, error) {
	t := th.Arg(0)
	if _, ok := t.AsTable(); !ok {
		return 0, fmt.Errorf("bad argument #1 to 'pairs' (table expected)")
	}
	th.PushResult(th.Globals().Get(th.NewString("next")))
	th.PushResult(t)
	th.PushResult(vm.Nil)
	return 3, nil
}

func builtinIPairs(th *vm.Thread) (int, error) {
	t := th.Arg(0)
	if _, ok := t.AsTable(); !ok {
		return 0, fmt.Errorf("bad argument #1 to 'ipairs' (table expected)")
	}
	th.PushResult(th.Register("inext", inext))
	th.PushResult(t)
	th.PushResult(vm.Number(0))
	return 3, nil
}

func inext(th *vm.Thread) (int, error) {
	t, _ := th.Arg(0).AsTable()
	i := th.Arg(1).AsNumber() + 1
	v := t.Get(vm.Number(i))
	if v.IsNil() {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	th.PushResult(vm.Number(i))
	th.PushResult(v)
	return 2, nil
}

func builtinPCall(th *vm.Thread) (int, error) {
	n := th.NArgs()
	if n == 0 {
		return 0, fmt.Errorf("bad argument #1 to 'pcall' (value expected)")
	}
	fn := th.Arg(0)
	args := make([]vm.Value, n-1)
	for i := 1; i < n; i++ {
		args[i-1] = th.Arg(i)
	}
	results, err := th.PCall(fn, args, vm.Nil)
	if err != nil {
		th.PushResult(vm.Bool(false))
		th.PushResult(errorToValue(th, err))
		return 2, nil
	}
	th.PushResult(vm.Bool(true))
	for _, r := range results {
		th.PushResult(r)
	}
	return 1 + len(results), nil
}

func builtinXPCall(th *vm.Thread) (int, error) {
	n := th.NArgs()
	if n < 2 {
		return 0, fmt.Errorf("bad argument #2 to 'xpcall' (value expected)")
	}
	fn := th.Arg(0)
	handler := th.Arg(1)
	args := make([]vm.Value, n-2)
	for i := 2; i < n; i++ {
		args[i-2] = th.Arg(i)
	}
	results, err := th.PCall(fn, args, handler)
	if err != nil {
		th.PushResult(vm.Bool(false))
		th.PushResult(errorToValue(th, err))
		return 2, nil
	}
	th.PushResult(vm.Bool(true))
	for _, r := range results {
		th.PushResult(r)
	}
	return 1 + len(results), nil
}

func errorToValue(th *vm.Thread, err error) vm.Value {
	if re, ok := err.(*vm.RuntimeError); ok {
		return re.Value
	}
	return th.NewString(err.Error())
}

func builtinSetMetatable(th *vm.Thread) (int, error) {
	t, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'setmetatable' (table expected)")
	}
	mtArg := th.Arg(1)
	if mtArg.IsNil() {
		t.SetMetatable(nil)
	} else {
		mt, ok := mtArg.AsTable()
		if !ok {
			return 0, fmt.Errorf("bad argument #2 to 'setmetatable' (nil or table expected)")
		}
		t.SetMetatable(mt)
	}
	th.PushResult(th.Arg(0))
	return 1, nil
}

func builtinGetMetatable(th *vm.Thread) (int, error) {
	mt := th.Global().Metatable(th.Arg(0))
	if mt == nil {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	if protected := mt.Get(th.NewString("__metatable")); !protected.IsNil() {
		th.PushResult(protected)
		return 1, nil
	}
	th.PushResult(vm.TableValueOf(mt))
	return 1, nil
}

func builtinRawGet(th *vm.Thread) (int, error) {
	t, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'rawget' (table expected)")
	}
	th.PushResult(th.RawGet(t, th.Arg(1)))
	return 1, nil
}

func builtinRawSet(th *vm.Thread) (int, error) {
	t, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'rawset' (table expected)")
	}
	if err := th.RawSet(t, th.Arg(1), th.Arg(2)); err != nil {
		return 0, err
	}
	th.PushResult(th.Arg(0))
	return 1, nil
}

func builtinRawEqual(th *vm.Thread) (int, error) {
	th.PushResult(vm.Bool(th.Arg(0).Kind() == th.Arg(1).Kind() && vm.RawEqual(th.Arg(0), th.Arg(1))))
	return 1, nil
}

func builtinRawLen(th *vm.Thread) (int, error) {
	v := th.Arg(0)
	if t, ok := v.AsTable(); ok {
		th.PushResult(vm.Number(float64(vm.RawLen(t))))
		return 1, nil
	}
	if s, ok := v.AsString(); ok {
		th.PushResult(vm.Number(float64(s.Len())))
		return 1, nil
	}
	return 0, fmt.Errorf("table or string expected")
}

func builtinCollectGarbage(th *vm.Thread) (int, error) {
	opt := "collect"
	if s, ok := th.Arg(0).AsString(); ok {
		opt = s.Value()
	}
	arg := int(th.Arg(1).AsNumber())
	th.PushResult(vm.Number(th.Global().GCControl(opt, arg)))
	return 1, nil
}

func builtinError(th *vm.Thread) (int, error) {
	level := 1
	if th.NArgs() >= 2 {
		level = int(th.Arg(1).AsNumber())
	}
	th.Error(th.Arg(0), level)
	return 0, nil // unreachable: Error panics
}

func builtinAssert(th *vm.Thread) (int, error) {
	if th.Arg(0).Truthy() {
		n := th.NArgs()
		for i := 0; i < n; i++ {
			th.PushResult(th.Arg(i))
		}
		return n, nil
	}
	msg := th.Arg(1)
	if msg.IsNil() {
		msg = th.NewString("assertion failed!")
	}
	th.Error(msg, 1)
	return 0, nil
}

func builtinSelect(th *vm.Thread) (int, error) {
	sel := th.Arg(0)
	if s, ok := sel.AsString(); ok && s.Value() == "#" {
		th.PushResult(vm.Number(float64(th.NArgs() - 1)))
		return 1, nil
	}
	idx := int(sel.AsNumber())
	n := th.NArgs()
	if idx < 0 {
		idx = n + idx
	}
	count := 0
	for i := idx; i < n; i++ {
		th.PushResult(th.Arg(i))
		count++
	}
	return count, nil
}

func builtinUnpack(th *vm.Thread) (int, error) {
	t, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'unpack' (table expected)")
	}
	i := 1
	if th.NArgs() >= 2 {
		i = int(th.Arg(1).AsNumber())
	}
	j := vm.RawLen(t)
	if th.NArgs() >= 3 {
		j = int(th.Arg(2).AsNumber())
	}
	count := 0
	for ; i <= j; i++ {
		th.PushResult(t.Get(vm.Number(float64(i))))
		count++
	}
	return count, nil
}
