// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package tablib installs the table.* functions: insert, remove, concat,
// sort, unpack.
package tablib

import (
	"fmt"
	"sort"

	"github.com/lumalang/luma/lang/vm"
)

// Open installs the table library into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 8)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("table."+name, fn))
	}
	reg("insert", tableInsert)
	reg("remove", tableRemove)
	reg("concat", tableConcat)
	reg("sort", tableSort)
	reg("unpack", tableUnpack)

	_ = th.Globals().Set(th.NewString("table"), vm.TableValueOf(t))
}

func tableInsert(th *vm.Thread) (int, error) {
	arr, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'insert' (table expected)")
	}
	n := vm.RawLen(arr)
	if th.NArgs() == 2 {
		_ = arr.Set(vm.Number(float64(n+1)), th.Arg(1))
		return 0, nil
	}
	pos := int(th.Arg(1).AsNumber())
	val := th.Arg(2)
	for i := n + 1; i > pos; i-- {
		prev := arr.Get(vm.Number(float64(i - 1)))
		_ = arr.Set(vm.Number(float64(i)), prev)
	}
	_ = arr.Set(vm.Number(float64(pos)), val)
	return 0, nil
}

func tableRemove(th *vm.Thread) (int, error) {
	arr, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'remove' (table expected)")
	}
	n := vm.RawLen(arr)
	if n == 0 {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	pos := n
	if th.NArgs() >= 2 {
		pos = int(th.Arg(1).AsNumber())
	}
	removed := arr.Get(vm.Number(float64(pos)))
	for i := pos; i < n; i++ {
		next := arr.Get(vm.Number(float64(i + 1)))
		_ = arr.Set(vm.Number(float64(i)), next)
	}
	_ = arr.Set(vm.Number(float64(n)), vm.Nil)
	th.PushResult(removed)
	return 1, nil
}

func tableConcat(th *vm.Thread) (int, error) {
	arr, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'concat' (table expected)")
	}
	sep := ""
	if s, ok := th.Arg(1).AsString(); ok {
		sep = s.Value()
	}
	i := 1
	if th.NArgs() >= 3 {
		i = int(th.Arg(2).AsNumber())
	}
	j := vm.RawLen(arr)
	if th.NArgs() >= 4 {
		j = int(th.Arg(3).AsNumber())
	}
	out := ""
	for k := i; k <= j; k++ {
		if k > i {
			out += sep
		}
		out += th.Global().ToStringNoMeta(arr.Get(vm.Number(float64(k))))
	}
	th.PushResult(th.NewString(out))
	return 1, nil
}

func tableSort(th *vm.Thread) (int, error) {
	arr, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'sort' (table expected)")
	}
	n := vm.RawLen(arr)
	vals := make([]vm.Value, n)
	for i := 0; i < n; i++ {
		vals[i] = arr.Get(vm.Number(float64(i + 1)))
	}

	var less func(a, b vm.Value) bool
	if cmp := th.Arg(1); cmp.Kind() == vm.KFunction {
		less = func(a, b vm.Value) bool {
			results, err := th.Call(cmp, []vm.Value{a, b}, 1)
			if err != nil || len(results) == 0 {
				return false
			}
			return results[0].Truthy()
		}
	} else {
		less = func(a, b vm.Value) bool {
			if a.Kind() == vm.KNumber && b.Kind() == vm.KNumber {
				return a.AsNumber() < b.AsNumber()
			}
			as, _ := a.AsString()
			bs, _ := b.AsString()
			if as != nil && bs != nil {
				return as.Value() < bs.Value()
			}
			return false
		}
	}

	sort.SliceStable(vals, func(i, j int) bool { return less(vals[i], vals[j]) })
	for i, v := range vals {
		_ = arr.Set(vm.Number(float64(i+1)), v)
	}
	return 0, nil
}

func tableUnpack(th *vm.Thread) (int, error) {
	arr, ok := th.Arg(0).AsTable()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'unpack' (table expected)")
	}
	i := 1
	if th.NArgs() >= 2 {
		i = int(th.Arg(1).AsNumber())
	}
	j := vm.RawLen(arr)
	if th.NArgs() >= 3 {
		j = int(th.Arg(2).AsNumber())
	}
	count := 0
	for ; i <= j; i++ {
		th.PushResult(arr.Get(vm.Number(float64(i))))
		count++
	}
	return count, nil
}
