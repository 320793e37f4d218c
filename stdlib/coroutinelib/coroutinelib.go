// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package coroutinelib installs coroutine.create, resume, yield, status,
// wrap, and running, over the goroutine-per-coroutine core in lang/vm.
package coroutinelib

import (
	"fmt"

	"github.com/lumalang/luma/lang/vm"
)

// Open installs the coroutine table into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 8)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("coroutine."+name, fn))
	}
	reg("create", coroutineCreate)
	reg("resume", coroutineResume)
	reg("yield", coroutineYield)
	reg("status", coroutineStatus)
	reg("wrap", coroutineWrap)
	reg("running", coroutineRunning)
	reg("isyieldable", coroutineIsYieldable)

	_ = th.Globals().Set(th.NewString("coroutine"), vm.TableValueOf(t))
}

func coroutineCreate(th *vm.Thread) (int, error) {
	fn := th.Arg(0)
	if fn.Kind() != vm.KFunction {
		return 0, fmt.Errorf("bad argument #1 to 'create' (function expected)")
	}
	co := th.Global().NewCoroutine(fn)
	th.PushResult(vm.ThreadValueOf(co))
	return 1, nil
}

func coroutineResume(th *vm.Thread) (int, error) {
	co, ok := th.Arg(0).AsThread()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'resume' (coroutine expected)")
	}
	n := th.NArgs()
	args := make([]vm.Value, n-1)
	for i := 1; i < n; i++ {
		args[i-1] = th.Arg(i)
	}
	results, _, err := th.Resume(co, args)
	if err != nil {
		th.PushResult(vm.Bool(false))
		if re, ok := err.(*vm.RuntimeError); ok {
			th.PushResult(re.Value)
		} else {
			th.PushResult(th.NewString(err.Error()))
		}
		return 2, nil
	}
	th.PushResult(vm.Bool(true))
	for _, r := range results {
		th.PushResult(r)
	}
	return 1 + len(results), nil
}

func coroutineYield(th *vm.Thread) (int, error) {
	n := th.NArgs()
	args := make([]vm.Value, n)
	for i := 0; i < n; i++ {
		args[i] = th.Arg(i)
	}
	results := th.Yield(args)
	for _, r := range results {
		th.PushResult(r)
	}
	return len(results), nil
}

func coroutineStatus(th *vm.Thread) (int, error) {
	co, ok := th.Arg(0).AsThread()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'status' (coroutine expected)")
	}
	th.PushResult(th.NewString(co.Status().String()))
	return 1, nil
}

// coroutineWrap returns a closure that resumes co and either returns its
// results or re-raises its error in the caller, per coroutine.wrap's
// contract.
func coroutineWrap(th *vm.Thread) (int, error) {
	fn := th.Arg(0)
	if fn.Kind() != vm.KFunction {
		return 0, fmt.Errorf("bad argument #1 to 'wrap' (function expected)")
	}
	co := th.Global().NewCoroutine(fn)
	wrapped := th.RegisterWithUpvalues("wrapped coroutine", wrapInvoke, vm.ThreadValueOf(co))
	th.PushResult(wrapped)
	return 1, nil
}

// wrapInvoke reads the wrapped coroutine back out of its own CClosure's
// upvalue list (set up by coroutineWrap via RegisterWithUpvalues) and
// resumes it, re-raising any error in the caller instead of returning a
// (false, err) pair the way coroutine.resume does.
func wrapInvoke(th *vm.Thread) (int, error) {
	info, ok := th.GetInfo(0)
	if !ok {
		return 0, fmt.Errorf("coroutine.wrap: missing call frame")
	}
	c, ok := info.Fn.Callable().(*vm.CClosure)
	if !ok || len(c.Ups) == 0 {
		return 0, fmt.Errorf("coroutine.wrap: missing bound coroutine")
	}
	co, ok := c.Ups[0].AsThread()
	if !ok {
		return 0, fmt.Errorf("coroutine.wrap: missing bound coroutine")
	}
	n := th.NArgs()
	args := make([]vm.Value, n)
	for i := 0; i < n; i++ {
		args[i] = th.Arg(i)
	}
	results, _, err := th.Resume(co, args)
	if err != nil {
		th.Error(errorValue(th, err), 1)
	}
	for _, r := range results {
		th.PushResult(r)
	}
	return len(results), nil
}

func errorValue(th *vm.Thread, err error) vm.Value {
	if re, ok := err.(*vm.RuntimeError); ok {
		return re.Value
	}
	return th.NewString(err.Error())
}

func coroutineRunning(th *vm.Thread) (int, error) {
	th.PushResult(vm.ThreadValueOf(th))
	th.PushResult(vm.Bool(th.IsMain()))
	return 2, nil
}

func coroutineIsYieldable(th *vm.Thread) (int, error) {
	th.PushResult(vm.Bool(!th.IsMain()))
	return 1, nil
}
