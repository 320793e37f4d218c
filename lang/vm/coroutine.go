// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "fmt"

// ErrCannotResume is returned by Resume when co is not in a resumable
// state (already running, normal, or dead).
var ErrCannotResume = fmt.Errorf("vm: cannot resume non-suspended coroutine")

// ErrYieldAcrossGo is returned when Yield is attempted while a Go function
// is on the call stack between the coroutine and its yield point (spec
// §4.10: "yield across a C function boundary is an error").
var ErrYieldAcrossGo = fmt.Errorf("vm: attempt to yield across a Go-function boundary")

// coroutineEntry holds the Lua-visible closure a coroutine was created with.
type coroutineEntry struct {
	fn Value
}

// NewCoroutine creates a new suspended Thread that will run fn when first
// resumed (coroutine.create).
func (g *Global) NewCoroutine(fn Value) *Thread {
	co := g.NewThread()
	co.entry = &coroutineEntry{fn: fn}
	co.status = StatusSuspended
	return co
}

// Resume implements coroutine.resume(co, ...): starts co's body on first
// call or continues it past its last yield, handing args to the callee and
// returning whatever it yields or returns, or propagating its error (spec
// §4.10's resume contract). caller is the resuming thread.
func (caller *Thread) Resume(co *Thread, args []Value) (results []Value, yielded bool, err error) {
	if co.status != StatusSuspended && co.status != StatusInitial {
		return nil, false, ErrCannotResume
	}

	co.resumer = caller
	caller.status = StatusNormal
	co.status = StatusRunning

	if !co.started {
		co.started = true
		co.resumeCh = make(chan []Value)
		co.yieldCh = make(chan coroutineMsg)
		go co.body(args)
	} else {
		co.resumeCh <- args
	}

	msg := <-co.yieldCh
	caller.status = StatusRunning
	if msg.err != nil {
		co.status = StatusDead
		return nil, false, msg.err
	}
	if msg.done {
		co.status = StatusDead
		return msg.values, false, nil
	}
	co.status = StatusSuspended
	return msg.values, true, nil
}

// body is the goroutine entry point backing one coroutine: it runs the
// entry function to completion (or until a panic unwinds it), reporting
// results/errors back to the resumer over yieldCh. This goroutine-per-
// coroutine model is the Go-idiomatic reading of the design notes'
// "re-entrant interpreter loop... yield returns up to resume through
// normal control flow" prescription: only one of {caller, co} is ever
// runnable at a time, enforced by the unbuffered channel handoff, so the
// cooperative-scheduling invariant in spec §5 still holds.
func (co *Thread) body(args []Value) {
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(*RuntimeError)
			if !ok {
				re = &RuntimeError{Value: stringValue(co.global.internString(fmt.Sprint(r)))}
			}
			co.yieldCh <- coroutineMsg{err: re}
		}
	}()

	results, err := co.Call(co.entry.fn, args, -1)
	if err != nil {
		co.yieldCh <- coroutineMsg{err: err}
		return
	}
	co.yieldCh <- coroutineMsg{values: results, done: true}
}

// Yield implements coroutine.yield(...): it hands values to the resumer
// and blocks until the next Resume call supplies new arguments.
func (co *Thread) Yield(values []Value) []Value {
	if co.resumer == nil {
		panic(co.global.newRuntimeError(ErrRuntime, "attempt to yield from outside a coroutine"))
	}
	if co.yieldCrossesGoFrame() {
		panic(co.global.newRuntimeError(ErrRuntime, "%s", ErrYieldAcrossGo.Error()))
	}
	co.yieldCh <- coroutineMsg{values: values}
	return <-co.resumeCh
}

// yieldCrossesGoFrame reports whether a Go function is on co's call stack
// between the coroutine body and this yield, other than the "yield"
// CClosure's own frame making the call. Lua's C implementation cannot
// suspend a native C stack frame, so yielding through one is an error
// (spec §4.10); this goroutine-per-coroutine VM has no such structural
// limit but still enforces the rule so scripts see the same behavior a
// Lua 5.1 host would give them.
func (co *Thread) yieldCrossesGoFrame() bool {
	if len(co.calls) == 0 {
		return false
	}
	for _, ci := range co.calls[:len(co.calls)-1] {
		if ci.isGo {
			return true
		}
	}
	return false
}

// IsMain reports whether th is the VM's main thread (never resumable,
// never itself a coroutine body).
func (th *Thread) IsMain() bool { return th == th.global.main }
