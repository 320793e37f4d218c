// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "github.com/lumalang/luma/lang/gc"

// ThreadStatus is a coroutine's lifecycle state (spec §4.10).
type ThreadStatus int

const (
	StatusInitial ThreadStatus = iota
	StatusSuspended
	StatusRunning
	StatusNormal
	StatusDead
)

func (s ThreadStatus) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusNormal:
		return "normal"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HookMask is a bitmask selecting which debug events fire (spec §4.11).
type HookMask int

const (
	MaskCall HookMask = 1 << iota
	MaskRet
	MaskLine
	MaskCount
)

// HookFunc is the debug hook callback shape.
type HookFunc func(s *Thread, event HookEvent)

// HookEvent describes one invocation of a debug hook.
type HookEvent struct {
	Kind HookMask
	Line int
}

// callInfo is one activation record (CallInfo, spec §3/§4.6): base
// register index, stack top, saved PC for Lua frames, expected result
// count, and the tail-call counter used for diagnostics.
type callInfo struct {
	fn         Value // the function/closure being executed
	base       int   // register 0 for this frame
	top        int   // highest valid stack slot for this frame
	savedPC    int   // resume point for Lua frames; unused for Go frames
	nresults   int   // expected result count; -1 means multret
	tailcalls  int
	isGo       bool
	nargs      int
	errHandler int // stack index of the installed error handler, or -1
	// varargs holds extra actual arguments passed to a vararg Lua function
	// beyond its declared parameter count, consumed by VARARG.
	varargs []Value
}

// Thread is a coroutine: a private value stack, a private call-info stack,
// lifecycle status, and hook state (spec §3's Thread entity). The main
// thread is a Thread like any other.
type Thread struct {
	gc.Header

	global *Global

	stack []Value
	top   int

	calls  []callInfo
	status ThreadStatus

	globals *Table

	openUpvalues *Upvalue // descending-stack-order linked list

	hookMask  HookMask
	hookFunc  HookFunc
	hookCount int
	hookLeft  int
	inHook    bool

	// resumer is set while this thread is StatusNormal, pointing at the
	// thread that resumed it, so status queries and nested resume/yield
	// validation can walk the chain.
	resumer *Thread

	// resumeCh/yieldCh implement cooperative resume/yield as goroutine
	// handoff channels, the Go-idiomatic analog of the design notes'
	// "re-entrant interpreter loop" state machine: each coroutine body
	// runs on its own goroutine but only one ever runs at a time, the
	// handoff enforced by these unbuffered channels.
	resumeCh chan []Value
	yieldCh  chan coroutineMsg
	started  bool

	errHandlerStack []int
	entry           *coroutineEntry

	// pendingVarargs is a one-shot handoff of a freshly set-up vararg
	// frame's extra arguments from setupLuaFrame to run, avoiding a
	// parameter on the recursive interpreter entry point.
	pendingVarargs []Value
}

const initialStackSize = 64

func newThread(g *Global, globals *Table) *Thread {
	return &Thread{
		global:  g,
		stack:   make([]Value, initialStackSize),
		globals: globals,
		status:  StatusInitial,
	}
}

func (th *Thread) GCHeader() *gc.Header { return &th.Header }
func (th *Thread) TypeName() string     { return "thread" }

func (th *Thread) Trace(mark func(gc.Object)) {
	for i := 0; i < th.top; i++ {
		markValue(mark, th.stack[i])
	}
	for _, ci := range th.calls {
		markValue(mark, ci.fn)
		for _, v := range ci.varargs {
			markValue(mark, v)
		}
	}
	if th.globals != nil {
		mark(th.globals)
	}
	for u := th.openUpvalues; u != nil; u = u.openNext {
		mark(u)
	}
}

// Status reports the coroutine's current lifecycle state.
func (th *Thread) Status() ThreadStatus { return th.status }

// Globals returns the thread's globals table (LUA_GLOBALSINDEX, spec §4.6).
func (th *Thread) Globals() *Table { return th.globals }

func (th *Thread) ensureStack(n int) {
	if n <= len(th.stack) {
		return
	}
	next, err := growStackSize(len(th.stack), n)
	if err != nil {
		panic(&RuntimeError{Value: stringValue(th.global.internString("stack overflow"))})
	}
	ns := make([]Value, next)
	copy(ns, th.stack)
	for i := len(th.stack); i < next; i++ {
		ns[i] = Nil
	}
	th.relinkUpvalues(th.stack, ns)
	th.stack = ns
}

func growStackSize(cur, need int) (int, error) {
	next := cur
	for next < need {
		next *= 2
	}
	const maxStack = 1 << 20
	if next > maxStack {
		if need > maxStack {
			return 0, ErrStackOverflow
		}
		next = maxStack
	}
	return next, nil
}

// relinkUpvalues is a no-op placeholder: open upvalues reference (thread,
// index) pairs rather than raw Go slice addresses (design notes' enum
// representation), so growing the backing array never invalidates them.
func (th *Thread) relinkUpvalues(old, new []Value) {}

// push appends a value to the top of the stack, growing as needed.
func (th *Thread) push(v Value) {
	th.ensureStack(th.top + 1)
	th.stack[th.top] = v
	th.top++
}

func (th *Thread) currentCI() *callInfo { return &th.calls[len(th.calls)-1] }

// findOrCreateUpvalue returns the open upvalue for stack slot idx,
// creating and linking it (in descending order) if none exists yet, per
// spec §4.5's sharing rule.
func (th *Thread) findOrCreateUpvalue(idx int) *Upvalue {
	var prev *Upvalue
	cur := th.openUpvalues
	for cur != nil && cur.index > idx {
		prev = cur
		cur = cur.openNext
	}
	if cur != nil && cur.index == idx {
		return cur
	}
	u := &Upvalue{thread: th, index: idx}
	th.global.gc.Register(u)
	u.openNext = cur
	if prev == nil {
		th.openUpvalues = u
	} else {
		prev.openNext = u
	}
	return u
}

// closeUpvalues closes every open upvalue at or above stack index floor,
// per spec §4.5's "on stack shrink" rule.
func (th *Thread) closeUpvalues(floor int) {
	for th.openUpvalues != nil && th.openUpvalues.index >= floor {
		u := th.openUpvalues
		th.openUpvalues = u.openNext
		u.Close()
		u.openNext = nil
	}
}

// NArgs returns the number of arguments passed to the currently executing
// Go function (C5/C6's CClosure calling convention).
func (th *Thread) NArgs() int {
	ci := th.currentCI()
	return ci.nargs
}

// Arg returns the i-th argument (0-based) to the currently executing Go
// function, or Nil if i is out of range.
func (th *Thread) Arg(i int) Value {
	ci := th.currentCI()
	idx := ci.base + i
	if i < 0 || i >= ci.nargs {
		return Nil
	}
	return th.stack[idx]
}

// PushResult appends one return value for the currently executing Go
// function; GoFunction implementations call this before returning the
// count of values pushed.
func (th *Thread) PushResult(v Value) { th.push(v) }

// Global returns the owning VM-wide state, for stdlib packages that need
// to intern strings or create tables.
func (th *Thread) Global() *Global { return th.global }

type coroutineMsg struct {
	values []Value
	err    error
	done   bool // true on a Return (thread finished) rather than a Yield
}
