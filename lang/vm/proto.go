// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "github.com/lumalang/luma/lang/gc"

// UpvalDesc names how a closure's i-th upvalue is captured when a CLOSURE
// instruction instantiates a Proto: either from the enclosing frame's
// register file (InStack) or from the enclosing closure's own upvalue
// array.
type UpvalDesc struct {
	Name     string
	InStack  bool
	Index    int
}

// LocalVar records one local variable's name and the PC interval over
// which it is live, for the debug surface (C11).
type LocalVar struct {
	Name    string
	StartPC int
	EndPC   int
}

// Proto is an immutable compiled function prototype (C5). It is produced
// by the external front end (lang/codegen) and consumed read-only by the
// interpreter; it participates in GC like any other collectable so that a
// closure graph keeps its prototypes alive.
type Proto struct {
	gc.Header

	Constants []Value
	Code      []Instruction
	Protos    []*Proto
	Upvalues  []UpvalDesc

	NumParams  int
	IsVararg   bool
	MaxStack   int

	Source    string
	LineDefined    int
	LastLineDefined int
	Lines     []int // per-PC source line, indexed by PC
	Locals    []LocalVar
}

func (p *Proto) GCHeader() *gc.Header { return &p.Header }
func (p *Proto) TypeName() string     { return "proto" }

func (p *Proto) Trace(mark func(gc.Object)) {
	for _, k := range p.Constants {
		markValue(mark, k)
	}
	for _, inner := range p.Protos {
		mark(inner)
	}
}

// LineAt returns the source line for instruction pc, or 0 if no debug
// info was compiled in.
func (p *Proto) LineAt(pc int) int {
	if pc < 0 || pc >= len(p.Lines) {
		return 0
	}
	return p.Lines[pc]
}

// Upvalue is either open (referencing a live slot on some thread's stack)
// or closed (owning its own Value), per spec §3/§4.5. Represented as the
// design notes prescribe: an enum-like struct instead of a stack-threaded
// pointer, with the thread owning a sorted index of open upvalues.
type Upvalue struct {
	gc.Header

	closed bool
	value  Value // valid when closed

	thread *Thread // owning thread, valid when open
	index  int     // stack slot, valid when open

	// openNext chains this upvalue into Thread.openUpvalues in descending
	// stack-index order, per spec §4.5.
	openNext *Upvalue
}

func (u *Upvalue) GCHeader() *gc.Header { return &u.Header }
func (u *Upvalue) TypeName() string     { return "upvalue" }

func (u *Upvalue) Trace(mark func(gc.Object)) {
	if u.closed {
		markValue(mark, u.value)
	} else if u.thread != nil {
		mark(u.thread)
	}
}

// Get reads the upvalue's current value, from the thread's stack if open.
func (u *Upvalue) Get() Value {
	if u.closed {
		return u.value
	}
	return u.thread.stack[u.index]
}

// Set writes the upvalue's current value.
func (u *Upvalue) Set(v Value) {
	if u.closed {
		u.value = v
		return
	}
	u.thread.stack[u.index] = v
}

// Close detaches an open upvalue from its thread, copying the live stack
// slot into inline storage, per spec §4.5's "frame return" closing rule.
func (u *Upvalue) Close() {
	if u.closed {
		return
	}
	u.value = u.thread.stack[u.index]
	u.closed = true
	u.thread = nil
}

// LuaClosure pairs an immutable Proto with its captured upvalues and an
// environment table (C5).
type LuaClosure struct {
	gc.Header

	Proto *Proto
	Ups   []*Upvalue
	Env   *Table
}

func (c *LuaClosure) GCHeader() *gc.Header { return &c.Header }
func (c *LuaClosure) TypeName() string     { return "function" }

func (c *LuaClosure) Trace(mark func(gc.Object)) {
	mark(c.Proto)
	for _, u := range c.Ups {
		mark(u)
	}
	if c.Env != nil {
		mark(c.Env)
	}
}

// GoFunction is a host function registered into the runtime, the Go
// analog of a C function pointer (`lua_CFunction`).
type GoFunction func(s *Thread) (nresults int, err error)

// CClosure is a host function bundled with its own upvalue array and
// environment table (C5's "CClosure" variant).
type CClosure struct {
	gc.Header

	Fn  GoFunction
	Ups []Value
	Env *Table
	Name string
}

func (c *CClosure) GCHeader() *gc.Header { return &c.Header }
func (c *CClosure) TypeName() string     { return "function" }

func (c *CClosure) Trace(mark func(gc.Object)) {
	for _, v := range c.Ups {
		markValue(mark, v)
	}
	if c.Env != nil {
		mark(c.Env)
	}
}

// Userdata is a heap block with a user-declared payload, a metatable, an
// environment table, and a one-shot finalization flag (spec §3).
type Userdata struct {
	gc.Header

	Data      interface{}
	metatable *Table
	Env       *Table

	finalized bool
	owner     *Global
}

// NewUserdata wraps data as a userdata owned by g, used to route __gc
// invocation back through the owning VM's protected-call machinery.
func NewUserdata(g *Global, data interface{}) *Userdata {
	return &Userdata{Data: data, owner: g}
}

func (u *Userdata) GCHeader() *gc.Header { return &u.Header }
func (u *Userdata) TypeName() string     { return "userdata" }

func (u *Userdata) Trace(mark func(gc.Object)) {
	if u.metatable != nil {
		mark(u.metatable)
	}
	if u.Env != nil {
		mark(u.Env)
	}
}

func (u *Userdata) Metatable() *Table    { return u.metatable }
func (u *Userdata) SetMetatable(mt *Table) { u.metatable = mt }

// HasFinalizer implements gc.Finalizable: true only while an unconsumed
// __gc metamethod exists on the metatable and the object has not already
// been finalized once (spec §4.3's "runs exactly once").
func (u *Userdata) HasFinalizer() bool {
	if u.finalized || u.metatable == nil {
		return false
	}
	v, ok := u.metatable.rawGetString("__gc")
	return ok && !v.IsNil()
}

// Finalize runs the userdata's __gc metamethod under protection (spec
// §4.3: finalizers run with hooks disabled and may not panic the
// collector), then marks the object as spent so HasFinalizer never offers
// it again.
func (u *Userdata) Finalize() {
	u.finalized = true
	if u.owner != nil {
		u.owner.runFinalizer(u)
	}
}
