// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lumalang/luma/lang/gc"
	"github.com/lumalang/luma/lang/mem"
	"github.com/lumalang/luma/logging"
)

// PanicFunc is invoked when an error escapes every protected frame (spec
// §6/§7): it receives the error Value and must not return normally to the
// core. The default implementation used by cmd/luma prints and exits.
type PanicFunc func(g *Global, errValue Value)

// Global is the process-/VM-wide state (spec §3's "Global state" entity):
// the string table, allocator, collector, registry, main thread, per-type
// metatables, interned tag-method names, and the panic callback. Every
// core operation takes *Global (or a *Thread that embeds a reference to
// one) by exclusive reference, which is this design's Go-idiomatic stand-in
// for "encapsulate global mutable state in one VM struct owned by the
// host" (design notes).
type Global struct {
	strings *strTab
	alloc   *mem.Allocator
	gc      *gc.Collector

	registry *Table
	main     *Thread

	typeMetatables [9]*Table // indexed by Kind
	tmName         [tmCount]*GString

	Panic PanicFunc
	Log   logging.Logger

	id string

	concatScratch []byte
}

// New constructs a Global with a fresh string table, allocator, collector,
// registry, and main thread, and interns the fixed tag-method name set.
func New() *Global {
	g := &Global{
		strings: newStrTab(),
		id:      uuid.NewString(),
		Log:     logging.Root(),
	}
	g.alloc = mem.New(nil)
	g.alloc.EmergencyGC = func() { g.gc.Collect() }

	g.gc = gc.New()
	g.gc.MarkRoots = g.markRoots
	g.gc.SweepStringsStep = g.sweepStringsStep
	g.gc.OnPhaseChange = func(from, to gc.Phase) {
		g.Log.Debug("gc phase", "from", from, "to", to)
	}

	g.registry = NewTable(0, 0)
	g.gc.Register(g.registry)

	for i, name := range tmNames {
		g.tmName[i] = g.internString(name)
	}

	g.main = newThread(g, NewTable(0, 0))
	g.gc.Register(g.main.globals)
	g.gc.Register(g.main)

	if g.Panic == nil {
		g.Panic = defaultPanic
	}
	return g
}

func defaultPanic(g *Global, errValue Value) {
	msg := g.ToStringNoMeta(errValue)
	panic(fmt.Sprintf("luma: unprotected error: %s", msg))
}

// ID returns the per-Global debug identifier, a UUID generated by New.
// No debug library function exposes it.
func (g *Global) ID() string { return g.id }

// MainThread returns the VM's main thread.
func (g *Global) MainThread() *Thread { return g.main }

// Registry returns the per-VM registry table (LUA_REGISTRYINDEX, spec §6).
func (g *Global) Registry() *Table { return g.registry }

// Collector exposes the GC for collectgarbage's control surface.
func (g *Global) Collector() *gc.Collector { return g.gc }

// NewThread creates a coroutine sharing this Global's string table,
// registry, and metatables but with its own stacks (spec §4.10).
func (g *Global) NewThread() *Thread {
	th := newThread(g, g.main.globals)
	g.gc.Register(th)
	return th
}

// internString returns the canonical *GString for s, registering it with
// the collector on first intern.
func (g *Global) internString(s string) *GString {
	return g.strings.intern([]byte(s), func(gs *GString) { g.gc.Register(gs) })
}

// InternString is the exported form used by the front end and stdlib.
func (g *Global) InternString(s string) *GString { return g.internString(s) }

// NewString interns s and wraps it as a Value, the constructor stdlib
// packages use whenever they need to hand a Go string back into Luma.
func (g *Global) NewString(s string) Value { return stringValue(g.internString(s)) }

func (g *Global) sweepStringsStep() bool {
	return g.strings.sweepStep(g.gc.IsDead, g.gc.CurrentWhite())
}

// markRoots is wired as gc.Collector.MarkRoots: main thread, its globals,
// the registry, and the per-type metatables (spec §4.3 Pause transition).
func (g *Global) markRoots(mark func(gc.Object)) {
	mark(g.main)
	mark(g.registry)
	for _, mt := range g.typeMetatables {
		if mt != nil {
			mark(mt)
		}
	}
}

// SetTypeMetatable installs the shared metatable for primitive kind k
// (booleans, numbers, strings, etc. all share one metatable per type,
// spec §3's "per-basic-type metatables").
func (g *Global) SetTypeMetatable(k Kind, mt *Table) { g.typeMetatables[k] = mt }

// TypeMetatable returns the shared metatable for primitive kind k.
func (g *Global) TypeMetatable(k Kind) *Table { return g.typeMetatables[k] }

// Alloc exposes the allocator for stdlib packages that need raw byte
// buffers (userdata payloads, string building).
func (g *Global) Alloc() *mem.Allocator { return g.alloc }

// runFinalizer calls a userdata's __gc metamethod under a protected frame
// so a failing finalizer cannot escape into the collector (spec §4.3:
// "invoke its __gc metamethod under protection with hooks temporarily
// disabled").
func (g *Global) runFinalizer(u *Userdata) {
	if u.metatable == nil {
		return
	}
	fn, ok := u.metatable.rawGetString("__gc")
	if !ok || fn.IsNil() {
		return
	}
	th := g.main
	savedHook := th.hookMask
	th.hookMask = 0
	defer func() { th.hookMask = savedHook }()

	if _, err := th.PCall(fn, []Value{userdataValue(u)}, Nil); err != nil {
		g.Log.Warn("finalizer error", "error", err)
	}
}

// ToStringNoMeta renders v the way tostring() would without consulting
// __tostring (not part of the fixed tag-method set in §4.8, so callers
// needing that hook apply it themselves before falling back here).
func (g *Global) ToStringNoMeta(v Value) string {
	switch v.kind {
	case KNil:
		return "nil"
	case KBool:
		if v.b {
			return "true"
		}
		return "false"
	case KNumber:
		return NumberToString(v.num)
	case KString:
		s, _ := v.AsString()
		return s.Value()
	case KTable:
		return fmt.Sprintf("table: %p", v.obj)
	case KFunction:
		return fmt.Sprintf("function: %p", v.obj)
	case KUserdata:
		return fmt.Sprintf("userdata: %p", v.obj)
	case KThread:
		return fmt.Sprintf("thread: %p", v.obj)
	case KLightUserdata:
		return fmt.Sprintf("userdata: 0x%x", v.light)
	default:
		return "?"
	}
}
