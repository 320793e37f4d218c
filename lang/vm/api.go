// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Host-facing surface (spec §6): the operations external packages
// (stdlib, loader, cmd) use to drive the VM. Unlike the original C API
// this is not stack-index based — Go's type system and garbage-collected
// Value already give hosts safe direct handles, so "push/pop" collapse
// into ordinary function arguments and return values; the raw/meta and
// GC-control distinctions spec §6 calls out are preserved as named
// methods.
package vm

// NewState constructs a fresh VM and returns its main thread, the
// entry point every other host operation hangs off (spec §6's
// newState(allocator, opaque)).
func NewState() *Thread {
	g := New()
	return g.MainThread()
}

// Close releases VM-wide resources. The Go garbage collector reclaims
// everything once the last reference drops; Close exists for symmetry
// with spec §6's close(state) and to give hosts an explicit point to stop
// the collector and flush logs.
func (th *Thread) Close() {
	th.global.gc.Stop()
}

// CreateTable implements createTable(narrayHint, nhashHint).
func (th *Thread) CreateTable(narrayHint, nhashHint int) *Table {
	return th.newTable(narrayHint, nhashHint)
}

// NewUserdata implements newUserdata(size): size is advisory in this
// reimplementation since Go tracks the payload's real size itself; data
// is the host-supplied payload.
func (th *Thread) NewUserdata(data interface{}) *Userdata {
	u := NewUserdata(th.global, data)
	th.global.gc.Register(u)
	return u
}

// NewThread implements newThread: an independent coroutine sharing this
// VM's globals, strings, and metatables.
func (th *Thread) NewThread() *Thread { return th.global.NewThread() }

// GetTable performs indexing with metamethods (GETTABLE/__index chain).
func (th *Thread) GetTable(t, key Value) Value { return th.index(t, key) }

// SetTable performs assignment with metamethods (SETTABLE/__newindex
// chain).
func (th *Thread) SetTable(t, key, val Value) { th.newindex(t, key, val) }

// RawGet bypasses metamethods entirely (spec §6's "raw" variant).
func (th *Thread) RawGet(t *Table, key Value) Value { return t.Get(key) }

// RawSet bypasses metamethods entirely.
func (th *Thread) RawSet(t *Table, key, val Value) error { return t.Set(key, val) }

// RawLen returns Table.Len() without consulting __len.
func RawLen(t *Table) int { return t.Len() }

// RawEquals exposes rawequal as a two-argument function.
func RawEquals(a, b Value) bool { return RawEqual(a, b) }

// Metatable returns the metatable governing v: its own for tables and
// userdata, or the shared per-type metatable otherwise (spec §4.8's
// lookup, exposed without going through the tag-method absence cache
// since callers here want the table itself, not one named entry in it).
func (g *Global) Metatable(v Value) *Table { return g.metatableFor(v) }

// NewString is the Thread-scoped convenience form of Global.NewString.
func (th *Thread) NewString(s string) Value { return th.global.NewString(s) }

// Load wraps a compiled Proto (produced externally by lang/codegen, or by
// undump) as a callable Lua closure bound to this thread's globals, after
// running the bytecode verifier (spec §6's load(source-bytes, name), with
// "source-bytes, name" standing for "an already-produced Proto" since
// parsing itself is out of core scope).
//
// Load is the pipeline's single point of collector registration: neither
// codegen nor undump registers the Proto trees they build, so Load walks
// p and every Proto nested under it (one per closure literal compiled
// inside another function) and registers each. Registration is idempotent
// (gc.Collector.Register no-ops on an already-registered object), so
// reloading a cached Proto a second time is harmless.
func (th *Thread) Load(p *Proto) (Value, error) {
	if err := Verify(p); err != nil {
		return Nil, err
	}
	th.registerProtoTree(p)
	cl := &LuaClosure{Proto: p, Env: th.globals}
	th.global.gc.Register(cl)
	return functionValue(cl), nil
}

// registerProtoTree registers p and every Proto reachable through its
// Protos slice, so nested function prototypes are swept like any other
// collectable instead of hanging permanently black off a parent that
// never names them to the collector.
func (th *Thread) registerProtoTree(p *Proto) {
	th.global.gc.Register(p)
	for _, inner := range p.Protos {
		th.registerProtoTree(inner)
	}
}

// Register wraps fn as a named CClosure Value, the way host code installs
// standard-library functions into a table.
func (th *Thread) Register(name string, fn GoFunction) Value {
	c := &CClosure{Fn: fn, Name: name}
	th.global.gc.Register(c)
	return functionValue(c)
}

// RegisterWithUpvalues is Register plus a fixed upvalue array, used by
// stdlib closures generators (e.g. coroutine.wrap's resumer).
func (th *Thread) RegisterWithUpvalues(name string, fn GoFunction, ups ...Value) Value {
	c := &CClosure{Fn: fn, Name: name, Ups: ups}
	th.global.gc.Register(c)
	return functionValue(c)
}

// GCControl mirrors collectgarbage's option set (spec §6/§5 SUPPLEMENTED
// FEATURES): "collect", "stop", "restart", "step", "count", "setpause",
// "setstepmul".
func (g *Global) GCControl(option string, arg int) float64 {
	switch option {
	case "collect":
		g.gc.Collect()
		return 0
	case "stop":
		g.gc.Stop()
		return 0
	case "restart":
		g.gc.Restart()
		return 0
	case "step":
		g.gc.Step()
		return 0
	case "count":
		return g.gc.Count()
	case "setpause":
		return float64(g.gc.SetPause(arg))
	case "setstepmul":
		return float64(g.gc.SetStepMul(arg))
	case "isrunning":
		if g.gc.Stopped() {
			return 0
		}
		return 1
	default:
		return 0
	}
}
