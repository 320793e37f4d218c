// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package vm is the execution core: the tagged Value model and string
// table (C1), the hybrid table (C4), closures and upvalues (C5), the
// per-thread call stack (C6), the bytecode interpreter (C7), tag-method
// dispatch (C8), error propagation (C9), coroutines (C10), and the
// debug/hook surface (C11). It depends on package gc for the mark/sweep
// algorithm, package mem for the allocator and package logging for
// Global.Log, and on nothing else in this module — the front end
// (lang/token, lexer, ast, parser, codegen) produces
// *Proto trees that this package merely consumes, per the design's
// external-collaborator boundary.
package vm

import (
	"math"
	"strconv"

	"github.com/lumalang/luma/lang/gc"
)

// Kind is Value's type tag.
type Kind uint8

const (
	KNil Kind = iota
	KBool
	KNumber
	KLightUserdata
	KString
	KTable
	KFunction
	KUserdata
	KThread
)

var kindNames = [...]string{
	KNil:           "nil",
	KBool:          "boolean",
	KNumber:        "number",
	KLightUserdata: "userdata",
	KString:        "string",
	KTable:         "table",
	KFunction:      "function",
	KUserdata:      "userdata",
	KThread:        "thread",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is the tagged union every register, stack slot, table entry, and
// upvalue holds. Collectable variants (String, Table, Function, Userdata,
// Thread) carry a gc.Object handle into the arena rather than a raw
// pointer with an intrusive link — see the design notes on replacing
// intrusive GC lists with an owning arena.
type Value struct {
	kind  Kind
	num   float64
	b     bool
	light uintptr
	obj   gc.Object
}

// Nil is the shared nil value.
var Nil = Value{kind: KNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KBool, b: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{kind: KNumber, num: n} }

// Int constructs a numeric Value from an integer (Luma numbers are always
// float64 internally; this is a convenience for call sites with integer
// semantics, e.g. loop counters and register indices).
func Int(n int64) Value { return Value{kind: KNumber, num: float64(n)} }

// LightUserdata constructs a Value wrapping a host-owned address that the
// runtime neither traces nor frees.
func LightUserdata(addr uintptr) Value { return Value{kind: KLightUserdata, light: addr} }

func stringValue(s *GString) Value  { return Value{kind: KString, obj: s} }
func tableValue(t *Table) Value     { return Value{kind: KTable, obj: t} }
func threadValue(th *Thread) Value  { return Value{kind: KThread, obj: th} }
func userdataValue(u *Userdata) Value { return Value{kind: KUserdata, obj: u} }

// TableValueOf wraps an existing *Table as a Value, for host/stdlib code
// that builds tables via Thread.CreateTable and needs to hand them back.
func TableValueOf(t *Table) Value { return tableValue(t) }

// ThreadValueOf wraps an existing *Thread as a Value (coroutine.create's
// return value).
func ThreadValueOf(th *Thread) Value { return threadValue(th) }

// UserdataValueOf wraps an existing *Userdata as a Value.
func UserdataValueOf(u *Userdata) Value { return userdataValue(u) }

func functionValue(o gc.Object) Value { return Value{kind: KFunction, obj: o} }

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns the Lua-visible type name, as returned by type(v).
func (v Value) TypeName() string { return v.kind.String() }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == KNil }

// IsFalsy reports whether v counts as false in a boolean context: only nil
// and the boolean false do.
func (v Value) IsFalsy() bool {
	return v.kind == KNil || (v.kind == KBool && !v.b)
}

// Truthy is the negation of IsFalsy, spelled out for call sites that read
// better as a positive condition.
func (v Value) Truthy() bool { return !v.IsFalsy() }

// AsBool returns the boolean payload; only meaningful when Kind() == KBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the float64 payload; only meaningful when Kind() == KNumber.
func (v Value) AsNumber() float64 { return v.num }

// AsLightUserdata returns the opaque address payload.
func (v Value) AsLightUserdata() uintptr { return v.light }

// AsString returns the interned string object and ok=true if v is a string.
func (v Value) AsString() (*GString, bool) {
	if v.kind != KString {
		return nil, false
	}
	return v.obj.(*GString), true
}

// AsTable returns the table object and ok=true if v is a table.
func (v Value) AsTable() (*Table, bool) {
	if v.kind != KTable {
		return nil, false
	}
	return v.obj.(*Table), true
}

// AsUserdata returns the userdata object and ok=true if v is a userdata.
func (v Value) AsUserdata() (*Userdata, bool) {
	if v.kind != KUserdata {
		return nil, false
	}
	return v.obj.(*Userdata), true
}

// AsThread returns the thread object and ok=true if v is a thread.
func (v Value) AsThread() (*Thread, bool) {
	if v.kind != KThread {
		return nil, false
	}
	return v.obj.(*Thread), true
}

// Callable returns the function-like gc.Object (LuaClosure or CClosure)
// backing v, or nil if v is not a function.
func (v Value) Callable() gc.Object {
	if v.kind != KFunction {
		return nil
	}
	return v.obj
}

// GCObject returns the underlying gc.Object for any collectable Value, or
// nil for Nil/Bool/Number/LightUserdata.
func (v Value) GCObject() gc.Object { return v.obj }

// RawEqual implements the primitive equality used by table lookups and the
// raw* API (no metamethods). Strings compare by their interned pointer
// identity (invariant 1 in spec §8); other collectables compare by handle
// identity; numbers compare by IEEE-754 rules (NaN != NaN, +0 == -0).
func RawEqual(a, b Value) bool {
	if a.kind != b.kind {
		// Luma, like Lua, never considers cross-kind values equal even when
		// a number/string coercion would otherwise apply to arithmetic.
		return false
	}
	switch a.kind {
	case KNil:
		return true
	case KBool:
		return a.b == b.b
	case KNumber:
		return a.num == b.num
	case KLightUserdata:
		return a.light == b.light
	default:
		return a.obj == b.obj
	}
}

// IsNaN reports whether v is a number and is NaN; used to reject NaN table
// keys (spec §3 invariant on table keys).
func (v Value) IsNaN() bool { return v.kind == KNumber && math.IsNaN(v.num) }

// ToNumber attempts the standard Lua coercion: numbers pass through,
// strings are parsed (base-10 float or int, optionally hex-prefixed),
// everything else fails.
func ToNumber(v Value) (float64, bool) {
	switch v.kind {
	case KNumber:
		return v.num, true
	case KString:
		s, _ := v.AsString()
		return parseNumber(s.Value())
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	s = trimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, true
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil { // handles 0x hex
		return float64(n), true
	}
	return 0, false
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpaceByte(s[i]) {
		i++
	}
	for j > i && isSpaceByte(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// NumberToString renders a Luma number the way tostring(n) does: integral
// floats print without a trailing ".0", matching Lua 5.1's %.14g format
// family closely enough for round-tripping through tonumber.
func NumberToString(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}
