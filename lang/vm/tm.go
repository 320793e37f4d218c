// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// TM is a tag-method (metamethod) event index (C8 of the design). The
// fixed ordering matters: TMIndex..TMEq are the events the Table.flags
// absence cache covers (spec §4.4).
type TM int

const (
	TMIndex TM = iota
	TMNewIndex
	TMGC
	TMMode
	TMEq
	TMAdd
	TMSub
	TMMul
	TMDiv
	TMMod
	TMPow
	TMUnm
	TMLen
	TMLt
	TMLe
	TMConcat
	TMCall
	tmCount
)

var tmNames = [tmCount]string{
	TMIndex:    "__index",
	TMNewIndex: "__newindex",
	TMGC:       "__gc",
	TMMode:     "__mode",
	TMEq:       "__eq",
	TMAdd:      "__add",
	TMSub:      "__sub",
	TMMul:      "__mul",
	TMDiv:      "__div",
	TMMod:      "__mod",
	TMPow:      "__pow",
	TMUnm:      "__unm",
	TMLen:      "__len",
	TMLt:       "__lt",
	TMLe:       "__le",
	TMConcat:   "__concat",
	TMCall:     "__call",
}

func (e TM) String() string { return tmNames[e] }

// metatableFor returns the metatable governing o's primitive type: o's own
// metatable for tables/userdata, or the per-type global metatable
// otherwise (spec §4.8's lookup strategy).
func (g *Global) metatableFor(v Value) *Table {
	switch v.kind {
	case KTable:
		t, _ := v.AsTable()
		return t.metatable
	case KUserdata:
		u, _ := v.AsUserdata()
		return u.metatable
	default:
		return g.typeMetatables[v.kind]
	}
}

// tagMethod looks up event e for v, honoring the Table absence-flag cache
// when v is itself a table acting as its own metatable holder. Returns the
// Nil value and ok=false when absent.
func (g *Global) tagMethod(v Value, e TM) (Value, bool) {
	holder, isTable := v.AsTable()
	if isTable && holder.CachedAbsent(int(e)) {
		return Nil, false
	}

	mt := g.metatableFor(v)
	if mt == nil {
		if isTable {
			holder.MarkAbsent(int(e))
		}
		return Nil, false
	}
	name := g.tmName[e]
	val, found := mt.rawGetString(name.Value())
	if !found || val.IsNil() {
		if isTable {
			holder.MarkAbsent(int(e))
		}
		return Nil, false
	}
	return val, true
}
