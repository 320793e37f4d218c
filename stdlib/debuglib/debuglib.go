// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package debuglib installs debug.* (registration contract only, thin
// over vm's debug/hook surface): getinfo, traceback, getmetatable,
// setmetatable, and the debug.dump and debug.getfinalizerstats
// introspection extensions. sethook and gethook are not installed.
package debuglib

import (
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"

	"github.com/lumalang/luma/lang/vm"
)

// Open installs the debug table into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 8)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("debug."+name, fn))
	}
	reg("getinfo", debugGetInfo)
	reg("traceback", debugTraceback)
	reg("getmetatable", debugGetMetatable)
	reg("setmetatable", debugSetMetatable)
	reg("dump", debugDump)
	reg("getfinalizerstats", debugGetFinalizerStats)

	_ = th.Globals().Set(th.NewString("debug"), vm.TableValueOf(t))
}

func debugGetInfo(th *vm.Thread) (int, error) {
	level := int(th.Arg(0).AsNumber())
	info, ok := th.GetInfo(level)
	if !ok {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	result := th.CreateTable(0, 6)
	_ = result.Set(th.NewString("name"), th.NewString(info.Name))
	_ = result.Set(th.NewString("what"), th.NewString(info.What.String()))
	_ = result.Set(th.NewString("source"), th.NewString(info.Source))
	_ = result.Set(th.NewString("short_src"), th.NewString(info.ShortSource))
	_ = result.Set(th.NewString("linedefined"), vm.Number(float64(info.LineDefined)))
	_ = result.Set(th.NewString("currentline"), vm.Number(float64(info.CurrentLine)))
	_ = result.Set(th.NewString("nups"), vm.Number(float64(info.NumUpvalues)))
	th.PushResult(vm.TableValueOf(result))
	return 1, nil
}

func debugTraceback(th *vm.Thread) (int, error) {
	msg := ""
	if s, ok := th.Arg(0).AsString(); ok {
		msg = s.Value()
	}
	th.PushResult(th.NewString(th.Traceback(msg)))
	return 1, nil
}

func debugGetMetatable(th *vm.Thread) (int, error) {
	mt := th.Global().Metatable(th.Arg(0))
	if mt == nil {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	th.PushResult(vm.TableValueOf(mt))
	return 1, nil
}

func debugSetMetatable(th *vm.Thread) (int, error) {
	tbl, ok := th.Arg(0).AsTable()
	if !ok {
		th.PushResult(th.Arg(0))
		return 1, nil
	}
	if mt, ok := th.Arg(1).AsTable(); ok {
		tbl.SetMetatable(mt)
	} else {
		tbl.SetMetatable(nil)
	}
	th.PushResult(th.Arg(0))
	return 1, nil
}

// debugDump prints a deep dump of a value's graph (tables recursively)
// via go-spew, and a tabular frame listing via tablewriter — the
// disassembler/inspection extension named in SPEC_FULL §5.
func debugDump(th *vm.Thread) (int, error) {
	v := th.Arg(0)
	if tbl, ok := v.AsTable(); ok {
		spew.Fdump(os.Stdout, snapshotTable(th, tbl))
		return 0, nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"level", "source", "line", "what"})
	for level := 0; ; level++ {
		info, ok := th.GetInfo(level)
		if !ok {
			break
		}
		table.Append([]string{
			itoa(level), info.ShortSource, itoa(info.CurrentLine), info.What.String(),
		})
	}
	table.Render()
	return 0, nil
}

// debugGetFinalizerStats returns an array of type names for the most
// recently run __gc finalizers, most recent first, bounded by the
// collector's own recent-finalizer ring.
func debugGetFinalizerStats(th *vm.Thread) (int, error) {
	names := th.Global().Collector().FinalizedRecent()
	result := th.CreateTable(len(names), 0)
	for i, name := range names {
		_ = result.Set(vm.Number(float64(i+1)), th.NewString(name))
	}
	th.PushResult(vm.TableValueOf(result))
	return 1, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// snapshotTable renders a table as a plain Go map for spew, since spew
// can't call into a Table's own Next iterator.
func snapshotTable(th *vm.Thread, t *vm.Table) map[string]interface{} {
	out := map[string]interface{}{}
	key := vm.Nil
	for {
		nk, nv, ok := t.Next(key)
		if !ok {
			break
		}
		out[th.Global().ToStringNoMeta(nk)] = th.Global().ToStringNoMeta(nv)
		key = nk
	}
	return out
}
