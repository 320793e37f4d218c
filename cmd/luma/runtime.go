// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"bytes"
	"os"
	"strings"

	"github.com/lumalang/luma/lang/codegen"
	"github.com/lumalang/luma/lang/parser"
	"github.com/lumalang/luma/lang/vm"
	"github.com/lumalang/luma/logging"
	"github.com/lumalang/luma/lumaconfig"
	"github.com/lumalang/luma/stdlib/base"
	"github.com/lumalang/luma/stdlib/coroutinelib"
	"github.com/lumalang/luma/stdlib/debuglib"
	"github.com/lumalang/luma/stdlib/iolib"
	"github.com/lumalang/luma/stdlib/mathlib"
	"github.com/lumalang/luma/stdlib/oslib"
	"github.com/lumalang/luma/stdlib/strlib"
	"github.com/lumalang/luma/stdlib/tablib"
	"github.com/lumalang/luma/undump"
)

// runtime bundles the live VM state the CLI drives: a thread to run
// chunks against and the cache used to skip recompiling unchanged
// sources, mirroring the way cmd/gprobe's run() wires a node.Node once
// and hands it to every subcommand.
type runtime struct {
	th    *vm.Thread
	cache *undump.Cache

	// lastResults holds the values the most recently run chunk returned,
	// consumed by the REPL to echo bare-expression results.
	lastResults []vm.Value
}

func newRuntime(cfg lumaconfig.Config) *runtime {
	th := vm.NewState()
	th.Global().GCControl("setpause", cfg.GCPausePercent)
	th.Global().GCControl("setstepmul", cfg.GCStepMulPercent)

	if cfg.EnableBase {
		base.Open(th)
	}
	if cfg.EnableMath {
		mathlib.Open(th)
	}
	if cfg.EnableString {
		strlib.Open(th)
	}
	if cfg.EnableTable {
		tablib.Open(th)
	}
	if cfg.EnableIO {
		iolib.Open(th)
	}
	if cfg.EnableOS {
		oslib.Open(th)
	}
	if cfg.EnableDebug {
		debuglib.Open(th)
	}
	if cfg.EnableCoroutine {
		coroutinelib.Open(th)
	}

	rt := &runtime{th: th}
	if cfg.BytecodeCacheDir != "" {
		c, err := undump.OpenCache(cfg.BytecodeCacheDir)
		if err != nil {
			logging.Root().Warn("bytecode cache unavailable", "dir", cfg.BytecodeCacheDir, "err", err)
		} else {
			rt.cache = c
		}
	}
	return rt
}

// runFile loads and runs a .luma source file or a .luc bytecode dump,
// distinguished by undump's own magic-byte check rather than the file
// extension (the same way Lua's lua_load probes the first byte).
func (rt *runtime) runFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	proto, err := rt.compile(data, "@"+path)
	if err != nil {
		return err
	}
	return rt.callMain(proto)
}

// runString compiles and runs an inline chunk, e.g. from -e or a REPL
// line, under chunkname for error messages the way Lua's "=" prefix
// convention marks non-file sources.
func (rt *runtime) runString(src, chunkname string) error {
	proto, err := rt.compile([]byte(src), chunkname)
	if err != nil {
		return err
	}
	return rt.callMain(proto)
}

func (rt *runtime) compile(data []byte, chunkname string) (*vm.Proto, error) {
	if isBytecode(data) {
		return undump.Load(rt.th.Global(), data)
	}
	compileFn := func() (*vm.Proto, error) {
		chunk, err := parser.New(chunkname, string(data)).ParseChunk()
		if err != nil {
			return nil, err
		}
		return codegen.Compile(rt.th.Global(), chunkname, chunk, codegen.Options{Optimize: true})
	}
	if rt.cache != nil {
		return rt.cache.GetOrCompile(rt.th.Global(), data, compileFn)
	}
	return compileFn()
}

func isBytecode(data []byte) bool {
	return bytes.HasPrefix(data, undump.Magic[:])
}

func (rt *runtime) callMain(proto *vm.Proto) error {
	fnv, err := rt.th.Load(proto)
	if err != nil {
		return err
	}
	results, err := rt.th.PCall(fnv, nil, vm.Nil)
	if err != nil {
		rt.lastResults = nil
		return err
	}
	rt.lastResults = results
	return nil
}

// needsMoreInput reports whether a parse error looks like it was caused
// by input ending mid-construct (an unbalanced block, unterminated
// string, or trailing operator) rather than a genuine syntax error, so
// the REPL can prompt for another line instead of reporting failure.
func needsMoreInput(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected EOF") || strings.Contains(msg, "unexpected end")
}
