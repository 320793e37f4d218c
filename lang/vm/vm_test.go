// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lumalang/luma/lang/codegen"
	"github.com/lumalang/luma/lang/gc"
	"github.com/lumalang/luma/lang/parser"
	"github.com/lumalang/luma/lang/vm"
)

// ---- Chunk execution helpers ------------------------------------------------

// run compiles and executes src on a fresh state, registering the given
// Go functions as globals before running, and returns whatever the chunk
// returns.
func run(t *testing.T, src string, globals map[string]vm.GoFunction) []vm.Value {
	t.Helper()
	chunk, err := parser.New("test.luma", src).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	th := vm.NewState()
	proto, err := codegen.Compile(th.Global(), "test.luma", chunk, codegen.Options{})
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	for name, fn := range globals {
		if err := th.RawSet(th.Globals(), th.NewString(name), th.Register(name, fn)); err != nil {
			t.Fatalf("registering global %q: %v", name, err)
		}
	}
	fnv, err := th.Load(proto)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	results, err := th.PCall(fnv, nil, vm.Nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return results
}

func runNumber(t *testing.T, src string) float64 {
	t.Helper()
	results := run(t, src, nil)
	if len(results) == 0 {
		t.Fatalf("expected at least one result, got none")
	}
	if results[0].Kind() != vm.KNumber {
		t.Fatalf("expected a number result, got %s", results[0].TypeName())
	}
	return results[0].AsNumber()
}

// ---- Arithmetic and control flow --------------------------------------------

func TestArithmeticPrecedence(t *testing.T) {
	got := runNumber(t, "return 2 + 3 * 4")
	if got != 14 {
		t.Errorf("2 + 3 * 4 = %v; want 14", got)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	got := runNumber(t, `
		local sum = 0
		local i = 1
		while i <= 10 do
			sum = sum + i
			i = i + 1
		end
		return sum
	`)
	if got != 55 {
		t.Errorf("sum 1..10 = %v; want 55", got)
	}
}

func TestNumericForLoop(t *testing.T) {
	got := runNumber(t, `
		local sum = 0
		for i = 1, 100 do
			sum = sum + i
		end
		return sum
	`)
	if got != 5050 {
		t.Errorf("sum 1..100 = %v; want 5050", got)
	}
}

func TestNumericForLoopWithStep(t *testing.T) {
	got := runNumber(t, `
		local n = 0
		for i = 10, 1, -1 do
			n = n + 1
		end
		return n
	`)
	if got != 10 {
		t.Errorf("countdown iterations = %v; want 10", got)
	}
}

func TestIfElseifElse(t *testing.T) {
	src := `
		local function classify(n)
			if n < 0 then
				return -1
			elseif n == 0 then
				return 0
			else
				return 1
			end
		end
		return classify(%d)
	`
	cases := []struct {
		n    int
		want float64
	}{{-5, -1}, {0, 0}, {5, 1}}
	for _, tc := range cases {
		got := runNumber(t, fmt.Sprintf(src, tc.n))
		if got != tc.want {
			t.Errorf("classify(%d) = %v; want %v", tc.n, got, tc.want)
		}
	}
}

// ---- Closures and upvalues ---------------------------------------------------

func TestClosureUpvalueCounter(t *testing.T) {
	got := runNumber(t, `
		local function makeCounter()
			local n = 0
			return function()
				n = n + 1
				return n
			end
		end
		local c = makeCounter()
		c()
		c()
		return c()
	`)
	if got != 3 {
		t.Errorf("third call = %v; want 3", got)
	}
}

func TestTwoClosuresShareUpvalue(t *testing.T) {
	got := runNumber(t, `
		local n = 0
		local function inc() n = n + 1 end
		local function get() return n end
		inc()
		inc()
		return get()
	`)
	if got != 2 {
		t.Errorf("shared upvalue = %v; want 2", got)
	}
}

// ---- Recursion and tail position --------------------------------------------

func TestRecursiveFactorial(t *testing.T) {
	got := runNumber(t, `
		local function fact(n)
			if n <= 1 then
				return 1
			end
			return n * fact(n - 1)
		end
		return fact(10)
	`)
	if got != 3628800 {
		t.Errorf("fact(10) = %v; want 3628800", got)
	}
}

// ---- Tables and methods ------------------------------------------------------

func TestTableFieldAccess(t *testing.T) {
	got := runNumber(t, `
		local t = { x = 10, y = 20 }
		return t.x + t.y
	`)
	if got != 30 {
		t.Errorf("table fields = %v; want 30", got)
	}
}

func TestMethodCallSelf(t *testing.T) {
	got := runNumber(t, `
		local account = { balance = 100 }
		function account:deposit(amount)
			self.balance = self.balance + amount
			return self.balance
		end
		return account:deposit(50)
	`)
	if got != 150 {
		t.Errorf("deposit result = %v; want 150", got)
	}
}

// ---- Generic for and logical operators --------------------------------------

func TestAndOrShortCircuit(t *testing.T) {
	got := runNumber(t, `
		local a = nil
		local b = a and a.missing or 42
		return b
	`)
	if got != 42 {
		t.Errorf("and/or fallback = %v; want 42", got)
	}
}

// ---- Collector registration --------------------------------------------

// TestLoadRegistersNestedProtos guards against a nested function's Proto
// (every closure defined inside another function) going permanently
// unswept: Thread.Load must register the whole Proto tree, not just the
// one it was handed.
func TestLoadRegistersNestedProtos(t *testing.T) {
	chunk, err := parser.New("test.luma", `
		function outer()
			local function inner() return 1 end
			return inner
		end
		return outer
	`).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	th := vm.NewState()
	proto, err := codegen.Compile(th.Global(), "test.luma", chunk, codegen.Options{})
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	if len(proto.Protos) == 0 {
		t.Fatal("expected the chunk to produce a nested Proto for outer()")
	}
	nested := gc.Object(proto.Protos[0])

	if _, err := th.Load(proto); err != nil {
		t.Fatalf("load error: %v", err)
	}

	for _, o := range th.Global().Collector().Objects() {
		if o == nested {
			return
		}
	}
	t.Fatal("nested Proto was never registered with the collector")
}

// TestLoadRegistrationIsIdempotent guards against a cached Proto being
// registered twice (once by codegen's compile path historically, once by
// Thread.Load, or across repeated Load calls on a cache hit), which would
// otherwise duplicate it in the collector's object vector.
func TestLoadRegistrationIsIdempotent(t *testing.T) {
	chunk, err := parser.New("test.luma", `return 1`).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	th := vm.NewState()
	proto, err := codegen.Compile(th.Global(), "test.luma", chunk, codegen.Options{})
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}

	if _, err := th.Load(proto); err != nil {
		t.Fatalf("first load error: %v", err)
	}
	before := len(th.Global().Collector().Objects())

	if _, err := th.Load(proto); err != nil {
		t.Fatalf("second load error: %v", err)
	}
	after := len(th.Global().Collector().Objects())

	// The second Load still registers a fresh LuaClosure wrapper, so the
	// count grows by exactly one (the closure), not two (closure + a
	// duplicated Proto entry).
	if after != before+1 {
		t.Fatalf("object count after reload = %d, want %d (proto must not be re-registered)", after, before+1)
	}
}

// ---- Coroutine yield boundary --------------------------------------------

// TestYieldAcrossGoFunctionBoundaryIsAnError builds the call shape pcall +
// yield produces: a Go function frame (callinto, standing in for pcall)
// sitting between the coroutine body and the yield, with a Lua frame in
// between. Resume must report the boundary violation instead of letting
// the yield through.
func TestYieldAcrossGoFunctionBoundaryIsAnError(t *testing.T) {
	chunk, err := parser.New("test.luma", `
		return function()
			callinto(function()
				yield_raw()
			end)
		end
	`).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	th := vm.NewState()
	proto, err := codegen.Compile(th.Global(), "test.luma", chunk, codegen.Options{})
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}

	callinto := func(th *vm.Thread) (int, error) {
		_, err := th.Call(th.Arg(0), nil, 0)
		return 0, err
	}
	yieldRaw := func(th *vm.Thread) (int, error) {
		th.Yield(nil)
		return 0, nil
	}
	for name, fn := range map[string]vm.GoFunction{"callinto": callinto, "yield_raw": yieldRaw} {
		if err := th.RawSet(th.Globals(), th.NewString(name), th.Register(name, fn)); err != nil {
			t.Fatalf("registering global %q: %v", name, err)
		}
	}

	fnv, err := th.Load(proto)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	entry, err := th.Call(fnv, nil, 1)
	if err != nil {
		t.Fatalf("building coroutine entry: %v", err)
	}

	co := th.Global().NewCoroutine(entry[0])
	_, _, err = th.Resume(co, nil)
	if err == nil {
		t.Fatal("expected an error resuming past a yield across a Go-function boundary")
	}
	if !strings.Contains(err.Error(), "yield across a Go-function boundary") {
		t.Fatalf("error = %q, want it to mention the Go-function boundary", err.Error())
	}
}

// TestYieldWithinLuaFramesSucceeds is the control case for
// TestYieldAcrossGoFunctionBoundaryIsAnError: yielding from straight-line
// Lua code, with no Go frame in between, must still work.
func TestYieldWithinLuaFramesSucceeds(t *testing.T) {
	chunk, err := parser.New("test.luma", `
		return function()
			yield_raw()
		end
	`).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	th := vm.NewState()
	proto, err := codegen.Compile(th.Global(), "test.luma", chunk, codegen.Options{})
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}

	yieldRaw := func(th *vm.Thread) (int, error) {
		th.Yield(nil)
		return 0, nil
	}
	if err := th.RawSet(th.Globals(), th.NewString("yield_raw"), th.Register("yield_raw", yieldRaw)); err != nil {
		t.Fatalf("registering global: %v", err)
	}

	fnv, err := th.Load(proto)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	entry, err := th.Call(fnv, nil, 1)
	if err != nil {
		t.Fatalf("building coroutine entry: %v", err)
	}

	co := th.Global().NewCoroutine(entry[0])
	_, yielded, err := th.Resume(co, nil)
	if err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	if !yielded {
		t.Fatal("expected the coroutine to have yielded")
	}
}
