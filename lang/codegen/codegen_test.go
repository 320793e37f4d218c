// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// (at your option) any later version.

package codegen

import (
	"testing"

	"github.com/lumalang/luma/lang/parser"
	"github.com/lumalang/luma/lang/vm"
)

// mustCompile parses and compiles src, failing the test on any error, and
// returns the verified top-level prototype.
func mustCompile(t *testing.T, src string) *vm.Proto {
	t.Helper()
	chunk, err := parser.New("test.luma", src).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	g := vm.New()
	proto, err := Compile(g, "test.luma", chunk, Options{})
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	if err := vm.Verify(proto); err != nil {
		t.Fatalf("verify error: %v", err)
	}
	return proto
}

func lastOp(p *vm.Proto) vm.OpCode {
	return p.Code[len(p.Code)-1].OpCode()
}

func TestEmptyChunkEndsInReturn(t *testing.T) {
	proto := mustCompile(t, "")
	if lastOp(proto) != vm.OpReturn {
		t.Fatalf("expected trailing RETURN, got %s", lastOp(proto))
	}
}

func TestLocalAssignmentAdjustsToNames(t *testing.T) {
	proto := mustCompile(t, "local a, b, c = 1, 2")
	if proto.MaxStack < 3 {
		t.Fatalf("expected at least 3 registers reserved for locals, got %d", proto.MaxStack)
	}
	var nilCount int
	for _, instr := range proto.Code {
		if instr.OpCode() == vm.OpLoadNil {
			nilCount++
		}
	}
	if nilCount != 1 {
		t.Fatalf("expected exactly one LOADNIL padding the missing initializer, got %d", nilCount)
	}
}

func TestGlobalReadWrite(t *testing.T) {
	proto := mustCompile(t, "x = 1\nreturn x")
	var sawSet, sawGet bool
	for _, instr := range proto.Code {
		switch instr.OpCode() {
		case vm.OpSetGlobal:
			sawSet = true
		case vm.OpGetGlobal:
			sawGet = true
		}
	}
	if !sawSet || !sawGet {
		t.Fatalf("expected both SETGLOBAL and GETGLOBAL, got set=%v get=%v", sawSet, sawGet)
	}
}

func TestIfElseBranches(t *testing.T) {
	proto := mustCompile(t, `
		if x then
			y = 1
		else
			y = 2
		end
	`)
	var tests, jumps int
	for _, instr := range proto.Code {
		switch instr.OpCode() {
		case vm.OpTest:
			tests++
		case vm.OpJmp:
			jumps++
		}
	}
	if tests != 1 {
		t.Fatalf("expected exactly one TEST for the single condition, got %d", tests)
	}
	if jumps != 2 {
		t.Fatalf("expected two jumps (the TEST's pair and the then-branch's end-jump), got %d", jumps)
	}
}

func TestNumericForLoopShape(t *testing.T) {
	proto := mustCompile(t, `
		local sum = 0
		for i = 1, 10 do
			sum = sum + i
		end
		return sum
	`)
	var prep, loop int
	for _, instr := range proto.Code {
		switch instr.OpCode() {
		case vm.OpForPrep:
			prep++
		case vm.OpForLoop:
			loop++
		}
	}
	if prep != 1 || loop != 1 {
		t.Fatalf("expected exactly one FORPREP/FORLOOP pair, got prep=%d loop=%d", prep, loop)
	}
}

func TestGenericForLoopShape(t *testing.T) {
	proto := mustCompile(t, `
		for k, v in pairs(t) do
			use(k, v)
		end
	`)
	var tfor int
	for _, instr := range proto.Code {
		if instr.OpCode() == vm.OpTForLoop {
			tfor++
		}
	}
	if tfor != 1 {
		t.Fatalf("expected exactly one TFORLOOP, got %d", tfor)
	}
}

func TestBreakPatchesToLoopExit(t *testing.T) {
	proto := mustCompile(t, `
		while true do
			if done then
				break
			end
		end
	`)
	// Every jump target must land within [0, len(Code)]; Verify already
	// checks this, but this test documents the intent of the fixture.
	if err := vm.Verify(proto); err != nil {
		t.Fatalf("unexpected verify failure: %v", err)
	}
}

func TestClosureCapturesUpvalue(t *testing.T) {
	proto := mustCompile(t, `
		local function counter()
			local n = 0
			return function()
				n = n + 1
				return n
			end
		end
	`)
	if len(proto.Protos) != 1 {
		t.Fatalf("expected one nested prototype (counter, holding its inner closure), got %d", len(proto.Protos))
	}
	inner := proto.Protos[0].Protos[0]
	if len(inner.Upvalues) != 1 {
		t.Fatalf("expected the returned closure to capture exactly one upvalue, got %d", len(inner.Upvalues))
	}
	if !inner.Upvalues[0].InStack {
		t.Fatalf("expected n to be captured directly off counter's stack")
	}
}

func TestMethodCallUsesSelf(t *testing.T) {
	proto := mustCompile(t, `obj:method(1, 2)`)
	var sawSelf bool
	for _, instr := range proto.Code {
		if instr.OpCode() == vm.OpSelf {
			sawSelf = true
		}
	}
	if !sawSelf {
		t.Fatal("expected a SELF instruction for the method call")
	}
}

func TestReturnOutsideFunctionTailIsRejected(t *testing.T) {
	chunk, err := parser.New("test.luma", `
		if x then
			return 1
		end
		print("after")
	`).ParseChunk()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	g := vm.New()
	_, err = Compile(g, "test.luma", chunk, Options{})
	if err == nil {
		t.Fatal("expected a codegen error for a non-tail return, got none")
	}
}

func TestAndOrShortCircuitValueSemantics(t *testing.T) {
	proto := mustCompile(t, "return a and b or c")
	var testSets int
	for _, instr := range proto.Code {
		if instr.OpCode() == vm.OpTestSet {
			testSets++
		}
	}
	if testSets != 2 {
		t.Fatalf("expected two TESTSET instructions (and, or), got %d", testSets)
	}
}
