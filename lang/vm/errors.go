// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

// ErrStackOverflow is raised when a thread's value stack would grow past
// its configured maximum.
var ErrStackOverflow = errors.New("vm: stack overflow")

// ErrOutOfMemory mirrors mem.ErrOutOfMemory with the interned-reason
// requirement from spec §4.9: it must not allocate while being raised.
var ErrOutOfMemory = errors.New("vm: not enough memory")

// ErrNotAFunction is raised by CALL/pcall when the called value has no
// __call metamethod and is not itself callable.
var ErrNotAFunction = errors.New("vm: attempt to call a non-function value")

// ErrorKind taxonomizes error origin, per spec §7 (taxonomy, not distinct
// Go error types): used by the debug/CLI layer to decide exit codes.
type ErrorKind int

const (
	ErrRuntime ErrorKind = iota
	ErrMemory
	ErrSyntax
	ErrFile
	ErrInErrorHandling
	ErrInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrRuntime:
		return "runtime"
	case ErrMemory:
		return "memory"
	case ErrSyntax:
		return "syntax"
	case ErrFile:
		return "file"
	case ErrInErrorHandling:
		return "error in error handling"
	case ErrInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// RuntimeError is the error object that travels on the Go call stack
// between the point of failure and the nearest protected call, standing in
// for Lua's setjmp/longjmp unwinding (design notes: "use a result type
// threaded through the interpreter loop"). Value is whatever Lua-visible
// object pcall/error reports (typically a string); Kind classifies it for
// hosts that want coarse dispatch; Traceback is not filled in by the VM
// (debug.traceback renders its text through Thread.Traceback instead).
type RuntimeError struct {
	Value     Value
	Kind      ErrorKind
	Traceback string
}

func (e *RuntimeError) Error() string {
	if s, ok := e.Value.AsString(); ok {
		return s.Value()
	}
	return fmt.Sprintf("(error object is a %s value)", e.Value.TypeName())
}

// newRuntimeError builds a string RuntimeError from format and args. It adds
// no "chunkname:line: " prefix; Thread.Error does that for error(msg, level>0).
func (g *Global) newRuntimeError(kind ErrorKind, format string, args ...interface{}) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	return &RuntimeError{Value: stringValue(g.internString(msg)), Kind: kind}
}

// captureTraceback renders the current Go-level call chain via
// go-stack/stack, mirroring the teacher's use of that package for
// diagnostic logging. debug.traceback does not use it; that builtin renders
// the Lua call chain through Thread.Traceback.
func captureTraceback(skip int) string {
	call := stack.Callers(skip + 1)
	return fmt.Sprintf("%+v", call)
}

// protectedFrame records the state a pcall-style boundary must restore on
// failure (spec §4.9's pcall contract): recorded top, call-stack depth,
// and the handler function for xpcall.
type protectedFrame struct {
	savedTop   int
	savedCalls int
	handler    Value // Nil for plain pcall
}

// PCall runs fn(args...) under protection: on success it returns the
// results pushed above the recorded top; on failure it restores the stack
// and call-info depth and returns the error, optionally filtered through
// handler (xpcall's errfunc).
func (th *Thread) PCall(fn Value, args []Value, handler Value) (results []Value, rerr error) {
	frame := protectedFrame{savedTop: th.top, savedCalls: len(th.calls), handler: handler}

	defer func() {
		if r := recover(); r != nil {
			th.top = frame.savedTop
			th.calls = th.calls[:frame.savedCalls]
			rerr = th.normalizeRecover(r, frame)
		}
	}()

	results, rerr = th.Call(fn, args, -1)
	return
}

// normalizeRecover converts a recovered panic value (always a
// *RuntimeError by construction of raise/raiseError) into the error
// return, running the xpcall handler first if one was installed.
func (th *Thread) normalizeRecover(r interface{}, frame protectedFrame) error {
	re, ok := r.(*RuntimeError)
	if !ok {
		re = &RuntimeError{Value: stringValue(th.global.internString(fmt.Sprint(r))), Kind: ErrRuntime}
	}
	if !frame.handler.IsNil() {
		handled, herr := th.callHandler(frame.handler, re.Value)
		if herr != nil {
			return &RuntimeError{
				Value: stringValue(th.global.internString("error in error handling")),
				Kind:  ErrInErrorHandling,
			}
		}
		re.Value = handled
	}
	return re
}

func (th *Thread) callHandler(handler, errValue Value) (Value, error) {
	res, err := th.Call(handler, []Value{errValue}, 1)
	if err != nil {
		return Nil, err
	}
	if len(res) == 0 {
		return Nil, nil
	}
	return res[0], nil
}

// raise panics with a *RuntimeError, unwinding Go's own call stack up to
// the nearest recover in PCall (or to the host panic callback if no
// protected frame is active), exactly matching spec §4.9's two modes.
func (th *Thread) raise(kind ErrorKind, format string, args ...interface{}) {
	panic(th.global.newRuntimeError(kind, format, args...))
}

func (th *Thread) raiseValue(v Value) {
	panic(&RuntimeError{Value: v, Kind: ErrRuntime})
}

// Error implements the error(msg, level) builtin's location-prefix rule:
// for a string message and level > 0, prefix "source:line: ".
func (th *Thread) Error(msg Value, level int) {
	if level > 0 {
		if s, ok := msg.AsString(); ok {
			where := th.where(level)
			if where != "" {
				msg = stringValue(th.global.internString(where + s.Value()))
			}
		}
	}
	th.raiseValue(msg)
}

// where renders "source:line: " for the call frame `level` levels up from
// the current one (1 = caller of error()).
func (th *Thread) where(level int) string {
	idx := len(th.calls) - 1 - level
	if idx < 0 || idx >= len(th.calls) {
		return ""
	}
	ci := th.calls[idx]
	cl, ok := ci.fn.Callable().(*LuaClosure)
	if !ok {
		return ""
	}
	line := cl.Proto.LineAt(ci.savedPC - 1)
	return fmt.Sprintf("%s:%d: ", cl.Proto.Source, line)
}
