// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package strlib installs the string.* table: len, sub, upper, lower, rep,
// reverse, byte, char, format, find, gsub, plus a string.hash extension.
// find and gsub match plain text only; Lua patterns are not interpreted,
// and match/gmatch are not installed.
package strlib

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/lumalang/luma/lang/vm"
)

// Open installs the string table into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 16)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("string."+name, fn))
	}

	reg("len", strLen)
	reg("sub", strSub)
	reg("upper", strUpper)
	reg("lower", strLower)
	reg("rep", strRep)
	reg("reverse", strReverse)
	reg("byte", strByte)
	reg("char", strChar)
	reg("format", strFormat)
	reg("find", strFind)
	reg("gsub", strGsub)
	reg("hash", strHash)

	_ = th.Globals().Set(th.NewString("string"), vm.TableValueOf(t))

	// Every string value's metatable routes __index to this table, the way
	// Lua 5.1 lets "foo":upper() resolve through the shared string metatable.
	smt := th.CreateTable(0, 1)
	_ = smt.Set(th.NewString("__index"), vm.TableValueOf(t))
	th.Global().SetTypeMetatable(vm.KString, smt)
}

func argString(th *vm.Thread, i int) (string, bool) {
	s, ok := th.Arg(i).AsString()
	if !ok {
		return "", false
	}
	return s.Value(), true
}

func strLen(th *vm.Thread) (int, error) {
	s, ok := argString(th, 0)
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'len' (string expected)")
	}
	th.PushResult(vm.Number(float64(len(s))))
	return 1, nil
}

// strIndex normalizes a Lua string index (1-based, negative counts from
// the end) against length n.
func strIndex(i, n int) int {
	if i < 0 {
		i = n + i + 1
	}
	if i < 1 {
		i = 1
	}
	return i
}

func strSub(th *vm.Thread) (int, error) {
	s, ok := argString(th, 0)
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'sub' (string expected)")
	}
	n := len(s)
	i := 1
	if th.NArgs() >= 2 {
		i = int(th.Arg(1).AsNumber())
	}
	j := -1
	if th.NArgs() >= 3 {
		j = int(th.Arg(2).AsNumber())
	}
	i = strIndex(i, n)
	if j < 0 {
		j = n + j + 1
	}
	if j > n {
		j = n
	}
	if i > j {
		th.PushResult(th.NewString(""))
		return 1, nil
	}
	th.PushResult(th.NewString(s[i-1 : j]))
	return 1, nil
}

func strUpper(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	th.PushResult(th.NewString(strings.ToUpper(s)))
	return 1, nil
}

func strLower(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	th.PushResult(th.NewString(strings.ToLower(s)))
	return 1, nil
}

func strRep(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	n := int(th.Arg(1).AsNumber())
	if n <= 0 {
		th.PushResult(th.NewString(""))
		return 1, nil
	}
	th.PushResult(th.NewString(strings.Repeat(s, n)))
	return 1, nil
}

func strReverse(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	th.PushResult(th.NewString(string(b)))
	return 1, nil
}

func strByte(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	n := len(s)
	i := 1
	if th.NArgs() >= 2 {
		i = int(th.Arg(1).AsNumber())
	}
	j := i
	if th.NArgs() >= 3 {
		j = int(th.Arg(2).AsNumber())
	}
	i = strIndex(i, n)
	if j < 0 {
		j = n + j + 1
	}
	if j > n {
		j = n
	}
	count := 0
	for k := i; k <= j; k++ {
		th.PushResult(vm.Number(float64(s[k-1])))
		count++
	}
	return count, nil
}

func strChar(th *vm.Thread) (int, error) {
	n := th.NArgs()
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(int(th.Arg(i).AsNumber()))
	}
	th.PushResult(th.NewString(string(b)))
	return 1, nil
}

// strFormat implements a pragmatic subset of string.format: %s, %d, %f,
// %x, %q, %%, delegating field width/precision directly to fmt's verbs.
func strFormat(th *vm.Thread) (int, error) {
	format, _ := argString(th, 0)
	argIdx := 1
	var out strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0123456789.", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			out.WriteByte('%')
			break
		}
		verb := format[j]
		spec := format[i : j+1]
		i = j
		switch verb {
		case '%':
			out.WriteByte('%')
		case 's':
			v := th.Arg(argIdx)
			argIdx++
			str := th.Global().ToStringNoMeta(v)
			out.WriteString(fmt.Sprintf(spec, str))
		case 'd', 'i':
			n := int64(th.Arg(argIdx).AsNumber())
			argIdx++
			out.WriteString(fmt.Sprintf(strings.Replace(spec, string(verb), "d", 1), n))
		case 'f', 'g', 'e':
			n := th.Arg(argIdx).AsNumber()
			argIdx++
			out.WriteString(fmt.Sprintf(spec, n))
		case 'x', 'X', 'o':
			n := int64(th.Arg(argIdx).AsNumber())
			argIdx++
			out.WriteString(fmt.Sprintf(spec, n))
		case 'q':
			s, _ := argString(th, argIdx)
			argIdx++
			out.WriteString(strconv.Quote(s))
		case 'c':
			n := int64(th.Arg(argIdx).AsNumber())
			argIdx++
			out.WriteByte(byte(n))
		default:
			out.WriteString(spec)
		}
	}
	th.PushResult(th.NewString(out.String()))
	return 1, nil
}

// strFind implements a plain-text (no Lua patterns) substring search, the
// common case most call sites actually exercise; a full pattern matcher is
// out of scope per spec.md's stdlib note.
func strFind(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	pat, _ := argString(th, 1)
	init := 1
	if th.NArgs() >= 3 {
		init = int(th.Arg(2).AsNumber())
	}
	init = strIndex(init, len(s))
	if init > len(s)+1 {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	idx := strings.Index(s[init-1:], pat)
	if idx < 0 {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	start := init + idx
	end := start + len(pat) - 1
	th.PushResult(vm.Number(float64(start)))
	th.PushResult(vm.Number(float64(end)))
	return 2, nil
}

// strGsub implements the plain-text replace-all form of string.gsub
// (pattern argument treated as a literal, matching strFind's scope).
func strGsub(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	pat, _ := argString(th, 1)
	repl, _ := argString(th, 2)
	if pat == "" {
		th.PushResult(th.NewString(s))
		th.PushResult(vm.Number(0))
		return 2, nil
	}
	n := strings.Count(s, pat)
	th.PushResult(th.NewString(strings.ReplaceAll(s, pat, repl)))
	th.PushResult(vm.Number(float64(n)))
	return 2, nil
}

// strHash is the domain-stack extension surfacing golang.org/x/crypto's
// sha3 implementation as string.hash(s) -> hex digest.
func strHash(th *vm.Thread) (int, error) {
	s, _ := argString(th, 0)
	sum := sha3.Sum256([]byte(s))
	th.PushResult(th.NewString(fmt.Sprintf("%x", sum)))
	return 1, nil
}
