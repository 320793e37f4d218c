// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package mathlib installs the math.* table, a thin wrapper over Go's
// standard math package (spec.md's stdlib scope note: only the
// registration contract is specified).
package mathlib

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/holiman/uint256"

	"github.com/lumalang/luma/lang/vm"
)

// Open installs the math table into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 30)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("math."+name, fn))
	}

	_ = t.Set(th.NewString("pi"), vm.Number(math.Pi))
	_ = t.Set(th.NewString("huge"), vm.Number(math.Inf(1)))
	_ = t.Set(th.NewString("maxinteger"), vm.Number(math.MaxInt64))
	_ = t.Set(th.NewString("mininteger"), vm.Number(math.MinInt64))

	reg("abs", unary(math.Abs))
	reg("ceil", unary(math.Ceil))
	reg("floor", unary(math.Floor))
	reg("sqrt", unary(math.Sqrt))
	reg("sin", unary(math.Sin))
	reg("cos", unary(math.Cos))
	reg("tan", unary(math.Tan))
	reg("asin", unary(math.Asin))
	reg("acos", unary(math.Acos))
	reg("atan", unary(math.Atan))
	reg("exp", unary(math.Exp))
	reg("log", mathLog)
	reg("pow", mathPow)
	reg("fmod", mathFmod)
	reg("modf", mathModf)
	reg("max", mathMax)
	reg("min", mathMin)
	reg("random", mathRandom)
	reg("randomseed", mathRandomSeed)
	reg("biginteger", mathBigInteger)

	_ = th.Globals().Set(th.NewString("math"), vm.TableValueOf(t))
}

func unary(f func(float64) float64) vm.GoFunction {
	return func(th *vm.Thread) (int, error) {
		th.PushResult(vm.Number(f(th.Arg(0).AsNumber())))
		return 1, nil
	}
}

func mathLog(th *vm.Thread) (int, error) {
	x := th.Arg(0).AsNumber()
	if th.NArgs() >= 2 {
		base := th.Arg(1).AsNumber()
		th.PushResult(vm.Number(math.Log(x) / math.Log(base)))
		return 1, nil
	}
	th.PushResult(vm.Number(math.Log(x)))
	return 1, nil
}

func mathPow(th *vm.Thread) (int, error) {
	th.PushResult(vm.Number(math.Pow(th.Arg(0).AsNumber(), th.Arg(1).AsNumber())))
	return 1, nil
}

func mathFmod(th *vm.Thread) (int, error) {
	th.PushResult(vm.Number(math.Mod(th.Arg(0).AsNumber(), th.Arg(1).AsNumber())))
	return 1, nil
}

func mathModf(th *vm.Thread) (int, error) {
	i, f := math.Modf(th.Arg(0).AsNumber())
	th.PushResult(vm.Number(i))
	th.PushResult(vm.Number(f))
	return 2, nil
}

func mathMax(th *vm.Thread) (int, error) {
	n := th.NArgs()
	best := th.Arg(0).AsNumber()
	for i := 1; i < n; i++ {
		if v := th.Arg(i).AsNumber(); v > best {
			best = v
		}
	}
	th.PushResult(vm.Number(best))
	return 1, nil
}

func mathMin(th *vm.Thread) (int, error) {
	n := th.NArgs()
	best := th.Arg(0).AsNumber()
	for i := 1; i < n; i++ {
		if v := th.Arg(i).AsNumber(); v < best {
			best = v
		}
	}
	th.PushResult(vm.Number(best))
	return 1, nil
}

func mathRandom(th *vm.Thread) (int, error) {
	switch th.NArgs() {
	case 0:
		th.PushResult(vm.Number(rand.Float64()))
	case 1:
		m := int(th.Arg(0).AsNumber())
		th.PushResult(vm.Number(float64(1 + rand.Intn(m))))
	default:
		lo := int(th.Arg(0).AsNumber())
		hi := int(th.Arg(1).AsNumber())
		th.PushResult(vm.Number(float64(lo + rand.Intn(hi-lo+1))))
	}
	return 1, nil
}

func mathRandomSeed(th *vm.Thread) (int, error) {
	rand.Seed(int64(th.Arg(0).AsNumber()))
	return 0, nil
}

// mathBigInteger is the math.biginteger(string) extension: a 256-bit
// integer parsed from a decimal string (hex is not accepted), demonstrating
// Value's extensibility beyond float64 via Userdata wrapping (spec §4's
// domain-stack wiring for holiman/uint256). Result is surfaced as a
// userdata carrying the *uint256.Int; no metatable is set on it.
func mathBigInteger(th *vm.Thread) (int, error) {
	s, ok := th.Arg(0).AsString()
	if !ok {
		return 0, fmt.Errorf("bad argument #1 to 'biginteger' (string expected)")
	}
	n, err := uint256.FromDecimal(s.Value())
	if err != nil {
		return 0, err
	}
	u := th.NewUserdata(n)
	th.PushResult(vm.UserdataValueOf(u))
	return 1, nil
}
