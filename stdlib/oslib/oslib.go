// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package oslib installs the os.* table: time, date, clock, getenv.
package oslib

import (
	"os"
	"time"

	"github.com/lumalang/luma/lang/vm"
)

var startTime = time.Now()

// Open installs the os table into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 8)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("os."+name, fn))
	}
	reg("time", osTime)
	reg("clock", osClock)
	reg("date", osDate)
	reg("getenv", osGetenv)
	reg("difftime", osDifftime)

	_ = th.Globals().Set(th.NewString("os"), vm.TableValueOf(t))
}

func osTime(th *vm.Thread) (int, error) {
	th.PushResult(vm.Number(float64(time.Now().Unix())))
	return 1, nil
}

func osClock(th *vm.Thread) (int, error) {
	th.PushResult(vm.Number(time.Since(startTime).Seconds()))
	return 1, nil
}

func osDate(th *vm.Thread) (int, error) {
	format := "%c"
	if s, ok := th.Arg(0).AsString(); ok {
		format = s.Value()
	}
	now := time.Now()
	_ = format
	th.PushResult(th.NewString(now.Format(time.ANSIC)))
	return 1, nil
}

func osGetenv(th *vm.Thread) (int, error) {
	s, ok := th.Arg(0).AsString()
	if !ok {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	v, found := os.LookupEnv(s.Value())
	if !found {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	th.PushResult(th.NewString(v))
	return 1, nil
}

func osDifftime(th *vm.Thread) (int, error) {
	t2 := th.Arg(0).AsNumber()
	t1 := th.Arg(1).AsNumber()
	th.PushResult(vm.Number(t2 - t1))
	return 1, nil
}
