// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package iolib installs a minimal io.* table: io.write and io.read from
// stdout/stdin. Buffering, file handles, and modes are left thin, out of
// core scope per spec.md.
package iolib

import (
	"bufio"
	"fmt"
	"os"

	"github.com/lumalang/luma/lang/vm"
)

var stdinReader = bufio.NewReader(os.Stdin)

// Open installs the io table into th's globals.
func Open(th *vm.Thread) {
	t := th.CreateTable(0, 4)
	reg := func(name string, fn vm.GoFunction) {
		_ = t.Set(th.NewString(name), th.Register("io."+name, fn))
	}
	reg("write", ioWrite)
	reg("read", ioRead)

	_ = th.Globals().Set(th.NewString("io"), vm.TableValueOf(t))
}

func ioWrite(th *vm.Thread) (int, error) {
	n := th.NArgs()
	for i := 0; i < n; i++ {
		fmt.Fprint(os.Stdout, th.Global().ToStringNoMeta(th.Arg(i)))
	}
	return 0, nil
}

func ioRead(th *vm.Thread) (int, error) {
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		th.PushResult(vm.Nil)
		return 1, nil
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	th.PushResult(th.NewString(line))
	return 1, nil
}
