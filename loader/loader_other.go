// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

//go:build !linux && !darwin

package loader

import "github.com/lumalang/luma/lang/vm"

// Load always fails on platforms without Go plugin support.
func Load(th *vm.Thread, path, name string) error {
	return ErrUnsupportedPlatform
}
