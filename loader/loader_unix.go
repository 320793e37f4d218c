// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

//go:build linux || darwin

package loader

import (
	"fmt"
	"plugin"

	"github.com/lumalang/luma/lang/vm"
)

// Load opens the shared object at path, looks up its exported "Open"
// symbol, which must have type func(*vm.Thread), and calls it with th.
// name is not used, and Load installs nothing in th's globals itself;
// whatever the module registers is up to its Open function.
func Load(th *vm.Thread, path, name string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("loader: opening %s: %w", path, err)
	}
	sym, err := p.Lookup("Open")
	if err != nil {
		return fmt.Errorf("loader: %s has no Open symbol: %w", path, err)
	}
	open, ok := sym.(func(*vm.Thread))
	if !ok {
		return fmt.Errorf("loader: %s's Open symbol has the wrong signature", path)
	}
	open(th)
	return nil
}
