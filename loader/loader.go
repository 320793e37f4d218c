// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package loader implements require("modname.so")-style dynamic library
// loading: an OS-specific shim (Go's own plugin package, Linux/macOS only)
// that opens a shared object and looks up its registration entry point,
// kept deliberately thin per spec.md's scope note that this is an
// external collaborator, not core.
package loader

import "fmt"

// OpenFunc is the exported symbol every Luma native extension module must
// provide: Open(th *vm.Thread). Declared here as an
// interface{} rather than a concrete vm.GoFunction type, since the
// plugin-loaded symbol is resolved through Go's plugin.Lookup, which
// returns a bare interface{} the caller must type-assert.
type OpenFunc = interface{}

// ErrUnsupportedPlatform is returned on every platform other than Linux
// and macOS.
var ErrUnsupportedPlatform = fmt.Errorf("loader: dynamic library loading is not supported on this platform")
