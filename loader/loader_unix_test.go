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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumalang/luma/lang/vm"
)

func TestLoadMissingFileReturnsWrappedError(t *testing.T) {
	th := vm.NewState()
	err := Load(th, filepath.Join(t.TempDir(), "missing.so"), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "loader: opening")
}
