// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package lumaconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsEnableEveryStdlibPackage(t *testing.T) {
	require.True(t, Defaults.EnableBase)
	require.True(t, Defaults.EnableMath)
	require.True(t, Defaults.EnableString)
	require.True(t, Defaults.EnableTable)
	require.True(t, Defaults.EnableIO)
	require.True(t, Defaults.EnableOS)
	require.True(t, Defaults.EnableDebug)
	require.True(t, Defaults.EnableCoroutine)
	require.Equal(t, "", Defaults.BytecodeCacheDir)
}

func TestLoadOverridesOnlyFieldsPresentInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luma.toml")
	writeFile(t, path, `
GCPausePercent = 150
EnableIO = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 150, cfg.GCPausePercent)
	require.False(t, cfg.EnableIO)

	// Every field the file didn't mention falls back to Defaults.
	require.Equal(t, Defaults.GCStepMulPercent, cfg.GCStepMulPercent)
	require.Equal(t, Defaults.StackSize, cfg.StackSize)
	require.True(t, cfg.EnableMath)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoadFromEnvWithoutVariableReturnsDefaults(t *testing.T) {
	t.Setenv("LUMA_CONFIG", "")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, Defaults, cfg)
}

func TestLoadFromEnvReadsConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luma.toml")
	writeFile(t, path, `StackSize = 128`)
	t.Setenv("LUMA_CONFIG", path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Equal(t, 128, cfg.StackSize)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}
