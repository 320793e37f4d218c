// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package lumaconfig holds the runtime's tunable settings (GC pacing,
// stack limits, stdlib enablement) as a single flat Config struct with a
// package-level Defaults value, modeled directly on the teacher's
// probe/probeconfig.Config pattern (one struct, one Defaults var, TOML
// (de)serialization), loaded by cmd/luma from -config or LUMA_CONFIG.
package lumaconfig

import (
	"os"

	"github.com/naoina/toml"
)

// Config holds every tunable the CLI and embedding hosts can override.
type Config struct {
	// GC pacing, passed straight through to gc.Collector.SetPause /
	// SetStepMul (spec §4.3/§6's GC control surface).
	GCPausePercent   int
	GCStepMulPercent int

	// StackSize is the initial per-thread value stack size in slots. No
	// code reads it: threads start with lang/vm's fixed initial stack.
	StackSize int
	// MaxStackSize is a cap on thread stack growth. No code reads it:
	// lang/vm applies its own fixed stack-overflow bound.
	MaxStackSize int

	// Stdlib enablement flags: every standard library package can be
	// independently excluded from a fresh Global, e.g. to sandbox io/os
	// away from untrusted chunks.
	EnableBase       bool
	EnableMath       bool
	EnableString     bool
	EnableTable      bool
	EnableIO         bool
	EnableOS         bool
	EnableDebug      bool
	EnableCoroutine  bool

	// BytecodeCacheDir, if non-empty, enables undump's persistent
	// LevelDB-backed compile cache at this path.
	BytecodeCacheDir string
}

// Defaults mirrors the teacher's package-level "Defaults" Config value.
var Defaults = Config{
	GCPausePercent:   200,
	GCStepMulPercent: 200,
	StackSize:        64,
	MaxStackSize:     1 << 20,
	EnableBase:       true,
	EnableMath:       true,
	EnableString:     true,
	EnableTable:      true,
	EnableIO:         true,
	EnableOS:         true,
	EnableDebug:      true,
	EnableCoroutine:  true,
}

// Load reads a TOML config file at path, starting from Defaults for any
// field the file omits.
func Load(path string) (Config, error) {
	cfg := Defaults
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromEnv reads LUMA_CONFIG if set, otherwise returns Defaults
// unchanged.
func LoadFromEnv() (Config, error) {
	path := os.Getenv("LUMA_CONFIG")
	if path == "" {
		return Defaults, nil
	}
	return Load(path)
}
