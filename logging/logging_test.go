// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelStringCoversEveryConstant(t *testing.T) {
	cases := map[Level]string{
		LvlTrace: "TRACE",
		LvlDebug: "DEBUG",
		LvlInfo:  "INFO",
		LvlWarn:  "WARN",
		LvlError: "ERROR",
		Level(99): "?????",
	}
	for lvl, want := range cases {
		require.Equal(t, want, lvl.String())
	}
}

func TestDefaultLevelSuppressesTraceAndDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Trace("should not appear")
	log.Debug("should not appear either")
	require.Empty(t, buf.String())

	log.Info("visible")
	require.Contains(t, buf.String(), "[INFO]")
	require.Contains(t, buf.String(), "visible")
}

func TestWriteRendersKeyValueContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Warn("gc paused", "reason", "emergency", "cycle", 3)

	line := buf.String()
	require.Contains(t, line, "[WARN]")
	require.Contains(t, line, "gc paused")
	require.Contains(t, line, "reason=emergency")
	require.Contains(t, line, "cycle=3")
}

func TestChildLoggerPrependsPermanentPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf)
	child := base.New("component", "vm")

	child.Info("tick")
	child.Info("tock")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.Contains(t, line, "component=vm")
	}
}

func TestSetRootLevelAffectsRootOnly(t *testing.T) {
	SetRootLevel(LvlError)
	defer SetRootLevel(LvlInfo)

	require.Equal(t, LvlError, root.(*logger).level)
	require.Equal(t, LvlInfo, New(&bytes.Buffer{}).(*logger).level)
}

func TestCallerFrameNamesAGoSourceLocation(t *testing.T) {
	frame := CallerFrame(0)
	require.Contains(t, frame, ".go")
}
