// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package undump

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumalang/luma/lang/vm"
)

func sampleProto(g *vm.Global) *vm.Proto {
	return &vm.Proto{
		Source:          "=test",
		LineDefined:     1,
		LastLineDefined: 5,
		NumParams:       1,
		IsVararg:        true,
		MaxStack:        4,
		Code: []vm.Instruction{
			vm.Encode(vm.OpLoadK, 0, 0, 0),
			vm.EncodeBx(vm.OpGetGlobal, 1, 2),
			vm.EncodeSBx(vm.OpJmp, 0, -1),
		},
		Lines: []int{1, 2, 3},
		Constants: []vm.Value{
			vm.Nil,
			vm.Bool(true),
			vm.Number(42.5),
			g.NewString("hello"),
		},
		Upvalues: []vm.UpvalDesc{
			{Name: "x", InStack: true, Index: 0},
		},
	}
}

func TestDumpLoadRoundTripsTopLevelFields(t *testing.T) {
	g := vm.New()
	p := sampleProto(g)

	data := Dump(p)
	require.True(t, len(data) > len(Magic))
	require.Equal(t, Magic[:], data[:4])

	got, err := Load(g, data)
	require.NoError(t, err)

	require.Equal(t, p.Source, got.Source)
	require.Equal(t, p.LineDefined, got.LineDefined)
	require.Equal(t, p.LastLineDefined, got.LastLineDefined)
	require.Equal(t, p.NumParams, got.NumParams)
	require.Equal(t, p.IsVararg, got.IsVararg)
	require.Equal(t, p.MaxStack, got.MaxStack)
	require.Equal(t, p.Code, got.Code)
	require.Equal(t, p.Lines, got.Lines)
	require.Equal(t, p.Upvalues, got.Upvalues)
}

func TestDumpLoadRoundTripsConstants(t *testing.T) {
	g := vm.New()
	p := sampleProto(g)

	got, err := Load(g, Dump(p))
	require.NoError(t, err)
	require.Len(t, got.Constants, len(p.Constants))

	require.Equal(t, vm.KNil, got.Constants[0].Kind())
	require.Equal(t, vm.KBool, got.Constants[1].Kind())
	require.True(t, got.Constants[1].AsBool())
	require.Equal(t, vm.KNumber, got.Constants[2].Kind())
	require.Equal(t, 42.5, got.Constants[2].AsNumber())

	s, ok := got.Constants[3].AsString()
	require.True(t, ok)
	require.Equal(t, "hello", s.Value())
}

func TestDumpLoadRoundTripsNestedProtos(t *testing.T) {
	g := vm.New()
	outer := sampleProto(g)
	outer.Protos = []*vm.Proto{sampleProto(g)}

	got, err := Load(g, Dump(outer))
	require.NoError(t, err)
	require.Len(t, got.Protos, 1)
	require.Equal(t, outer.Protos[0].Source, got.Protos[0].Source)
	require.Equal(t, outer.Protos[0].Code, got.Protos[0].Code)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	g := vm.New()
	_, err := Load(g, []byte{0, 0, 0, 0, Version})
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	g := vm.New()
	data := Dump(sampleProto(g))
	data[len(Magic)] = Version + 1
	_, err := Load(g, data)
	require.ErrorIs(t, err, ErrVersion)
}

func TestLoadRejectsTruncatedInput(t *testing.T) {
	g := vm.New()
	data := Dump(sampleProto(g))
	_, err := Load(g, data[:len(Magic)+1])
	require.Error(t, err)
}
