// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package undump reads and writes Luma's bytecode chunk format: a header
// (magic and a version byte, with no size-sanity bytes) and a
// flat encoding of a Proto tree, closely following the magic-prefixed
// fixed-header layout the teacher's contract-bytecode decoder uses
// ([magic][count][data...] repeated per section), adapted to Proto's
// richer shape (nested prototypes, named upvalues, line info).
//
// This is a new, versioned format (Open Question decision #3, see
// DESIGN.md): not byte-compatible with Lua 5.1's own luac output, since
// spec.md leaves the exact wire format open and a from-scratch layout is
// simpler to keep exactly round-trippable than reverse-engineering Lua's
// platform-endian header.
package undump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lumalang/luma/lang/vm"
)

// Magic identifies a Luma bytecode chunk, mirroring the teacher's 4-byte
// magic-prefix convention ("PRBE" for PROBE contracts) but spelling out
// this format's own identity.
var Magic = [4]byte{0x4c, 0x75, 0x6d, 0x1b} // "Lum" + 0x1b, matching luac's own ESC-prefix convention

// Version is this format's version byte; bumped whenever the on-disk
// layout changes incompatibly.
const Version = 1

// ErrBadMagic is returned when the input does not start with Magic.
var ErrBadMagic = fmt.Errorf("undump: bad magic header")

// ErrVersion is returned when the version byte does not match Version.
var ErrVersion = fmt.Errorf("undump: unsupported bytecode version")

// Dump serializes p (and everything it transitively references) into
// Luma's chunk format.
func Dump(p *vm.Proto) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(Version)
	dumpProto(&buf, p)
	return buf.Bytes()
}

func dumpProto(buf *bytes.Buffer, p *vm.Proto) {
	writeString(buf, p.Source)
	writeInt(buf, int64(p.LineDefined))
	writeInt(buf, int64(p.LastLineDefined))
	writeInt(buf, int64(p.NumParams))
	buf.WriteByte(boolByte(p.IsVararg))
	writeInt(buf, int64(p.MaxStack))

	writeInt(buf, int64(len(p.Code)))
	for _, instr := range p.Code {
		_ = binary.Write(buf, binary.LittleEndian, uint32(instr))
	}

	writeInt(buf, int64(len(p.Lines)))
	for _, l := range p.Lines {
		writeInt(buf, int64(l))
	}

	writeInt(buf, int64(len(p.Constants)))
	for _, k := range p.Constants {
		dumpConstant(buf, k)
	}

	writeInt(buf, int64(len(p.Upvalues)))
	for _, u := range p.Upvalues {
		writeString(buf, u.Name)
		buf.WriteByte(boolByte(u.InStack))
		writeInt(buf, int64(u.Index))
	}

	writeInt(buf, int64(len(p.Protos)))
	for _, inner := range p.Protos {
		dumpProto(buf, inner)
	}
}

const (
	tagNil byte = iota
	tagBool
	tagNumber
	tagString
)

func dumpConstant(buf *bytes.Buffer, v vm.Value) {
	switch v.Kind() {
	case vm.KNil:
		buf.WriteByte(tagNil)
	case vm.KBool:
		buf.WriteByte(tagBool)
		buf.WriteByte(boolByte(v.AsBool()))
	case vm.KNumber:
		buf.WriteByte(tagNumber)
		_ = binary.Write(buf, binary.LittleEndian, v.AsNumber())
	case vm.KString:
		buf.WriteByte(tagString)
		s, _ := v.AsString()
		writeString(buf, s.Value())
	default:
		// Constants are only ever nil/bool/number/string per spec §3; any
		// other kind reaching here is a compiler bug, not a format concern.
		panic(fmt.Sprintf("undump: constant of kind %s cannot be dumped", v.TypeName()))
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt(buf, int64(len(s)))
	buf.WriteString(s)
}

func writeInt(buf *bytes.Buffer, n int64) {
	_ = binary.Write(buf, binary.LittleEndian, n)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Load parses a chunk previously produced by Dump, interning its string
// constants in g. The Proto tree itself is not registered with g's
// collector; vm.Thread.Load does that.
func Load(g *vm.Global, data []byte) (*vm.Proto, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != Magic {
		return nil, ErrBadMagic
	}
	var version byte
	if err := readByte(r, &version); err != nil {
		return nil, err
	}
	if version != Version {
		return nil, ErrVersion
	}
	return loadProto(g, r)
}

func loadProto(g *vm.Global, r *bytes.Reader) (*vm.Proto, error) {
	p := &vm.Proto{}

	src, err := readString(r)
	if err != nil {
		return nil, err
	}
	p.Source = src

	lineDef, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.LineDefined = int(lineDef)

	lastLine, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.LastLineDefined = int(lastLine)

	numParams, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.NumParams = int(numParams)

	var vararg byte
	if err := readByte(r, &vararg); err != nil {
		return nil, err
	}
	p.IsVararg = vararg != 0

	maxStack, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.MaxStack = int(maxStack)

	ncode, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.Code = make([]vm.Instruction, ncode)
	for i := range p.Code {
		var raw uint32
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, err
		}
		p.Code[i] = vm.Instruction(raw)
	}

	nlines, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.Lines = make([]int, nlines)
	for i := range p.Lines {
		l, err := readInt(r)
		if err != nil {
			return nil, err
		}
		p.Lines[i] = int(l)
	}

	nconst, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.Constants = make([]vm.Value, nconst)
	for i := range p.Constants {
		v, err := loadConstant(g, r)
		if err != nil {
			return nil, err
		}
		p.Constants[i] = v
	}

	nups, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.Upvalues = make([]vm.UpvalDesc, nups)
	for i := range p.Upvalues {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var inStack byte
		if err := readByte(r, &inStack); err != nil {
			return nil, err
		}
		idx, err := readInt(r)
		if err != nil {
			return nil, err
		}
		p.Upvalues[i] = vm.UpvalDesc{Name: name, InStack: inStack != 0, Index: int(idx)}
	}

	nprotos, err := readInt(r)
	if err != nil {
		return nil, err
	}
	p.Protos = make([]*vm.Proto, nprotos)
	for i := range p.Protos {
		inner, err := loadProto(g, r)
		if err != nil {
			return nil, err
		}
		p.Protos[i] = inner
	}

	return p, nil
}

func loadConstant(g *vm.Global, r *bytes.Reader) (vm.Value, error) {
	var tag byte
	if err := readByte(r, &tag); err != nil {
		return vm.Nil, err
	}
	switch tag {
	case tagNil:
		return vm.Nil, nil
	case tagBool:
		var b byte
		if err := readByte(r, &b); err != nil {
			return vm.Nil, err
		}
		return vm.Bool(b != 0), nil
	case tagNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return vm.Nil, err
		}
		return vm.Number(n), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return vm.Nil, err
		}
		return g.NewString(s), nil
	default:
		return vm.Nil, fmt.Errorf("undump: unknown constant tag %d", tag)
	}
}

func readByte(r *bytes.Reader, out *byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	*out = b
	return nil
}

func readInt(r *bytes.Reader) (int64, error) {
	var n int64
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readInt(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
