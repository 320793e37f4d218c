// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/cespare/xxhash/v2"

	"github.com/lumalang/luma/lang/gc"
)

// GString is an immutable interned byte string. Two strings with equal
// content are always the same *GString (invariant 1 in spec §8), so
// equality and hashing are pointer operations everywhere except inside the
// intern table itself.
type GString struct {
	gc.Header

	data     string
	hash     uint64
	reserved byte // non-zero: index into the keyword table, set by the lexer

	next *GString // intrusive bucket chain, private to strTab
}

// Value returns the Go string backing this interned string.
func (s *GString) Value() string { return s.data }

// Len returns the byte length.
func (s *GString) Len() int { return len(s.data) }

// Hash returns the precomputed, frozen-at-allocation hash.
func (s *GString) Hash() uint64 { return s.hash }

// Reserved returns the keyword-table index the lexer stamped onto this
// string, or 0 if it is an ordinary identifier/literal.
func (s *GString) Reserved() byte { return s.reserved }

// SetReserved lets the lexer mark a string as a reserved word after
// interning it once at startup.
func (s *GString) SetReserved(r byte) { s.reserved = r }

func (s *GString) GCHeader() *gc.Header { return &s.Header }
func (s *GString) Trace(func(gc.Object)) {}
func (s *GString) TypeName() string      { return "string" }

// strTab is the process-wide string interning table (C1 of the design): an
// open-chained hash table keyed by full byte content, grown and shrunk the
// way spec §4.1 prescribes.
type strTab struct {
	buckets []*GString
	nuse    int

	sweepBucket int // SweepStrings cursor, advanced one bucket per GC step
}

const strTabMinSize = 32

func newStrTab() *strTab {
	return &strTab{buckets: make([]*GString, strTabMinSize)}
}

func hashBytes(b []byte) uint64 { return xxhash.Sum64(b) }

// intern returns the canonical *GString for b, allocating and linking a new
// one if no content-equal string exists yet. register is vm.Global's
// GC-registering constructor, kept as a callback so strTab does not need to
// know about Collector.
func (t *strTab) intern(b []byte, register func(*GString)) *GString {
	h := hashBytes(b)
	idx := h & uint64(len(t.buckets)-1)
	for n := t.buckets[idx]; n != nil; n = n.next {
		if n.hash == h && n.data == string(b) {
			return n
		}
	}

	s := &GString{data: string(b), hash: h}
	s.next = t.buckets[idx]
	t.buckets[idx] = s
	t.nuse++
	register(s)

	if t.nuse > len(t.buckets) && len(t.buckets) <= 1<<30 {
		t.resize(len(t.buckets) * 2)
	}
	return s
}

func (t *strTab) resize(newSize int) {
	nb := make([]*GString, newSize)
	mask := uint64(newSize - 1)
	for _, head := range t.buckets {
		for head != nil {
			next := head.next
			idx := head.hash & mask
			head.next = nb[idx]
			nb[idx] = head
			head = next
		}
	}
	t.buckets = nb
}

// sweepStep is wired as gc.Collector.SweepStringsStep: it walks one bucket,
// unlinking dead strings (those whose color differs from cur) and flipping
// survivors to cur, exactly like spec's SweepStrings sub-phase. Reports
// whether buckets remain so the Collector knows when to advance to Sweep.
func (t *strTab) sweepStep(isDead func(gc.Object) bool, cur gc.Color) (more bool) {
	if t.sweepBucket >= len(t.buckets) {
		t.sweepBucket = 0
		t.maybeShrink()
		return false
	}

	var kept *GString
	for n := t.buckets[t.sweepBucket]; n != nil; {
		next := n.next
		if isDead(n) {
			t.nuse--
		} else {
			n.ResetColor(cur)
			n.next = kept
			kept = n
		}
		n = next
	}
	t.buckets[t.sweepBucket] = kept
	t.sweepBucket++
	return t.sweepBucket < len(t.buckets)
}

func (t *strTab) maybeShrink() {
	if t.nuse < len(t.buckets)/4 && len(t.buckets) > strTabMinSize {
		t.resize(len(t.buckets) / 2)
	}
}

// all calls fn for every live string, for debug tooling that lists
// interned strings; nothing in this module calls it. Unlike Collector.objects this
// never needs to be threaded through the mark phase: strings are only ever
// reached as Values embedded elsewhere, never traced as GC edges themselves
// because they hold no references.
func (t *strTab) all(fn func(*GString)) {
	for _, head := range t.buckets {
		for n := head; n != nil; n = n.next {
			fn(n)
		}
	}
}
