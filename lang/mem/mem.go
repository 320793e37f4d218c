// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Luma is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Luma. If not, see <http://www.gnu.org/licenses/>.

// Package mem implements the single allocator entry point shared by every
// collectable object in the runtime (C2 of the design). All growth, OOM
// retry, and byte accounting funnels through Allocator so the garbage
// collector can observe total memory pressure at one place.
package mem

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned when a grow request fails even after the
// caller-supplied emergency collection hook has run.
var ErrOutOfMemory = errors.New("mem: out of memory")

// AllocFunc is the host-supplied allocator shape, mirroring the classic
// realloc(ptr, osize, nsize) contract: grow, shrink, or free depending on
// the requested size. A nil return with nsize != 0 means failure.
type AllocFunc func(ptr []byte, osize, nsize int) []byte

// DefaultAlloc is the built-in allocator used when a host does not supply
// one. It never fails (aside from Go's own runtime OOM), which is enough
// for an in-process embedding; hosts that need a bounded arena provide
// their own AllocFunc.
func DefaultAlloc(ptr []byte, osize, nsize int) []byte {
	if nsize == 0 {
		return nil
	}
	out := make([]byte, nsize)
	copy(out, ptr)
	return out
}

// Allocator tracks total bytes allocated through one realloc-style entry
// point and exposes an emergency-collection hook that runs once before an
// allocation is allowed to fail outright.
type Allocator struct {
	alloc      AllocFunc
	totalBytes int64

	// EmergencyGC is invoked once, synchronously, when a grow request fails.
	// It should free whatever it can; Allocator retries the request exactly
	// once afterwards. A nil hook skips straight to ErrOutOfMemory.
	EmergencyGC func()
}

// New creates an Allocator around fn. A nil fn selects DefaultAlloc.
func New(fn AllocFunc) *Allocator {
	if fn == nil {
		fn = DefaultAlloc
	}
	return &Allocator{alloc: fn}
}

// TotalBytes returns the allocator's running total, matching the global
// state's `totalbytes` counter that the GC's pacing policy reads.
func (a *Allocator) TotalBytes() int64 { return a.totalBytes }

// Realloc resizes ptr from osize to nsize bytes, retrying once through
// EmergencyGC on failure before raising ErrOutOfMemory. nsize == 0 frees.
func (a *Allocator) Realloc(ptr []byte, osize, nsize int) ([]byte, error) {
	if nsize == 0 {
		a.totalBytes -= int64(osize)
		a.alloc(ptr, osize, 0)
		return nil, nil
	}

	out := a.alloc(ptr, osize, nsize)
	if out == nil {
		if a.EmergencyGC != nil {
			a.EmergencyGC()
			out = a.alloc(ptr, osize, nsize)
		}
		if out == nil {
			return nil, ErrOutOfMemory
		}
	}
	a.totalBytes += int64(nsize - osize)
	return out, nil
}

// GrowArray computes the next capacity for a doubling array (stacks,
// register files, table node arrays) bounded by limit, and raises a
// "too many X" error identifying what (a human name like "registers" or
// "local variables") when limit would be exceeded.
func GrowArray(cur, limit int, what string) (int, error) {
	next := cur * 2
	if next == 0 {
		next = 4
	}
	if next > limit {
		if cur >= limit {
			return 0, fmt.Errorf("mem: too many %s (limit %d)", what, limit)
		}
		next = limit
	}
	return next, nil
}
