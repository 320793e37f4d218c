// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package gc implements the incremental tri-color mark-and-sweep collector
// (C3 of the design). It knows nothing about Values, Tables, or Closures —
// it operates on the Object interface, which any collectable type in
// package vm implements by embedding a Header and providing Trace/Free
// hooks. This keeps the dependency edge one-directional (vm imports gc,
// not the reverse) the way the design's component order C1 -> C3 wants.
package gc

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// Color is the tri-color marking state of a collectable object.
type Color uint8

const (
	// White0 and White1 are the two "unmarked" identities. Which one counts
	// as "this cycle's white" flips every time PropagateAtomic completes, so
	// objects allocated mid-cycle (born in the new white) are never mistaken
	// for garbage left over from the cycle that is still sweeping.
	White0 Color = iota
	White1
	Gray
	Black
)

func isWhite(c Color) bool { return c == White0 || c == White1 }

// Header is embedded by every collectable type. It carries only the color;
// the "next" link used by classic intrusive GC lists is replaced by the
// Collector's own object vector (see Collector.objects) so no collectable
// type needs an unsafe intrusive pointer.
type Header struct {
	color      Color
	registered bool
}

// Color reports the object's current mark color. Exposed mainly for tests
// and the debug/inspection surface.
func (h *Header) Color() Color { return h.color }

// ResetColor repaints the header directly. Collector.objects members never
// need this (sweepStep and Register manage their color internally); it
// exists for owners that keep a collectable kind in a secondary arena swept
// by their own logic instead of Collector's, the way the string table's
// bucket sweep works outside rootgc per spec §4.1/§4.3.
func (h *Header) ResetColor(c Color) { h.color = c }

// Object is anything the collector can mark, trace, and sweep.
type Object interface {
	// GCHeader returns the embedded Header so the collector can read/write
	// color without knowing the concrete type.
	GCHeader() *Header
	// Trace calls mark for every strong (non-weak) reference the object
	// holds to another Object.
	Trace(mark func(Object))
	// TypeName names the object's kind for diagnostics.
	TypeName() string
}

// Finalizable is implemented by objects with a user-defined finalizer
// (userdata's __gc tag method).
type Finalizable interface {
	Object
	HasFinalizer() bool
	Finalize()
}

// WeakObject is implemented by tables that may have a __mode metatable
// entry. ReconsiderWeak is called once per cycle, in PropagateAtomic,
// after all strong references are known, to drop entries that are weak on
// a now-dead key or value.
type WeakObject interface {
	Object
	WeakMode() (weakKeys, weakValues bool)
	ReconsiderWeak(isDead func(Object) bool)
}

// Freeable lets a type run teardown logic (detach from an intern table,
// release non-Go-owned handles) when the collector drops it.
type Freeable interface {
	Object
	Free()
}

// Phase is the collector's state machine position, matching spec §4.3
// exactly: Pause -> Propagate -> PropagateAtomic -> SweepStrings -> Sweep
// -> Finalize -> Pause.
type Phase int

const (
	PhasePause Phase = iota
	PhasePropagate
	PhasePropagateAtomic
	PhaseSweepStrings
	PhaseSweep
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhasePause:
		return "pause"
	case PhasePropagate:
		return "propagate"
	case PhasePropagateAtomic:
		return "propagate-atomic"
	case PhaseSweepStrings:
		return "sweep-strings"
	case PhaseSweep:
		return "sweep"
	case PhaseFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const (
	// defaultPauseMult mirrors Lua's default gcpause: wait until the heap
	// has doubled since the last cycle's end before starting a new one.
	defaultPauseMult = 200
	// defaultStepMult mirrors Lua's default gcstepmul.
	defaultStepMult = 200
	// gcStepSize is the "bytes of work" unit a single Step() call performs
	// at stepMult == 100; it is scaled by stepMult/100, matching
	// spec's "Step size = (GCSTEPSIZE/100) x gcstepmul bytes of work".
	gcStepSize = 1024
	// sweepMax bounds how many objects one Sweep step inspects.
	sweepMax = 40
)

// Collector runs the incremental collector over an external object arena.
// The zero value is not usable; construct with New.
type Collector struct {
	objects []Object // rootgc equivalent: every table/closure/userdata/thread/proto/upvalue

	gray      []Object
	grayAgain []Object
	weak      []Object

	tobeFinalized []Object
	sweepCursor   int

	currentWhite Color
	phase        Phase

	totalBytes int64
	threshold  int64
	estimate   int64
	debt       int64

	pauseMult int
	stepMult  int
	stopped   bool

	// MarkRoots is supplied by the owner (vm.Global) and marks every GC
	// root: main thread, globals, registry, per-type metatables.
	MarkRoots func(mark func(Object))

	// SweepStringsStep advances the string-table sweep by one bucket and
	// reports whether buckets remain. Strings live in vm's intern table,
	// not in Collector.objects, mirroring Lua's separate string GC list.
	SweepStringsStep func() (more bool)

	// OnPhaseChange, if set, is called whenever the phase advances; used
	// by the debug/logging surface to narrate collection activity.
	OnPhaseChange func(from, to Phase)

	finalizedRecent *lru.Cache
	finalizedSeq    int64
}

// finalizerStatsCacheSize bounds the recently-finalized ring debug.
// getfinalizerstats() reports from; this is a debug aid, not a
// correctness-bearing structure, so a small fixed bound is fine.
const finalizerStatsCacheSize = 256

// New creates a Collector in the Pause phase with default pacing.
func New() *Collector {
	cache, _ := lru.New(finalizerStatsCacheSize)
	return &Collector{
		currentWhite:    White0,
		phase:           PhasePause,
		pauseMult:       defaultPauseMult,
		stepMult:        defaultStepMult,
		threshold:       gcStepSize * 4,
		finalizedRecent: cache,
	}
}

// FinalizedRecent returns the type names of the most recently finalized
// objects, most recent first, capped at finalizerStatsCacheSize entries.
// This backs the debug/inspection surface's finalizer-stats report; it is
// not consulted by the collection algorithm itself.
func (c *Collector) FinalizedRecent() []string {
	keys := c.finalizedRecent.Keys()
	seqs := make([]int64, len(keys))
	for i, k := range keys {
		seqs[i] = k.(int64)
	}
	sort.Sort(sort.Reverse(int64Slice(seqs)))
	names := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		if v, ok := c.finalizedRecent.Peek(seq); ok {
			names = append(names, v.(string))
		}
	}
	return names
}

type int64Slice []int64

func (s int64Slice) Len() int           { return len(s) }
func (s int64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s int64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// CurrentWhite exposes the live white identity (mainly for tests).
func (c *Collector) CurrentWhite() Color { return c.currentWhite }

// Phase reports the collector's current state-machine position.
func (c *Collector) Phase() Phase { return c.phase }

// TotalBytes returns the logical byte count the pacing policy uses; the
// owner increments this via NotifyAlloc as objects are allocated.
func (c *Collector) TotalBytes() int64 { return c.totalBytes }

// isDead reports whether o is unreachable: colored with the white that is
// NOT this cycle's current white. Gray and black objects are never dead;
// neither is an object colored with the live white (it was either born
// this cycle or just marked).
func (c *Collector) isDead(o Object) bool {
	col := o.GCHeader().color
	return isWhite(col) && col != c.currentWhite
}

// IsDead is the exported form, used by weak-table reconsideration and by
// the debug surface.
func (c *Collector) IsDead(o Object) bool { return c.isDead(o) }

// Register adds a freshly allocated object to the arena, coloring it with
// the current white so it is never swept in the cycle that is already in
// progress (the "two whites" trick).
// Register adds o to the root object vector the collector traces and
// sweeps. It is idempotent: registering the same object twice (e.g. a
// cached Proto reloaded by a second Thread.Load) leaves it in c.objects
// exactly once.
func (c *Collector) Register(o Object) {
	h := o.GCHeader()
	if h.registered {
		return
	}
	h.registered = true
	h.color = c.currentWhite
	c.objects = append(c.objects, o)
}

// NotifyAlloc adds n bytes to the pacing counter. The caller (vm's
// allocator) calls this after every Realloc; Collector.MaybeStep uses it
// to decide whether a step is due.
func (c *Collector) NotifyAlloc(n int64) { c.totalBytes += n }

// SetPause sets the percentage of heap growth required before a new cycle
// starts after Pause (spec's "setpause%" GC control).
func (c *Collector) SetPause(pct int) int {
	prev := c.pauseMult
	c.pauseMult = pct
	return prev
}

// SetStepMul sets the percentage scaling of per-step work (spec's
// "setstepmul%").
func (c *Collector) SetStepMul(pct int) int {
	prev := c.stepMult
	c.stepMult = pct
	return prev
}

// Stop disables automatic stepping; Step can still be called explicitly.
func (c *Collector) Stop() { c.stopped = true }

// Restart re-enables automatic stepping.
func (c *Collector) Restart() { c.stopped = false }

// Stopped reports whether automatic stepping is disabled.
func (c *Collector) Stopped() bool { return c.stopped }

// MaybeStep runs Step once if accumulated allocation has crossed the
// threshold, matching spec's "each allocation increments totalbytes; when
// it crosses threshold, a step runs".
func (c *Collector) MaybeStep() {
	if c.stopped {
		return
	}
	if c.phase == PhasePause && c.totalBytes < c.threshold {
		return
	}
	c.Step()
}

// Collect runs a full cycle synchronously: if currently paused, it also
// runs the cycle that follows from Pause, otherwise it finishes whatever
// cycle is in progress, and then runs one additional complete cycle,
// matching collectgarbage("collect")'s "force a full collection" contract.
func (c *Collector) Collect() {
	if c.phase == PhasePause {
		c.Step() // Pause -> Propagate
	}
	for c.phase != PhasePause {
		c.Step()
	}
	// One guaranteed additional full cycle so that objects only reachable
	// via a finalizer-resurrection are swept before Collect returns.
	c.Step()
	for c.phase != PhasePause {
		c.Step()
	}
}

// Step advances the state machine by one bounded unit of work.
func (c *Collector) Step() {
	before := c.phase
	switch c.phase {
	case PhasePause:
		c.markRootsStep()
		c.phase = PhasePropagate

	case PhasePropagate:
		budget := int64(gcStepSize) * int64(c.stepMult) / 100
		c.propagateStep(budget)
		if len(c.gray) == 0 {
			c.phase = PhasePropagateAtomic
		}

	case PhasePropagateAtomic:
		c.atomic()
		c.phase = PhaseSweepStrings

	case PhaseSweepStrings:
		more := true
		if c.SweepStringsStep != nil {
			more = c.SweepStringsStep()
		} else {
			more = false
		}
		if !more {
			c.phase = PhaseSweep
			c.sweepCursor = 0
		}

	case PhaseSweep:
		if c.sweepStep() {
			c.phase = PhaseFinalize
		}

	case PhaseFinalize:
		if c.finalizeStep() {
			c.endCycle()
			c.phase = PhasePause
		}
	}
	if c.OnPhaseChange != nil && before != c.phase {
		c.OnPhaseChange(before, c.phase)
	}
}

func (c *Collector) markRootsStep() {
	if c.MarkRoots != nil {
		c.MarkRoots(c.markObject)
	}
}

// markObject grays a white object and pushes it onto the gray list. Called
// both for roots and for references discovered while blackening gray
// objects.
func (c *Collector) markObject(o Object) {
	if o == nil {
		return
	}
	h := o.GCHeader()
	if !isWhite(h.color) {
		return
	}
	h.color = Gray
	c.gray = append(c.gray, o)
}

// propagateStep pops gray objects and blackens them until budget bytes of
// (approximated, one object = fixed cost) work has been spent or the gray
// list empties.
func (c *Collector) propagateStep(budget int64) {
	var spent int64
	for spent < budget && len(c.gray) > 0 {
		o := c.gray[len(c.gray)-1]
		c.gray = c.gray[:len(c.gray)-1]

		h := o.GCHeader()
		if h.color != Gray {
			continue
		}
		h.color = Black
		o.Trace(c.markObject)
		if w, ok := o.(WeakObject); ok {
			wk, wv := w.WeakMode()
			if wk || wv {
				c.weak = append(c.weak, o)
			}
		}
		spent += 32 // flat per-object traversal cost; good enough for pacing
	}
}

// atomic runs PropagateAtomic's uninterruptible burst: drain grayagain,
// reconsider weak tables, separate finalizable garbage, then flip white.
func (c *Collector) atomic() {
	// Anything barrier-back'd onto grayAgain must be re-traversed before we
	// can trust the graph is fully black.
	c.gray = append(c.gray, c.grayAgain...)
	c.grayAgain = c.grayAgain[:0]
	c.propagateStep(1 << 62) // drain completely; atomic must finish this cycle

	// Separate finalizable garbage before reconsidering weak tables, so a
	// userdata resurrected by being reachable only from a weak table still
	// gets its single required __gc call.
	var stillLive []Object
	for _, o := range c.objects {
		if f, ok := o.(Finalizable); ok && f.HasFinalizer() && c.isDead(o) {
			// Resurrect: the finalizer must be able to observe the object's
			// fields, so it and everything it references must survive this
			// cycle.
			c.markObject(o)
			c.gray = append(c.gray, o)
			c.propagateStep(1 << 62)
			c.tobeFinalized = append(c.tobeFinalized, o)
			continue
		}
		stillLive = append(stillLive, o)
	}
	c.objects = stillLive

	for _, o := range c.weak {
		w := o.(WeakObject)
		w.ReconsiderWeak(c.isDead)
	}
	c.weak = c.weak[:0]

	c.currentWhite = otherWhite(c.currentWhite)
}

func otherWhite(w Color) Color {
	if w == White0 {
		return White1
	}
	return White0
}

// sweepStep frees dead objects from the general arena in bounded chunks,
// repainting survivors with the new current white so they are ready to be
// remarked (or swept) next cycle. Returns true once the whole arena has
// been walked.
func (c *Collector) sweepStep() bool {
	n := 0
	for c.sweepCursor < len(c.objects) && n < sweepMax {
		o := c.objects[c.sweepCursor]
		h := o.GCHeader()
		if c.isDead(o) {
			if f, ok := o.(Freeable); ok {
				f.Free()
			}
			c.objects[c.sweepCursor] = c.objects[len(c.objects)-1]
			c.objects = c.objects[:len(c.objects)-1]
			n++
			continue
		}
		h.color = c.currentWhite
		c.sweepCursor++
		n++
	}
	return c.sweepCursor >= len(c.objects)
}

// finalizeStep pops one object off the to-be-finalized list per call,
// relinks it to the general arena, and runs its __gc metamethod. The
// caller (vm.Global) is responsible for running the call under
// protection; Collector only drives the queue.
func (c *Collector) finalizeStep() bool {
	if len(c.tobeFinalized) == 0 {
		return true
	}
	o := c.tobeFinalized[0]
	c.tobeFinalized = c.tobeFinalized[1:]
	// Repaint with the current white, as sweep does for survivors, so the
	// object is reclaimed by the next cycle if nothing references it.
	o.GCHeader().color = c.currentWhite
	c.objects = append(c.objects, o)
	if f, ok := o.(Finalizable); ok {
		f.Finalize()
	}
	c.finalizedSeq++
	c.finalizedRecent.Add(c.finalizedSeq, o.TypeName())
	return len(c.tobeFinalized) == 0
}

func (c *Collector) endCycle() {
	c.estimate = c.totalBytes
	c.threshold = c.estimate * int64(c.pauseMult) / 100
	if c.threshold < gcStepSize {
		c.threshold = gcStepSize
	}
	c.debt = 0
}

// Count returns the collector's notion of total bytes in use, in Kibibytes
// with a fractional remainder, matching collectgarbage("count")'s Lua
// contract of "total memory in use, in Kbytes, as a float".
func (c *Collector) Count() float64 {
	return float64(c.totalBytes) / 1024.0
}

// Objects returns the live arena for introspection (debug.getfinalizerstats
// and tests). Callers must not retain the slice across a Step call.
func (c *Collector) Objects() []Object { return c.objects }
