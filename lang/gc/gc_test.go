// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package gc

import "testing"

// fakeObject is a minimal collectable node used to build test object
// graphs: it references other fakeObjects via Refs and optionally runs a
// finalizer.
type fakeObject struct {
	Header
	name      string
	refs      []*fakeObject
	freed     bool
	finalized bool
	hasFin    bool
}

func (o *fakeObject) GCHeader() *Header { return &o.Header }
func (o *fakeObject) TypeName() string  { return "fake:" + o.name }

func (o *fakeObject) Trace(mark func(Object)) {
	for _, r := range o.refs {
		mark(r)
	}
}

func (o *fakeObject) Free() { o.freed = true }

func (o *fakeObject) HasFinalizer() bool { return o.hasFin }
func (o *fakeObject) Finalize()          { o.finalized = true }

func newFake(c *Collector, name string, refs ...*fakeObject) *fakeObject {
	o := &fakeObject{name: name, refs: refs}
	c.Register(o)
	return o
}

// ---- Basic lifecycle ---------------------------------------------------

func TestNewCollectorStartsInPause(t *testing.T) {
	c := New()
	if c.Phase() != PhasePause {
		t.Fatalf("new collector phase = %v; want Pause", c.Phase())
	}
}

func TestRegisterColorsWithCurrentWhite(t *testing.T) {
	c := New()
	o := newFake(c, "a")
	if o.Color() != c.CurrentWhite() {
		t.Fatalf("registered object color = %v; want current white %v", o.Color(), c.CurrentWhite())
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	c := New()
	o := newFake(c, "a")
	before := len(c.Objects())

	c.Register(o)

	if got := len(c.Objects()); got != before {
		t.Fatalf("re-registering a known object changed object count: got %d, want %d", got, before)
	}
}

// ---- Reachability and sweeping ------------------------------------------

func TestUnreachableObjectIsSwept(t *testing.T) {
	c := New()
	garbage := newFake(c, "garbage")
	c.MarkRoots = func(mark func(Object)) {}

	c.Collect()

	if !garbage.freed {
		t.Error("unreachable object was not freed")
	}
	for _, o := range c.Objects() {
		if o == Object(garbage) {
			t.Error("freed object still present in arena")
		}
	}
}

func TestReachableObjectSurvives(t *testing.T) {
	c := New()
	root := newFake(c, "root")
	child := newFake(c, "child")
	root.refs = append(root.refs, child)
	c.MarkRoots = func(mark func(Object)) { mark(root) }

	c.Collect()

	if root.freed || child.freed {
		t.Fatalf("reachable objects were freed: root=%v child=%v", root.freed, child.freed)
	}
}

func TestTransitiveChainSurvives(t *testing.T) {
	c := New()
	leaf := newFake(c, "leaf")
	mid := newFake(c, "mid", leaf)
	root := newFake(c, "root", mid)
	c.MarkRoots = func(mark func(Object)) { mark(root) }

	c.Collect()

	if leaf.freed {
		t.Error("transitively reachable leaf was freed")
	}
}

func TestCycleWithoutRootIsCollected(t *testing.T) {
	c := New()
	a := newFake(c, "a")
	b := newFake(c, "b")
	a.refs = append(a.refs, b)
	b.refs = append(b.refs, a)
	c.MarkRoots = func(mark func(Object)) {}

	c.Collect()

	if !a.freed || !b.freed {
		t.Errorf("reference cycle not collected: a.freed=%v b.freed=%v", a.freed, b.freed)
	}
}

// ---- Finalizers ----------------------------------------------------------

func TestFinalizerRunsBeforeFree(t *testing.T) {
	c := New()
	o := newFake(c, "finalized")
	o.hasFin = true
	c.MarkRoots = func(mark func(Object)) {}

	c.Collect()

	if !o.finalized {
		t.Error("finalizer never ran on unreachable object")
	}
}

// ---- Incremental stepping -------------------------------------------------

func TestStepAdvancesPhaseMachine(t *testing.T) {
	c := New()
	newFake(c, "x")
	c.MarkRoots = func(mark func(Object)) {}

	seen := map[Phase]bool{PhasePause: true}
	for i := 0; i < 100 && len(seen) < 6; i++ {
		c.Step()
		seen[c.Phase()] = true
	}
	for _, p := range []Phase{PhasePropagate, PhasePropagateAtomic, PhaseSweepStrings, PhaseSweep, PhaseFinalize} {
		if !seen[p] {
			t.Errorf("phase %v never observed during stepping", p)
		}
	}
}

func TestStoppedCollectorSkipsMaybeStep(t *testing.T) {
	c := New()
	c.Stop()
	if !c.Stopped() {
		t.Fatal("Stopped() false after Stop()")
	}
	c.NotifyAlloc(1 << 30)
	c.MaybeStep()
	if c.Phase() != PhasePause {
		t.Errorf("stopped collector advanced phase to %v", c.Phase())
	}
	c.Restart()
	if c.Stopped() {
		t.Error("Stopped() true after Restart()")
	}
}

// ---- GC control accessors -------------------------------------------------

func TestSetPauseAndStepMulReturnPrevious(t *testing.T) {
	c := New()
	prev := c.SetPause(150)
	if prev != defaultPauseMult {
		t.Errorf("SetPause returned %d; want previous %d", prev, defaultPauseMult)
	}
	prev = c.SetStepMul(300)
	if prev != defaultStepMult {
		t.Errorf("SetStepMul returned %d; want previous %d", prev, defaultStepMult)
	}
}

func TestCountReflectsNotifiedBytes(t *testing.T) {
	c := New()
	c.NotifyAlloc(2048)
	if got := c.Count(); got != 2.0 {
		t.Errorf("Count() = %v; want 2.0", got)
	}
}

func TestPhaseString(t *testing.T) {
	cases := []struct {
		p    Phase
		want string
	}{
		{PhasePause, "pause"},
		{PhasePropagate, "propagate"},
		{PhasePropagateAtomic, "propagate-atomic"},
		{PhaseSweepStrings, "sweep-strings"},
		{PhaseSweep, "sweep"},
		{PhaseFinalize, "finalize"},
	}
	for _, tc := range cases {
		if got := tc.p.String(); got != tc.want {
			t.Errorf("Phase(%d).String() = %q; want %q", tc.p, got, tc.want)
		}
	}
}
