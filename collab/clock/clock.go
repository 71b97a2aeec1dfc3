// Package clock provides the real and frozen "epoch seconds" Clock
// implementations the vault core's cmn.Clock capability is satisfied
// with (spec §6 item 4: "tests inject a frozen clock").
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package clock

import (
	"sync/atomic"
	"time"
)

// Real is a cmn.Clock backed by the system wall clock.
type Real struct{}

func (Real) Now() uint32 { return uint32(time.Now().Unix()) }

// Frozen is an injectable cmn.Clock for deterministic tests: Now()
// returns whatever was last set with Set or Advance.
type Frozen struct {
	sec atomic.Uint32
}

// NewFrozen returns a Frozen clock initialized to t.
func NewFrozen(t uint32) *Frozen {
	f := &Frozen{}
	f.sec.Store(t)
	return f
}

func (f *Frozen) Now() uint32 { return f.sec.Load() }

func (f *Frozen) Set(t uint32) { f.sec.Store(t) }

// Advance moves the clock forward by delta seconds and returns the new
// value, matching the teacher's terse "do the thing, return the new
// state" helper style.
func (f *Frozen) Advance(delta uint32) uint32 {
	return f.sec.Add(delta)
}
