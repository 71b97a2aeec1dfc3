// Package nlog is the vault core's logging surface: a small wrapper
// the handler packages call exactly the way the teacher's own nlog
// package is called (Infoln/Infof/Errorln/Warningln), so that the
// handler code reads identically whether the call site ends up
// wired to a test logger or a production one.
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package nlog

import (
	"log"
	"os"
	"sync/atomic"
)

var std = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

// verbosity gates FastV-style sampled-debug logging; 0 disables it.
var verbosity int32

func SetVerbosity(v int) { atomic.StoreInt32(&verbosity, int32(v)) }

// FastV mirrors the teacher's cmn.Rom.FastV(level, module) gate: cheap
// to call on the hot path, true only when the configured verbosity is
// at least level. The module argument is accepted for call-site parity
// with the teacher but unused here — this core carries no per-module
// verbosity table.
func FastV(level int, _ string) bool { return atomic.LoadInt32(&verbosity) >= int32(level) }

func Infoln(args ...any)              { std.Println(args...) }
func Infof(format string, args ...any) { std.Printf(format+"\n", args...) }
func Warningln(args ...any)           { std.Println(append([]any{"W:"}, args...)...) }
func Warningf(format string, args ...any) {
	std.Printf("W: "+format+"\n", args...)
}
func Errorln(args ...any)              { std.Println(append([]any{"E:"}, args...)...) }
func Errorf(format string, args ...any) { std.Printf("E: "+format+"\n", args...) }
