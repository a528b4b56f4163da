// Package conf contains the constants that are used across packages for configuring
// versions, limits, and collector defaults.
package conf

import (
	"fmt"
	"time"
)

const (
	// BINCHUNKMARKER is the leading byte that flags a pre-serialized binary chunk.
	// Anything not starting with it is treated as source text.
	BINCHUNKMARKER = byte(0x1B)
	// VERSION is the version of the lualike runtime.
	VERSION = "Lualike 0.1.0"
	// LUAVERSION is the lua language version this runtime follows.
	LUAVERSION = "Lua 5.4"
	// SHORTSTRLIMIT is the longest byte string that will be interned. Longer
	// strings are never deduplicated, mirroring lua's short string behaviour.
	SHORTSTRLIMIT = 40
	// MAXREADERCHUNKS caps how many times a load reader function will be called
	// before the load is abandoned as misbehaving.
	MAXREADERCHUNKS = 10_000
	// MAXCALLDEPTH is the max nested call depth before a stack overflow error.
	MAXCALLDEPTH = 220
	// GCSTEPSIZEKB is the notional allocation, in kilobytes, that drives one
	// incremental collector step.
	GCSTEPSIZEKB = 8
	// GCMINORMULT is the default minor collection multiplier percentage.
	GCMINORMULT = 20
	// GCMAJORMULT is the default major collection multiplier percentage.
	GCMAJORMULT = 100
	// GCSTEPOBJECTS is how many objects a single minimal step will trace or sweep.
	GCSTEPOBJECTS = 32
)

// FullVersion returns the version and copyright.
func FullVersion() string {
	return fmt.Sprintf("%v Copyright (C) %v", VERSION, time.Now().Year())
}

// Copyright is the copyright to be written out in the CLI.
func Copyright() string {
	return fmt.Sprintf("Copyright (C) %v", time.Now().Year())
}
