// Package debug provides cheap runtime assertions shared across the hub's
// core packages.
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package debug

import "fmt"

// Assert panics with the given args if cond is false. Call sites are
// expected to be compiled out in production builds by wrapping this
// package behind a build tag, the way the teacher's debug package does;
// here it is always-on and cheap enough to leave in.
func Assert(cond bool, a ...interface{}) {
	if cond {
		return
	}
	if len(a) == 0 {
		panic("assertion failed")
	}
	panic(fmt.Sprintln(a...))
}

// Assertf is Assert with a format string.
func Assertf(cond bool, format string, a ...interface{}) {
	if cond {
		return
	}
	panic(fmt.Sprintf(format, a...))
}

// AssertNoErr panics if err is non-nil. Reserved for invariant violations,
// never for recoverable error paths.
func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
