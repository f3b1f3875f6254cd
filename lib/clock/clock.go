// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code injects
// Real(); tests inject Fake() and advance time deterministically.
//
// Most kernel-core operations take an explicit `now time.Time` instead
// of a Clock — deadlines and expiry are plain data. Clock exists for
// the few places that genuinely wait: backoff between gateway submit
// retries and between restart attempts.
package clock

import "time"

// Clock is the injectable time source. Every production function that
// would call time.Now, time.After, or time.Sleep takes a Clock (or is a
// method on a struct holding one) instead of reaching for the time
// package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}
