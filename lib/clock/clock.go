// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the two time operations physiclaw depends
// on: reading the current time (audit timestamps, token expiry) and
// periodic ticks (the egress watchdog poll loop).
//
// Production code uses [Real]. Tests use [Fake], where time moves only
// when the test calls Advance, so a watchdog poll or a token expiry can
// be driven deterministically.
package clock

import "time"

// Clock is the time source injected into components that poll or
// timestamp.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0, like time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. The channel has capacity 1 and
// ticks are dropped when the consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}
