// Copyright (c) 2026 Squarespace, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package breaker implements per-host circuit breakers: a health state
// machine for each host key, and a set that owns one breaker per key
// and classifies errors as countable toward breaker state or opaque.
package breaker

import (
	"sync"
	"time"

	"github.com/Squarespace/smartclient/internal/clock"
)

// State is a breaker's health state.
type State int

const (
	// Closed is the healthy state: attempts pass through and failures
	// are counted.
	Closed State = iota

	// Open is the unhealthy state: attempts are rejected immediately
	// without invoking the operation.
	Open

	// HalfOpen is the probationary state: exactly one attempt is
	// allowed through to test recovery.
	HalfOpen
)

var stateToName = map[State]string{
	Closed:   "closed",
	Open:     "open",
	HalfOpen: "half-open",
}

func (s State) String() string {
	if name, ok := stateToName[s]; ok {
		return name
	}
	return "unknown"
}

// Breaker tracks health state for one host. It is a pure state
// machine: no I/O, no timers. Time only enters through the clock when
// an attempt asks for admission.
//
// All transitions for one breaker are serialized on its own lock;
// distinct breakers never contend with each other.
type Breaker struct {
	mu        sync.Mutex
	clock     clock.Clock
	threshold int
	cooldown  time.Duration

	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(threshold int, cooldown time.Duration, clk clock.Clock) *Breaker {
	return &Breaker{
		clock:     clk,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether an attempt against this host may proceed.
// An open breaker whose cool-down has elapsed transitions to half-open
// and admits the caller as the probe; while a probe is in flight all
// other attempts are rejected.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.clock.Now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = HalfOpen
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Success records a successful attempt, closing the breaker and
// resetting the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probing = false
}

// Failure records a countable failure. A closed breaker opens when the
// failure threshold is reached; a half-open breaker's failed probe
// reopens it and restarts the cool-down.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	}
}

// releaseProbe ends an in-flight probe without a verdict, so a
// half-open breaker can admit the next attempt as a fresh probe.
func (b *Breaker) releaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// trip must be called with the lock held.
func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.clock.Now()
	b.failures = 0
	b.probing = false
}

// State returns the breaker's current state. An open breaker past its
// cool-down still reports Open until an attempt transitions it; the
// transition is driven by admission, not by observation.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
