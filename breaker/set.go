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

package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Squarespace/smartclient/internal/clock"
)

// ErrCircuitOpen is returned by Do when the host's breaker rejects the
// attempt without invoking the operation. The value is the host key.
type ErrCircuitOpen string

func (e ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit open for host %q", string(e))
}

// Classifier decides whether an error counts toward breaker state.
// Errors it rejects are opaque: they propagate to the caller without
// advancing any breaker and without being retried by the breaker layer.
type Classifier func(error) bool

// IsAny returns a classifier that counts an error when it matches any
// of the targets under errors.Is.
func IsAny(targets ...error) Classifier {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

const (
	defaultFailureThreshold = 3
	defaultCooldown         = 10 * time.Second
)

// SetOption customizes a breaker set.
type SetOption interface {
	apply(*setOptions)
}

type setOptions struct {
	threshold int
	cooldown  time.Duration
	clock     clock.Clock
}

var defaultSetOptions = setOptions{
	threshold: defaultFailureThreshold,
	cooldown:  defaultCooldown,
	clock:     clock.NewReal(),
}

type setOptionFunc func(*setOptions)

func (f setOptionFunc) apply(opts *setOptions) { f(opts) }

// FailureThreshold sets how many consecutive countable failures open a
// breaker.
//
// Defaults to 3.
func FailureThreshold(n int) SetOption {
	return setOptionFunc(func(opts *setOptions) {
		opts.threshold = n
	})
}

// Cooldown sets how long an open breaker rejects attempts before
// admitting a half-open probe.
//
// Defaults to 10 seconds.
func Cooldown(d time.Duration) SetOption {
	return setOptionFunc(func(opts *setOptions) {
		opts.cooldown = d
	})
}

// WithClock overrides the time source, for tests.
func WithClock(clk clock.Clock) SetOption {
	return setOptionFunc(func(opts *setOptions) {
		opts.clock = clk
	})
}

// Set owns one Breaker per host key, created lazily on first
// reference. All methods are safe for concurrent use from multiple
// executors sharing one set.
type Set struct {
	classify Classifier
	opts     setOptions

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewSet creates a breaker set. A nil classifier counts no errors, so
// breakers never open.
func NewSet(classify Classifier, opts ...SetOption) *Set {
	options := defaultSetOptions
	for _, opt := range opts {
		opt.apply(&options)
	}
	if classify == nil {
		classify = func(error) bool { return false }
	}
	return &Set{
		classify: classify,
		opts:     options,
		breakers: make(map[string]*Breaker),
	}
}

func (s *Set) get(key string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[key]; ok {
		return b
	}
	b = newBreaker(s.opts.threshold, s.opts.cooldown, s.opts.clock)
	s.breakers[key] = b
	return b
}

// IsOpen reports whether the host's breaker is currently open,
// creating a closed breaker if the key is unseen.
func (s *Set) IsOpen(key string) bool {
	return s.get(key).State() == Open
}

// RecordSuccess feeds a successful attempt into the host's breaker.
func (s *Set) RecordSuccess(key string) {
	s.get(key).Success()
}

// RecordFailure feeds a failed attempt into the host's breaker. Opaque
// errors are a no-op on breaker state.
func (s *Set) RecordFailure(key string, err error) {
	if !s.classify(err) {
		return
	}
	s.get(key).Failure()
}

// Countable reports whether an error counts toward breaker state.
func (s *Set) Countable(err error) bool {
	return s.classify(err)
}

// AllClosed reports whether no currently referenced breaker is open.
func (s *Set) AllClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.breakers {
		if b.State() == Open {
			return false
		}
	}
	return true
}

// AllOpen reports whether every currently referenced breaker is open.
// This is the executor's signal that the whole pool, not just one
// host, is unreachable. An empty set is not considered all-open.
func (s *Set) AllOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.breakers) == 0 {
		return false
	}
	for _, b := range s.breakers {
		if b.State() != Open {
			return false
		}
	}
	return true
}

// Do runs one monitored attempt against the host. If the breaker
// rejects the attempt, Do returns ErrCircuitOpen without invoking fn.
// Otherwise fn runs and its outcome is classified: success closes the
// breaker, a countable failure advances it, an opaque failure leaves
// it untouched. fn's error is returned unchanged either way.
func (s *Set) Do(key string, fn func() error) error {
	b := s.get(key)
	if !b.Allow() {
		return ErrCircuitOpen(key)
	}

	err := fn()
	if err == nil {
		b.Success()
		return nil
	}
	if s.classify(err) {
		b.Failure()
	} else {
		// An opaque failure is no verdict on the host; if this attempt
		// was a half-open probe, free the slot for the next attempt.
		b.releaseProbe()
	}
	return err
}
