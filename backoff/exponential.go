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

// Package backoff implements the wait strategies used between retry
// attempts: exponential with full jitter, a fixed delay, and an
// arbitrary delay-producing function.
package backoff

import (
	"errors"
	"math/rand"
	"time"

	"go.uber.org/multierr"

	"github.com/Squarespace/smartclient/api/backoff"
)

// ExponentialOption customizes an exponential backoff strategy.
type ExponentialOption func(*exponentialOptions)

type exponentialOptions struct {
	base, min, max time.Duration
	newRand        func() *rand.Rand
}

func (e exponentialOptions) validate() (err error) {
	if e.base <= 0 {
		err = multierr.Append(err, errors.New("exponential backoff base must be greater than zero"))
	}
	if e.min < 0 {
		err = multierr.Append(err, errors.New("exponential backoff min must be non-negative"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("exponential backoff max must be non-negative"))
	}
	if e.max < e.min {
		err = multierr.Append(err, errors.New("exponential backoff max must be greater than min"))
	}
	return err
}

var defaultExponentialOpts = exponentialOptions{
	base: 10 * time.Millisecond,
	max:  time.Minute,
	newRand: func() *rand.Rand {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	},
}

// BaseJump sets the first attempt's upper bound; subsequent bounds
// double until they hit the max.
func BaseJump(d time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.base = d
	}
}

// MinBackoff sets the absolute minimum duration ever returned.
func MinBackoff(d time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.min = d
	}
}

// MaxBackoff sets the absolute maximum duration ever returned.
func MaxBackoff(d time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.max = d
	}
}

// newRand overrides the random number generator factory, for tests.
func newRand(f func() *rand.Rand) ExponentialOption {
	return func(options *exponentialOptions) {
		options.newRand = f
	}
}

// Exponential is an exponential backoff strategy with full jitter:
// each wait is drawn uniformly from [min, min(base<<attempt, max)].
// The strategy itself is stateless and safe for concurrent use; each
// call to Backoff produces an independent instance with its own random
// number generator.
type Exponential struct {
	opts       exponentialOptions
	minMaxDiff int64
}

var _ backoff.Strategy = (*Exponential)(nil)

// NewExponential returns a new exponential backoff strategy.
func NewExponential(opts ...ExponentialOption) (*Exponential, error) {
	options := defaultExponentialOpts
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &Exponential{
		opts:       options,
		minMaxDiff: options.max.Nanoseconds() - options.min.Nanoseconds(),
	}, nil
}

// Backoff returns an instance of the exponential backoff, with its own
// random number generator.
func (e *Exponential) Backoff() backoff.Backoff {
	return &exponentialBackoff{
		exp:  e,
		rand: e.opts.newRand(),
	}
}

type exponentialBackoff struct {
	exp  *Exponential
	rand *rand.Rand
}

// Duration returns a duration within the jitter range for the given
// attempt.
func (b *exponentialBackoff) Duration(attempt uint) time.Duration {
	spread := (1 << attempt) * b.exp.opts.base.Nanoseconds()
	// Either the shift overflowed or we walked past the configured
	// ceiling; cap at the full min..max range.
	if spread <= 0 || spread > b.exp.minMaxDiff {
		spread = b.exp.minMaxDiff
	}
	return b.exp.opts.min + time.Duration(b.rand.Int63n(spread+1))
}
