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

package backoff

import (
	"time"

	"github.com/Squarespace/smartclient/api/backoff"
)

// Fixed returns a strategy that waits the same duration after every
// attempt.
func Fixed(d time.Duration) backoff.Strategy {
	return fixedStrategy(d)
}

type fixedStrategy time.Duration

var _ backoff.Strategy = fixedStrategy(0)

func (s fixedStrategy) Backoff() backoff.Backoff { return fixedBackoff(s) }

type fixedBackoff time.Duration

func (b fixedBackoff) Duration(_ uint) time.Duration { return time.Duration(b) }

// Func returns a strategy that calls f fresh before each wait,
// ignoring the attempt number. f must be safe for concurrent use if
// the strategy is shared across goroutines.
func Func(f func() time.Duration) backoff.Strategy {
	return funcStrategy{f: f}
}

type funcStrategy struct {
	f func() time.Duration
}

var _ backoff.Strategy = funcStrategy{}

func (s funcStrategy) Backoff() backoff.Backoff { return funcBackoff(s) }

type funcBackoff struct {
	f func() time.Duration
}

func (b funcBackoff) Duration(_ uint) time.Duration { return b.f() }
