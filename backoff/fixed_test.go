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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	boff := Fixed(250 * time.Millisecond).Backoff()
	assert.Equal(t, 250*time.Millisecond, boff.Duration(0))
	assert.Equal(t, 250*time.Millisecond, boff.Duration(10), "attempt number is irrelevant")
}

func TestFuncEvaluatedFreshPerWait(t *testing.T) {
	calls := 0
	boff := Func(func() time.Duration {
		calls++
		return time.Duration(calls) * time.Millisecond
	}).Backoff()

	assert.Equal(t, time.Millisecond, boff.Duration(0))
	assert.Equal(t, 2*time.Millisecond, boff.Duration(0))
	assert.Equal(t, 3*time.Millisecond, boff.Duration(5))
	assert.Equal(t, 3, calls)
}
