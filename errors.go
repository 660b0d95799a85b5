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

package smartclient

import "fmt"

// ErrAllHostsUnreachable is returned by Run when every known host's
// breaker is open. It is distinct from exhausting the attempt budget:
// it means the whole service, not any individual host, is unreachable.
// The value is the service name.
type ErrAllHostsUnreachable string

func (e ErrAllHostsUnreachable) Error() string {
	return fmt.Sprintf("all hosts unreachable for service %q", string(e))
}

// ErrMaxRetriesReached is returned by Run when the attempt budget is
// exhausted while hosts remained selectable.
type ErrMaxRetriesReached struct {
	Service  string
	Attempts int
}

func (e ErrMaxRetriesReached) Error() string {
	return fmt.Sprintf("attempted %d times for service %q", e.Attempts, e.Service)
}
