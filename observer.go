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

import "github.com/uber-go/tally"

type observer struct {
	attemptCounter        tally.Counter
	successCounter        tally.Counter
	retryCounter          tally.Counter
	circuitOpenCounter    tally.Counter
	noHostsErrorCounter   tally.Counter
	allOpenErrorCounter   tally.Counter
	maxAttemptsErrCounter tally.Counter
	opaqueErrorCounter    tally.Counter
}

func newObserver(scope tally.Scope) *observer {
	noHostsScope := scope.Tagged(map[string]string{"error": "no_hosts"})
	allOpenScope := scope.Tagged(map[string]string{"error": "all_hosts_unreachable"})
	maxAttemptsScope := scope.Tagged(map[string]string{"error": "max_attempts"})
	opaqueScope := scope.Tagged(map[string]string{"error": "opaque"})
	return &observer{
		attemptCounter:        scope.Counter("call_attempts"),
		successCounter:        scope.Counter("call_successes"),
		retryCounter:          scope.Counter("call_retries"),
		circuitOpenCounter:    scope.Counter("call_circuit_open_skips"),
		noHostsErrorCounter:   noHostsScope.Counter("call_failures"),
		allOpenErrorCounter:   allOpenScope.Counter("call_failures"),
		maxAttemptsErrCounter: maxAttemptsScope.Counter("call_failures"),
		opaqueErrorCounter:    opaqueScope.Counter("call_failures"),
	}
}

func (o *observer) attempt() {
	o.attemptCounter.Inc(1)
}

func (o *observer) success() {
	o.successCounter.Inc(1)
}

func (o *observer) retryOnError() {
	o.retryCounter.Inc(1)
}

func (o *observer) circuitOpenSkip() {
	o.circuitOpenCounter.Inc(1)
}

func (o *observer) noHostsError() {
	o.noHostsErrorCounter.Inc(1)
}

func (o *observer) allOpenError() {
	o.allOpenErrorCounter.Inc(1)
}

func (o *observer) maxAttemptsError() {
	o.maxAttemptsErrCounter.Inc(1)
}

func (o *observer) opaqueError() {
	o.opaqueErrorCounter.Inc(1)
}
