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

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/Squarespace/smartclient/backoff"
	"github.com/Squarespace/smartclient/breaker"
	"github.com/Squarespace/smartclient/host"
	"github.com/Squarespace/smartclient/hostpool"
	"github.com/Squarespace/smartclient/internal/clock"
)

var errFlaky = errors.New("connection reset")

func newTestClient(t *testing.T, hosts []host.Host, opts ...Option) (*Client, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFake()
	opts = append([]Option{
		WithHosts(hosts...),
		WithCountable(breaker.IsAny(errFlaky)),
		withClock(fake),
	}, opts...)
	c, err := New("svc", opts...)
	require.NoError(t, err)
	return c, fake
}

func TestNewValidatesHostSource(t *testing.T) {
	_, err := New("svc")
	assert.Error(t, err, "a host source is required")

	_, err = New("svc",
		WithHosts(host.New("a", 80, 0)),
		WithPool(hostpool.NewStatic("svc", nil)))
	assert.Error(t, err, "host sources are mutually exclusive")
}

func TestRunReturnsFirstSuccess(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0), host.New("b", 80, 0)})

	var seen []string
	err := c.Run(context.Background(), func(_ context.Context, h host.Host) error {
		seen = append(seen, h.Address())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, seen, "success on the first attempt ends the loop")
}

func TestRunRetriesCountableErrors(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0), host.New("b", 80, 0)},
		WithFailureThreshold(10))

	invocations := 0
	err := c.Run(context.Background(), func(_ context.Context, h host.Host) error {
		invocations++
		if h.Address() == "a" {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, invocations, "the countable failure was absorbed and the next host tried")
}

func TestRunMaxRetriesReached(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0)},
		WithFailureThreshold(10))

	invocations := 0
	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		invocations++
		return errFlaky
	}, MaxAttempts(3))

	var maxRetries ErrMaxRetriesReached
	require.ErrorAs(t, err, &maxRetries)
	assert.Equal(t, "svc", maxRetries.Service)
	assert.Equal(t, 3, maxRetries.Attempts)
	assert.Equal(t, 3, invocations, "the operation ran exactly once per attempt")
}

func TestRunSkipsOpenBreaker(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0), host.New("b", 80, 0)},
		WithFailureThreshold(1))

	// Open a's breaker, and make b known and closed.
	c.Breakers().RecordFailure("a:80", errFlaky)
	require.True(t, c.Breakers().IsOpen("a:80"))
	require.False(t, c.Breakers().IsOpen("b:80"))

	var seen []string
	err := c.Run(context.Background(), func(_ context.Context, h host.Host) error {
		seen = append(seen, h.Address())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, seen, "the open host was never invoked")
}

func TestRunAllHostsUnreachable(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0), host.New("b", 80, 0)},
		WithFailureThreshold(1))

	c.Breakers().RecordFailure("a:80", errFlaky)
	c.Breakers().RecordFailure("b:80", errFlaky)

	invocations := 0
	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		invocations++
		return nil
	}, MaxAttempts(10))

	var unreachable ErrAllHostsUnreachable
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, "svc", string(unreachable))
	assert.Zero(t, invocations, "no operation runs once the whole pool is open")
}

func TestRunPropagatesOpaqueErrors(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0)},
		WithFailureThreshold(1))

	opaque := errors.New("bad request")
	invocations := 0
	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		invocations++
		return opaque
	}, MaxAttempts(5))

	assert.ErrorIs(t, err, opaque, "opaque errors propagate untouched")
	assert.Equal(t, 1, invocations, "opaque errors are never retried")
	assert.False(t, c.Breakers().IsOpen("a:80"), "opaque errors never advance breaker state")
}

func TestRunPropagatesNoHostsAvailable(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{})

	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		t.Fatal("operation must not run without hosts")
		return nil
	})

	var noHosts hostpool.ErrNoHostsAvailable
	require.ErrorAs(t, err, &noHosts)
	assert.Equal(t, "svc", string(noHosts))
}

func TestRunBackoffBetweenAttempts(t *testing.T) {
	c, fake := newTestClient(t, []host.Host{host.New("a", 80, 0)},
		WithFailureThreshold(10))

	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		return errFlaky
	}, MaxAttempts(3), Backoff(backoff.Fixed(100*time.Millisecond)))

	var maxRetries ErrMaxRetriesReached
	require.ErrorAs(t, err, &maxRetries)
	assert.Equal(t,
		[]time.Duration{100 * time.Millisecond, 100 * time.Millisecond},
		fake.Sleeps(),
		"no sleep after the final attempt")
}

func TestRunSkippedAttemptsNeverSleep(t *testing.T) {
	c, fake := newTestClient(t, []host.Host{host.New("a", 80, 0), host.New("b", 80, 0)},
		WithFailureThreshold(1))

	c.Breakers().RecordFailure("a:80", errFlaky)
	require.False(t, c.Breakers().IsOpen("b:80"))

	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		return nil
	}, Backoff(backoff.Fixed(time.Second)))
	require.NoError(t, err)
	assert.Empty(t, fake.Sleeps(), "circuit-open skips do no real work and never back off")
}

func TestRunDynamicBackoff(t *testing.T) {
	c, fake := newTestClient(t, []host.Host{host.New("a", 80, 0)},
		WithFailureThreshold(10))

	delays := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	i := 0
	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		return errFlaky
	}, MaxAttempts(3), Backoff(backoff.Func(func() time.Duration {
		d := delays[i]
		i++
		return d
	})))

	var maxRetries ErrMaxRetriesReached
	require.ErrorAs(t, err, &maxRetries)
	assert.Equal(t, delays, fake.Sleeps(), "the delay function is evaluated fresh before each wait")
}

func TestRunReactiveAllOpenCheck(t *testing.T) {
	// The last closed breaker failing does not abort the loop in the
	// same iteration it opens; the walk keeps consuming budget until an
	// attempt actually observes an open circuit.
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0)},
		WithFailureThreshold(1), WithCooldown(time.Hour))

	invocations := 0
	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		invocations++
		return errFlaky
	}, MaxAttempts(3))

	var unreachable ErrAllHostsUnreachable
	require.ErrorAs(t, err, &unreachable,
		"the attempt after the trip observes the open circuit and aborts")
	assert.Equal(t, 1, invocations)
}

func TestWrap(t *testing.T) {
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0)})

	invocations := 0
	wrapped := c.Wrap(func(context.Context, host.Host) error {
		invocations++
		return nil
	})

	require.NoError(t, wrapped(context.Background()))
	require.NoError(t, wrapped(context.Background()))
	assert.Equal(t, 2, invocations, "the wrapper applies the policy on every invocation")
}

func TestRunRecordsMetrics(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	c, _ := newTestClient(t, []host.Host{host.New("a", 80, 0)},
		WithFailureThreshold(10), WithScope(scope))

	err := c.Run(context.Background(), func(context.Context, host.Host) error {
		return errFlaky
	}, MaxAttempts(2))
	var maxRetries ErrMaxRetriesReached
	require.ErrorAs(t, err, &maxRetries)

	counters := scope.Snapshot().Counters()
	assert.EqualValues(t, 2, counters["call_attempts+"].Value())
	assert.EqualValues(t, 2, counters["call_retries+"].Value())
	assert.EqualValues(t, 1, counters["call_failures+error=max_attempts"].Value())
}
