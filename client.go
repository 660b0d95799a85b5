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
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apibackoff "github.com/Squarespace/smartclient/api/backoff"
	"github.com/Squarespace/smartclient/breaker"
	"github.com/Squarespace/smartclient/host"
	"github.com/Squarespace/smartclient/hostpool"
	"github.com/Squarespace/smartclient/internal/clock"
	"github.com/Squarespace/smartclient/registry"
)

const defaultMaxAttempts = 3

// Operation is one call against a chosen host. The host the client
// selected for this attempt is always passed in; operations that
// address their target some other way are free to ignore it.
type Operation func(ctx context.Context, h host.Host) error

// Option customizes the behavior of a client.
type Option interface {
	apply(*options)
}

type options struct {
	reg       registry.Registry
	hosts     []host.Host
	pool      *hostpool.Pool
	path      string
	classify  breaker.Classifier
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger
	scope     tally.Scope
	clock     clock.Clock
}

type optionFunc func(*options)

func (f optionFunc) apply(opts *options) { f(opts) }

// WithRegistry sources the client's hosts from a dynamic registry. The
// registry must implement one of registry.PushRegistry or
// registry.PullRegistry.
func WithRegistry(reg registry.Registry) Option {
	return optionFunc(func(opts *options) {
		opts.reg = reg
	})
}

// WithHosts sources the client's hosts from a fixed list.
func WithHosts(hosts ...host.Host) Option {
	return optionFunc(func(opts *options) {
		opts.hosts = hosts
	})
}

// WithPool supplies a prebuilt host pool.
func WithPool(pool *hostpool.Pool) Option {
	return optionFunc(func(opts *options) {
		opts.pool = pool
	})
}

// WithPath sets the registry path to watch.
//
// Defaults to the service name.
func WithPath(path string) Option {
	return optionFunc(func(opts *options) {
		opts.path = path
	})
}

// WithCountable sets the classifier for errors that count toward a
// host's breaker and are absorbed and retried by the attempt loop.
// Errors the classifier rejects are opaque: they propagate to the
// caller immediately and never advance breaker state.
//
// Without a classifier no error is countable, so breakers never open
// and every operation error propagates.
func WithCountable(classify breaker.Classifier) Option {
	return optionFunc(func(opts *options) {
		opts.classify = classify
	})
}

// WithFailureThreshold sets how many consecutive countable failures
// open a host's breaker.
func WithFailureThreshold(n int) Option {
	return optionFunc(func(opts *options) {
		opts.threshold = n
	})
}

// WithCooldown sets how long an open breaker rejects attempts before
// probing the host again.
func WithCooldown(d time.Duration) Option {
	return optionFunc(func(opts *options) {
		opts.cooldown = d
	})
}

// WithLogger sets a zap logger for attempt diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *options) {
		opts.logger = logger
	})
}

// WithScope sets a tally scope for call metrics.
func WithScope(scope tally.Scope) Option {
	return optionFunc(func(opts *options) {
		opts.scope = scope
	})
}

// withClock overrides the time source, for tests.
func withClock(clk clock.Clock) Option {
	return optionFunc(func(opts *options) {
		opts.clock = clk
	})
}

// CallOption customizes a single Run invocation.
type CallOption interface {
	applyCall(*callOptions)
}

type callOptions struct {
	maxAttempts int
	strategy    apibackoff.Strategy
}

type callOptionFunc func(*callOptions)

func (f callOptionFunc) applyCall(opts *callOptions) { f(opts) }

// MaxAttempts bounds the attempt loop, inclusive of the first attempt.
//
// Defaults to 3.
func MaxAttempts(n int) CallOption {
	return callOptionFunc(func(opts *callOptions) {
		opts.maxAttempts = n
	})
}

// Backoff sets the wait strategy applied between attempts. Skipped
// attempts (circuit open) never wait.
//
// By default there is no wait between attempts.
func Backoff(strategy apibackoff.Strategy) CallOption {
	return callOptionFunc(func(opts *callOptions) {
		opts.strategy = strategy
	})
}

// Client dispatches operations for one named service across a rotating
// selection of interchangeable hosts, gating each attempt through the
// target host's circuit breaker and retrying countable failures up to
// a bounded attempt budget.
//
// A Client is safe for concurrent use; breaker state is shared across
// all calls so every caller benefits from every caller's observations.
type Client struct {
	name     string
	pool     *hostpool.Pool
	breakers *breaker.Set
	logger   *zap.Logger
	clock    clock.Clock
	observer *observer
}

// New creates a client for the named service. Exactly one host source
// must be configured: WithRegistry, WithHosts, or WithPool.
func New(name string, opts ...Option) (*Client, error) {
	options := options{
		path:      name,
		threshold: 0, // breaker defaults apply
		logger:    zap.NewNop(),
		scope:     tally.NoopScope,
		clock:     clock.NewReal(),
	}
	for _, opt := range opts {
		opt.apply(&options)
	}

	if err := validateHostSource(options); err != nil {
		return nil, err
	}

	pool := options.pool
	if pool == nil {
		if options.reg != nil {
			var err error
			pool, err = hostpool.New(name, options.reg,
				hostpool.Path(options.path),
				hostpool.Logger(options.logger),
				hostpool.WithClock(options.clock),
			)
			if err != nil {
				return nil, err
			}
		} else {
			pool = hostpool.NewStatic(name, options.hosts,
				hostpool.Logger(options.logger),
				hostpool.WithClock(options.clock),
			)
		}
	}

	setOpts := []breaker.SetOption{breaker.WithClock(options.clock)}
	if options.threshold > 0 {
		setOpts = append(setOpts, breaker.FailureThreshold(options.threshold))
	}
	if options.cooldown > 0 {
		setOpts = append(setOpts, breaker.Cooldown(options.cooldown))
	}

	return &Client{
		name:     name,
		pool:     pool,
		breakers: breaker.NewSet(options.classify, setOpts...),
		logger:   options.logger.With(zap.String("service", name)),
		clock:    options.clock,
		observer: newObserver(options.scope),
	}, nil
}

func validateHostSource(options options) error {
	sources := 0
	if options.reg != nil {
		sources++
	}
	if options.hosts != nil {
		sources++
	}
	if options.pool != nil {
		sources++
	}
	var err error
	if sources == 0 {
		err = multierr.Append(err, errors.New("one of WithRegistry, WithHosts, or WithPool is required"))
	}
	if sources > 1 {
		err = multierr.Append(err, errors.New("WithRegistry, WithHosts, and WithPool are mutually exclusive"))
	}
	return err
}

// Breakers exposes the client's breaker set, shared across all calls.
func (c *Client) Breakers() *breaker.Set {
	return c.breakers
}

// Pool exposes the client's host pool.
func (c *Client) Pool() *hostpool.Pool {
	return c.pool
}

// Run executes the operation against a rotating selection of hosts
// until it succeeds, an unrecoverable condition is hit, or the attempt
// budget is exhausted.
//
// Fatal outcomes, in order of precedence:
//   - hostpool.ErrNoHostsAvailable: the pool itself is empty; retrying
//     would not change that.
//   - ErrAllHostsUnreachable: an attempt found its breaker open and
//     every known breaker is open.
//   - any opaque operation error, propagated untouched.
//   - ErrMaxRetriesReached: the budget ran out while some hosts
//     remained selectable.
//
// Countable operation errors are recorded against the chosen host's
// breaker, logged, and absorbed into the next attempt. Attempts
// skipped because of an open breaker consume budget but never sleep
// for backoff.
func (c *Client) Run(ctx context.Context, op Operation, opts ...CallOption) error {
	options := callOptions{maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt.applyCall(&options)
	}

	var boff apibackoff.Backoff
	if options.strategy != nil {
		boff = options.strategy.Backoff()
	}

	for attempt := 1; attempt <= options.maxAttempts; attempt++ {
		h, err := c.pool.Next()
		if err != nil {
			var noHosts hostpool.ErrNoHostsAvailable
			if errors.As(err, &noHosts) {
				c.observer.noHostsError()
			}
			return err
		}
		key := h.Identifier()

		c.observer.attempt()
		err = c.breakers.Do(key, func() error {
			return op(ctx, h)
		})
		if err == nil {
			c.observer.success()
			return nil
		}

		var open breaker.ErrCircuitOpen
		if errors.As(err, &open) {
			if c.breakers.AllOpen() {
				c.observer.allOpenError()
				return ErrAllHostsUnreachable(c.name)
			}
			c.observer.circuitOpenSkip()
			c.logger.Warn("skipped host with open circuit",
				zap.String("host", key),
				zap.Int("attempt", attempt))
			continue
		}

		if !c.breakers.Countable(err) {
			c.observer.opaqueError()
			return err
		}

		c.observer.retryOnError()
		c.logger.Warn("absorbed host failure",
			zap.String("host", key),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if boff != nil && attempt < options.maxAttempts {
			c.clock.Sleep(boff.Duration(uint(attempt - 1)))
		}
	}

	c.observer.maxAttemptsError()
	return ErrMaxRetriesReached{Service: c.name, Attempts: options.maxAttempts}
}

// Wrap binds the retry and circuit-breaker policy to an operation,
// returning a function that applies it on every invocation.
func (c *Client) Wrap(op Operation, opts ...CallOption) func(context.Context) error {
	return func(ctx context.Context) error {
		return c.Run(ctx, op, opts...)
	}
}
