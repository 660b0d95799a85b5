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

// Package hostpool maintains the live, refreshable set of candidate
// hosts for a named service and hands them out in round-robin order.
//
// The pool keeps its hosts in an immutable generation behind an
// atomically swapped pointer. Readers dereference the current
// generation through that pointer and advance a shared cursor, so a
// refresh never blocks a reader and a reader never observes a mix of
// two generations within one call. Each generation is shuffled on
// replacement to avoid iteration-order bias toward the front of a
// freshly fetched list.
package hostpool

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Squarespace/smartclient/host"
	"github.com/Squarespace/smartclient/internal/clock"
	"github.com/Squarespace/smartclient/registry"
)

// ErrNoHostsAvailable is returned by Next when the current generation
// is empty after a load attempt. The value is the service name.
type ErrNoHostsAvailable string

func (e ErrNoHostsAvailable) Error() string {
	return fmt.Sprintf("no hosts available for service %q", string(e))
}

// ErrUnknownCapability is returned by New when the registry implements
// neither PushRegistry nor PullRegistry.
type ErrUnknownCapability string

func (e ErrUnknownCapability) Error() string {
	return fmt.Sprintf("registry for service %q supports neither push nor pull refresh", string(e))
}

type generation struct {
	hosts []host.Host
}

// Option customizes the behavior of a pool.
type Option interface {
	apply(*options)
}

type options struct {
	path   string
	logger *zap.Logger
	clock  clock.Clock
	seed   int64
}

type optionFunc func(*options)

func (f optionFunc) apply(opts *options) { f(opts) }

// Path sets the registry path the pool watches.
//
// Defaults to the service name.
func Path(path string) Option {
	return optionFunc(func(opts *options) {
		opts.path = path
	})
}

// Logger specifies a logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(opts *options) {
		opts.logger = logger
	})
}

// WithClock overrides the time source used for staleness checks, for
// tests.
func WithClock(clk clock.Clock) Option {
	return optionFunc(func(opts *options) {
		opts.clock = clk
	})
}

// Seed specifies the random seed used for shuffling generations.
//
// Defaults to approximately the process start time in nanoseconds.
func Seed(seed int64) Option {
	return optionFunc(func(opts *options) {
		opts.seed = seed
	})
}

// Pool is the live host list for one service.
//
// A registry-backed pool starts unloaded: the first Next call blocks
// on a full read of the registry's node tree. Push-capable registries
// then get a single watch, installed lazily on first access, that
// replaces the generation whenever the watched child set or any
// child's data changes. Pull-only registries are re-read from within
// Next whenever the generation is older than the backend's declared
// update threshold.
type Pool struct {
	name   string
	path   string
	logger *zap.Logger
	clock  clock.Clock

	reg  registry.Registry
	push registry.PushRegistry
	pull registry.PullRegistry

	gen         atomic.Pointer[generation]
	cursor      atomic.Uint64
	lastUpdated atomic.Int64

	// mu serializes loading, refreshing, and watch installation. It is
	// never held while a reader dereferences the generation.
	mu      sync.Mutex
	rand    *rand.Rand
	loaded  bool
	watcher registry.Watcher
}

// New creates a registry-backed pool for the named service. The
// registry must implement exactly one of registry.PushRegistry or
// registry.PullRegistry; the capability is checked here, once, and
// fixes the pool's refresh mode for its lifetime.
func New(name string, reg registry.Registry, opts ...Option) (*Pool, error) {
	options := options{
		path:   name,
		logger: zap.NewNop(),
		clock:  clock.NewReal(),
		seed:   time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt.apply(&options)
	}

	p := &Pool{
		name:   name,
		path:   options.path,
		logger: options.logger,
		clock:  options.clock,
		reg:    reg,
		rand:   rand.New(rand.NewSource(options.seed)),
	}

	switch r := reg.(type) {
	case registry.PushRegistry:
		p.push = r
	case registry.PullRegistry:
		p.pull = r
	default:
		return nil, ErrUnknownCapability(name)
	}
	return p, nil
}

// NewStatic creates a pool over a fixed host list. The list is served
// round-robin in the given order and never refreshed.
func NewStatic(name string, hosts []host.Host, opts ...Option) *Pool {
	options := options{
		path:   name,
		logger: zap.NewNop(),
		clock:  clock.NewReal(),
		seed:   time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt.apply(&options)
	}

	fixed := make([]host.Host, len(hosts))
	copy(fixed, hosts)

	p := &Pool{
		name:   name,
		path:   options.path,
		logger: options.logger,
		clock:  options.clock,
		rand:   rand.New(rand.NewSource(options.seed)),
		loaded: true,
	}
	p.gen.Store(&generation{hosts: fixed})
	p.lastUpdated.Store(options.clock.Now().UnixNano())
	return p
}

// Next returns the next host in round-robin order from the current
// generation, loading or refreshing from the registry first as the
// refresh mode requires. It returns ErrNoHostsAvailable when the
// current generation is empty after a load attempt.
func (p *Pool) Next() (host.Host, error) {
	if p.reg != nil {
		if err := p.ensure(); err != nil {
			return host.Host{}, err
		}
	}

	g := p.gen.Load()
	if g == nil || len(g.hosts) == 0 {
		return host.Host{}, ErrNoHostsAvailable(p.name)
	}
	i := p.cursor.Inc() - 1
	return g.hosts[i%uint64(len(g.hosts))], nil
}

// ensure performs the blocking first load, installs the watch exactly
// once for push registries, and runs at most one staleness refresh per
// call for pull registries.
func (p *Pool) ensure() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := p.refreshLocked(); err != nil {
			return err
		}
		p.loaded = true
	}

	if p.push != nil {
		if p.watcher == nil {
			w, err := p.push.WatchAll(p.path, p.onChange)
			if err != nil {
				return err
			}
			p.watcher = w
		}
		return nil
	}

	stale := p.clock.Now().UnixNano() - p.lastUpdated.Load()
	if time.Duration(stale) > p.pull.UpdateThreshold() {
		return p.refreshLocked()
	}
	return nil
}

// refreshLocked re-reads the full node tree. Caller must hold mu.
func (p *Pool) refreshLocked() error {
	children, err := p.reg.GetChildren(p.path)
	if err != nil {
		return err
	}

	hosts := make([]host.Host, 0, len(children))
	for _, child := range children {
		attrs, err := p.reg.GetNode(p.path + "/" + child)
		if err != nil {
			return err
		}
		h, err := host.FromAttrs(attrs)
		if err != nil {
			p.logger.Warn("skipping unparseable registry node",
				zap.String("service", p.name),
				zap.String("child", child),
				zap.Error(err))
			continue
		}
		hosts = append(hosts, h)
	}

	p.replace(hosts)
	return nil
}

// onChange handles a watch notification. Notifications may arrive on
// any goroutine, duplicated, or out of order; each one is treated as a
// complete replacement of the generation, last write wins.
func (p *Pool) onChange(children map[string]registry.NodeData) {
	hosts := make([]host.Host, 0, len(children))
	for child, attrs := range children {
		h, err := host.FromAttrs(attrs)
		if err != nil {
			p.logger.Warn("skipping unparseable registry node",
				zap.String("service", p.name),
				zap.String("child", child),
				zap.Error(err))
			continue
		}
		hosts = append(hosts, h)
	}
	p.Replace(hosts)
}

// Replace atomically swaps in a new generation after randomizing its
// order, and resets the staleness timestamp. It is safe to call from
// any goroutine, concurrently with Next.
func (p *Pool) Replace(hosts []host.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replace(hosts)
}

// replace must be called with mu held (it uses the pool's rand).
func (p *Pool) replace(hosts []host.Host) {
	shuffled := make([]host.Host, len(hosts))
	copy(shuffled, hosts)
	p.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	p.gen.Store(&generation{hosts: shuffled})
	p.lastUpdated.Store(p.clock.Now().UnixNano())
	p.logger.Debug("replaced host generation",
		zap.String("service", p.name),
		zap.Int("hosts", len(shuffled)))
}

// Hosts returns a snapshot of the current generation, in iteration
// order.
func (p *Pool) Hosts() []host.Host {
	g := p.gen.Load()
	if g == nil {
		return nil
	}
	out := make([]host.Host, len(g.hosts))
	copy(out, g.hosts)
	return out
}

// Stop detaches the registry watch, if one was installed. The pool
// keeps serving its last generation afterwards.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		p.watcher.Stop()
		p.watcher = nil
	}
}
