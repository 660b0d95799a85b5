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

// Package zkregistry is a push-capable registry backend over
// ZooKeeper.
//
// Each service is a parent node whose children are the service's
// hosts; a child's data is a JSON object of host attributes. WatchAll
// combines a child-set watch with a data watch on every child.
// ZooKeeper watches are one-shot, so the watcher re-arms them in a
// loop each time any of them fires and delivers the complete current
// state to the callback.
package zkregistry

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/Squarespace/smartclient/registry"
)

// conn is the subset of *zk.Conn this backend uses, extracted so the
// watch loop can be tested against a fake connection.
type conn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
}

var _ conn = (*zk.Conn)(nil)

// retryInterval is how long the watch loop waits before re-arming
// after a ZooKeeper error.
const retryInterval = time.Second

// Option customizes the behavior of a registry.
type Option func(*Registry)

// Logger specifies a logger for the watch loop.
func Logger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry reads and watches service nodes on a ZooKeeper ensemble.
type Registry struct {
	conn   conn
	logger *zap.Logger
}

var _ registry.PushRegistry = (*Registry)(nil)

// New wraps an established ZooKeeper connection.
func New(c *zk.Conn, opts ...Option) *Registry {
	return newRegistry(c, opts...)
}

func newRegistry(c conn, opts ...Option) *Registry {
	r := &Registry{
		conn:   c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect dials a ZooKeeper ensemble and returns a registry over the
// connection. The connection is established lazily by the zk client;
// reads block until the session is live.
func Connect(servers []string, sessionTimeout time.Duration, opts ...Option) (*Registry, error) {
	c, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, err
	}
	return New(c, opts...), nil
}

// GetNode fetches one node's data as a structured mapping. Nodes with
// no data (empty or the literal "false" some publishers write) yield
// an empty mapping.
func (r *Registry) GetNode(path string) (registry.NodeData, error) {
	data, _, err := r.conn.Get(path)
	if err != nil {
		return nil, err
	}
	return decodeNode(data)
}

func decodeNode(data []byte) (registry.NodeData, error) {
	if len(data) == 0 || string(data) == "false" {
		return registry.NodeData{}, nil
	}
	var attrs registry.NodeData
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// GetChildren lists the immediate child names under a path.
func (r *Registry) GetChildren(path string) ([]string, error) {
	children, _, err := r.conn.Children(path)
	return children, err
}

// WatchAll watches the child set under path and every child's data,
// invoking fn with the complete current state whenever anything
// changes. fn runs on the watcher's goroutine. The returned watcher's
// Stop permanently detaches all underlying notifications.
func (r *Registry) WatchAll(path string, fn registry.ChangeFunc) (registry.Watcher, error) {
	w := &watcher{
		reg:   r,
		path:  path,
		fn:    fn,
		stopC: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

type watcher struct {
	reg   *Registry
	path  string
	fn    registry.ChangeFunc
	stopC chan struct{}
	once  sync.Once
}

// Stop permanently detaches the watch. Pending one-shot ZooKeeper
// events are abandoned.
func (w *watcher) Stop() {
	w.once.Do(func() {
		close(w.stopC)
	})
}

// run arms the child and data watches, delivers the current state, and
// blocks until any watch fires or the watcher is stopped. Every
// delivery carries the complete state, so duplicate or coalesced
// events are harmless.
func (w *watcher) run() {
	for {
		fired, err := w.armAndDeliver()
		if err != nil {
			w.reg.logger.Warn("zookeeper watch failed, retrying",
				zap.String("path", w.path),
				zap.Error(err))
			select {
			case <-w.stopC:
				return
			case <-time.After(retryInterval):
				continue
			}
		}

		select {
		case <-w.stopC:
			return
		case <-fired:
		}
	}
}

// armAndDeliver sets one-shot watches on the child set and each child
// node, invokes the callback with the assembled state, and returns a
// channel that receives as soon as any of the watches fires.
func (w *watcher) armAndDeliver() (<-chan struct{}, error) {
	children, _, childEvents, err := w.reg.conn.ChildrenW(w.path)
	if err != nil {
		return nil, err
	}

	fired := make(chan struct{}, 1)
	forward := func(events <-chan zk.Event) {
		select {
		case <-events:
			select {
			case fired <- struct{}{}:
			default:
			}
		case <-w.stopC:
		}
	}
	go forward(childEvents)

	nodes := make(map[string]registry.NodeData, len(children))
	for _, child := range children {
		data, _, dataEvents, err := w.reg.conn.GetW(join(w.path, child))
		if errors.Is(err, zk.ErrNoNode) {
			// Child vanished between the list and the read; the child
			// watch already fired and the next pass picks it up.
			continue
		}
		if err != nil {
			return nil, err
		}
		go forward(dataEvents)

		attrs, err := decodeNode(data)
		if err != nil {
			w.reg.logger.Warn("skipping undecodable zookeeper node",
				zap.String("path", join(w.path, child)),
				zap.Error(err))
			continue
		}
		nodes[child] = attrs
	}

	w.fn(nodes)
	return fired, nil
}

func join(names ...string) string {
	trimmed := make([]string, len(names))
	for i, name := range names {
		trimmed[i] = strings.TrimRight(name, "/")
	}
	return strings.Join(trimmed, "/")
}
