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

// Package registry defines the capability surface a dynamic registry
// backend exposes to the host pool.
//
// A backend always implements Registry. It additionally implements
// exactly one of PushRegistry or PullRegistry, which determines how the
// pool refreshes its hosts: push-capable backends deliver change
// notifications through a watch, pull-only backends declare a staleness
// threshold after which the pool re-reads the node tree. The capability
// is expressed as an interface and checked once at pool construction,
// never probed per call.
package registry

import "time"

// NodeData is one registry node's current data as a structured mapping.
// Backends must return an empty (possibly nil) mapping for nodes with
// no data rather than an error.
type NodeData = map[string]interface{}

// Registry reads the node tree that describes a service's hosts: one
// parent path per service, one child node per host.
type Registry interface {
	// GetNode fetches one node's current data.
	GetNode(path string) (NodeData, error)

	// GetChildren lists the immediate child names under a path.
	GetChildren(path string) ([]string, error)
}

// ChangeFunc receives the full current child set whenever the watched
// path changes: child name to node data. Callbacks may be delivered
// from an arbitrary goroutine, out of order, or more than once for the
// same state; receivers must treat each delivery as a complete
// replacement.
type ChangeFunc func(children map[string]NodeData)

// PushRegistry is a backend that can notify on change.
type PushRegistry interface {
	Registry

	// WatchAll watches the child set under path as well as each child
	// node's data, invoking fn with the complete current state on any
	// change. The returned Watcher detaches every underlying
	// notification the watch established.
	WatchAll(path string, fn ChangeFunc) (Watcher, error)
}

// PullRegistry is a backend without change notifications. The pool
// falls back to re-reading the node tree once the declared threshold
// has elapsed since the last refresh.
type PullRegistry interface {
	Registry

	// UpdateThreshold returns the minimum staleness before a refresh
	// is attempted.
	UpdateThreshold() time.Duration
}

// Watcher is the handle for one outstanding watch.
type Watcher interface {
	// Stop permanently detaches all notifications this watch
	// represents.
	Stop()
}
