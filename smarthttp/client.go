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

// Package smarthttp is an HTTP client with the smartclient retry and
// circuit-breaker policy applied, for services whose hosts speak plain
// HTTP. It knows which transport-level errors are worth counting
// against a host's breaker and retrying, and it keeps one underlying
// HTTP client per host so connection pools are not shared between
// hosts.
package smarthttp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Squarespace/smartclient"
	"github.com/Squarespace/smartclient/host"
)

// IsTransportError classifies connection-level failures: timeouts,
// refused or reset connections, and truncated responses. These count
// toward the host's breaker and are retried; anything else, including
// HTTP responses with error status codes, is opaque.
func IsTransportError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}

// Option customizes the behavior of an HTTP client.
type Option func(*options)

type options struct {
	timeout    time.Duration
	clientOpts []smartclient.Option
}

// Timeout bounds each individual request, connection establishment
// included. Zero means no per-request bound.
func Timeout(d time.Duration) Option {
	return func(opts *options) {
		opts.timeout = d
	}
}

// ClientOptions passes construction options through to the underlying
// policy client: the host source, breaker tuning, logging, metrics.
func ClientOptions(clientOpts ...smartclient.Option) Option {
	return func(opts *options) {
		opts.clientOpts = append(opts.clientOpts, clientOpts...)
	}
}

// Client issues HTTP requests against a rotating selection of a
// service's hosts.
type Client struct {
	policy  *smartclient.Client
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*http.Client
}

// New creates an HTTP client for the named service. A host source must
// be supplied through ClientOptions, the same way it would be to
// smartclient.New.
func New(name string, opts ...Option) (*Client, error) {
	var options options
	for _, opt := range opts {
		opt(&options)
	}

	// The transport-error classifier leads so callers can still
	// override it through ClientOptions.
	clientOpts := append(
		[]smartclient.Option{smartclient.WithCountable(IsTransportError)},
		options.clientOpts...,
	)
	policy, err := smartclient.New(name, clientOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		policy:   policy,
		timeout:  options.timeout,
		sessions: make(map[string]*http.Client),
	}, nil
}

// Get issues a GET for path against the service, retrying across hosts
// under the client's policy.
func (c *Client) Get(ctx context.Context, path string, opts ...smartclient.CallOption) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Do issues a request for path against the service. The body, if any,
// is carried as bytes so each attempt can replay it from the start.
// The response is returned as-is; callers own the body and decide what
// an error status means.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, opts ...smartclient.CallOption) (*http.Response, error) {
	var resp *http.Response
	err := c.policy.Run(ctx, func(ctx context.Context, h host.Host) error {
		base, err := h.URL()
		if err != nil {
			return err
		}
		url := base + "/" + strings.TrimLeft(path, "/")

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}

		r, err := c.session(h.Identifier()).Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// session returns the host's dedicated HTTP client, creating it on
// first use.
func (c *Client) session(key string) *http.Client {
	c.mu.RLock()
	s, ok := c.sessions[key]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[key]; ok {
		return s
	}
	s = &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
		Timeout:   c.timeout,
	}
	c.sessions[key] = s
	return s
}
