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

// Package smartclient is a resilient client-side dispatcher for
// calling one of several interchangeable hosts that implement the same
// named service.
//
// The client keeps a continuously refreshed pool of candidate hosts,
// sourced either from a fixed list or from a dynamic registry (see the
// registry and hostpool packages), and executes caller-supplied
// operations against a rotating selection of those hosts. Each attempt
// is gated through the target host's circuit breaker (see the breaker
// package), failures are classified as countable or opaque, and
// countable failures are retried against other hosts up to a bounded
// attempt budget with optional backoff.
//
// Typical usage wraps an existing client library's call in an
// Operation and runs it through the policy:
//
//	client, err := smartclient.New("search",
//		smartclient.WithRegistry(zkregistry.New(conn)),
//		smartclient.WithCountable(breaker.IsAny(io.EOF, syscall.ECONNREFUSED)),
//	)
//	if err != nil {
//		// ...
//	}
//
//	err = client.Run(ctx, func(ctx context.Context, h host.Host) error {
//		url, err := h.URL()
//		if err != nil {
//			return err
//		}
//		return search.Query(ctx, url, terms)
//	}, smartclient.MaxAttempts(5))
//
// For HTTP services the smarthttp package provides a ready-made client
// that knows which transport errors are worth counting and retrying.
package smartclient
