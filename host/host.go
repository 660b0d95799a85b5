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

// Package host defines the immutable descriptor for one reachable
// endpoint of a service, as produced by a registry backend.
package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Attribute names recognized in registry node data. Everything else is
// carried as opaque metadata.
const (
	addressAttr = "address"
	portAttr    = "port"
	sslPortAttr = "sslPort"
)

// ErrNoAddress is returned when registry node data carries no address
// attribute.
var ErrNoAddress = errors.New("host attributes missing address")

// ErrNoPort is returned when a host has neither a plain nor a secure
// port configured. The value is the host's address.
type ErrNoPort string

func (e ErrNoPort) Error() string {
	return fmt.Sprintf("host %q has neither port nor sslPort configured", string(e))
}

// Host describes one reachable endpoint: an address, a plain port, an
// optional secure port, and whatever extra metadata the registry
// attached to the node. A Host is immutable after construction.
type Host struct {
	address string
	port    int
	sslPort int
	attrs   map[string]interface{}
}

// New builds a Host from an address and its ports. A zero port means
// the port is not configured.
func New(address string, port, sslPort int) Host {
	return Host{address: address, port: port, sslPort: sslPort}
}

// FromAttrs builds a Host from registry node data. The address
// attribute is required; port and sslPort are optional and may arrive
// as any numeric type JSON decoding produces. Unrecognized attributes
// are retained and readable through Attr.
func FromAttrs(attrs map[string]interface{}) (Host, error) {
	address, _ := attrs[addressAttr].(string)
	if address == "" {
		return Host{}, ErrNoAddress
	}

	port, err := intAttr(attrs, portAttr)
	if err != nil {
		return Host{}, err
	}
	sslPort, err := intAttr(attrs, sslPortAttr)
	if err != nil {
		return Host{}, err
	}

	var meta map[string]interface{}
	for name, value := range attrs {
		if name == addressAttr || name == portAttr || name == sslPortAttr {
			continue
		}
		if meta == nil {
			meta = make(map[string]interface{})
		}
		meta[name] = value
	}

	return Host{
		address: address,
		port:    port,
		sslPort: sslPort,
		attrs:   meta,
	}, nil
}

func intAttr(attrs map[string]interface{}, name string) (int, error) {
	raw, ok := attrs[name]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("host attribute %q is not an integer: %v", name, raw)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("host attribute %q is not an integer: %v", name, raw)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("host attribute %q is not an integer: %v", name, raw)
	}
}

// Address returns the host's address.
func (h Host) Address() string { return h.address }

// Port returns the plain port, zero if not configured.
func (h Host) Port() int { return h.port }

// SSLPort returns the secure port, zero if not configured.
func (h Host) SSLPort() int { return h.sslPort }

// Attr returns a metadata attribute carried through from the registry.
func (h Host) Attr(name string) (interface{}, bool) {
	v, ok := h.attrs[name]
	return v, ok
}

// Identifier returns the stable key for this host, used to track
// breaker state across descriptor churn. Descriptors for the same
// endpoint may gain or lose metadata between registry generations, so
// the key is derived from the address and connectable port only.
func (h Host) Identifier() string {
	port := h.sslPort
	if port == 0 {
		port = h.port
	}
	if port == 0 {
		return h.address
	}
	return h.address + ":" + strconv.Itoa(port)
}

// URL renders the connectable address for this host, preferring the
// secure port when it is present and non-zero.
func (h Host) URL() (string, error) {
	switch {
	case h.sslPort != 0:
		return fmt.Sprintf("https://%s:%d", h.address, h.sslPort), nil
	case h.port != 0:
		return fmt.Sprintf("http://%s:%d", h.address, h.port), nil
	default:
		return "", ErrNoPort(h.address)
	}
}

func (h Host) String() string {
	return h.Identifier()
}
