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

package host

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAttrs(t *testing.T) {
	tests := []struct {
		msg         string
		attrs       map[string]interface{}
		wantAddress string
		wantPort    int
		wantSSLPort int
		wantErr     bool
	}{
		{
			msg:         "plain port",
			attrs:       map[string]interface{}{"address": "10.0.0.1", "port": 8080},
			wantAddress: "10.0.0.1",
			wantPort:    8080,
		},
		{
			msg:         "both ports as json floats",
			attrs:       map[string]interface{}{"address": "10.0.0.1", "port": float64(8080), "sslPort": float64(8443)},
			wantAddress: "10.0.0.1",
			wantPort:    8080,
			wantSSLPort: 8443,
		},
		{
			msg:         "string port",
			attrs:       map[string]interface{}{"address": "10.0.0.1", "port": "8080"},
			wantAddress: "10.0.0.1",
			wantPort:    8080,
		},
		{
			msg:         "json number port",
			attrs:       map[string]interface{}{"address": "10.0.0.1", "port": json.Number("8080")},
			wantAddress: "10.0.0.1",
			wantPort:    8080,
		},
		{
			msg:         "no ports at all",
			attrs:       map[string]interface{}{"address": "10.0.0.1"},
			wantAddress: "10.0.0.1",
		},
		{
			msg:     "missing address",
			attrs:   map[string]interface{}{"port": 8080},
			wantErr: true,
		},
		{
			msg:     "empty address",
			attrs:   map[string]interface{}{"address": "", "port": 8080},
			wantErr: true,
		},
		{
			msg:     "unparseable port",
			attrs:   map[string]interface{}{"address": "10.0.0.1", "port": "eighty"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			h, err := FromAttrs(tt.attrs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddress, h.Address())
			assert.Equal(t, tt.wantPort, h.Port())
			assert.Equal(t, tt.wantSSLPort, h.SSLPort())
		})
	}
}

func TestFromAttrsKeepsMetadata(t *testing.T) {
	h, err := FromAttrs(map[string]interface{}{
		"address": "10.0.0.1",
		"port":    8080,
		"rack":    "us-east-1b",
	})
	require.NoError(t, err)

	rack, ok := h.Attr("rack")
	require.True(t, ok)
	assert.Equal(t, "us-east-1b", rack)

	_, ok = h.Attr("port")
	assert.False(t, ok, "recognized attributes should not leak into metadata")
}

func TestURL(t *testing.T) {
	tests := []struct {
		msg     string
		host    Host
		want    string
		wantErr bool
	}{
		{
			msg:  "prefers secure port",
			host: New("10.0.0.1", 8080, 8443),
			want: "https://10.0.0.1:8443",
		},
		{
			msg:  "plain port when no secure port",
			host: New("10.0.0.1", 8080, 0),
			want: "http://10.0.0.1:8080",
		},
		{
			msg:  "secure only",
			host: New("10.0.0.1", 0, 8443),
			want: "https://10.0.0.1:8443",
		},
		{
			msg:     "no ports",
			host:    New("10.0.0.1", 0, 0),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			url, err := tt.host.URL()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoPort("10.0.0.1"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, url)
		})
	}
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "10.0.0.1:8443", New("10.0.0.1", 8080, 8443).Identifier())
	assert.Equal(t, "10.0.0.1:8080", New("10.0.0.1", 8080, 0).Identifier())
	assert.Equal(t, "10.0.0.1", New("10.0.0.1", 0, 0).Identifier())
}

func TestIdentifierStableAcrossMetadataChurn(t *testing.T) {
	first, err := FromAttrs(map[string]interface{}{"address": "10.0.0.1", "port": 8080})
	require.NoError(t, err)
	second, err := FromAttrs(map[string]interface{}{"address": "10.0.0.1", "port": 8080, "weight": 3})
	require.NoError(t, err)
	assert.Equal(t, first.Identifier(), second.Identifier())
}
