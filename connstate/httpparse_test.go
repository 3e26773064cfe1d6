/*
Copyright (c) The anyrpc Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package connstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestBasicPost(t *testing.T) {
	block := "POST /rpc HTTP/1.1\r\nHost: example.com\r\nContent-Type: application/json\r\nContent-Length: 13\r\n"
	req, err := parseRequest([]byte(block))
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
	require.Equal(t, "/rpc", req.URI)
	require.Equal(t, "application/json", req.ContentType)
	require.True(t, req.KeepAlive)
}

func TestParseRequestAcceptsLFOnly(t *testing.T) {
	block := "POST /rpc HTTP/1.1\nHost: example.com\nContent-Length: 0\n"
	req, err := parseRequest([]byte(block))
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
}

func TestParseRequestHTTP11RequiresHost(t *testing.T) {
	block := "GET /rpc HTTP/1.1\r\n"
	_, err := parseRequest([]byte(block))
	require.ErrorIs(t, err, ErrMissingHost)
}

func TestParseRequestPostRequiresContentLength(t *testing.T) {
	block := "POST /rpc HTTP/1.1\r\nHost: example.com\r\n"
	_, err := parseRequest([]byte(block))
	require.ErrorIs(t, err, ErrMissingContentLength)
}

func TestParseRequestHTTP10DefaultsToClose(t *testing.T) {
	block := "GET / HTTP/1.0\r\n"
	req, err := parseRequest([]byte(block))
	require.NoError(t, err)
	require.False(t, req.KeepAlive)
}

func TestParseRequestConnectionHeaderOverrides(t *testing.T) {
	block := "GET / HTTP/1.0\r\nConnection: keep-alive\r\n"
	req, err := parseRequest([]byte(block))
	require.NoError(t, err)
	require.True(t, req.KeepAlive)

	block = "GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n"
	req, err = parseRequest([]byte(block))
	require.NoError(t, err)
	require.False(t, req.KeepAlive)
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	block := "GET / HTTP/1.1\r\nHost: h\r\nX-Custom: value\r\n"
	req, err := parseRequest([]byte(block))
	require.NoError(t, err)
	v, ok := req.Header("x-CUSTOM")
	require.True(t, ok)
	require.Equal(t, "value", v)
}
