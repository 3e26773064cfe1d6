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
	"bytes"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/netio"
)

func loopback(t *testing.T) (*netio.Conn, *netio.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ch := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		ch <- c
	}()
	clientRaw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	serverRaw := <-ch

	client, err := netio.Wrap(clientRaw)
	require.NoError(t, err)
	require.NoError(t, client.SetNonBlocking(true))
	server, err := netio.Wrap(serverRaw)
	require.NoError(t, err)
	require.NoError(t, server.SetNonBlocking(true))
	return client, server
}

func TestConnectionHandlesJSONRequest(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	defer server.Close()

	handled := make(chan struct{}, 1)
	handlers := []ContentHandler{{
		Pattern: regexp.MustCompile(`application/json`),
		Handle: func(body []byte) ([]byte, error) {
			handled <- struct{}{}
			return append([]byte("echo:"), body...), nil
		},
	}}
	conn := NewConnection(server, handlers, HTTPFraming)

	go func() {
		req := "POST /rpc HTTP/1.1\r\nHost: localhost\r\nContent-Type: application/json\r\nContent-Length: 5\r\n\r\nhello"
		_, err := client.Send([]byte(req), time.Second)
		require.NoError(t, err)
	}()

	deadline := time.Now().Add(2 * time.Second)
loop:
	for time.Now().Before(deadline) {
		_, err := conn.Process(true)
		require.NoError(t, err)
		select {
		case <-handled:
			break loop
		default:
		}
	}

	buf := make([]byte, 4096)
	n := 0
	deadline = time.Now().Add(time.Second)
	for n == 0 && time.Now().Before(deadline) {
		result, err := client.Receive(buf, 50*time.Millisecond)
		require.NoError(t, err)
		n = result.N
	}
	require.Contains(t, string(buf[:n]), "200 OK")
	require.Contains(t, string(buf[:n]), "echo:hello")
}

func TestConnectionHandlesNetstringRequest(t *testing.T) {
	client, server := loopback(t)
	defer client.Close()
	defer server.Close()

	handled := make(chan struct{}, 1)
	handlers := []ContentHandler{{
		Handle: func(body []byte) ([]byte, error) {
			handled <- struct{}{}
			return append([]byte("echo:"), body...), nil
		},
	}}
	conn := NewConnection(server, handlers, NetstringFraming)

	go func() {
		_, err := client.Send(Encode([]byte("hello")), time.Second)
		require.NoError(t, err)
	}()

	deadline := time.Now().Add(2 * time.Second)
loopNetstring:
	for time.Now().Before(deadline) {
		_, err := conn.Process(true)
		require.NoError(t, err)
		select {
		case <-handled:
			break loopNetstring
		default:
		}
	}

	buf := make([]byte, 4096)
	n := 0
	deadline = time.Now().Add(time.Second)
	for n == 0 && time.Now().Before(deadline) {
		result, err := client.Receive(buf, 50*time.Millisecond)
		require.NoError(t, err)
		n = result.N
	}
	var f Framer
	body, _, ok, err := f.Decode(buf[:n])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "echo:hello", string(body))
}

func TestNetstringEncodeDecodeViaFramer(t *testing.T) {
	var f Framer
	msg := []byte(`{"jsonrpc":"2.0"}`)
	wire := Encode(msg)
	body, _, ok, err := f.Decode(wire)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, bytes.Equal(msg, body))
}
