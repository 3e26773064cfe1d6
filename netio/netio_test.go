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

package netio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func loopbackPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		serverCh <- c
	}()

	clientRaw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	serverRaw := <-serverCh

	client, err := Wrap(clientRaw)
	require.NoError(t, err)
	server, err := Wrap(serverRaw)
	require.NoError(t, err)
	return client, server
}

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := loopbackPair(t)
	defer client.Close()
	defer server.Close()

	require.NoError(t, client.SetNonBlocking(true))
	require.NoError(t, server.SetNonBlocking(true))

	result, err := client.Send([]byte("hello"), time.Second)
	require.NoError(t, err)
	require.False(t, result.TimedOut)
	require.Equal(t, 5, result.N)

	buf := make([]byte, 16)
	recv, err := server.Receive(buf, time.Second)
	require.NoError(t, err)
	require.False(t, recv.EOF)
	require.Equal(t, "hello", string(buf[:recv.N]))
}

func TestReceiveTimesOutWithNoData(t *testing.T) {
	_, server := loopbackPair(t)
	defer server.Close()
	require.NoError(t, server.SetNonBlocking(true))

	buf := make([]byte, 16)
	recv, err := server.Receive(buf, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, recv.TimedOut)
}

func TestReceiveEOFOnClose(t *testing.T) {
	client, server := loopbackPair(t)
	defer server.Close()
	require.NoError(t, server.SetNonBlocking(true))
	client.Close()

	buf := make([]byte, 16)
	recv, err := server.Receive(buf, time.Second)
	require.NoError(t, err)
	require.True(t, recv.EOF)
}

func TestSocketOptionsDoNotError(t *testing.T) {
	client, server := loopbackPair(t)
	defer client.Close()
	defer server.Close()

	require.NoError(t, client.SetReuseAddress(true))
	require.NoError(t, client.SetNoDelay(true))
	require.NoError(t, client.SetKeepAlive(true, time.Second))
}
