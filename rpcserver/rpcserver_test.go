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

package rpcserver

import (
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/netio"
)

// loopbackManagedConn returns a managedConn wrapping the server side of
// a real TCP loopback pair, plus the client-side raw net.Conn tests can
// write into to simulate inbound request bytes.
func loopbackManagedConn(t *testing.T) (*managedConn, net.Conn) {
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
	cliRaw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { cliRaw.Close() })
	srvRaw := <-ch
	t.Cleanup(func() { srvRaw.Close() })

	nc, err := netio.Wrap(srvRaw)
	require.NoError(t, err)
	require.NoError(t, nc.SetNonBlocking(true))

	conn := connstate.NewConnection(nc, nil, connstate.HTTPFraming)
	return &managedConn{conn: conn, nc: nc}, cliRaw
}

func TestAdmitUnderCapacityAllowsNewConnection(t *testing.T) {
	var table syncMapConn
	table.init()
	mc, _ := loopbackManagedConn(t)
	table.store(mc.nc.Fd(), mc)

	cfg := Config{MaxConnections: 2}
	require.NoError(t, admit(&table, cfg, 2))
	require.Equal(t, 1, table.len())
}

func TestAdmitEvictsOldestForceDisconnectable(t *testing.T) {
	var table syncMapConn
	table.init()

	older, _ := loopbackManagedConn(t)
	time.Sleep(5 * time.Millisecond)
	newer, _ := loopbackManagedConn(t)

	table.store(older.nc.Fd(), older)
	table.store(newer.nc.Fd(), newer)

	cfg := Config{MaxConnections: 2}
	require.NoError(t, admit(&table, cfg, 99))

	require.Equal(t, 1, table.len())
	_, stillThere := table.get(newer.nc.Fd())
	require.True(t, stillThere)
	_, evicted := table.get(older.nc.Fd())
	require.False(t, evicted)
}

func TestAdmitRefusesWhenNothingEvictable(t *testing.T) {
	var table syncMapConn
	table.init()

	mc, cliRaw := loopbackManagedConn(t)
	// Force the connection mid-request so it isn't force-disconnectable:
	// write the header but withhold the 3-byte body.
	_, err := cliRaw.Write([]byte("POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 3\r\n\r\n"))
	require.NoError(t, err)
	state, err := mc.conn.Process(false)
	require.NoError(t, err)
	require.Equal(t, connstate.ReadRequest, state)
	require.False(t, mc.conn.ForceDisconnectable())

	table.store(mc.nc.Fd(), mc)

	cfg := Config{MaxConnections: 1}
	require.ErrorIs(t, admit(&table, cfg, 42), ErrConnectionRefused)
	require.Equal(t, 1, table.len())
}

func echoHandlers(handled chan<- struct{}) handlerSet {
	return handlerSet{{
		Pattern: regexp.MustCompile(`text/plain`),
		Handle: func(body []byte) ([]byte, error) {
			select {
			case handled <- struct{}{}:
			default:
			}
			return append([]byte("echo:"), body...), nil
		},
	}}
}

func TestServerMTHandlesOneRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handled := make(chan struct{}, 1)
	srv := NewServerMT(DefaultConfig(), echoHandlers(handled), connstate.HTTPFraming)
	go func() { _ = srv.serveListener(ln) }()

	cli, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	req := "POST /rpc HTTP/1.1\r\nHost: localhost\r\nContent-Type: text/plain\r\nContent-Length: 3\r\n\r\nhey"
	_, err = cli.Write([]byte(req))
	require.NoError(t, err)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	_ = cli.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := cli.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "200 OK")
	require.Contains(t, string(buf[:n]), "echo:hey")
}

func TestServerSTHandlesOneRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handled := make(chan struct{}, 1)
	srv := NewServerST(DefaultConfig(), echoHandlers(handled), connstate.HTTPFraming)
	go func() { _ = srv.serveListener(ln) }()

	cli, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	req := "POST /rpc HTTP/1.1\r\nHost: localhost\r\nContent-Type: text/plain\r\nContent-Length: 3\r\n\r\nhey"
	_, err = cli.Write([]byte(req))
	require.NoError(t, err)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	_ = cli.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := cli.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "200 OK")
	require.Contains(t, string(buf[:n]), "echo:hey")
}

func TestServerTPHandlesOneRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handled := make(chan struct{}, 1)
	cfg := DefaultConfig()
	srv := NewServerTP(cfg, echoHandlers(handled), connstate.HTTPFraming)
	go func() { _ = srv.serveListener(ln) }()

	cli, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	req := "POST /rpc HTTP/1.1\r\nHost: localhost\r\nContent-Type: text/plain\r\nContent-Length: 3\r\n\r\nhey"
	_, err = cli.Write([]byte(req))
	require.NoError(t, err)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	_ = cli.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := cli.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "200 OK")
	require.Contains(t, string(buf[:n]), "echo:hey")
}

func netstringEchoHandlers(handled chan<- struct{}) handlerSet {
	return handlerSet{{
		Handle: func(body []byte) ([]byte, error) {
			select {
			case handled <- struct{}{}:
			default:
			}
			return append([]byte("echo:"), body...), nil
		},
	}}
}

func TestServerSTHandlesOneNetstringRequest(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handled := make(chan struct{}, 1)
	srv := NewServerST(DefaultConfig(), netstringEchoHandlers(handled), connstate.NetstringFraming)
	go func() { _ = srv.serveListener(ln) }()

	cli, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer cli.Close()

	_, err = cli.Write(connstate.Encode([]byte("hey")))
	require.NoError(t, err)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	_ = cli.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := cli.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "9:echo:hey,", string(buf[:n]))
}
