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

// Package client implements the per-transport RPC clients: connect,
// write a request (header and body), read a response (header and
// body), decode it, and correlate it back to the request that caused
// it. Grounded on protocol/management_client.go's MgmtClient.Communicate
// (send, read, decode, match), generalized from one fixed management
// packet type to three codecs (rpc/jsonrpc, rpc/xmlrpc, rpc/msgpackrpc)
// over two wire transports (HTTP, netstring).
package client

import (
	"errors"
	"net"
	"time"

	"github.com/anyrpc-go/anyrpc/netio"
)

// DefaultTimeout is the per-call budget applied when the caller's
// context carries no deadline, covering connect, header write, body
// write, header read and body read.
const DefaultTimeout = 60 * time.Second

// ErrTimedOut is returned when a call doesn't complete within its
// budget. The client resets its buffered transport state so the next
// call starts clean rather than reading a stale partial response.
var ErrTimedOut = errors.New("client: call exceeded its time budget")

// Dial connects to addr and wraps the socket for the non-blocking,
// budgeted send/receive contract the transports need.
func Dial(addr string) (*netio.Conn, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := netio.Wrap(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	if err := conn.SetNonBlocking(true); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetNoDelay(true)
	return conn, nil
}
