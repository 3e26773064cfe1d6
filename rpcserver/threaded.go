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

	log "github.com/sirupsen/logrus"

	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/netio"
)

// ServerMT runs a blocking accept loop on the listen socket; every accepted
// connection gets its own goroutine running its own Process loop
// (Go's realization of "thread-per-connection"). Finished goroutines
// are reaped from the connection table during the next accept step via
// each connection's done channel.
type ServerMT struct {
	cfg      Config
	handlers handlerSet
	framing  connstate.Framing
	table    syncMapConn
}

// NewServerMT returns a goroutine-per-connection server with the given
// admission config, dispatching matched request bodies to handlers over
// the given wire framing.
func NewServerMT(cfg Config, handlers handlerSet, framing connstate.Framing) *ServerMT {
	s := &ServerMT{cfg: cfg, handlers: handlers, framing: framing}
	s.table.init()
	return s
}

// Run listens on addr and serves connections until the listener
// returns an error.
func (s *ServerMT) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return s.serveListener(ln)
}

// serveListener runs the accept loop over an already-bound listener,
// split out from Run so tests can supply a listener bound to an
// ephemeral port and read back its chosen address.
func (s *ServerMT) serveListener(ln net.Listener) error {
	return acceptLoop(ln, func(nc *netio.Conn) {
		drainDone(&s.table)
		if err := admit(&s.table, s.cfg, nc.Fd()); err != nil {
			log.Warningf("rpcserver(mt): %v", err)
			_ = nc.Close()
			return
		}
		conn := connstate.NewConnection(nc, s.handlers, s.framing)
		done := make(chan struct{})
		mc := &managedConn{conn: conn, nc: nc, done: done}
		s.table.store(nc.Fd(), mc)
		go s.serve(mc)
	})
}

func (s *ServerMT) serve(mc *managedConn) {
	defer close(mc.done)
	defer func() { _ = mc.nc.Close() }()
	for {
		state, err := mc.conn.Process(true)
		if err != nil {
			log.Debugf("rpcserver(mt): closing connection fd %d: %v", mc.nc.Fd(), err)
			return
		}
		if state == connstate.CloseConnection {
			return
		}
	}
}
