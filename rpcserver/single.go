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
	"errors"
	"net"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/netio"
)

// ServerST runs every accepted connection through a single poll loop on
// one goroutine: a select-equivalent unix.Poll call over the listen
// socket's fd plus every connection's fd, processed in place. No
// connection-level locking is needed since only one goroutine ever
// touches connection state.
type ServerST struct {
	cfg      Config
	handlers handlerSet
	framing  connstate.Framing
	table    syncMapConn
}

// NewServerST returns a single-threaded server with the given admission
// config, dispatching matched request bodies to handlers over the given
// wire framing.
func NewServerST(cfg Config, handlers handlerSet, framing connstate.Framing) *ServerST {
	s := &ServerST{cfg: cfg, handlers: handlers, framing: framing}
	s.table.init()
	return s
}

// Run listens on addr and serves connections until the listener or the
// poll loop returns an error.
func (s *ServerST) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return s.serveListener(ln)
}

// serveListener runs the poll loop over an already-bound listener,
// split out from Run so tests can supply a listener bound to an
// ephemeral port and read back its chosen address.
func (s *ServerST) serveListener(ln net.Listener) error {
	lnFd, err := listenerFd(ln)
	if err != nil {
		return err
	}

	for {
		conns := s.table.list()
		fds := make([]unix.PollFd, 0, len(conns)+1)
		fds = append(fds, unix.PollFd{Fd: int32(lnFd), Events: unix.POLLIN})
		for _, mc := range conns {
			fds = append(fds, unix.PollFd{Fd: int32(mc.nc.Fd()), Events: unix.POLLIN | unix.POLLOUT})
		}

		n, err := unix.Poll(fds, int(pollBudget/time.Millisecond))
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents != 0 {
			s.acceptOne(ln)
		}
		for i, mc := range conns {
			if fds[i+1].Revents == 0 {
				continue
			}
			s.step(mc)
		}
	}
}

func (s *ServerST) acceptOne(ln net.Listener) {
	raw, err := ln.Accept()
	if err != nil {
		log.Errorf("rpcserver(st): accept failed: %v", err)
		return
	}
	nc, err := netio.Wrap(raw)
	if err != nil {
		log.Errorf("rpcserver(st): wrapping connection: %v", err)
		_ = raw.Close()
		return
	}
	if err := nc.SetNonBlocking(true); err != nil {
		_ = nc.Close()
		return
	}
	_ = nc.SetNoDelay(true)

	if err := admit(&s.table, s.cfg, nc.Fd()); err != nil {
		log.Warningf("rpcserver(st): %v", err)
		_ = nc.Close()
		return
	}
	conn := connstate.NewConnection(nc, s.handlers, s.framing)
	s.table.store(nc.Fd(), &managedConn{conn: conn, nc: nc})
}

func (s *ServerST) step(mc *managedConn) {
	state, err := mc.conn.Process(true)
	if err != nil || state == connstate.CloseConnection {
		if err != nil {
			log.Debugf("rpcserver(st): closing connection fd %d: %v", mc.nc.Fd(), err)
		}
		s.table.delete(mc.nc.Fd())
		_ = mc.nc.Close()
	}
}
