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

// ServerTP runs a single poll loop that reads each connection up
// through ReadRequest, then hands it to a fixed pool of worker
// goroutines that run ExecuteRequest and attempt WriteResponse. If a
// worker can't fully drain the response (a slow client not reading fast
// enough), it leaves the connection for the poll loop to finish
// draining on a later writability event.
//
// Cross-goroutine wake-up is a buffered chan struct{} (capacity 1,
// non-blocking send) a worker signals when it hands a connection back.
// The poll loop drains it without blocking at the top of each cycle;
// the unix.Poll call that follows still waits up to pollBudget, so a
// signal does not cut a poll that is already waiting short. This takes
// the place of ptp4u/server's UDP-loopback self-wake trick.
type ServerTP struct {
	cfg      Config
	handlers handlerSet
	framing  connstate.Framing
	table    syncMapConn
	jobs     chan *managedConn
	wake     chan struct{}
}

// NewServerTP returns a worker-pool server with the given admission and
// pool-size config, dispatching matched request bodies to handlers over
// the given wire framing.
func NewServerTP(cfg Config, handlers handlerSet, framing connstate.Framing) *ServerTP {
	s := &ServerTP{
		cfg:      cfg,
		handlers: handlers,
		framing:  framing,
		jobs:     make(chan *managedConn, cfg.PoolSize*2),
		wake:     make(chan struct{}, 1),
	}
	s.table.init()
	return s
}

func (s *ServerTP) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run listens on addr, starts the worker pool, and runs the poll loop
// until the listener or the poll loop returns an error.
func (s *ServerTP) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return s.serveListener(ln)
}

// serveListener starts the worker pool and runs the poll loop over an
// already-bound listener, split out from Run so tests can supply a
// listener bound to an ephemeral port and read back its chosen address.
func (s *ServerTP) serveListener(ln net.Listener) error {
	lnFd, err := listenerFd(ln)
	if err != nil {
		return err
	}

	for i := 0; i < s.cfg.PoolSize; i++ {
		go s.worker(i)
	}

	for {
		select {
		case <-s.wake:
		default:
		}

		conns := s.table.list()
		fds := make([]unix.PollFd, 0, len(conns)+1)
		fds = append(fds, unix.PollFd{Fd: int32(lnFd), Events: unix.POLLIN})
		idx := make([]*managedConn, 0, len(conns))
		for _, mc := range conns {
			if mc.queued.Load() {
				continue
			}
			// A connection that finished ReadRequest but couldn't be
			// handed to a saturated worker pool last cycle doesn't
			// depend on any new socket event: retry the hand-off
			// directly instead of waiting on a poll event that may
			// never come.
			if mc.conn.State() == connstate.ExecuteRequest {
				s.dispatch(mc)
				continue
			}
			events := int16(unix.POLLIN)
			if mc.conn.State() == connstate.WriteResponse {
				events = unix.POLLOUT
			}
			fds = append(fds, unix.PollFd{Fd: int32(mc.nc.Fd()), Events: events})
			idx = append(idx, mc)
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
		for i, mc := range idx {
			if fds[i+1].Revents == 0 {
				continue
			}
			s.advance(mc)
		}
	}
}

func (s *ServerTP) acceptOne(ln net.Listener) {
	raw, err := ln.Accept()
	if err != nil {
		log.Errorf("rpcserver(tp): accept failed: %v", err)
		return
	}
	nc, err := netio.Wrap(raw)
	if err != nil {
		log.Errorf("rpcserver(tp): wrapping connection: %v", err)
		_ = raw.Close()
		return
	}
	if err := nc.SetNonBlocking(true); err != nil {
		_ = nc.Close()
		return
	}
	_ = nc.SetNoDelay(true)

	if err := admit(&s.table, s.cfg, nc.Fd()); err != nil {
		log.Warningf("rpcserver(tp): %v", err)
		_ = nc.Close()
		return
	}
	conn := connstate.NewConnection(nc, s.handlers, s.framing)
	s.table.store(nc.Fd(), &managedConn{conn: conn, nc: nc})
}

// advance is called from the poll loop goroutine only, for connections
// not currently owned by a worker and not already sitting at
// ExecuteRequest (those are dispatched directly in Run).
func (s *ServerTP) advance(mc *managedConn) {
	switch mc.conn.State() {
	case connstate.WriteResponse:
		state, err := mc.conn.Process(true)
		if err != nil || state == connstate.CloseConnection {
			s.cleanup(mc, err)
		}
	default:
		state, err := mc.conn.Process(false)
		if err != nil {
			s.cleanup(mc, err)
			return
		}
		if state == connstate.ExecuteRequest {
			s.dispatch(mc)
		}
	}
}

// dispatch hands mc to the worker pool, marking it queued so the poll
// loop leaves its fd alone until a worker returns it. If the pool's
// queue is saturated, mc is left unqueued for the poll loop to retry.
func (s *ServerTP) dispatch(mc *managedConn) {
	mc.queued.Store(true)
	select {
	case s.jobs <- mc:
	default:
		mc.queued.Store(false)
	}
}

func (s *ServerTP) worker(id int) {
	for mc := range s.jobs {
		state, err := mc.conn.Process(true)
		mc.queued.Store(false)
		if err != nil || state == connstate.CloseConnection {
			s.cleanup(mc, err)
		}
		s.notify()
	}
}

func (s *ServerTP) cleanup(mc *managedConn, err error) {
	if err != nil {
		log.Debugf("rpcserver(tp): closing connection fd %d: %v", mc.nc.Fd(), err)
	}
	s.table.delete(mc.nc.Fd())
	_ = mc.nc.Close()
}
