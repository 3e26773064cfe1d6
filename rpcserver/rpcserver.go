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

// Package rpcserver implements three concurrency strategies for driving
// connstate.Connection state machines over an accepted TCP socket:
// ServerST (single-threaded poll loop), ServerMT (goroutine per
// connection) and ServerTP (fixed worker pool). All three share
// admission control and a forced-disconnect eviction policy, grounded
// on ptp4u/server's worker/dispatch shape and its syncMapCli
// mutex-guarded connection table.
package rpcserver

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/netio"
)

// Config controls admission and worker-pool sizing shared by all three
// server strategies.
type Config struct {
	// MaxConnections caps the number of simultaneously accepted
	// connections. When exceeded, the server attempts to forcibly
	// disconnect the oldest idle connection before refusing the accept.
	MaxConnections int
	// PoolSize is the number of worker goroutines ServerTP runs. Unused
	// by ServerST and ServerMT.
	PoolSize int
}

// DefaultConfig returns the admission and pool-sizing defaults.
func DefaultConfig() Config {
	return Config{MaxConnections: 8, PoolSize: 4}
}

// ErrConnectionRefused is returned by the accept step when
// MaxConnections is reached and no existing connection qualifies for
// forced disconnect.
var ErrConnectionRefused = errors.New("rpcserver: connection refused, server at capacity")

// managedConn pairs a connstate.Connection with the bookkeeping the
// accept/eviction step and a poll-based loop need: its raw fd for
// unix.Poll, and (for ServerMT) a completion signal.
type managedConn struct {
	conn *connstate.Connection
	nc   *netio.Conn
	done chan struct{} // closed when this connection's run loop exits (ServerMT only)

	// queued is set while a ServerTP worker owns this connection, so the
	// poll loop skips its fd instead of racing the worker goroutine.
	queued atomic.Bool
}

// syncMapConn is a mutex-guarded connection table, grounded on
// ptp4u/server/subscription.go's syncMapCli: explicit Lock/Unlock pairs
// around map access and around the iteration eviction needs, keyed here
// on file descriptor rather than a PTP client identity.
type syncMapConn struct {
	sync.Mutex
	m map[int]*managedConn
}

func (s *syncMapConn) init() {
	s.m = make(map[int]*managedConn)
}

func (s *syncMapConn) store(fd int, c *managedConn) {
	s.Lock()
	defer s.Unlock()
	s.m[fd] = c
}

func (s *syncMapConn) delete(fd int) {
	s.Lock()
	defer s.Unlock()
	delete(s.m, fd)
}

func (s *syncMapConn) list() []*managedConn {
	s.Lock()
	defer s.Unlock()
	out := make([]*managedConn, 0, len(s.m))
	for _, c := range s.m {
		out = append(out, c)
	}
	return out
}

func (s *syncMapConn) len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.m)
}

func (s *syncMapConn) get(fd int) (*managedConn, bool) {
	s.Lock()
	defer s.Unlock()
	mc, ok := s.m[fd]
	return mc, ok
}

// oldestEvictable returns the connection with the oldest
// LastTransactionTime among those ForceDisconnectable reports safe to
// evict, or nil if none qualify.
func (s *syncMapConn) oldestEvictable() *managedConn {
	s.Lock()
	defer s.Unlock()
	var victim *managedConn
	for _, c := range s.m {
		if !c.conn.ForceDisconnectable() {
			continue
		}
		if victim == nil || c.conn.LastTransactionTime().Before(victim.conn.LastTransactionTime()) {
			victim = c
		}
	}
	return victim
}

// admit enforces MaxConnections before a newly accepted connection is
// added to the table: if the cap is already reached, it evicts the
// oldest force-disconnectable connection, or refuses the new one if
// none qualifies.
func admit(table *syncMapConn, cfg Config, newFd int) error {
	if table.len() < cfg.MaxConnections {
		return nil
	}
	victim := table.oldestEvictable()
	if victim == nil {
		return ErrConnectionRefused
	}
	log.Debugf("rpcserver: evicting connection fd %d to admit fd %d", victim.nc.Fd(), newFd)
	table.delete(victim.nc.Fd())
	_ = victim.nc.Close()
	return nil
}

// listenerFd reaches the raw file descriptor behind a net.Listener the
// same way netio.Wrap reaches it behind a net.Conn: *net.TCPListener
// satisfies syscall.Conn even though it isn't itself a net.Conn.
func listenerFd(ln net.Listener) (int, error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return -1, errors.New("rpcserver: listener does not expose a raw file descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	ctrlErr := raw.Control(func(p uintptr) { fd = int(p) })
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

func acceptLoop(ln net.Listener, newConn func(*netio.Conn)) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			return err
		}
		nc, err := netio.Wrap(raw)
		if err != nil {
			log.Errorf("rpcserver: wrapping accepted connection: %v", err)
			_ = raw.Close()
			continue
		}
		if err := nc.SetNonBlocking(true); err != nil {
			log.Errorf("rpcserver: setting non-blocking: %v", err)
			_ = nc.Close()
			continue
		}
		_ = nc.SetNoDelay(true)
		newConn(nc)
	}
}

// handlerSet is the content-type-dispatched handler list every strategy
// wires into each connstate.Connection it creates.
type handlerSet = []connstate.ContentHandler

// drainDone removes from table every managedConn whose done channel has
// already been closed, used by ServerMT's accept step to reap finished
// goroutines without blocking.
func drainDone(table *syncMapConn) {
	for _, mc := range table.list() {
		if mc.done == nil {
			continue
		}
		select {
		case <-mc.done:
			table.delete(mc.nc.Fd())
		default:
		}
	}
}

const pollBudget = 50 * time.Millisecond
