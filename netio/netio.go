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

// Package netio wraps net.Conn/net.Listener with the raw-fd socket
// option tuning and non-blocking send/receive contract the server and
// client packages need, grounded on timestamp.ConnFd's
// SyscallConn.Control idiom for reaching the underlying fd and on
// ptp4u/server's unix.SetsockoptInt option-tuning calls, generalized
// from PTP-specific options (timestamping, SO_BINDTODEVICE) to the
// general-purpose set a request/response RPC socket needs.
package netio

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Conn wraps a net.Conn together with its raw file descriptor, so the
// higher-level packages can drive non-blocking polling directly while
// still using net.Conn's Read/Write for the common case.
type Conn struct {
	net.Conn
	fd int
}

// Wrap extracts c's underlying file descriptor and returns a Conn ready
// for SetNonBlocking/SetKeepAlive/SetNoDelay tuning.
func Wrap(c net.Conn) (*Conn, error) {
	fd, err := rawFd(c)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: c, fd: fd}, nil
}

// Fd returns the underlying file descriptor, for use with Poll-based
// event loops in connstate/rpcserver.
func (c *Conn) Fd() int { return c.fd }

func rawFd(c net.Conn) (int, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return -1, errors.New("netio: connection does not expose a raw file descriptor")
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

// SetNonBlocking puts the underlying fd in non-blocking mode so
// WaitReadable/WaitWritable-gated loops never block the calling
// goroutine inside a syscall.
func (c *Conn) SetNonBlocking(nonBlocking bool) error {
	return unix.SetNonblock(c.fd, nonBlocking)
}

// SetReuseAddress sets SO_REUSEADDR, letting a restarted server rebind
// its listen address before the OS has released the previous socket.
func (c *Conn) SetReuseAddress(reuse bool) error {
	return unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(reuse))
}

// SetKeepAlive enables TCP keepalive and sets its probe interval.
func (c *Conn) SetKeepAlive(enable bool, interval time.Duration) error {
	if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(enable)); err != nil {
		return err
	}
	if !enable || interval <= 0 {
		return nil
	}
	return setKeepAliveInterval(c.fd, interval)
}

// SetNoDelay disables Nagle's algorithm, matching the low-latency
// request/response traffic pattern RPC calls have.
func (c *Conn) SetNoDelay(noDelay bool) error {
	return unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(noDelay))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SendResult reports the outcome of a budgeted Send call.
type SendResult struct {
	N        int
	TimedOut bool
}

// Send writes buf to the connection, looping internally on
// WaitWritable with the remaining part of budget until every byte is
// written, the budget is exhausted, or a write error occurs.
func (c *Conn) Send(buf []byte, budget time.Duration) (SendResult, error) {
	deadline := time.Now().Add(budget)
	written := 0
	for written < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return SendResult{N: written, TimedOut: true}, nil
		}
		ready, err := c.WaitWritable(remaining)
		if err != nil {
			return SendResult{N: written}, err
		}
		if !ready {
			return SendResult{N: written, TimedOut: true}, nil
		}
		n, err := c.Write(buf[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				continue
			}
			return SendResult{N: written}, err
		}
	}
	return SendResult{N: written}, nil
}

// ReceiveResult reports the outcome of a budgeted Receive call.
type ReceiveResult struct {
	N        int
	TimedOut bool
	EOF      bool
}

// Receive reads into buf, waiting up to budget for readability. A
// zero-byte read or ECONNRESET is reported as EOF rather than an error:
// both mean the peer is gone.
func (c *Conn) Receive(buf []byte, budget time.Duration) (ReceiveResult, error) {
	ready, err := c.WaitReadable(budget)
	if err != nil {
		return ReceiveResult{}, err
	}
	if !ready {
		return ReceiveResult{TimedOut: true}, nil
	}
	n, err := c.Read(buf)
	if err != nil {
		if errors.Is(err, syscall.ECONNRESET) {
			return ReceiveResult{EOF: true}, nil
		}
		if errors.Is(err, io.EOF) {
			return ReceiveResult{N: n, EOF: true}, nil
		}
		return ReceiveResult{N: n}, err
	}
	if n == 0 {
		return ReceiveResult{EOF: true}, nil
	}
	return ReceiveResult{N: n}, nil
}

// WaitReadable blocks up to budget for the connection to become
// readable, built on unix.Poll as the select-equivalent primitive.
func (c *Conn) WaitReadable(budget time.Duration) (bool, error) {
	return poll(c.fd, unix.POLLIN, budget)
}

// WaitWritable blocks up to budget for the connection to become
// writable.
func (c *Conn) WaitWritable(budget time.Duration) (bool, error) {
	return poll(c.fd, unix.POLLOUT, budget)
}

func poll(fd int, events int16, budget time.Duration) (bool, error) {
	ms := int(budget / time.Millisecond)
	if budget > 0 && ms == 0 {
		ms = 1
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return false, err
		}
		return n > 0, nil
	}
}

// IsConnected validates a prior non-blocking Connect by probing
// writability and checking SO_ERROR, the standard way to learn a
// non-blocking TCP connect's outcome.
func (c *Conn) IsConnected(budget time.Duration) (bool, error) {
	ready, err := c.WaitWritable(budget)
	if err != nil || !ready {
		return false, err
	}
	soErr, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, err
	}
	return soErr == 0, nil
}
