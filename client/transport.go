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

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/netio"
)

// Kind selects the wire framing a transport uses: HTTP (POST
// request/response, Content-Length delimited, a new logical message per
// exchange but able to share one keep-alive connection) or Netstring
// (raw netstring-framed messages over a persistent TCP connection, the
// framing connstate's server side also speaks).
type Kind int

const (
	HTTP Kind = iota
	Netstring
)

const requestPath = "/RPC2"

// transport drives one connection's request/response framing and
// buffering, shared by the jsonrpc/xmlrpc/msgpackrpc client wrappers so
// each only has to implement its own encode/decode and id correlation.
type transport struct {
	conn    *netio.Conn
	kind    Kind
	framer  connstate.Framer
	recvBuf []byte
}

func newTransport(conn *netio.Conn, kind Kind) *transport {
	return &transport{conn: conn, kind: kind}
}

// write sends one framed request. contentType is only meaningful for
// the HTTP transport, where it drives the server's content-type
// dispatch; Netstring framing carries no content-type of its own.
func (t *transport) write(ctx context.Context, contentType string, body []byte) error {
	var wire []byte
	switch t.kind {
	case HTTP:
		wire = composeRequest(contentType, body)
	default:
		wire = connstate.Encode(body)
	}
	result, err := t.conn.Send(wire, remaining(ctx))
	if err != nil {
		return err
	}
	if result.TimedOut {
		t.reset()
		return ErrTimedOut
	}
	return nil
}

// read blocks for one complete response, reading and buffering as many
// chunks as needed.
func (t *transport) read(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(remaining(ctx))
	for {
		body, ok, err := t.tryDecode()
		if err != nil {
			return nil, err
		}
		if ok {
			return body, nil
		}
		budget := time.Until(deadline)
		if budget <= 0 {
			t.reset()
			return nil, ErrTimedOut
		}
		chunk := make([]byte, 4096)
		result, err := t.conn.Receive(chunk, budget)
		if err != nil {
			return nil, err
		}
		if result.EOF {
			return nil, errors.New("client: connection closed while waiting for a response")
		}
		if result.N > 0 {
			t.recvBuf = append(t.recvBuf, chunk[:result.N]...)
		}
	}
}

func (t *transport) tryDecode() (body []byte, ok bool, err error) {
	if t.kind == Netstring {
		body, consumed, ok, err := t.framer.Decode(t.recvBuf)
		if err != nil || !ok {
			return nil, ok, err
		}
		t.recvBuf = append([]byte(nil), t.recvBuf[consumed:]...)
		return body, true, nil
	}
	body, n, ok, err := parseHTTPResponse(t.recvBuf)
	if err != nil || !ok {
		return nil, ok, err
	}
	t.recvBuf = append([]byte(nil), t.recvBuf[n:]...)
	return body, true, nil
}

// reset drops buffered partial state after a timeout, so the next call
// on this client doesn't try to parse a stale fragment against a new
// response.
func (t *transport) reset() {
	t.recvBuf = nil
	t.framer = connstate.Framer{}
}

func remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
		return 0
	}
	return DefaultTimeout
}

func composeRequest(contentType string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", requestPath)
	b.WriteString("Host: anyrpc\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: keep-alive\r\n\r\n")
	b.Write(body)
	return b.Bytes()
}

// parseHTTPResponse reports whether buf holds one complete HTTP
// response (status line, headers, Content-Length-delimited body) and,
// if so, returns the body and the number of bytes of buf it occupies.
func parseHTTPResponse(buf []byte) (body []byte, n int, ok bool, err error) {
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return nil, 0, false, nil
	}
	lines := strings.Split(string(buf[:idx]), "\r\n")
	if len(lines) == 0 {
		return nil, 0, false, errors.New("client: malformed HTTP response")
	}
	contentLength := -1
	for _, line := range lines[1:] {
		key, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "content-length") {
			cl, cerr := strconv.Atoi(strings.TrimSpace(val))
			if cerr != nil {
				return nil, 0, false, errors.New("client: malformed Content-Length")
			}
			contentLength = cl
		}
	}
	if contentLength < 0 {
		return nil, 0, false, errors.New("client: response missing Content-Length")
	}
	bodyStart := idx + 4
	bodyEnd := bodyStart + contentLength
	if len(buf) < bodyEnd {
		return nil, 0, false, nil
	}
	return buf[bodyStart:bodyEnd], bodyEnd, true, nil
}
