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
	"context"
	"fmt"

	"github.com/anyrpc-go/anyrpc/netio"
	"github.com/anyrpc-go/anyrpc/rpc/xmlrpc"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

const xmlContentType = "text/xml"

// XMLClient is an XML-RPC client over HTTP or netstring framing. XML-RPC
// carries no id on the wire, so Post/GetPostResult correlate purely by
// FIFO order: a connection must answer pipelined calls in the order it
// received them.
type XMLClient struct {
	t       *transport
	nextTag uint64 // opaque Post tokens, assigned in send order
	queue   []uint64
}

// NewXMLClient wraps conn as an XML-RPC client using the given framing.
func NewXMLClient(conn *netio.Conn, kind Kind) *XMLClient {
	return &XMLClient{t: newTransport(conn, kind)}
}

// Call sends method(params) and blocks for the matching response.
func (c *XMLClient) Call(ctx context.Context, method string, params value.Value) (value.Value, error) {
	if err := c.sendRequest(ctx, xmlrpc.Request{Method: method, Params: params}); err != nil {
		return value.Invalid(), err
	}
	return c.readResult(ctx)
}

// Post sends method(params), queues an opaque token for later
// correlation, and returns without waiting for the response. Pair with
// GetPostResult. Every XML-RPC call expects a reply on the wire, so
// unlike JSON-RPC there is no fire-and-forget Notify: the reply still
// has to be read and discarded eventually to keep the connection in
// sync, which is exactly what GetPostResult is for.
func (c *XMLClient) Post(ctx context.Context, method string, params value.Value) (uint64, error) {
	if err := c.sendRequest(ctx, xmlrpc.Request{Method: method, Params: params}); err != nil {
		return 0, err
	}
	c.nextTag++
	tag := c.nextTag
	c.queue = append(c.queue, tag)
	return tag, nil
}

// GetPostResult blocks for the response to the oldest outstanding Post.
func (c *XMLClient) GetPostResult(ctx context.Context) (uint64, value.Value, error) {
	if len(c.queue) == 0 {
		return 0, value.Invalid(), fmt.Errorf("client: no outstanding Post to correlate a response with")
	}
	tag := c.queue[0]
	result, err := c.readResult(ctx)
	c.queue = c.queue[1:]
	return tag, result, err
}

func (c *XMLClient) sendRequest(ctx context.Context, req xmlrpc.Request) error {
	out := stream.NewSegmented()
	if err := xmlrpc.EncodeRequest(out, req); err != nil {
		return err
	}
	return c.t.write(ctx, xmlContentType, out.Bytes())
}

func (c *XMLClient) readResult(ctx context.Context) (value.Value, error) {
	body, err := c.t.read(ctx)
	if err != nil {
		return value.Invalid(), err
	}
	resp, err := xmlrpc.DecodeResponse(stream.NewConstString(body))
	if err != nil {
		return value.Invalid(), err
	}
	if resp.Fault != nil {
		return value.Invalid(), resp.Fault
	}
	return resp.Result, nil
}
