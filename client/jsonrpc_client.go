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
	"github.com/anyrpc-go/anyrpc/rpc/jsonrpc"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

const jsonContentType = "application/json-rpc"

// JSONClient is a JSON-RPC 2.0 client over HTTP or netstring framing.
type JSONClient struct {
	t     *transport
	ids   jsonrpc.IDGenerator
	queue []uint64 // outstanding Post ids, oldest first
}

// NewJSONClient wraps conn as a JSON-RPC client using the given framing.
func NewJSONClient(conn *netio.Conn, kind Kind) *JSONClient {
	return &JSONClient{t: newTransport(conn, kind)}
}

// Call sends method(params) and blocks for the matching response.
func (c *JSONClient) Call(ctx context.Context, method string, params value.Value) (value.Value, error) {
	req := jsonrpc.NewCallRequest(&c.ids, method, params)
	if err := c.sendRequest(ctx, req); err != nil {
		return value.Invalid(), err
	}
	return c.readResult(ctx)
}

// Notify sends method(params) without expecting or waiting for a reply.
func (c *JSONClient) Notify(ctx context.Context, method string, params value.Value) error {
	return c.sendRequest(ctx, jsonrpc.NewNotifyRequest(method, params))
}

// Post sends method(params), queues its id for later correlation, and
// returns without waiting for the response. Pair with GetPostResult.
func (c *JSONClient) Post(ctx context.Context, method string, params value.Value) (uint64, error) {
	req := jsonrpc.NewCallRequest(&c.ids, method, params)
	if err := c.sendRequest(ctx, req); err != nil {
		return 0, err
	}
	id, err := req.ID.Uint64()
	if err != nil {
		return 0, err
	}
	c.queue = append(c.queue, id)
	return id, nil
}

// GetPostResult blocks for the response to the oldest outstanding Post,
// preserving FIFO correlation the way pipelined requests on one
// connection are guaranteed to be answered in order.
func (c *JSONClient) GetPostResult(ctx context.Context) (uint64, value.Value, error) {
	if len(c.queue) == 0 {
		return 0, value.Invalid(), fmt.Errorf("client: no outstanding Post to correlate a response with")
	}
	id := c.queue[0]
	result, err := c.readResult(ctx)
	c.queue = c.queue[1:]
	return id, result, err
}

func (c *JSONClient) sendRequest(ctx context.Context, req jsonrpc.Request) error {
	out := stream.NewSegmented()
	if err := jsonrpc.EncodeRequest(out, req); err != nil {
		return err
	}
	return c.t.write(ctx, jsonContentType, out.Bytes())
}

func (c *JSONClient) readResult(ctx context.Context) (value.Value, error) {
	body, err := c.t.read(ctx)
	if err != nil {
		return value.Invalid(), err
	}
	resp, err := jsonrpc.DecodeResponse(stream.NewConstString(body))
	if err != nil {
		return value.Invalid(), err
	}
	if resp.Err != nil {
		return value.Invalid(), resp.Err
	}
	return resp.Result, nil
}
