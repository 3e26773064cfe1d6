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
	"github.com/anyrpc-go/anyrpc/rpc/msgpackrpc"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

const msgpackContentType = "application/messagepack-rpc"

// MsgpackClient is a MessagePack-RPC client over HTTP or netstring
// framing.
type MsgpackClient struct {
	t     *transport
	ids   msgpackrpc.IDGenerator
	queue []uint64
}

// NewMsgpackClient wraps conn as a MessagePack-RPC client using the
// given framing.
func NewMsgpackClient(conn *netio.Conn, kind Kind) *MsgpackClient {
	return &MsgpackClient{t: newTransport(conn, kind)}
}

// Call sends method(params) and blocks for the matching response.
func (c *MsgpackClient) Call(ctx context.Context, method string, params value.Value) (value.Value, error) {
	req := msgpackrpc.NewCallRequest(&c.ids, method, params)
	if err := c.sendRequest(ctx, req); err != nil {
		return value.Invalid(), err
	}
	return c.readResult(ctx)
}

// Notify sends method(params) without expecting or waiting for a reply.
func (c *MsgpackClient) Notify(ctx context.Context, method string, params value.Value) error {
	return c.sendRequest(ctx, msgpackrpc.NewNotifyRequest(method, params))
}

// Post sends method(params), queues its id for later correlation, and
// returns without waiting for the response. Pair with GetPostResult.
func (c *MsgpackClient) Post(ctx context.Context, method string, params value.Value) (uint64, error) {
	req := msgpackrpc.NewCallRequest(&c.ids, method, params)
	if err := c.sendRequest(ctx, req); err != nil {
		return 0, err
	}
	c.queue = append(c.queue, req.ID)
	return req.ID, nil
}

// GetPostResult blocks for the response to the oldest outstanding Post.
func (c *MsgpackClient) GetPostResult(ctx context.Context) (uint64, value.Value, error) {
	if len(c.queue) == 0 {
		return 0, value.Invalid(), fmt.Errorf("client: no outstanding Post to correlate a response with")
	}
	id := c.queue[0]
	result, err := c.readResult(ctx)
	c.queue = c.queue[1:]
	return id, result, err
}

func (c *MsgpackClient) sendRequest(ctx context.Context, req msgpackrpc.Request) error {
	out := stream.NewSegmented()
	if err := msgpackrpc.EncodeRequest(out, req); err != nil {
		return err
	}
	return c.t.write(ctx, msgpackContentType, out.Bytes())
}

func (c *MsgpackClient) readResult(ctx context.Context) (value.Value, error) {
	body, err := c.t.read(ctx)
	if err != nil {
		return value.Invalid(), err
	}
	resp, err := msgpackrpc.DecodeResponse(stream.NewConstString(body))
	if err != nil {
		return value.Invalid(), err
	}
	if resp.Err != nil {
		return value.Invalid(), resp.Err
	}
	return resp.Result, nil
}
