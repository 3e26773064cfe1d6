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

package main

import (
	"context"
	"fmt"

	"github.com/anyrpc-go/anyrpc/client"
	"github.com/anyrpc-go/anyrpc/value"
)

// rpcClient is the subset of JSONClient/XMLClient/MsgpackClient every
// command needs. Notify is deliberately excluded: XML-RPC expects a
// reply to every call and has no Notify method, so callers that need it
// type-assert for a notifier instead.
type rpcClient interface {
	Call(ctx context.Context, method string, params value.Value) (value.Value, error)
	Post(ctx context.Context, method string, params value.Value) (uint64, error)
	GetPostResult(ctx context.Context) (uint64, value.Value, error)
}

type notifier interface {
	Notify(ctx context.Context, method string, params value.Value) error
}

// dialClient connects to addr and wraps it as the named codec over the
// named transport.
func dialClient(addr, codec, transport string) (rpcClient, error) {
	conn, err := client.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	kind, err := parseTransport(transport)
	if err != nil {
		return nil, err
	}
	switch codec {
	case "json":
		return client.NewJSONClient(conn, kind), nil
	case "xml":
		return client.NewXMLClient(conn, kind), nil
	case "msgpack":
		return client.NewMsgpackClient(conn, kind), nil
	default:
		return nil, fmt.Errorf("anyrpc-client: unknown codec %q", codec)
	}
}

func parseTransport(transport string) (client.Kind, error) {
	switch transport {
	case "http":
		return client.HTTP, nil
	case "netstring":
		return client.Netstring, nil
	default:
		return 0, fmt.Errorf("anyrpc-client: unknown transport %q", transport)
	}
}
