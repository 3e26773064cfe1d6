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

package jsonrpc

import (
	"sync/atomic"

	"github.com/anyrpc-go/anyrpc/value"
)

// IDGenerator hands out process-wide monotonically increasing request
// ids, safe for concurrent use by however many client goroutines share
// one connection.
type IDGenerator struct {
	next atomic.Uint64
}

// Next returns the next id, starting at 1 (0 is reserved so a zero
// IDGenerator is never mistaken for "already issued an id").
func (g *IDGenerator) Next() uint64 { return g.next.Add(1) }

// NewCallRequest builds a Request carrying a fresh id from g, i.e. a
// call that expects a Response.
func NewCallRequest(g *IDGenerator, method string, params value.Value) Request {
	id := value.Uint(g.Next())
	return Request{Method: method, Params: params, ID: &id}
}

// NewNotifyRequest builds a Request with no id, i.e. a fire-and-forget
// notification the server must not reply to.
func NewNotifyRequest(method string, params value.Value) Request {
	return Request{Method: method, Params: params}
}
