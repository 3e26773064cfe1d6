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
	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
)

// Dispatch executes req against reg and returns the Response to write
// back, or nil for a notification (no ID), which gets no reply at all.
func Dispatch(reg *registry.Registry, req Request) *Response {
	result, err := reg.Execute(req.Method, req.Params)
	if req.ID == nil {
		return nil
	}
	if err != nil {
		return &Response{ID: req.ID, Err: rpcerr.AsError(err)}
	}
	return &Response{ID: req.ID, Result: result}
}

// DecodeAndDispatch runs every already-decoded request in reqs (as
// returned by DecodeBatch) against reg and returns the responses to write
// back, in request order with notifications omitted. It does no parsing;
// InvalidRequestResponse builds the reply for a message that failed to
// decode.
func DecodeAndDispatch(reg *registry.Registry, reqs []Request) []Response {
	var out []Response
	for _, req := range reqs {
		if resp := Dispatch(reg, req); resp != nil {
			out = append(out, *resp)
		}
	}
	return out
}

// InvalidRequestResponse builds the {"id":null,"error":...} reply used
// when the top-level message couldn't even be parsed into a Request.
func InvalidRequestResponse(err error) Response {
	return Response{Err: rpcerr.AsError(err)}
}
