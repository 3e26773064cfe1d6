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

// Package msgpackrpc implements the MessagePack-RPC [type, ...] array
// envelope on top of codec/msgpack, grounded on
// protocol/management_client.go's send/read/decode/match correlation
// idiom (MgmtClient.Communicate), generalized from a single fixed
// management packet to the three MessagePack-RPC
// message types.
//
// DecodeRequest is permissive about one malformed shape: a three-element
// envelope tagged 1 (the response type) is dispatched as a notification,
// exactly like [2, method, params].
package msgpackrpc

import (
	"sync/atomic"

	"github.com/anyrpc-go/anyrpc/codec/msgpack"
	"github.com/anyrpc-go/anyrpc/document"
	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

// Message types tagging the leading array element of every envelope.
const (
	TypeRequest      = 0
	TypeResponse     = 1
	TypeNotification = 2
)

// Request is one MessagePack-RPC call ([0, id, method, params]) or
// notification ([2, method, params], IsNotification true).
type Request struct {
	ID             uint64
	Method         string
	Params         value.Value
	IsNotification bool
}

// Response is one MessagePack-RPC reply ([1, id, error_or_nil, result_or_nil]).
type Response struct {
	ID     uint64
	Result value.Value
	Err    *rpcerr.Error
}

// IDGenerator hands out process-wide monotonically increasing request
// ids, mirroring rpc/jsonrpc's generator.
type IDGenerator struct {
	next atomic.Uint64
}

// Next returns the next id, starting at 1.
func (g *IDGenerator) Next() uint64 { return g.next.Add(1) }

func emit(w stream.Writer, v value.Value) error {
	mw := msgpack.NewWriter(w)
	if err := mw.StartDocument(); err != nil {
		return err
	}
	if err := value.Emit(v, mw); err != nil {
		return err
	}
	return mw.EndDocument()
}

func decode(r stream.Reader) (value.Value, error) {
	doc := document.New(false)
	mr := msgpack.NewReader(r)
	if err := mr.Decode(doc); err != nil {
		return value.Invalid(), rpcerr.AsError(err)
	}
	return doc.Result(), nil
}

// EncodeRequest writes req's [0, id, method, params] or
// [2, method, params] wire form to w.
func EncodeRequest(w stream.Writer, req Request) error {
	var envelope value.Value
	if req.IsNotification {
		envelope = value.Array(value.Int(TypeNotification), value.String(req.Method), req.Params)
	} else {
		envelope = value.Array(value.Int(TypeRequest), value.Uint(req.ID), value.String(req.Method), req.Params)
	}
	return emit(w, envelope)
}

// NewCallRequest builds a Request carrying a fresh id from g.
func NewCallRequest(g *IDGenerator, method string, params value.Value) Request {
	return Request{ID: g.Next(), Method: method, Params: params}
}

// NewNotifyRequest builds a notification Request, which expects no reply.
func NewNotifyRequest(method string, params value.Value) Request {
	return Request{Method: method, Params: params, IsNotification: true}
}

// EncodeResponse writes resp's [1, id, error_or_nil, result_or_nil] wire
// form to w. The error slot, when present, is a map with "code" and
// "message" keys.
func EncodeResponse(w stream.Writer, resp Response) error {
	errVal := value.Null()
	result := resp.Result
	if resp.Err != nil {
		errVal = value.Map(
			value.Member{Key: "code", Value: value.Int(int64(resp.Err.Code))},
			value.Member{Key: "message", Value: value.String(resp.Err.Message)},
		)
		result = value.Null()
	}
	envelope := value.Array(value.Int(TypeResponse), value.Uint(resp.ID), errVal, result)
	return emit(w, envelope)
}

// DecodeRequest parses a single request-or-notification envelope from r.
func DecodeRequest(r stream.Reader) (Request, error) {
	v, err := decode(r)
	if err != nil {
		return Request{}, err
	}
	return requestFromValue(v)
}

func requestFromValue(v value.Value) (Request, error) {
	if v.Kind() != value.KindArray || v.Len() < 3 {
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "malformed messagepack-rpc envelope")
	}
	typeVal, err := v.Elem(0)
	if err != nil {
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "malformed messagepack-rpc envelope")
	}
	msgType, err := typeVal.Int64()
	if err != nil {
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "messagepack-rpc type must be an integer")
	}

	switch msgType {
	case TypeRequest:
		if v.Len() != 4 {
			return Request{}, rpcerr.New(rpcerr.InvalidRequest, "request envelope must have 4 elements")
		}
		idVal, _ := v.Elem(1)
		id, err := idVal.Uint64()
		if err != nil {
			return Request{}, rpcerr.New(rpcerr.InvalidRequest, "request id must be an unsigned integer")
		}
		methodVal, _ := v.Elem(2)
		method, err := methodVal.AsString()
		if err != nil {
			return Request{}, rpcerr.New(rpcerr.InvalidRequest, "request method must be a string")
		}
		params, _ := v.Elem(3)
		return Request{ID: id, Method: method, Params: params}, nil
	case TypeNotification, TypeResponse:
		if v.Len() != 3 {
			return Request{}, rpcerr.New(rpcerr.InvalidRequest, "notification envelope must have 3 elements")
		}
		methodVal, _ := v.Elem(1)
		method, err := methodVal.AsString()
		if err != nil {
			return Request{}, rpcerr.New(rpcerr.InvalidRequest, "notification method must be a string")
		}
		params, _ := v.Elem(2)
		return Request{Method: method, Params: params, IsNotification: true}, nil
	default:
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "unexpected messagepack-rpc message type")
	}
}

// DecodeResponse parses a [1, id, error, result] envelope from r.
// Malformed error shapes are rewritten to ErrInvalidResponse per the
// spec, since a client can't safely guess what a server meant.
func DecodeResponse(r stream.Reader) (Response, error) {
	v, err := decode(r)
	if err != nil {
		return Response{}, err
	}
	if v.Kind() != value.KindArray || v.Len() != 4 {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "malformed messagepack-rpc response envelope")
	}
	typeVal, _ := v.Elem(0)
	msgType, err := typeVal.Int64()
	if err != nil || msgType != TypeResponse {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "expected a messagepack-rpc response envelope")
	}
	idVal, _ := v.Elem(1)
	id, err := idVal.Uint64()
	if err != nil {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "response id must be an unsigned integer")
	}
	errVal, _ := v.Elem(2)
	resultVal, _ := v.Elem(3)

	if errVal.IsNull() {
		return Response{ID: id, Result: resultVal}, nil
	}
	if errVal.Kind() != value.KindMap {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "response error must be a map or nil")
	}
	codeVal, hasCode := errVal.Get("code")
	msgVal, hasMsg := errVal.Get("message")
	if !hasCode || !hasMsg {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "response error map must carry code and message")
	}
	code, err := codeVal.Int64()
	if err != nil {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "response error code must be an integer")
	}
	msg, err := msgVal.AsString()
	if err != nil {
		return Response{}, rpcerr.New(rpcerr.InvalidResponse, "response error message must be a string")
	}
	return Response{ID: id, Err: rpcerr.New(rpcerr.Code(code), msg)}, nil
}

// Dispatch executes req against reg and returns the Response to write
// back, or nil for a notification.
func Dispatch(reg *registry.Registry, req Request) *Response {
	result, err := reg.Execute(req.Method, req.Params)
	if req.IsNotification {
		return nil
	}
	if err != nil {
		return &Response{ID: req.ID, Err: rpcerr.AsError(err)}
	}
	return &Response{ID: req.ID, Result: result}
}
