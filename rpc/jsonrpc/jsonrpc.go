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

// Package jsonrpc implements the JSON-RPC 2.0 request/response envelope
// on top of codec/json, grounded on protocol/management_client.go's
// send/read/decode/match correlation idiom (MgmtClient.Communicate),
// generalized here from a single fixed management packet to the
// method/params/id envelope shape.
package jsonrpc

import (
	"github.com/anyrpc-go/anyrpc/codec/json"
	"github.com/anyrpc-go/anyrpc/document"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

const version = "2.0"

// Request is one JSON-RPC call. ID is nil for a notification.
type Request struct {
	Method string
	Params value.Value
	ID     *value.Value
}

// Response is one JSON-RPC reply. Exactly one of Result/Err is set,
// mirroring the wire envelope's mutual exclusion of "result"/"error".
type Response struct {
	ID     *value.Value
	Result value.Value
	Err    *rpcerr.Error
}

// EncodeRequest writes req's wire form to w.
func EncodeRequest(w stream.Writer, req Request) error {
	m, err := requestValue(req)
	if err != nil {
		return err
	}
	return emit(w, m)
}

func requestValue(req Request) (value.Value, error) {
	m := value.Invalid()
	if _, err := setField(&m, "jsonrpc", value.String(version)); err != nil {
		return value.Invalid(), err
	}
	if _, err := setField(&m, "method", value.String(req.Method)); err != nil {
		return value.Invalid(), err
	}
	if req.Params.Kind() != value.KindInvalid {
		if _, err := setField(&m, "params", req.Params); err != nil {
			return value.Invalid(), err
		}
	}
	if req.ID != nil {
		if _, err := setField(&m, "id", *req.ID); err != nil {
			return value.Invalid(), err
		}
	}
	return m, nil
}

func setField(m *value.Value, key string, v value.Value) (*value.Value, error) {
	f, err := m.Field(key)
	if err != nil {
		return nil, err
	}
	*f = v
	return f, nil
}

// EncodeResponse writes resp's wire form to w: either {"result":...} or
// {"error":{"code":...,"message":...}}.
func EncodeResponse(w stream.Writer, resp Response) error {
	m, err := responseValue(resp)
	if err != nil {
		return err
	}
	return emit(w, m)
}

func responseValue(resp Response) (value.Value, error) {
	m := value.Invalid()
	if _, err := setField(&m, "jsonrpc", value.String(version)); err != nil {
		return value.Invalid(), err
	}
	if resp.Err != nil {
		errVal := value.Invalid()
		if _, err := setField(&errVal, "code", value.Int(int64(resp.Err.Code))); err != nil {
			return value.Invalid(), err
		}
		if _, err := setField(&errVal, "message", value.String(resp.Err.Message)); err != nil {
			return value.Invalid(), err
		}
		if _, err := setField(&m, "error", errVal); err != nil {
			return value.Invalid(), err
		}
	} else {
		if _, err := setField(&m, "result", resp.Result); err != nil {
			return value.Invalid(), err
		}
	}
	id := value.Null()
	if resp.ID != nil {
		id = *resp.ID
	}
	if _, err := setField(&m, "id", id); err != nil {
		return value.Invalid(), err
	}
	return m, nil
}

func emit(w stream.Writer, v value.Value) error {
	jw := json.NewWriter(w)
	if err := jw.StartDocument(); err != nil {
		return err
	}
	if err := value.Emit(v, jw); err != nil {
		return err
	}
	return jw.EndDocument()
}

// DecodeRequest parses a single JSON-RPC request object from r.
func DecodeRequest(r stream.Reader) (Request, error) {
	v, err := decodeValue(r)
	if err != nil {
		return Request{}, err
	}
	return requestFromValue(v)
}

func decodeValue(r stream.Reader) (value.Value, error) {
	doc := document.New(false)
	jr := json.NewReader(r)
	if err := jr.Decode(doc); err != nil {
		return value.Invalid(), rpcerr.AsError(err)
	}
	return doc.Result(), nil
}

func requestFromValue(v value.Value) (Request, error) {
	if v.Kind() != value.KindMap {
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "request must be a JSON object")
	}
	methodVal, ok := v.Get("method")
	if !ok {
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "request missing \"method\"")
	}
	method, err := methodVal.AsString()
	if err != nil {
		return Request{}, rpcerr.New(rpcerr.InvalidRequest, "\"method\" must be a string")
	}
	req := Request{Method: method}
	if params, ok := v.Get("params"); ok {
		req.Params = params
	}
	if id, ok := v.Get("id"); ok && !id.IsNull() {
		req.ID = &id
	}
	return req, nil
}

// DecodeResponse parses a single JSON-RPC response object from r, used
// by the client to read back what Dispatch produced.
func DecodeResponse(r stream.Reader) (Response, error) {
	v, err := decodeValue(r)
	if err != nil {
		return Response{}, err
	}
	return responseFromValue(v)
}

func responseFromValue(v value.Value) (Response, error) {
	if v.Kind() != value.KindMap {
		return Response{}, rpcerr.New(rpcerr.ParseError, "response must be a JSON object")
	}
	resp := Response{}
	if id, ok := v.Get("id"); ok && !id.IsNull() {
		resp.ID = &id
	}
	if errVal, ok := v.Get("error"); ok {
		code := rpcerr.InternalError
		if c, ok := errVal.Get("code"); ok {
			if n, cerr := c.Int64(); cerr == nil {
				code = rpcerr.Code(n)
			}
		}
		message := ""
		if m, ok := errVal.Get("message"); ok {
			message, _ = m.AsString()
		}
		resp.Err = rpcerr.New(code, message)
		return resp, nil
	}
	if result, ok := v.Get("result"); ok {
		resp.Result = result
	}
	return resp, nil
}

// DecodeBatch parses either a single request object or a batch array of
// request objects from r.
func DecodeBatch(r stream.Reader) ([]Request, bool, error) {
	v, err := decodeValue(r)
	if err != nil {
		return nil, false, err
	}
	if v.Kind() == value.KindArray {
		if v.Len() == 0 {
			return nil, true, rpcerr.New(rpcerr.InvalidRequest, "batch request must not be empty")
		}
		reqs := make([]Request, 0, v.Len())
		for _, elem := range v.Elements() {
			req, err := requestFromValue(elem)
			if err != nil {
				return nil, true, err
			}
			reqs = append(reqs, req)
		}
		return reqs, true, nil
	}
	req, err := requestFromValue(v)
	if err != nil {
		return nil, false, err
	}
	return []Request{req}, false, nil
}
