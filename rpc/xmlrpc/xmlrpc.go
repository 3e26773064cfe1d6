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

// Package xmlrpc implements the methodCall/methodResponse/fault envelope
// around codec/xmlrpc's value reader and writer, grounded on
// protocol/management_client.go's send/read/decode/match correlation
// idiom (MgmtClient.Communicate), generalized from a single fixed
// management packet to the XML-RPC envelope shape.
package xmlrpc

import (
	"github.com/anyrpc-go/anyrpc/codec/xmlrpc"
	"github.com/anyrpc-go/anyrpc/document"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

// Request is one XML-RPC call. XML-RPC carries no id on the wire;
// correlation for a pipelined client connection is purely FIFO.
type Request struct {
	Method string
	Params value.Value // Array, or Invalid for no parameters
}

// Response is one XML-RPC reply: either a successful Result or a Fault.
type Response struct {
	Result value.Value
	Fault  *rpcerr.Error
}

// EncodeRequest writes req as a <methodCall> envelope to w.
func EncodeRequest(w stream.Writer, req Request) error {
	if err := w.PutSlice([]byte("<?xml version=\"1.0\"?><methodCall><methodName>")); err != nil {
		return err
	}
	if err := w.PutSlice([]byte(req.Method)); err != nil {
		return err
	}
	if err := w.PutSlice([]byte("</methodName>")); err != nil {
		return err
	}
	if req.Params.Kind() == value.KindArray && req.Params.Len() > 0 {
		if err := w.PutSlice([]byte("<params>")); err != nil {
			return err
		}
		for _, elem := range req.Params.Elements() {
			if err := w.PutSlice([]byte("<param>")); err != nil {
				return err
			}
			if err := emitValue(w, elem); err != nil {
				return err
			}
			if err := w.PutSlice([]byte("</param>")); err != nil {
				return err
			}
		}
		if err := w.PutSlice([]byte("</params>")); err != nil {
			return err
		}
	}
	if err := w.PutSlice([]byte("</methodCall>")); err != nil {
		return err
	}
	return w.Flush()
}

// EncodeResponse writes resp as either a <params> result envelope or a
// <fault> envelope.
func EncodeResponse(w stream.Writer, resp Response) error {
	if err := w.PutSlice([]byte("<?xml version=\"1.0\"?><methodResponse>")); err != nil {
		return err
	}
	if resp.Fault != nil {
		if err := w.PutSlice([]byte("<fault>")); err != nil {
			return err
		}
		faultVal := value.Invalid()
		f, err := faultVal.Field("faultCode")
		if err != nil {
			return err
		}
		*f = value.Int(int64(resp.Fault.Code))
		f, err = faultVal.Field("faultString")
		if err != nil {
			return err
		}
		*f = value.String(resp.Fault.Message)
		if err := emitValue(w, faultVal); err != nil {
			return err
		}
		if err := w.PutSlice([]byte("</fault>")); err != nil {
			return err
		}
	} else {
		result := resp.Result
		// Empty result is normalized to empty string for wire
		// compatibility, matching the original's convention.
		if result.Kind() == value.KindInvalid {
			result = value.String("")
		}
		if err := w.PutSlice([]byte("<params><param>")); err != nil {
			return err
		}
		if err := emitValue(w, result); err != nil {
			return err
		}
		if err := w.PutSlice([]byte("</param></params>")); err != nil {
			return err
		}
	}
	if err := w.PutSlice([]byte("</methodResponse>")); err != nil {
		return err
	}
	return w.Flush()
}

func emitValue(w stream.Writer, v value.Value) error {
	vw := xmlrpc.NewWriter(w)
	if err := vw.StartDocument(); err != nil {
		return err
	}
	if err := value.Emit(v, vw); err != nil {
		return err
	}
	return vw.EndDocument()
}

// DecodeRequest parses a <methodCall> envelope from r.
func DecodeRequest(r stream.Reader) (Request, error) {
	doc := document.New(false)
	xr := xmlrpc.NewReader(r)
	method, err := xr.ParseMethodCall(doc)
	if err != nil {
		return Request{}, rpcerr.AsError(err)
	}
	return Request{Method: method, Params: doc.Result()}, nil
}

// DecodeResponse parses a <methodResponse> envelope from r.
func DecodeResponse(r stream.Reader) (Response, error) {
	doc := document.New(false)
	xr := xmlrpc.NewReader(r)
	isFault, err := xr.ParseMethodResponse(doc)
	if err != nil {
		return Response{}, rpcerr.AsError(err)
	}
	if !isFault {
		return Response{Result: doc.Result()}, nil
	}
	faultVal := doc.Result()
	codeVal, _ := faultVal.Get("faultCode")
	code, _ := codeVal.Int64()
	stringVal, _ := faultVal.Get("faultString")
	msg, _ := stringVal.AsString()
	return Response{Fault: rpcerr.New(rpcerr.Code(code), msg)}, nil
}
