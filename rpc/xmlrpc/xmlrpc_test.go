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

package xmlrpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	req := Request{Method: "add", Params: value.Array(value.Int(1), value.Int(2))}
	out := stream.NewSegmented()
	require.NoError(t, EncodeRequest(out, req))

	decoded, err := DecodeRequest(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "add", decoded.Method)
	e, err := decoded.Params.Elem(1)
	require.NoError(t, err)
	n, err := e.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestEncodeDecodeResponseResult(t *testing.T) {
	resp := Response{Result: value.String("ok")}
	out := stream.NewSegmented()
	require.NoError(t, EncodeResponse(out, resp))

	decoded, err := DecodeResponse(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.Nil(t, decoded.Fault)
	s, err := decoded.Result.AsString()
	require.NoError(t, err)
	require.Equal(t, "ok", s)
}

func TestEncodeDecodeResponseFault(t *testing.T) {
	resp := Response{Fault: rpcerr.New(rpcerr.MethodNotFound, "method not found: nope")}
	out := stream.NewSegmented()
	require.NoError(t, EncodeResponse(out, resp))

	decoded, err := DecodeResponse(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, decoded.Fault)
	require.Equal(t, rpcerr.MethodNotFound, decoded.Fault.Code)
}

func TestDispatch(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddFunction("double", "", func(params value.Value) (value.Value, error) {
		e, _ := params.Elem(0)
		n, _ := e.Int64()
		return value.Int(n * 2), nil
	}, false))

	resp := Dispatch(reg, Request{Method: "double", Params: value.Array(value.Int(21))})
	require.Nil(t, resp.Fault)
	n, err := resp.Result.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
}

func TestMulticall(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddFunction("double", "", func(params value.Value) (value.Value, error) {
		e, _ := params.Elem(0)
		n, _ := e.Int64()
		return value.Int(n * 2), nil
	}, false))
	require.NoError(t, RegisterMulticall(reg))

	call := value.Invalid()
	f, _ := call.Field("methodName")
	*f = value.String("double")
	f, _ = call.Field("params")
	*f = value.Array(value.Int(10))

	badCall := value.Invalid()
	f, _ = badCall.Field("methodName")
	*f = value.String("nope")

	calls := value.Array(call, badCall)
	result, err := reg.Execute("system.multicall", value.Array(calls))
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	first, err := result.Elem(0)
	require.NoError(t, err)
	require.Equal(t, value.KindArray, first.Kind())
	firstResult, err := first.Elem(0)
	require.NoError(t, err)
	n, err := firstResult.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(20), n)

	second, err := result.Elem(1)
	require.NoError(t, err)
	require.Equal(t, value.KindMap, second.Kind())
	_, ok := second.Get("faultCode")
	require.True(t, ok)
}
