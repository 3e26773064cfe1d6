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

package msgpackrpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	var gen IDGenerator
	req := NewCallRequest(&gen, "add", value.Array(value.Int(1), value.Int(2)))
	out := stream.NewSegmented()
	require.NoError(t, EncodeRequest(out, req))

	decoded, err := DecodeRequest(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.False(t, decoded.IsNotification)
	require.Equal(t, uint64(1), decoded.ID)
	require.Equal(t, "add", decoded.Method)
}

func TestEncodeDecodeNotification(t *testing.T) {
	req := NewNotifyRequest("log", value.String("hi"))
	out := stream.NewSegmented()
	require.NoError(t, EncodeRequest(out, req))

	decoded, err := DecodeRequest(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.True(t, decoded.IsNotification)
	require.Equal(t, "log", decoded.Method)
}

func TestEncodeDecodeResponseResult(t *testing.T) {
	resp := Response{ID: 5, Result: value.Int(42)}
	out := stream.NewSegmented()
	require.NoError(t, EncodeResponse(out, resp))

	decoded, err := DecodeResponse(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.Nil(t, decoded.Err)
	n, err := decoded.Result.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
}

func TestEncodeDecodeResponseError(t *testing.T) {
	resp := Response{ID: 5, Err: rpcerr.New(rpcerr.MethodNotFound, "method not found: nope")}
	out := stream.NewSegmented()
	require.NoError(t, EncodeResponse(out, resp))

	decoded, err := DecodeResponse(stream.NewConstString(out.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, decoded.Err)
	require.Equal(t, rpcerr.MethodNotFound, decoded.Err.Code)
}

func TestDecodeResponseRejectsMalformedError(t *testing.T) {
	out := stream.NewSegmented()
	envelope := value.Array(value.Int(TypeResponse), value.Uint(1), value.String("boom"), value.Null())
	require.NoError(t, emit(out, envelope))

	_, err := DecodeResponse(stream.NewConstString(out.Bytes()))
	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.InvalidResponse, rerr.Code)
}

func TestDispatchNotificationYieldsNoResponse(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddFunction("noop", "", func(value.Value) (value.Value, error) { return value.Null(), nil }, false))
	resp := Dispatch(reg, NewNotifyRequest("noop", value.Invalid()))
	require.Nil(t, resp)
}

func TestDispatchCall(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddFunction("double", "", func(params value.Value) (value.Value, error) {
		e, _ := params.Elem(0)
		n, _ := e.Int64()
		return value.Int(n * 2), nil
	}, false))

	var gen IDGenerator
	resp := Dispatch(reg, NewCallRequest(&gen, "double", value.Array(value.Int(21))))
	require.NotNil(t, resp)
	require.Nil(t, resp.Err)
	n, err := resp.Result.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
}
