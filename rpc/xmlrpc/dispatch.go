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
	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/value"
)

// Dispatch executes req against reg and reports the Response to write
// back. Unlike JSON-RPC, every XML-RPC call expects a reply.
func Dispatch(reg *registry.Registry, req Request) Response {
	result, err := reg.Execute(req.Method, req.Params)
	if err != nil {
		return Response{Fault: rpcerr.AsError(err)}
	}
	return Response{Result: result}
}

// RegisterMulticall adds the system.multicall method to reg. Per the
// original source's convention (preserved here as-is, not redesigned),
// the single positional parameter is a one-element array wrapping the
// actual call list: array[1] of array-of-{methodName,params}.
func RegisterMulticall(reg *registry.Registry) error {
	return reg.AddFunction("system.multicall",
		"Process an array of calls and return an array of results. Calls should be structs "+
			"of method names and params. Each result will either be a one-item array containing "+
			"the result value, or a struct of error information.",
		func(params value.Value) (value.Value, error) {
			return multicall(reg, params)
		}, false)
}

func multicall(reg *registry.Registry, params value.Value) (value.Value, error) {
	if params.Kind() != value.KindArray || params.Len() != 1 {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "system.multicall takes a single array-of-calls parameter")
	}
	callsVal, err := params.Elem(0)
	if err != nil || callsVal.Kind() != value.KindArray {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "system.multicall parameter must be an array of calls")
	}

	results := make([]value.Value, 0, callsVal.Len())
	for _, call := range callsVal.Elements() {
		results = append(results, multicallOne(reg, call))
	}
	return value.Array(results...), nil
}

func multicallOne(reg *registry.Registry, call value.Value) value.Value {
	if call.Kind() != value.KindMap {
		return faultValue(rpcerr.New(rpcerr.InvalidParams, "multicall entry must be a struct"))
	}
	nameVal, ok := call.Get("methodName")
	if !ok {
		return faultValue(rpcerr.New(rpcerr.InvalidParams, "multicall entry missing methodName"))
	}
	name, err := nameVal.AsString()
	if err != nil {
		return faultValue(rpcerr.New(rpcerr.InvalidParams, "multicall methodName must be a string"))
	}
	paramsVal, _ := call.Get("params")

	result, err := reg.Execute(name, paramsVal)
	if err != nil {
		return faultValue(rpcerr.AsError(err))
	}
	return value.Array(result)
}

func faultValue(rerr *rpcerr.Error) value.Value {
	faultVal := value.Invalid()
	f, _ := faultVal.Field("faultCode")
	*f = value.Int(int64(rerr.Code))
	f, _ = faultVal.Field("faultString")
	*f = value.String(rerr.Message)
	return faultVal
}
