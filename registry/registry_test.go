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

package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/value"
)

func TestExecuteCallsRegisteredFunction(t *testing.T) {
	r := New()
	require.NoError(t, r.AddFunction("add", "adds two numbers", func(params value.Value) (value.Value, error) {
		a, _ := params.Elem(0)
		b, _ := params.Elem(1)
		x, _ := a.Int64()
		y, _ := b.Int64()
		return value.Int(x + y), nil
	}, false))

	result, err := r.Execute("add", value.Array(value.Int(1), value.Int(2)))
	require.NoError(t, err)
	n, err := result.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestExecuteUnknownMethod(t *testing.T) {
	r := New()
	_, err := r.Execute("nope", value.Invalid())
	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.MethodNotFound, rerr.Code)
}

func TestAddFunctionRedefine(t *testing.T) {
	r := New()
	noop := func(value.Value) (value.Value, error) { return value.Null(), nil }
	require.NoError(t, r.AddFunction("f", "", noop, false))
	err := r.AddFunction("f", "", noop, false)
	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.FunctionRedefine, rerr.Code)
}

func TestAddMethodRedefine(t *testing.T) {
	r := New()
	m := funcMethod(func(value.Value) (value.Value, error) { return value.Null(), nil })
	require.NoError(t, r.AddMethod("m", "", m, false))
	err := r.AddMethod("m", "", m, false)
	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.MethodRedefine, rerr.Code)
}

func TestListMethods(t *testing.T) {
	r := New()
	require.NoError(t, r.AddFunction("zeta", "", func(value.Value) (value.Value, error) { return value.Null(), nil }, false))
	require.NoError(t, r.AddFunction("alpha", "", func(value.Value) (value.Value, error) { return value.Null(), nil }, false))

	result, err := r.Execute("system.listMethods", value.Invalid())
	require.NoError(t, err)
	require.Equal(t, value.KindArray, result.Kind())

	names := make([]string, result.Len())
	for i := range names {
		e, err := result.Elem(i)
		require.NoError(t, err)
		names[i], err = e.AsString()
		require.NoError(t, err)
	}
	require.Contains(t, names, "alpha")
	require.Contains(t, names, "zeta")
	require.Contains(t, names, "system.listMethods")
	require.Contains(t, names, "system.methodHelp")
}

func TestMethodHelp(t *testing.T) {
	r := New()
	require.NoError(t, r.AddFunction("greet", "says hello", func(value.Value) (value.Value, error) { return value.Null(), nil }, false))

	result, err := r.Execute("system.methodHelp", value.Array(value.String("greet")))
	require.NoError(t, err)
	help, err := result.AsString()
	require.NoError(t, err)
	require.Equal(t, "says hello", help)

	_, err = r.Execute("system.methodHelp", value.Array(value.String("missing")))
	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.MethodNotFound, rerr.Code)
}

// TestRemoveWaitsForActiveCalls verifies the core invariant: a method
// already in flight keeps running and keeps being found as not-found for
// new callers immediately after Remove, but the entry is only physically
// deleted once the in-flight call returns.
func TestRemoveWaitsForActiveCalls(t *testing.T) {
	r := New()
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, r.AddFunction("slow", "", func(value.Value) (value.Value, error) {
		close(started)
		<-release
		return value.Null(), nil
	}, false))

	var wg sync.WaitGroup
	wg.Add(1)
	var callErr error
	go func() {
		defer wg.Done()
		_, callErr = r.Execute("slow", value.Invalid())
	}()

	<-started
	require.NoError(t, r.Remove("slow"))

	_, err := r.Execute("slow", value.Invalid())
	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.MethodNotFound, rerr.Code)

	close(release)
	wg.Wait()
	require.NoError(t, callErr)

	r.mu.Lock()
	_, stillPresent := r.methods["slow"]
	r.mu.Unlock()
	require.False(t, stillPresent)
}

func TestAddMethodDeleteOnRemoveClosesResource(t *testing.T) {
	r := New()
	closed := false
	m := &closableMethod{closed: &closed}
	require.NoError(t, r.AddMethod("res", "", m, true))
	require.NoError(t, r.Remove("res"))
	require.True(t, closed)
}

type closableMethod struct {
	closed *bool
}

func (c *closableMethod) Call(value.Value) (value.Value, error) { return value.Null(), nil }
func (c *closableMethod) Close()                                { *c.closed = true }

func TestConcurrentExecuteAndRemove(t *testing.T) {
	r := New()
	require.NoError(t, r.AddFunction("ping", "", func(value.Value) (value.Value, error) {
		time.Sleep(time.Millisecond)
		return value.Bool(true), nil
	}, false))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Execute("ping", value.Invalid())
		}()
	}
	wg.Wait()
}
