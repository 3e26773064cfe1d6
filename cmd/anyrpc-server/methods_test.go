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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/value"
)

func TestAddSubtractMultiply(t *testing.T) {
	params := value.Array(value.Int(5), value.Int(6))

	sum, err := add(params)
	require.NoError(t, err)
	f, err := sum.Double()
	require.NoError(t, err)
	require.Equal(t, 11.0, f)

	diff, err := subtract(params)
	require.NoError(t, err)
	f, err = diff.Double()
	require.NoError(t, err)
	require.Equal(t, -1.0, f)

	m := &multiplier{}
	product, err := m.Call(params)
	require.NoError(t, err)
	f, err = product.Double()
	require.NoError(t, err)
	require.Equal(t, 30.0, f)
	require.Equal(t, uint64(1), m.calls.Load())
}

func TestAddRejectsWrongArity(t *testing.T) {
	_, err := add(value.Array(value.Int(1)))
	require.Error(t, err)
}

func TestWaitReturnsNull(t *testing.T) {
	result, err := wait(value.Array(value.Int(0)))
	require.NoError(t, err)
	require.True(t, result.IsNull())
}

func TestEchoReturnsParamsUnchanged(t *testing.T) {
	params := value.Array(value.String("hello"), value.Int(42))
	result, err := echo(params)
	require.NoError(t, err)
	require.True(t, value.Equal(params, result))
}

func TestRegisterExampleMethodsRegistersAll(t *testing.T) {
	reg := registry.New()
	require.NoError(t, registerExampleMethods(reg))

	// Wrong-arity params on purpose: the point is to prove each name is
	// registered, not that these particular calls succeed.
	for _, name := range []string{"add", "subtract", "multiply", "wait"} {
		_, err := reg.Execute(name, value.Invalid())
		require.Error(t, err)
		require.NotContains(t, err.Error(), "method not found")
	}
	_, err := reg.Execute("echo", value.Invalid())
	require.NoError(t, err)
}
