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

	"github.com/anyrpc-go/anyrpc/value"
)

func TestParseParamsTypesEachArgument(t *testing.T) {
	params := parseParams([]string{"5", "3.5", "hello"})
	require.Equal(t, 3, params.Len())

	a, _ := params.Elem(0)
	n, err := a.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	b, _ := params.Elem(1)
	f, err := b.Double()
	require.NoError(t, err)
	require.Equal(t, 3.5, f)

	c, _ := params.Elem(2)
	s, err := c.AsString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestParseParamsEmpty(t *testing.T) {
	params := parseParams(nil)
	require.Equal(t, value.KindArray, params.Kind())
	require.Equal(t, 0, params.Len())
}
