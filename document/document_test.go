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

package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/value"
)

func TestScalarRoot(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.Int64(42))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindInt, got.Kind())
	n, err := got.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
}

func TestArrayConstruction(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())
	require.NoError(t, d.Int64(1))
	require.NoError(t, d.ArraySeparator())
	require.NoError(t, d.Int64(2))
	require.NoError(t, d.ArraySeparator())
	require.NoError(t, d.Int64(3))
	require.NoError(t, d.EndArray(3))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindArray, got.Kind())
	require.Equal(t, 3, got.Len())
	for i, want := range []int64{1, 2, 3} {
		elem, err := got.Elem(i)
		require.NoError(t, err)
		n, err := elem.Int64()
		require.NoError(t, err)
		require.Equal(t, want, n)
	}
}

func TestEmptyArrayShrinksPlaceholder(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())
	require.NoError(t, d.EndArray(0))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindArray, got.Kind())
	require.Equal(t, 0, got.Len())
}

func TestArrayCountMismatch(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())
	require.NoError(t, d.Int64(1))
	err := d.EndArray(2)
	require.Error(t, err)
}

func TestMapConstructionPreservesDuplicateKeys(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartMap())

	require.NoError(t, d.Key([]byte("a"), true))
	require.NoError(t, d.Int64(1))
	require.NoError(t, d.MapSeparator())
	require.NoError(t, d.Key([]byte("a"), true))
	require.NoError(t, d.Int64(2))
	require.NoError(t, d.EndMap(2))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindMap, got.Kind())
	members := got.Members()
	require.Len(t, members, 2)
	require.Equal(t, "a", members[0].Key)
	n0, err := members[0].Value.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(1), n0)
	require.Equal(t, "a", members[1].Key)
	n1, err := members[1].Value.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(2), n1)
}

func TestMapCountMismatch(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartMap())
	require.NoError(t, d.Key([]byte("a"), true))
	require.NoError(t, d.Int64(1))
	err := d.EndMap(2)
	require.Error(t, err)
}

func TestNestedArrayOfMaps(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())

	require.NoError(t, d.StartMap())
	require.NoError(t, d.Key([]byte("x"), true))
	require.NoError(t, d.Bool(true))
	require.NoError(t, d.EndMap(1))

	require.NoError(t, d.EndArray(1))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, 1, got.Len())
	elem, err := got.Elem(0)
	require.NoError(t, err)
	require.Equal(t, value.KindMap, elem.Kind())
	v, ok := elem.Get("x")
	require.True(t, ok)
	b, err := v.Bool()
	require.NoError(t, err)
	require.True(t, b)
}

func TestExtensionDateTimeConversion(t *testing.T) {
	d := New(true)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())
	require.NoError(t, d.String([]byte(TagDateTime), true))
	require.NoError(t, d.ArraySeparator())
	require.NoError(t, d.String([]byte("20230615T10:30:00"), true))
	require.NoError(t, d.EndArray(2))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindDateTime, got.Kind())
	want := time.Date(2023, 6, 15, 10, 30, 0, 0, time.UTC)
	dt, err := got.DateTime()
	require.NoError(t, err)
	require.True(t, dt.Equal(want))
}

func TestExtensionBase64Conversion(t *testing.T) {
	d := New(true)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())
	require.NoError(t, d.String([]byte(TagBase64), true))
	require.NoError(t, d.ArraySeparator())
	require.NoError(t, d.String([]byte("aGVsbG8="), true))
	require.NoError(t, d.EndArray(2))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindBinary, got.Kind())
	b, err := got.Str()
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
}

func TestExtensionConversionDisabledByDefault(t *testing.T) {
	d := New(false)
	require.NoError(t, d.StartDocument())
	require.NoError(t, d.StartArray())
	require.NoError(t, d.String([]byte(TagDateTime), true))
	require.NoError(t, d.ArraySeparator())
	require.NoError(t, d.String([]byte("20230615T10:30:00"), true))
	require.NoError(t, d.EndArray(2))
	require.NoError(t, d.EndDocument())

	got := d.Result()
	require.Equal(t, value.KindArray, got.Kind())
}
