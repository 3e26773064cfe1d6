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

package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntWidening(t *testing.T) {
	v := Int(42)
	i32, err := v.Int32()
	require.NoError(t, err)
	require.EqualValues(t, 42, i32)

	u32, err := v.Uint32()
	require.NoError(t, err)
	require.EqualValues(t, 42, u32)

	u64, err := v.Uint64()
	require.NoError(t, err)
	require.EqualValues(t, 42, u64)
}

func TestIntNegativeHasNoUnsignedView(t *testing.T) {
	v := Int(-1)
	_, err := v.Uint64()
	require.Error(t, err)
	_, err = v.Uint32()
	require.Error(t, err)

	i64, err := v.Int64()
	require.NoError(t, err)
	require.EqualValues(t, -1, i64)
}

func TestUintBeyondInt64HasNoSignedView(t *testing.T) {
	v := Uint(1 << 63)
	require.True(t, v.IsUnsigned())
	_, err := v.Int64()
	require.Error(t, err)
	u, err := v.Uint64()
	require.NoError(t, err)
	require.EqualValues(t, uint64(1)<<63, u)
}

func TestInt32OutOfRange(t *testing.T) {
	v := Int(1 << 40)
	_, err := v.Int32()
	require.Error(t, err)
}

func TestWrongKindAccess(t *testing.T) {
	v := Bool(true)
	_, err := v.Int64()
	require.Error(t, err)
	_, err = v.Str()
	require.Error(t, err)
}

func TestArraySubscriptUpgradesInvalid(t *testing.T) {
	var v Value
	require.True(t, v.IsInvalid())

	elem, err := v.Index(2)
	require.NoError(t, err)
	*elem = Int(7)

	require.Equal(t, KindArray, v.Kind())
	require.Equal(t, 3, v.Len())

	got, err := v.Elem(2)
	require.NoError(t, err)
	i, err := got.Int64()
	require.NoError(t, err)
	require.EqualValues(t, 7, i)

	// Elements 0 and 1 were filler and remain Invalid.
	e0, err := v.Elem(0)
	require.NoError(t, err)
	require.True(t, e0.IsInvalid())
}

func TestMapFieldUpgradesInvalidAndDedupes(t *testing.T) {
	var v Value
	require.NoError(t, v.SetField("a", Int(1)))
	require.NoError(t, v.SetField("b", Int(2)))
	require.NoError(t, v.SetField("a", Int(3))) // redefine, not duplicate

	require.Equal(t, KindMap, v.Kind())
	require.Equal(t, 2, v.Len())

	got, ok := v.Get("a")
	require.True(t, ok)
	i, _ := got.Int64()
	require.EqualValues(t, 3, i)
}

func TestTakeResetsSource(t *testing.T) {
	src := String("hello")
	moved := Take(&src)

	require.True(t, src.IsInvalid())
	s, err := moved.AsString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestCloneIsDeepAndUnborrowed(t *testing.T) {
	buf := []byte("borrowed")
	borrowed := StringBytes(buf, false)
	require.True(t, borrowed.Borrowed())

	arr := Array(borrowed, Int(1))
	cloned := arr.Clone()

	buf[0] = 'X' // mutate the original backing buffer

	elem, err := cloned.Elem(0)
	require.NoError(t, err)
	require.False(t, elem.Borrowed())
	s, err := elem.AsString()
	require.NoError(t, err)
	require.Equal(t, "borrowed", s) // unaffected by the mutation above
}

func TestEqualIgnoresFloat32Provenance(t *testing.T) {
	a := Float(1.5)
	b := Double(1.5)
	require.True(t, Equal(a, b))
}

func TestEqualStructural(t *testing.T) {
	a := Map(Member{Key: "x", Value: Array(Int(1), Int(2))})
	b := Map(Member{Key: "x", Value: Array(Int(1), Int(2))})
	c := Map(Member{Key: "x", Value: Array(Int(1), Int(3))})

	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
}

func TestDateTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	v := DateTime(now)
	got, err := v.DateTime()
	require.NoError(t, err)
	require.True(t, now.Equal(got))
}
