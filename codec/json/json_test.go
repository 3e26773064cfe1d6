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

package json

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anyrpc-go/anyrpc/document"
	"github.com/anyrpc-go/anyrpc/stream"
	"github.com/anyrpc-go/anyrpc/value"
)

func decode(t *testing.T, text string, insitu bool) value.Value {
	t.Helper()
	doc := document.New(true)
	var r *Reader
	if insitu {
		buf := []byte(text)
		r = NewInSituReader(stream.NewMutableString(buf))
	} else {
		r = NewReader(stream.NewConstString([]byte(text)))
	}
	require.NoError(t, r.Decode(doc))
	return doc.Result()
}

func encode(t *testing.T, v value.Value) string {
	t.Helper()
	out := stream.NewSegmented()
	w := NewWriter(out)
	require.NoError(t, w.StartDocument())
	require.NoError(t, value.Emit(v, w))
	require.NoError(t, w.EndDocument())
	return string(out.Bytes())
}

func TestDecodeScalars(t *testing.T) {
	cases := []struct {
		text string
		kind value.Kind
	}{
		{"null", value.KindNull},
		{"true", value.KindBool},
		{"false", value.KindBool},
		{"42", value.KindInt},
		{"-42", value.KindInt},
		{"3.14", value.KindDouble},
		{"1e10", value.KindDouble},
		{`"hello"`, value.KindString},
	}
	for _, c := range cases {
		got := decode(t, c.text, false)
		require.Equal(t, c.kind, got.Kind(), "text=%s", c.text)
	}
}

func TestDecodeUint64Overflow(t *testing.T) {
	got := decode(t, "18446744073709551615", false)
	require.Equal(t, value.KindInt, got.Kind())
	require.True(t, got.IsUnsigned())
	u, err := got.Uint64()
	require.NoError(t, err)
	require.Equal(t, uint64(18446744073709551615), u)
}

func TestDecodeArrayAndMap(t *testing.T) {
	got := decode(t, `{"a":1,"b":[1,2,3]}`, false)
	require.Equal(t, value.KindMap, got.Kind())
	a, ok := got.Get("a")
	require.True(t, ok)
	n, err := a.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	b, ok := got.Get("b")
	require.True(t, ok)
	require.Equal(t, 3, b.Len())
}

func TestDecodeStringEscapes(t *testing.T) {
	got := decode(t, `"a\nb\tc\"dA"`, false)
	s, err := got.AsString()
	require.NoError(t, err)
	require.Equal(t, "a\nb\tc\"dA", s)
}

func TestDecodeInSituAliasesBuffer(t *testing.T) {
	got := decode(t, `"abcdef"`, true)
	require.True(t, got.Borrowed())
	s, err := got.AsString()
	require.NoError(t, err)
	require.Equal(t, "abcdef", s)
}

func TestDecodeNonInSituCopies(t *testing.T) {
	got := decode(t, `"abcdef"`, false)
	require.False(t, got.Borrowed())
}

func TestDecodeMissingCommaError(t *testing.T) {
	r := NewReader(stream.NewConstString([]byte(`[1 2]`)))
	err := r.Decode(document.New(false))
	require.Error(t, err)
}

func TestRoundTripObject(t *testing.T) {
	in := decode(t, `{"x":1,"y":[true,false,null],"z":"hi"}`, false)
	text := encode(t, in)
	out := decode(t, text, false)
	require.True(t, value.Equal(in, out))
}

func TestRoundTripDateTimeExtension(t *testing.T) {
	dt := value.DateTime(time.Date(2024, 3, 2, 1, 2, 3, 0, time.UTC))
	text := encode(t, dt)
	out := decode(t, text, false)
	require.Equal(t, value.KindDateTime, out.Kind())
	got, err := out.DateTime()
	require.NoError(t, err)
	want, err := dt.DateTime()
	require.NoError(t, err)
	require.True(t, got.Equal(want))
}

func TestRoundTripBinaryExtension(t *testing.T) {
	bin := value.Binary([]byte("hello world"))
	text := encode(t, bin)
	out := decode(t, text, false)
	require.Equal(t, value.KindBinary, out.Kind())
	b, err := out.Str()
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))
}

func TestPrettyPrint(t *testing.T) {
	out := stream.NewSegmented()
	w := NewWriter(out, WithPretty(true))
	require.NoError(t, w.StartDocument())
	require.NoError(t, value.Emit(decode(t, `{"a":1}`, false), w))
	require.NoError(t, w.EndDocument())
	require.Contains(t, string(out.Bytes()), "\n")
}

func TestAsciiEncodingEscapesNonASCII(t *testing.T) {
	out := stream.NewSegmented()
	w := NewWriter(out, WithEncoding(EncodingASCII))
	require.NoError(t, w.StartDocument())
	require.NoError(t, w.String([]byte("café"), true))
	require.NoError(t, w.EndDocument())
	text := string(out.Bytes())
	require.NotContains(t, text, "é")
	require.Contains(t, text, "\\u00E9")
}
