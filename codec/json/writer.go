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
	"encoding/base64"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/anyrpc-go/anyrpc/document"
	"github.com/anyrpc-go/anyrpc/event"
	"github.com/anyrpc-go/anyrpc/stream"
)

// Encoding selects how a Writer represents non-ASCII string bytes.
type Encoding int

const (
	// EncodingUTF8 writes non-ASCII bytes through unescaped.
	EncodingUTF8 Encoding = iota
	// EncodingASCII backslash-u escapes every codepoint above 0x7F.
	EncodingASCII
)

const dateTimeWireLayout = "20060102T15:04:05"

// Writer serializes an event sequence as JSON text. It implements
// event.Sink directly so it can be driven either by a codec Reader
// (format conversion) or by value.Emit (serializing a Value).
type Writer struct {
	w        stream.Writer
	encoding Encoding
	pretty   bool
	level    int
}

var _ event.Sink = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithEncoding sets the string encoding strategy. Default is EncodingUTF8.
func WithEncoding(e Encoding) Option { return func(w *Writer) { w.encoding = e } }

// WithPretty enables newline- and tab-indented output.
func WithPretty(pretty bool) Option { return func(w *Writer) { w.pretty = pretty } }

// NewWriter returns a Writer that writes to w.
func NewWriter(w stream.Writer, opts ...Option) *Writer {
	jw := &Writer{w: w}
	for _, opt := range opts {
		opt(jw)
	}
	return jw
}

func (w *Writer) StartDocument() error { return nil }
func (w *Writer) EndDocument() error   { return w.w.Flush() }

func (w *Writer) Null() error { return w.w.PutSlice([]byte("null")) }

func (w *Writer) Bool(v bool) error {
	if v {
		return w.w.PutSlice([]byte("true"))
	}
	return w.w.PutSlice([]byte("false"))
}

func (w *Writer) Int32(v int32) error { return w.w.PutSlice([]byte(strconv.FormatInt(int64(v), 10))) }
func (w *Writer) Uint32(v uint32) error {
	return w.w.PutSlice([]byte(strconv.FormatUint(uint64(v), 10)))
}
func (w *Writer) Int64(v int64) error   { return w.w.PutSlice([]byte(strconv.FormatInt(v, 10))) }
func (w *Writer) Uint64(v uint64) error { return w.w.PutSlice([]byte(strconv.FormatUint(v, 10))) }

func (w *Writer) Float(v float32) error {
	return w.w.PutSlice([]byte(strconv.FormatFloat(float64(v), 'g', -1, 32)))
}

func (w *Writer) Double(v float64) error {
	return w.w.PutSlice([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
}

// DateTime has no native JSON representation, so it is wrapped in the
// two-element AnyRpcDateTime tagged-array extension (see the document
// package for the reader-side conversion back).
func (w *Writer) DateTime(v time.Time) error {
	if err := w.StartArray(); err != nil {
		return err
	}
	if err := w.String([]byte(document.TagDateTime), true); err != nil {
		return err
	}
	if err := w.ArraySeparator(); err != nil {
		return err
	}
	if err := w.String([]byte(v.Format(dateTimeWireLayout)), true); err != nil {
		return err
	}
	return w.EndArray(2)
}

// Binary has no native JSON representation either, so it is wrapped in
// the AnyRpcBase64 tagged-array extension.
func (w *Writer) Binary(b []byte, copy bool) error {
	if err := w.StartArray(); err != nil {
		return err
	}
	if err := w.String([]byte(document.TagBase64), true); err != nil {
		return err
	}
	if err := w.ArraySeparator(); err != nil {
		return err
	}
	encoded := []byte(base64.StdEncoding.EncodeToString(b))
	if err := w.String(encoded, true); err != nil {
		return err
	}
	return w.EndArray(2)
}

var hexDigits = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'A', 'B', 'C', 'D', 'E', 'F'}

// escapeFor reports the single-character JSON escape for c, or 0 if c
// needs no escaping and isn't a \u-escaped control character, or 'u' if
// it must be \u00XX escaped.
func escapeFor(c byte) byte {
	switch c {
	case '"':
		return '"'
	case '\\':
		return '\\'
	case '\b':
		return 'b'
	case '\t':
		return 't'
	case '\n':
		return 'n'
	case '\f':
		return 'f'
	case '\r':
		return 'r'
	}
	if c < 0x20 {
		return 'u'
	}
	return 0
}

func (w *Writer) String(b []byte, copy bool) error {
	if err := w.w.Put('"'); err != nil {
		return err
	}
	i := 0
	for i < len(b) {
		c := b[i]
		if e := escapeFor(c); e != 0 {
			if err := w.w.Put('\\'); err != nil {
				return err
			}
			if err := w.w.Put(e); err != nil {
				return err
			}
			if e == 'u' {
				if err := w.w.PutSlice([]byte{'0', '0', hexDigits[c>>4], hexDigits[c&0xF]}); err != nil {
					return err
				}
			}
			i++
			continue
		}
		if w.encoding == EncodingASCII && c >= 0x80 {
			r, size := utf8.DecodeRune(b[i:])
			if err := w.writeUnicodeEscape(r); err != nil {
				return err
			}
			i += size
			continue
		}
		if err := w.w.Put(c); err != nil {
			return err
		}
		i++
	}
	return w.w.Put('"')
}

func (w *Writer) writeUnicodeEscape(r rune) error {
	if r <= 0xFFFF {
		return w.w.PutSlice([]byte{
			'\\', 'u',
			hexDigits[(r>>12)&0xF], hexDigits[(r>>8)&0xF], hexDigits[(r>>4)&0xF], hexDigits[r&0xF],
		})
	}
	s := r - 0x10000
	lead := (s >> 10) + 0xD800
	trail := (s & 0x3FF) + 0xDC00
	if err := w.w.PutSlice([]byte{
		'\\', 'u',
		hexDigits[(lead>>12)&0xF], hexDigits[(lead>>8)&0xF], hexDigits[(lead>>4)&0xF], hexDigits[lead&0xF],
	}); err != nil {
		return err
	}
	return w.w.PutSlice([]byte{
		'\\', 'u',
		hexDigits[(trail>>12)&0xF], hexDigits[(trail>>8)&0xF], hexDigits[(trail>>4)&0xF], hexDigits[trail&0xF],
	})
}

func (w *Writer) StartMap() error {
	w.newLine()
	if err := w.w.Put('{'); err != nil {
		return err
	}
	w.incLevel()
	return w.newLineErr()
}

func (w *Writer) Key(b []byte, copy bool) error {
	if err := w.String(b, copy); err != nil {
		return err
	}
	return w.w.Put(':')
}

func (w *Writer) MapSeparator() error {
	if err := w.w.Put(','); err != nil {
		return err
	}
	return w.newLineErr()
}

func (w *Writer) EndMap(count int) error {
	w.decLevel()
	if err := w.newLineErr(); err != nil {
		return err
	}
	return w.w.Put('}')
}

func (w *Writer) StartArray() error {
	w.newLine()
	if err := w.w.Put('['); err != nil {
		return err
	}
	w.incLevel()
	return w.newLineErr()
}

func (w *Writer) ArraySeparator() error {
	if err := w.w.Put(','); err != nil {
		return err
	}
	return w.newLineErr()
}

func (w *Writer) EndArray(count int) error {
	w.decLevel()
	if err := w.newLineErr(); err != nil {
		return err
	}
	return w.w.Put(']')
}

func (w *Writer) newLine() { _ = w.newLineErr() }

func (w *Writer) newLineErr() error {
	if !w.pretty {
		return nil
	}
	if err := w.w.Put('\n'); err != nil {
		return err
	}
	for i := 0; i < w.level; i++ {
		if err := w.w.Put('\t'); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) incLevel() {
	if w.pretty {
		w.level++
	}
}

func (w *Writer) decLevel() {
	if w.pretty {
		w.level--
	}
}

