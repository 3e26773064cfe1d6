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

// Package json implements a hand-written JSON reader and writer over the
// stream/event abstractions, rather than encoding/json: anyrpc needs
// push-style parsing directly into an event.Sink (so the same reader
// drives both Document construction and direct RPC dispatch without an
// intermediate tree), and in-situ decoding that aliases the input buffer
// instead of allocating.
package json

import (
	"fmt"
	"strconv"

	"github.com/anyrpc-go/anyrpc/event"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
)

// insituStream is satisfied by stream.MutableString: the same backing
// buffer serves as both the read side and the scratch write side used to
// decode strings in place.
type insituStream interface {
	stream.Reader
	stream.Writer
	stream.InSituWriter
}

// Reader decodes a single JSON document, pushing events into an
// event.Sink.
type Reader struct {
	r   stream.Reader
	w   stream.Writer
	isw stream.InSituWriter
}

var _ event.Source = (*Reader)(nil)

// NewReader returns a Reader that copies decoded string/key bytes into
// freshly allocated slices.
func NewReader(r stream.Reader) *Reader {
	return &Reader{r: r}
}

// NewInSituReader returns a Reader that decodes strings in place inside
// rw's backing buffer, handing out slices that alias it (Sink.String and
// Sink.Key are called with copy=false).
func NewInSituReader(rw insituStream) *Reader {
	return &Reader{r: rw, w: rw, isw: rw}
}

func (r *Reader) errorf(code rpcerr.Code, format string, args ...any) error {
	return rpcerr.AtOffset(code, r.r.Tell(), fmt.Sprintf(format, args...))
}

// Decode implements event.Source.
func (r *Reader) Decode(sink event.Sink) error {
	if err := sink.StartDocument(); err != nil {
		return err
	}
	r.skipWhitespace()
	if !r.r.EOF() {
		if err := r.parseValue(sink); err != nil {
			return err
		}
	}
	return sink.EndDocument()
}

func (r *Reader) skipWhitespace() {
	for {
		b, ok := r.r.Peek()
		if !ok || (b != ' ' && b != '\t' && b != '\n' && b != '\r') {
			return
		}
		r.r.Get()
	}
}

func (r *Reader) parseValue(sink event.Sink) error {
	b, ok := r.r.Peek()
	if !ok {
		return r.errorf(rpcerr.ValueInvalid, "unexpected end of input")
	}
	switch b {
	case 'n':
		return r.parseLiteral("null", func() error { return sink.Null() })
	case 't':
		return r.parseLiteral("true", func() error { return sink.Bool(true) })
	case 'f':
		return r.parseLiteral("false", func() error { return sink.Bool(false) })
	case '"':
		b, copy, err := r.parseStringLiteral()
		if err != nil {
			return err
		}
		return sink.String(b, copy)
	case '{':
		return r.parseMap(sink)
	case '[':
		return r.parseArray(sink)
	default:
		return r.parseNumber(sink)
	}
}

func (r *Reader) parseLiteral(lit string, emit func() error) error {
	for i := 0; i < len(lit); i++ {
		b, ok := r.r.Get()
		if !ok || b != lit[i] {
			return r.errorf(rpcerr.ValueInvalid, "invalid literal, expected %q", lit)
		}
	}
	return emit()
}

func (r *Reader) parseMap(sink event.Sink) error {
	r.r.Get() // '{'
	if err := sink.StartMap(); err != nil {
		return err
	}
	r.skipWhitespace()

	if b, ok := r.r.Peek(); ok && b == '}' {
		r.r.Get()
		return sink.EndMap(0)
	}

	count := 0
	for {
		if b, ok := r.r.Peek(); !ok || b != '"' {
			return r.errorf(rpcerr.ObjectMissName, "missing a name for object member")
		}
		key, copy, err := r.parseStringLiteral()
		if err != nil {
			return err
		}
		if err := sink.Key(key, copy); err != nil {
			return err
		}
		r.skipWhitespace()

		b, ok := r.r.Get()
		if !ok || b != ':' {
			return r.errorf(rpcerr.ObjectMissColon, "missing a colon after a name of object member")
		}
		r.skipWhitespace()

		if err := r.parseValue(sink); err != nil {
			return err
		}
		r.skipWhitespace()
		count++

		b, ok = r.r.Get()
		if !ok {
			return r.errorf(rpcerr.ObjectMissCommaOrCurlyBracket, "missing a comma or '}' after an object member")
		}
		switch b {
		case ',':
			r.skipWhitespace()
			if err := sink.MapSeparator(); err != nil {
				return err
			}
		case '}':
			return sink.EndMap(count)
		default:
			return r.errorf(rpcerr.ObjectMissCommaOrCurlyBracket, "missing a comma or '}' after an object member")
		}
	}
}

func (r *Reader) parseArray(sink event.Sink) error {
	r.r.Get() // '['
	if err := sink.StartArray(); err != nil {
		return err
	}
	r.skipWhitespace()

	if b, ok := r.r.Peek(); ok && b == ']' {
		r.r.Get()
		return sink.EndArray(0)
	}

	count := 0
	for {
		if err := r.parseValue(sink); err != nil {
			return err
		}
		count++
		r.skipWhitespace()

		b, ok := r.r.Get()
		if !ok {
			return r.errorf(rpcerr.ArrayMissCommaOrSquareBracket, "missing a comma or ']' after an array element")
		}
		switch b {
		case ',':
			r.skipWhitespace()
			if err := sink.ArraySeparator(); err != nil {
				return err
			}
		case ']':
			return sink.EndArray(count)
		default:
			return r.errorf(rpcerr.ArrayMissCommaOrSquareBracket, "missing a comma or ']' after an array element")
		}
	}
}

var escapeDecode = [256]byte{
	'"': '"', '\\': '\\', '/': '/', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t',
}

// parseStringLiteral decodes the JSON string starting at the current
// quote and returns its bytes, the copy flag to pass to the Sink, and
// any error. In-situ readers decode into the overwritten read region and
// return an aliasing slice (copy=false); other readers decode into a
// freshly allocated scratch buffer (copy=true).
func (r *Reader) parseStringLiteral() ([]byte, bool, error) {
	r.r.Get() // opening quote

	if r.isw != nil {
		r.isw.PutBegin()
		if err := r.decodeStringBody(r.w); err != nil {
			return nil, false, err
		}
		b, err := r.isw.PutEnd()
		if err != nil {
			return nil, false, err
		}
		return b, false, nil
	}

	seg := stream.NewSegmented()
	if err := r.decodeStringBody(seg); err != nil {
		return nil, false, err
	}
	return seg.Bytes(), true, nil
}

func (r *Reader) decodeStringBody(dst stream.Writer) error {
	for {
		c, ok := r.r.Get()
		if !ok {
			return r.errorf(rpcerr.StringMissingQuotationMark, "missing a closing quotation mark in string")
		}
		switch {
		case c == '"':
			return nil
		case c == '\\':
			if err := r.decodeEscape(dst); err != nil {
				return err
			}
		case c < 0x20:
			return r.errorf(rpcerr.StringEscapeInvalid, "invalid control character in string")
		default:
			if err := dst.Put(c); err != nil {
				return err
			}
		}
	}
}

func (r *Reader) decodeEscape(dst stream.Writer) error {
	e, ok := r.r.Get()
	if !ok {
		return r.errorf(rpcerr.StringEscapeInvalid, "invalid escape character in string")
	}
	if e != 'u' {
		decoded := escapeDecode[e]
		if decoded == 0 {
			return r.errorf(rpcerr.StringEscapeInvalid, "invalid escape character in string")
		}
		return dst.Put(decoded)
	}

	codepoint, err := r.parseHex4()
	if err != nil {
		return err
	}
	if codepoint >= 0xD800 && codepoint <= 0xDBFF {
		b1, ok1 := r.r.Get()
		b2, ok2 := r.r.Get()
		if !ok1 || !ok2 || b1 != '\\' || b2 != 'u' {
			return r.errorf(rpcerr.StringUnicodeSurrogateInvalid, "the surrogate pair in string is invalid")
		}
		codepoint2, err := r.parseHex4()
		if err != nil {
			return err
		}
		if codepoint2 < 0xDC00 || codepoint2 > 0xDFFF {
			return r.errorf(rpcerr.StringUnicodeSurrogateInvalid, "the surrogate pair in string is invalid")
		}
		codepoint = (((codepoint - 0xD800) << 10) | (codepoint2 - 0xDC00)) + 0x10000
	}
	return encodeUTF8(dst, codepoint)
}

func (r *Reader) parseHex4() (rune, error) {
	var cp rune
	for i := 0; i < 4; i++ {
		c, ok := r.r.Get()
		if !ok {
			return 0, r.errorf(rpcerr.StringUnicodeEscapeInvalid, "incorrect digit after escape in string")
		}
		cp <<= 4
		switch {
		case c >= '0' && c <= '9':
			cp += rune(c - '0')
		case c >= 'A' && c <= 'F':
			cp += rune(c-'A') + 10
		case c >= 'a' && c <= 'f':
			cp += rune(c-'a') + 10
		default:
			return 0, r.errorf(rpcerr.StringUnicodeEscapeInvalid, "incorrect digit after escape in string")
		}
	}
	return cp, nil
}

func encodeUTF8(dst stream.Writer, cp rune) error {
	var buf [4]byte
	n := 0
	switch {
	case cp <= 0x7F:
		buf[0] = byte(cp)
		n = 1
	case cp <= 0x7FF:
		buf[0] = 0xC0 | byte(cp>>6)
		buf[1] = 0x80 | byte(cp&0x3F)
		n = 2
	case cp <= 0xFFFF:
		buf[0] = 0xE0 | byte(cp>>12)
		buf[1] = 0x80 | byte((cp>>6)&0x3F)
		buf[2] = 0x80 | byte(cp&0x3F)
		n = 3
	default:
		buf[0] = 0xF0 | byte(cp>>18)
		buf[1] = 0x80 | byte((cp>>12)&0x3F)
		buf[2] = 0x80 | byte((cp>>6)&0x3F)
		buf[3] = 0x80 | byte(cp&0x3F)
		n = 4
	}
	return dst.PutSlice(buf[:n])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// parseNumber scans a JSON number's exact character span (validating its
// grammar by hand, the way the wire format requires) and hands the
// substring to strconv for the actual conversion, rather than
// reimplementing significand/exponent math.
func (r *Reader) parseNumber(sink event.Sink) error {
	var buf []byte

	if b, ok := r.r.Peek(); ok && b == '-' {
		b, _ = r.r.Get()
		buf = append(buf, b)
	}

	b, ok := r.r.Peek()
	if !ok || !isDigit(b) {
		return r.errorf(rpcerr.ValueInvalid, "invalid value")
	}
	if b == '0' {
		b, _ = r.r.Get()
		buf = append(buf, b)
	} else {
		for {
			b, ok := r.r.Peek()
			if !ok || !isDigit(b) {
				break
			}
			b, _ = r.r.Get()
			buf = append(buf, b)
		}
	}

	hasFrac := false
	if b, ok := r.r.Peek(); ok && b == '.' {
		hasFrac = true
		b, _ = r.r.Get()
		buf = append(buf, b)
		if b2, ok2 := r.r.Peek(); !ok2 || !isDigit(b2) {
			return r.errorf(rpcerr.NumberMissFraction, "missing fraction part in number")
		}
		for {
			b2, ok2 := r.r.Peek()
			if !ok2 || !isDigit(b2) {
				break
			}
			b2, _ = r.r.Get()
			buf = append(buf, b2)
		}
	}

	hasExp := false
	if b, ok := r.r.Peek(); ok && (b == 'e' || b == 'E') {
		hasExp = true
		b, _ = r.r.Get()
		buf = append(buf, b)
		if b2, ok2 := r.r.Peek(); ok2 && (b2 == '+' || b2 == '-') {
			b2, _ = r.r.Get()
			buf = append(buf, b2)
		}
		if b2, ok2 := r.r.Peek(); !ok2 || !isDigit(b2) {
			return r.errorf(rpcerr.NumberMissExponent, "missing exponent in number")
		}
		for {
			b2, ok2 := r.r.Peek()
			if !ok2 || !isDigit(b2) {
				break
			}
			b2, _ = r.r.Get()
			buf = append(buf, b2)
		}
	}

	s := string(buf)
	if hasFrac || hasExp {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r.errorf(rpcerr.NumberTooBig, "number too big to be stored in double")
		}
		return sink.Double(d)
	}
	if s[0] == '-' {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			d, derr := strconv.ParseFloat(s, 64)
			if derr != nil {
				return r.errorf(rpcerr.NumberTooBig, "number too big to be stored")
			}
			return sink.Double(d)
		}
		return sink.Int64(i)
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		d, derr := strconv.ParseFloat(s, 64)
		if derr != nil {
			return r.errorf(rpcerr.NumberTooBig, "number too big to be stored")
		}
		return sink.Double(d)
	}
	return sink.Uint64(u)
}
