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

package msgpack

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/anyrpc-go/anyrpc/event"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/stream"
)

// Reader decodes a single MessagePack-encoded value, pushing events into
// an event.Sink. Dispatch on the leading format byte is a flat switch
// over the format constants (see format.go); there is no 256-entry
// function table.
//
// Unlike JSON, MessagePack strings carry no escape sequences, so a
// string's wire bytes are already exactly its decoded bytes. That means
// in-situ decoding needs no PutBegin/PutEnd copy-in-place dance the way
// the JSON reader's escape processing does: stream.Reader.ReadN already
// hands back a slice aliasing the backing buffer, which is precisely the
// borrow an in-situ Sink wants. The insitu flag only controls whether
// that aliasing slice is safe to hand out (true in-situ streams) or must
// be copied first (read-only streams like stream.ConstString).
type Reader struct {
	r      stream.Reader
	insitu bool
}

var _ event.Source = (*Reader)(nil)

// NewReader returns a Reader that copies decoded string/key bytes into
// freshly allocated slices.
func NewReader(r stream.Reader) *Reader {
	return &Reader{r: r}
}

// NewInSituReader returns a Reader that hands out string/key slices that
// alias rw's backing buffer instead of copying them.
func NewInSituReader(rw stream.ReadWriter) *Reader {
	return &Reader{r: rw, insitu: true}
}

func (r *Reader) errorf(code rpcerr.Code, format string, args ...any) error {
	return rpcerr.AtOffset(code, r.r.Tell(), fmt.Sprintf(format, args...))
}

// Decode implements event.Source.
func (r *Reader) Decode(sink event.Sink) error {
	if err := sink.StartDocument(); err != nil {
		return err
	}
	if !r.r.EOF() {
		if err := r.parseValue(sink); err != nil {
			return err
		}
	}
	return sink.EndDocument()
}

func (r *Reader) readN(n int) ([]byte, error) {
	b, err := r.r.ReadN(n)
	if err != nil {
		return nil, r.errorf(rpcerr.ParseError, "unexpected end of input reading %d bytes", n)
	}
	return b, nil
}

func (r *Reader) readUint8() (uint8, error) {
	b, err := r.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) readUint16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) readUint32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// parseValue reads one leading format byte and dispatches on it.
func (r *Reader) parseValue(sink event.Sink) error {
	tag, err := r.readUint8()
	if err != nil {
		return err
	}
	switch {
	case tag <= posFixIntMax:
		return sink.Int64(int64(tag))
	case tag >= negFixIntMin:
		return sink.Int64(int64(int8(tag)))
	case tag >= fixMap && tag <= fixMapMask:
		return r.parseMap(sink, int(tag&0x0f))
	case tag >= fixArray && tag <= fixArrayMask:
		return r.parseArray(sink, int(tag&0x0f))
	case tag >= fixStr && tag <= fixStrMask:
		return r.parseStr(sink, int(tag&0x1f))
	}

	switch tag {
	case nilByte:
		return sink.Null()
	case falseByte:
		return sink.Bool(false)
	case trueByte:
		return sink.Bool(true)
	case bin8:
		n, err := r.readUint8()
		if err != nil {
			return err
		}
		return r.parseBin(sink, int(n))
	case bin16:
		n, err := r.readUint16()
		if err != nil {
			return err
		}
		return r.parseBin(sink, int(n))
	case bin32:
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		return r.parseBin(sink, int(n))
	case float32Byte:
		bits, err := r.readUint32()
		if err != nil {
			return err
		}
		return sink.Float(math.Float32frombits(bits))
	case float64Byte:
		bits, err := r.readUint64()
		if err != nil {
			return err
		}
		return sink.Double(math.Float64frombits(bits))
	case uint8Byte:
		v, err := r.readUint8()
		if err != nil {
			return err
		}
		return sink.Uint64(uint64(v))
	case uint16Byte:
		v, err := r.readUint16()
		if err != nil {
			return err
		}
		return sink.Uint64(uint64(v))
	case uint32Byte:
		v, err := r.readUint32()
		if err != nil {
			return err
		}
		return sink.Uint64(uint64(v))
	case uint64Byte:
		v, err := r.readUint64()
		if err != nil {
			return err
		}
		return sink.Uint64(v)
	case int8Byte:
		v, err := r.readUint8()
		if err != nil {
			return err
		}
		return sink.Int64(int64(int8(v)))
	case int16Byte:
		v, err := r.readUint16()
		if err != nil {
			return err
		}
		return sink.Int64(int64(int16(v)))
	case int32Byte:
		v, err := r.readUint32()
		if err != nil {
			return err
		}
		return sink.Int64(int64(int32(v)))
	case int64Byte:
		v, err := r.readUint64()
		if err != nil {
			return err
		}
		return sink.Int64(int64(v))
	case str8:
		n, err := r.readUint8()
		if err != nil {
			return err
		}
		return r.parseStr(sink, int(n))
	case str16:
		n, err := r.readUint16()
		if err != nil {
			return err
		}
		return r.parseStr(sink, int(n))
	case str32:
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		return r.parseStr(sink, int(n))
	case array16:
		n, err := r.readUint16()
		if err != nil {
			return err
		}
		return r.parseArray(sink, int(n))
	case array32:
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		return r.parseArray(sink, int(n))
	case map16:
		n, err := r.readUint16()
		if err != nil {
			return err
		}
		return r.parseMap(sink, int(n))
	case map32:
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		return r.parseMap(sink, int(n))
	case ext8, ext16, ext32, fixExt1, fixExt2, fixExt4, fixExt8, fixExt16:
		return r.errorf(rpcerr.NotImplemented, "messagepack ext types are not implemented")
	}
	return r.errorf(rpcerr.ValueInvalid, "invalid messagepack format byte 0x%02x", tag)
}

// parseStr decodes n bytes of string content, in situ when the reader
// supports it.
func (r *Reader) parseStr(sink event.Sink, n int) error {
	b, copy, err := r.readBytes(n)
	if err != nil {
		return err
	}
	return sink.String(b, copy)
}

func (r *Reader) parseBin(sink event.Sink, n int) error {
	b, copy, err := r.readBytes(n)
	if err != nil {
		return err
	}
	return sink.Binary(b, copy)
}

// readBytes returns n bytes starting at the current read position: the
// aliasing slice ReadN hands back directly when the stream is in-situ
// (copy=false), or a freshly allocated copy otherwise (copy=true).
func (r *Reader) readBytes(n int) ([]byte, bool, error) {
	raw, err := r.readN(n)
	if err != nil {
		return nil, false, err
	}
	if r.insitu {
		return raw, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (r *Reader) parseArray(sink event.Sink, n int) error {
	if err := sink.StartArray(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := sink.ArraySeparator(); err != nil {
				return err
			}
		}
		if err := r.parseValue(sink); err != nil {
			return err
		}
	}
	return sink.EndArray(n)
}

// parseMap decodes n key/value pairs. Keys must be fixstr/str8/16/32:
// the original rejects any other key type outright rather than
// stringifying it, since MessagePack keys are not restricted to strings
// the way JSON's are.
func (r *Reader) parseMap(sink event.Sink, n int) error {
	if err := sink.StartMap(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := sink.MapSeparator(); err != nil {
				return err
			}
		}
		if err := r.parseKey(sink); err != nil {
			return err
		}
		if err := r.parseValue(sink); err != nil {
			return err
		}
	}
	return sink.EndMap(n)
}

func (r *Reader) parseKey(sink event.Sink) error {
	tag, err := r.readUint8()
	if err != nil {
		return err
	}
	var n int
	switch {
	case tag >= fixStr && tag <= fixStrMask:
		n = int(tag & 0x1f)
	case tag == str8:
		v, err := r.readUint8()
		if err != nil {
			return err
		}
		n = int(v)
	case tag == str16:
		v, err := r.readUint16()
		if err != nil {
			return err
		}
		n = int(v)
	case tag == str32:
		v, err := r.readUint32()
		if err != nil {
			return err
		}
		n = int(v)
	default:
		return r.errorf(rpcerr.ObjectMissName, "messagepack map keys must be strings, got format byte 0x%02x", tag)
	}
	b, copy, err := r.readBytes(n)
	if err != nil {
		return err
	}
	return sink.Key(b, copy)
}
