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
	"math"
	"time"

	"github.com/anyrpc-go/anyrpc/document"
	"github.com/anyrpc-go/anyrpc/event"
	"github.com/anyrpc-go/anyrpc/stream"
)

const dateTimeWireLayout = "20060102T15:04:05"

// Writer serializes an event sequence as MessagePack, always choosing
// the narrowest format that losslessly represents the value, the way
// the original writer does.
//
// Unlike JSON's bracket delimiters, MessagePack array/map headers are
// length-prefixed and must be written before their elements, but the
// count is only known on EndArray/EndMap. Writer resolves this by
// buffering each open container's encoded elements into a scratch
// stream.Segmented and only writing the length header plus the buffered
// bytes to the real destination once the matching End event arrives;
// nested containers simply stack another scratch buffer on top.
type Writer struct {
	targets []stream.Writer // targets[0] is the real destination
}

var _ event.Sink = (*Writer)(nil)

// NewWriter returns a Writer that writes to w.
func NewWriter(w stream.Writer) *Writer {
	return &Writer{targets: []stream.Writer{w}}
}

func (w *Writer) target() stream.Writer { return w.targets[len(w.targets)-1] }

func (w *Writer) StartDocument() error { return nil }
func (w *Writer) EndDocument() error   { return w.targets[0].Flush() }

func (w *Writer) Null() error { return w.target().Put(nilByte) }

func (w *Writer) Bool(v bool) error {
	if v {
		return w.target().Put(trueByte)
	}
	return w.target().Put(falseByte)
}

func (w *Writer) putUint8(tag byte, v uint8) error { return w.target().PutSlice([]byte{tag, v}) }

func (w *Writer) putBE16(tag byte, v uint16) error {
	var buf [3]byte
	buf[0] = tag
	binary.BigEndian.PutUint16(buf[1:], v)
	return w.target().PutSlice(buf[:])
}

func (w *Writer) putBE32(tag byte, v uint32) error {
	var buf [5]byte
	buf[0] = tag
	binary.BigEndian.PutUint32(buf[1:], v)
	return w.target().PutSlice(buf[:])
}

func (w *Writer) putBE64(tag byte, v uint64) error {
	var buf [9]byte
	buf[0] = tag
	binary.BigEndian.PutUint64(buf[1:], v)
	return w.target().PutSlice(buf[:])
}

// writeUint picks fixint/uint8/16/32/64, the narrowest that fits v.
func (w *Writer) writeUint(v uint64) error {
	switch {
	case v <= uint64(posFixIntMax):
		return w.target().Put(byte(v))
	case v <= math.MaxUint8:
		return w.putUint8(uint8Byte, uint8(v))
	case v <= math.MaxUint16:
		return w.putBE16(uint16Byte, uint16(v))
	case v <= math.MaxUint32:
		return w.putBE32(uint32Byte, uint32(v))
	default:
		return w.putBE64(uint64Byte, v)
	}
}

// writeInt picks fixint/int8/16/32/64, the narrowest that fits v.
func (w *Writer) writeInt(v int64) error {
	if v >= 0 {
		return w.writeUint(uint64(v))
	}
	switch {
	case v >= -32:
		return w.target().Put(byte(int8(v)))
	case v >= math.MinInt8:
		return w.putUint8(int8Byte, uint8(int8(v)))
	case v >= math.MinInt16:
		return w.putBE16(int16Byte, uint16(int16(v)))
	case v >= math.MinInt32:
		return w.putBE32(int32Byte, uint32(int32(v)))
	default:
		return w.putBE64(int64Byte, uint64(v))
	}
}

func (w *Writer) Int32(v int32) error   { return w.writeInt(int64(v)) }
func (w *Writer) Uint32(v uint32) error { return w.writeUint(uint64(v)) }
func (w *Writer) Int64(v int64) error   { return w.writeInt(v) }
func (w *Writer) Uint64(v uint64) error { return w.writeUint(v) }

func (w *Writer) Float(v float32) error {
	var buf [5]byte
	buf[0] = float32Byte
	binary.BigEndian.PutUint32(buf[1:], math.Float32bits(v))
	return w.target().PutSlice(buf[:])
}

func (w *Writer) Double(v float64) error {
	var buf [9]byte
	buf[0] = float64Byte
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v))
	return w.target().PutSlice(buf[:])
}

// DateTime has no native MessagePack representation, so it is wrapped
// in the same two-element tagged-array extension JSON uses.
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

func (w *Writer) Binary(b []byte, copy bool) error {
	n := len(b)
	var err error
	switch {
	case n <= math.MaxUint8:
		err = w.putUint8(bin8, uint8(n))
	case n <= math.MaxUint16:
		err = w.putBE16(bin16, uint16(n))
	default:
		err = w.putBE32(bin32, uint32(n))
	}
	if err != nil {
		return err
	}
	return w.target().PutSlice(b)
}

func (w *Writer) String(b []byte, copy bool) error {
	n := len(b)
	var err error
	switch {
	case n <= 31:
		err = w.target().Put(fixStr | byte(n))
	case n <= math.MaxUint8:
		err = w.putUint8(str8, uint8(n))
	case n <= math.MaxUint16:
		err = w.putBE16(str16, uint16(n))
	default:
		err = w.putBE32(str32, uint32(n))
	}
	if err != nil {
		return err
	}
	return w.target().PutSlice(b)
}

func (w *Writer) Key(b []byte, copy bool) error { return w.String(b, copy) }

func (w *Writer) MapSeparator() error   { return nil }
func (w *Writer) ArraySeparator() error { return nil }

// StartArray/StartMap push a scratch buffer that collects the
// container's encoded elements until the matching End event supplies
// the count needed for the length-prefixed header.
func (w *Writer) StartArray() error {
	w.targets = append(w.targets, stream.NewSegmented())
	return nil
}

func (w *Writer) StartMap() error {
	w.targets = append(w.targets, stream.NewSegmented())
	return nil
}

func (w *Writer) writeArrayHeader(count int) error {
	switch {
	case count <= 15:
		return w.target().Put(fixArray | byte(count))
	case count <= math.MaxUint16:
		return w.putBE16(array16, uint16(count))
	default:
		return w.putBE32(array32, uint32(count))
	}
}

func (w *Writer) writeMapHeader(count int) error {
	switch {
	case count <= 15:
		return w.target().Put(fixMap | byte(count))
	case count <= math.MaxUint16:
		return w.putBE16(map16, uint16(count))
	default:
		return w.putBE32(map32, uint32(count))
	}
}

func (w *Writer) popAndFlush(writeHeader func(count int) error, count int) error {
	buf := w.targets[len(w.targets)-1].(*stream.Segmented)
	w.targets = w.targets[:len(w.targets)-1]
	if err := writeHeader(count); err != nil {
		return err
	}
	return w.target().PutSlice(buf.Bytes())
}

func (w *Writer) EndArray(count int) error { return w.popAndFlush(w.writeArrayHeader, count) }
func (w *Writer) EndMap(count int) error   { return w.popAndFlush(w.writeMapHeader, count) }
