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

// Package document implements the reference event.Sink: it materializes
// a push-parsed event stream into a value.Value tree using an explicit
// construction stack (events arrive push-style, so recursion isn't an
// option), and optionally converts the two tagged-array extension shapes
// (AnyRpcDateTime / AnyRpcBase64) back into native DateTime/Binary
// values.
package document

import (
	"encoding/base64"
	"time"

	"github.com/anyrpc-go/anyrpc/event"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/value"
)

// Extension tag strings reserved by the wire format for DateTime/Binary
// values in codecs that have no native representation for them: JSON
// uses both, MessagePack uses the DateTime tag. XML-RPC has native tags
// for both and does not use them.
const (
	TagDateTime = "AnyRpcDateTime"
	TagBase64   = "AnyRpcBase64"
)

// dateTimeWireLayout is the fixed YYYYMMDDTHH:MM:SS format used on the
// wire for tagged DateTime values.
const dateTimeWireLayout = "20060102T15:04:05"

type frameKind uint8

const (
	frameArray frameKind = iota
	frameMap
)

type frame struct {
	kind      frameKind
	container *value.Value
}

// Document builds a single value.Value tree from a push-parsed event
// sequence.
type Document struct {
	root  value.Value
	cur   *value.Value
	stack []frame

	convertExtensions bool
}

// New returns a Document. When convertExtensions is true, two-element
// tagged arrays (see TagDateTime / TagBase64) are rewritten in place to
// native DateTime/Binary values as soon as their EndArray event is
// delivered.
func New(convertExtensions bool) *Document {
	d := &Document{convertExtensions: convertExtensions}
	d.cur = &d.root
	return d
}

var _ event.Sink = (*Document)(nil)

// Result returns the fully constructed Value. Calling it before EndDocument
// returns whatever has been built so far.
func (d *Document) Result() value.Value { return d.root }

// StartDocument resets the builder to begin a new document.
func (d *Document) StartDocument() error {
	d.root = value.Value{}
	d.cur = &d.root
	d.stack = d.stack[:0]
	return nil
}

// EndDocument finishes the current document. It fails if a container is
// still open, which would indicate a reader delivered an unbalanced
// event sequence.
func (d *Document) EndDocument() error {
	if len(d.stack) != 0 {
		return rpcerr.New(rpcerr.InternalError, "document: EndDocument with unterminated container")
	}
	return nil
}

func (d *Document) Null() error { *d.cur = value.Null(); return nil }
func (d *Document) Bool(v bool) error { *d.cur = value.Bool(v); return nil }
func (d *Document) Int32(v int32) error { *d.cur = value.Int(int64(v)); return nil }
func (d *Document) Uint32(v uint32) error { *d.cur = value.Uint(uint64(v)); return nil }
func (d *Document) Int64(v int64) error { *d.cur = value.Int(v); return nil }
func (d *Document) Uint64(v uint64) error { *d.cur = value.Uint(v); return nil }
func (d *Document) Float(v float32) error { *d.cur = value.Float(v); return nil }
func (d *Document) Double(v float64) error { *d.cur = value.Double(v); return nil }
func (d *Document) DateTime(v time.Time) error { *d.cur = value.DateTime(v); return nil }

func (d *Document) String(b []byte, copy bool) error {
	*d.cur = value.StringBytes(b, copy)
	return nil
}

func (d *Document) Binary(b []byte, copy bool) error {
	*d.cur = value.BinaryBytes(b, copy)
	return nil
}

// StartArray upgrades the current slot to an Array, seeds it with one
// Invalid placeholder element (so a subsequent EndArray with no elements
// in between can tell an empty array from a container that was never
// populated) and descends into that placeholder.
func (d *Document) StartArray() error {
	container := d.cur
	*container = value.Array()
	elem, err := container.Index(0)
	if err != nil {
		return err
	}
	d.stack = append(d.stack, frame{kind: frameArray, container: container})
	d.cur = elem
	return nil
}

// ArraySeparator appends a new Invalid placeholder element to the array
// on top of the stack and descends into it.
func (d *Document) ArraySeparator() error {
	top, err := d.topFrame(frameArray)
	if err != nil {
		return err
	}
	elem, err := top.container.Index(top.container.Len())
	if err != nil {
		return err
	}
	d.cur = elem
	return nil
}

// EndArray closes the array on top of the stack, shrinking it back to
// zero elements if it turns out to be empty (the placeholder element
// from StartArray was never overwritten), verifies the delivered count,
// and applies extension-tag conversion when enabled.
func (d *Document) EndArray(count int) error {
	top, err := d.topFrame(frameArray)
	if err != nil {
		return err
	}
	if d.cur.IsInvalid() {
		if err := top.container.TruncateArray(top.container.Len() - 1); err != nil {
			return err
		}
	}
	if top.container.Len() != count {
		return rpcerr.Newf(rpcerr.InternalError, "array end count mismatch: got %d events, end event says %d", top.container.Len(), count)
	}

	d.stack = d.stack[:len(d.stack)-1]
	d.cur = top.container

	if d.convertExtensions {
		d.maybeConvertExtension(top.container)
	}
	return nil
}

// StartMap upgrades the current slot to an empty Map.
func (d *Document) StartMap() error {
	container := d.cur
	*container = value.Map()
	d.stack = append(d.stack, frame{kind: frameMap, container: container})
	return nil
}

// Key appends a new member with the given key (preserving duplicates
// exactly as delivered) and descends into its value slot.
func (d *Document) Key(b []byte, copy bool) error {
	top, err := d.topFrame(frameMap)
	if err != nil {
		return err
	}
	slot, err := top.container.AppendMember(string(b))
	if err != nil {
		return err
	}
	d.cur = slot
	return nil
}

// MapSeparator is a no-op for Document: the next Key event creates the
// next member slot, so there is no intermediate state to track here
// (unlike the array case, a map never needs a placeholder member).
func (d *Document) MapSeparator() error { return nil }

// EndMap closes the map on top of the stack and verifies the delivered
// count.
func (d *Document) EndMap(count int) error {
	top, err := d.topFrame(frameMap)
	if err != nil {
		return err
	}
	if top.container.Len() != count {
		return rpcerr.Newf(rpcerr.InternalError, "map end count mismatch: got %d events, end event says %d", top.container.Len(), count)
	}
	d.stack = d.stack[:len(d.stack)-1]
	d.cur = top.container
	return nil
}

func (d *Document) topFrame(want frameKind) (frame, error) {
	if len(d.stack) == 0 {
		return frame{}, rpcerr.New(rpcerr.InternalError, "document: container event with no open container")
	}
	top := d.stack[len(d.stack)-1]
	if top.kind != want {
		return frame{}, rpcerr.New(rpcerr.InternalError, "document: mismatched array/map event")
	}
	return top, nil
}

// maybeConvertExtension rewrites container in place to a DateTime or
// Binary value if it matches the two-element [tag, payload] shape
// reserved for formats without a native representation for those kinds.
func (d *Document) maybeConvertExtension(container *value.Value) {
	if container.Kind() != value.KindArray || container.Len() != 2 {
		return
	}
	tagVal, err := container.Elem(0)
	if err != nil || tagVal.Kind() != value.KindString {
		return
	}
	tag, _ := tagVal.AsString()

	payloadVal, err := container.Elem(1)
	if err != nil || payloadVal.Kind() != value.KindString {
		return
	}
	payload, _ := payloadVal.AsString()

	switch tag {
	case TagDateTime:
		t, err := time.Parse(dateTimeWireLayout, payload)
		if err != nil {
			return
		}
		*container = value.DateTime(t)
	case TagBase64:
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return
		}
		*container = value.Binary(raw)
	}
}
