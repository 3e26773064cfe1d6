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

import "github.com/anyrpc-go/anyrpc/event"

// Emit replays v as an event sequence into sink, the mirror operation of
// document.Document: where Document turns events into a Value, Emit
// turns a Value back into events so any codec Writer (which is itself an
// event.Sink) can serialize it without needing a second code path for
// "serialize a Value" versus "forward a parsed event stream".
func Emit(v Value, sink event.Sink) error {
	switch v.Kind() {
	case KindInvalid, KindNull:
		return sink.Null()
	case KindBool:
		b, err := v.Bool()
		if err != nil {
			return err
		}
		return sink.Bool(b)
	case KindInt:
		if v.IsUnsigned() {
			u, err := v.Uint64()
			if err != nil {
				return err
			}
			return sink.Uint64(u)
		}
		i, err := v.Int64()
		if err != nil {
			return err
		}
		return sink.Int64(i)
	case KindDouble:
		if v.IsFloat32() {
			f, err := v.Double()
			if err != nil {
				return err
			}
			return sink.Float(float32(f))
		}
		d, err := v.Double()
		if err != nil {
			return err
		}
		return sink.Double(d)
	case KindDateTime:
		t, err := v.DateTime()
		if err != nil {
			return err
		}
		return sink.DateTime(t)
	case KindString:
		b, err := v.Str()
		if err != nil {
			return err
		}
		return sink.String(b, true)
	case KindBinary:
		b, err := v.Str()
		if err != nil {
			return err
		}
		return sink.Binary(b, true)
	case KindArray:
		return emitArray(v, sink)
	case KindMap:
		return emitMap(v, sink)
	default:
		return sink.Null()
	}
}

func emitArray(v Value, sink event.Sink) error {
	if err := sink.StartArray(); err != nil {
		return err
	}
	elems := v.Elements()
	for i, elem := range elems {
		if i > 0 {
			if err := sink.ArraySeparator(); err != nil {
				return err
			}
		}
		if err := Emit(elem, sink); err != nil {
			return err
		}
	}
	return sink.EndArray(len(elems))
}

func emitMap(v Value, sink event.Sink) error {
	if err := sink.StartMap(); err != nil {
		return err
	}
	members := v.Members()
	for i, m := range members {
		if i > 0 {
			if err := sink.MapSeparator(); err != nil {
				return err
			}
		}
		if err := sink.Key([]byte(m.Key), true); err != nil {
			return err
		}
		if err := Emit(m.Value, sink); err != nil {
			return err
		}
	}
	return sink.EndMap(len(members))
}
