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

// Package value implements the document node shared by every codec: a
// tagged union that is either invalid, null, a bool, an integer, a
// float/double, a string, a binary blob, a datetime, an ordered array or
// an ordered map.
//
// Rather than reproduce the original design's bit-flag-tagged union
// (where the same storage could simultaneously answer to an Int64 and a
// Uint32 query), Value is a plain Go sum type: one Kind per wire shape
// plus a single integer subvariant that keeps the raw 64-bit pattern and
// answers range-checked width/signedness queries on demand.
package value

import (
	"fmt"
	"math"
	"time"

	"github.com/anyrpc-go/anyrpc/rpcerr"
)

// Kind identifies which alternative of the Value union is populated.
type Kind uint8

// Kind constants. KindInvalid is the zero value and is distinct from
// KindNull: Invalid means "never set", Null means "set to the null
// literal".
const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindDouble
	KindString
	KindBinary
	KindDateTime
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindDateTime:
		return "datetime"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Member is one (key, value) pair of a Map value. Order of Members within
// a Map reflects insertion order.
type Member struct {
	Key   string
	Value Value
}

// Value is the document node. The zero Value is KindInvalid.
type Value struct {
	kind Kind

	// KindInt: raw two's-complement bit pattern. bigUnsigned marks values
	// whose magnitude exceeds math.MaxInt64, i.e. that have no valid
	// signed 64-bit view.
	u64         uint64
	bigUnsigned bool

	// KindDouble. isFloat32 records that the value was constructed (or
	// decoded) from an IEEE-754 single-precision float, which MessagePack
	// distinguishes on the wire from double precision.
	f64       float64
	isFloat32 bool

	b bool // KindBool

	// KindString / KindBinary payload. borrowed marks that str aliases a
	// Stream's buffer rather than owning a private copy; see the stream
	// package's in-situ contract.
	str      []byte
	borrowed bool

	dt time.Time // KindDateTime

	arr []Value  // KindArray
	mp  []Member // KindMap
}

// Invalid returns the zero Value.
func Invalid() Value { return Value{} }

// Null returns a Value holding the null literal.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a Value holding b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a Value holding the signed integer i.
func Int(i int64) Value { return Value{kind: KindInt, u64: uint64(i)} }

// Uint returns a Value holding the unsigned integer u.
func Uint(u uint64) Value {
	return Value{kind: KindInt, u64: u, bigUnsigned: u > math.MaxInt64}
}

// Double returns a Value holding the double-precision float f.
func Double(f float64) Value { return Value{kind: KindDouble, f64: f} }

// Float returns a Value holding the single-precision float f, remembering
// that it came from a 32-bit source so MessagePack can re-emit it as
// float32.
func Float(f float32) Value { return Value{kind: KindDouble, f64: float64(f), isFloat32: true} }

// String returns an owned-copy Value holding s.
func String(s string) Value { return Value{kind: KindString, str: []byte(s)} }

// StringBytes returns a Value holding b. If copyBytes is false, b is
// aliased directly (the caller is asserting it outlives the Value, e.g.
// because it was handed to us as a borrowed in-situ slice); otherwise a
// private copy is made.
func StringBytes(b []byte, copyBytes bool) Value {
	return Value{kind: KindString, str: ownOrBorrow(b, copyBytes), borrowed: !copyBytes}
}

// Binary returns an owned-copy Value holding raw bytes b.
func Binary(b []byte) Value { return Value{kind: KindBinary, str: append([]byte(nil), b...)} }

// BinaryBytes mirrors StringBytes for the Binary kind.
func BinaryBytes(b []byte, copyBytes bool) Value {
	return Value{kind: KindBinary, str: ownOrBorrow(b, copyBytes), borrowed: !copyBytes}
}

// DateTime returns a Value holding t, interpreted in t's own location for
// formatting (callers that want local-time formatting should pass
// t.Local()).
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, dt: t} }

// Array returns a Value holding an array with the given elements (copied
// into a fresh backing slice).
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: append([]Value(nil), elems...)} }

// Map returns a Value holding a map with the given members, preserving
// the order they're passed in.
func Map(members ...Member) Value { return Value{kind: KindMap, mp: append([]Member(nil), members...)} }

func ownOrBorrow(b []byte, copyBytes bool) []byte {
	if copyBytes {
		return append([]byte(nil), b...)
	}
	return b
}

// Kind reports which alternative is populated.
func (v Value) Kind() Kind { return v.kind }

// IsInvalid reports whether v is the uninitialized sentinel.
func (v Value) IsInvalid() bool { return v.kind == KindInvalid }

// IsNull reports whether v holds the null literal.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Borrowed reports whether a String/Binary Value aliases external storage
// rather than owning a private copy.
func (v Value) Borrowed() bool { return v.borrowed }

func (v Value) wrongKind(want Kind) error {
	return rpcerr.Newf(rpcerr.ValueAccess, "value is %s, not %s", v.kind, want)
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.wrongKind(KindBool)
	}
	return v.b, nil
}

// Int64 returns the payload as a signed 64-bit integer, failing if the
// stored magnitude doesn't fit.
func (v Value) Int64() (int64, error) {
	if v.kind != KindInt {
		return 0, v.wrongKind(KindInt)
	}
	if v.bigUnsigned {
		return 0, rpcerr.New(rpcerr.ValueAccess, "integer value does not fit in int64")
	}
	return int64(v.u64), nil
}

// Uint64 returns the payload as an unsigned 64-bit integer, failing if the
// stored value is negative.
func (v Value) Uint64() (uint64, error) {
	if v.kind != KindInt {
		return 0, v.wrongKind(KindInt)
	}
	if v.bigUnsigned {
		return v.u64, nil
	}
	if int64(v.u64) < 0 {
		return 0, rpcerr.New(rpcerr.ValueAccess, "integer value is negative")
	}
	return v.u64, nil
}

// Int32 returns the payload as a signed 32-bit integer, failing if it
// doesn't fit.
func (v Value) Int32() (int32, error) {
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, rpcerr.New(rpcerr.ValueAccess, "integer value does not fit in int32")
	}
	return int32(i), nil
}

// Uint32 returns the payload as an unsigned 32-bit integer, failing if it
// doesn't fit.
func (v Value) Uint32() (uint32, error) {
	u, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, rpcerr.New(rpcerr.ValueAccess, "integer value does not fit in uint32")
	}
	return uint32(u), nil
}

// IsUnsigned reports whether the stored integer has no valid int64 view
// (i.e. its magnitude exceeds math.MaxInt64).
func (v Value) IsUnsigned() bool { return v.kind == KindInt && v.bigUnsigned }

// Double returns the floating point payload.
func (v Value) Double() (float64, error) {
	if v.kind != KindDouble {
		return 0, v.wrongKind(KindDouble)
	}
	return v.f64, nil
}

// IsFloat32 reports whether a Double value was constructed from a
// single-precision source.
func (v Value) IsFloat32() bool { return v.kind == KindDouble && v.isFloat32 }

// Str returns the raw bytes of a String or Binary value.
func (v Value) Str() ([]byte, error) {
	if v.kind != KindString && v.kind != KindBinary {
		return nil, rpcerr.Newf(rpcerr.ValueAccess, "value is %s, not string or binary", v.kind)
	}
	return v.str, nil
}

// AsString returns the payload of a String value as a Go string (a copy
// is made implicitly by the string conversion).
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.wrongKind(KindString)
	}
	return string(v.str), nil
}

// DateTime returns the payload of a DateTime value.
func (v Value) DateTime() (time.Time, error) {
	if v.kind != KindDateTime {
		return time.Time{}, v.wrongKind(KindDateTime)
	}
	return v.dt, nil
}

// Len returns the number of elements of an Array or members of a Map.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.mp)
	default:
		return 0
	}
}

// Elem returns the i-th element of an Array value.
func (v Value) Elem(i int) (Value, error) {
	if v.kind != KindArray {
		return Value{}, v.wrongKind(KindArray)
	}
	if i < 0 || i >= len(v.arr) {
		return Value{}, rpcerr.Newf(rpcerr.IllegalArrayAccess, "array index %d out of range [0,%d)", i, len(v.arr))
	}
	return v.arr[i], nil
}

// Elements returns the backing slice of an Array value. Callers must not
// mutate the returned slice.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Members returns the backing slice of a Map value in insertion order.
// Callers must not mutate the returned slice.
func (v Value) Members() []Member {
	if v.kind != KindMap {
		return nil
	}
	return v.mp
}

// Get looks up key in a Map value, returning the first matching member's
// value in insertion order (duplicate keys are permitted on the wire).
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, m := range v.mp {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Index returns a pointer to the i-th element of v, upgrading an Invalid
// v to an Array and growing it (with Invalid filler elements) as needed.
// It fails if v is populated with a non-Array, non-Invalid kind.
func (v *Value) Index(i int) (*Value, error) {
	if v.kind == KindInvalid {
		v.kind = KindArray
	}
	if v.kind != KindArray {
		return nil, v.wrongKind(KindArray)
	}
	if i < 0 {
		return nil, rpcerr.Newf(rpcerr.IllegalArrayAccess, "negative array index %d", i)
	}
	for len(v.arr) <= i {
		v.arr = append(v.arr, Value{})
	}
	return &v.arr[i], nil
}

// Append appends elem to an Array value, upgrading an Invalid v to an
// Array as needed.
func (v *Value) Append(elem Value) error {
	if v.kind == KindInvalid {
		v.kind = KindArray
	}
	if v.kind != KindArray {
		return v.wrongKind(KindArray)
	}
	v.arr = append(v.arr, elem)
	return nil
}

// Field returns a pointer to the value slot for key in a Map value,
// upgrading an Invalid v to a Map and appending a new Invalid-valued
// member if key is not already present.
func (v *Value) Field(key string) (*Value, error) {
	if v.kind == KindInvalid {
		v.kind = KindMap
	}
	if v.kind != KindMap {
		return nil, v.wrongKind(KindMap)
	}
	for i := range v.mp {
		if v.mp[i].Key == key {
			return &v.mp[i].Value, nil
		}
	}
	v.mp = append(v.mp, Member{Key: key})
	return &v.mp[len(v.mp)-1].Value, nil
}

// AppendMember always appends a new member to a Map value (upgrading an
// Invalid v to a Map as needed) without deduplicating against an
// existing key, unlike Field. It is used by the document builder to
// preserve duplicate keys exactly as they appeared on the wire.
func (v *Value) AppendMember(key string) (*Value, error) {
	if v.kind == KindInvalid {
		v.kind = KindMap
	}
	if v.kind != KindMap {
		return nil, v.wrongKind(KindMap)
	}
	v.mp = append(v.mp, Member{Key: key})
	return &v.mp[len(v.mp)-1].Value, nil
}

// TruncateArray shrinks an Array value to n elements. It is used by the
// document builder to undo the placeholder element seeded by StartArray
// when an array turns out to be empty.
func (v *Value) TruncateArray(n int) error {
	if v.kind != KindArray {
		return v.wrongKind(KindArray)
	}
	if n < 0 || n > len(v.arr) {
		return rpcerr.Newf(rpcerr.IllegalArrayAccess, "truncate length %d out of range [0,%d]", n, len(v.arr))
	}
	v.arr = v.arr[:n]
	return nil
}

// SetField is a convenience wrapper around Field that stores val directly.
func (v *Value) SetField(key string, val Value) error {
	slot, err := v.Field(key)
	if err != nil {
		return err
	}
	*slot = val
	return nil
}

// Take moves p's contents out, resetting *p to Invalid, mirroring the
// original design's move-assignment semantics (Go has no implicit move,
// so this is the explicit equivalent used where ownership transfer
// matters, e.g. handing a decoded parameter off to a worker goroutine).
func Take(p *Value) Value {
	v := *p
	*p = Value{}
	return v
}

// Clone performs a deep copy of v, including nested arrays and maps, and
// always materializes borrowed String/Binary payloads into owned copies
// so the result outlives whatever buffer v may have aliased.
func (v Value) Clone() Value {
	out := v
	out.borrowed = false
	if v.str != nil {
		out.str = append([]byte(nil), v.str...)
	}
	if v.arr != nil {
		out.arr = make([]Value, len(v.arr))
		for i, e := range v.arr {
			out.arr[i] = e.Clone()
		}
	}
	if v.mp != nil {
		out.mp = make([]Member, len(v.mp))
		for i, m := range v.mp {
			out.mp[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	return out
}

// Equal reports whether v and other are structurally equal. Float32
// provenance is ignored: equality only needs to hold modulo
// Float<->Double promotion where a codec's base format supports only
// double precision.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInvalid, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.u64 == b.u64 && a.bigUnsigned == b.bigUnsigned
	case KindDouble:
		return a.f64 == b.f64
	case KindString, KindBinary:
		return string(a.str) == string(b.str)
	case KindDateTime:
		return a.dt.Equal(b.dt)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.mp) != len(b.mp) {
			return false
		}
		for i := range a.mp {
			if a.mp[i].Key != b.mp[i].Key || !Equal(a.mp[i].Value, b.mp[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer for debugging; it is not a wire format.
func (v Value) String() string {
	switch v.kind {
	case KindInvalid:
		return "<invalid>"
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		if v.bigUnsigned {
			return fmt.Sprintf("%d", v.u64)
		}
		return fmt.Sprintf("%d", int64(v.u64))
	case KindDouble:
		return fmt.Sprintf("%g", v.f64)
	case KindString:
		return fmt.Sprintf("%q", string(v.str))
	case KindBinary:
		return fmt.Sprintf("binary(%d bytes)", len(v.str))
	case KindDateTime:
		return v.dt.Format(time.RFC3339)
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.mp))
	default:
		return "<unknown>"
	}
}
