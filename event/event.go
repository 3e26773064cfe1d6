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

// Package event defines the push-parsing (SAX-style) Sink interface that
// every codec reader emits into and every codec writer (and the document
// builder) implements. A totally ordered event sequence looks like:
//
//	StartDocument, value, EndDocument
//	value ::= Null | Bool | <number> | DateTime |
//	          String(bytes, copy) | Binary(bytes, copy) |
//	          StartArray [, value (, ArraySeparator, value)*], EndArray(n) |
//	          StartMap   [, Key, value (, MapSeparator, Key, value)*], EndMap(n)
//
// The copy argument on String/Binary/Key tells a Sink whether the byte
// slice outlives the current parse position: false means the slice
// aliases the reader's input buffer (in-situ) and must not be retained
// past the lifetime of that buffer without being copied first.
package event

import "time"

// Sink receives a totally ordered event sequence describing one
// document. EndArray and EndMap carry the number of elements/members
// delivered since the matching Start event, which implementations use to
// validate count correctness.
type Sink interface {
	StartDocument() error
	EndDocument() error

	Null() error
	Bool(v bool) error
	Int32(v int32) error
	Uint32(v uint32) error
	Int64(v int64) error
	Uint64(v uint64) error
	Float(v float32) error
	Double(v float64) error
	DateTime(v time.Time) error
	String(b []byte, copy bool) error
	Binary(b []byte, copy bool) error

	StartArray() error
	ArraySeparator() error
	EndArray(count int) error

	StartMap() error
	Key(b []byte, copy bool) error
	MapSeparator() error
	EndMap(count int) error
}

// Source is implemented by every codec reader: Decode drives sink with
// the events for exactly one document read from the reader's Stream.
type Source interface {
	Decode(sink Sink) error
}
