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

// Package stream implements the byte source/sink abstraction shared by
// every codec reader and writer. Some Stream implementations support
// "in-situ" parsing, where a reader may overwrite the source buffer (to
// NUL-terminate decoded strings in place) and hand out slices that alias
// it instead of allocating copies.
package stream

import "github.com/anyrpc-go/anyrpc/rpcerr"

// ErrBufferOverrun is returned when an in-situ writer's write cursor
// would pass its read cursor.
var ErrBufferOverrun = rpcerr.New(rpcerr.BufferOverrun, "stream buffer overrun")

// Reader is the read side of the Stream contract.
type Reader interface {
	// Peek returns the next unread byte without consuming it. ok is
	// false at end of stream.
	Peek() (b byte, ok bool)
	// Get consumes and returns the next byte. ok is false at end of
	// stream.
	Get() (b byte, ok bool)
	// GetAndClear consumes the next byte like Get, and additionally
	// zeroes it in the backing buffer if the stream supports in-situ
	// mutation (used to NUL-terminate decoded strings in place). On
	// streams that don't own mutable backing storage this behaves like
	// Get.
	GetAndClear() (b byte, ok bool)
	// ReadN reads exactly n bytes, or returns an error (io.ErrUnexpectedEOF
	// equivalent) if fewer remain.
	ReadN(n int) ([]byte, error)
	// Skip advances the read cursor by n bytes.
	Skip(n int) error
	// EOF reports whether the read cursor is at the end of the stream.
	EOF() bool
	// Tell returns the current read offset, used to annotate parse
	// errors with a byte offset.
	Tell() int64
}

// Writer is the write side of the Stream contract.
type Writer interface {
	Put(b byte) error
	PutSlice(b []byte) error
	Flush() error
}

// InSituWriter is implemented by Streams that additionally support
// writing into a region that overlaps the read cursor (used by in-situ
// readers to NUL-terminate or rewrite decoded content in place).
type InSituWriter interface {
	// PutBegin marks the start of an overlapping write region.
	PutBegin()
	// PutEnd closes the region opened by PutBegin and returns the bytes
	// written since, or ErrBufferOverrun if the write cursor passed the
	// read cursor at any point.
	PutEnd() ([]byte, error)
}

// ReadWriter composes Reader and Writer, as implemented by in-situ
// mutable-string streams.
type ReadWriter interface {
	Reader
	Writer
}
