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

package stream

import (
	"fmt"

	"github.com/anyrpc-go/anyrpc/rpcerr"
)

// ConstString is a read-only Stream over a caller-owned byte slice. It
// never mutates the backing buffer, so readers asking for in-situ strings
// against it must request the copy flag instead.
type ConstString struct {
	buf []byte
	pos int
}

// NewConstString wraps buf for read-only, non-in-situ parsing.
func NewConstString(buf []byte) *ConstString {
	return &ConstString{buf: buf}
}

var _ Reader = (*ConstString)(nil)

// Peek implements Reader.
func (s *ConstString) Peek() (byte, bool) {
	if s.pos >= len(s.buf) {
		return 0, false
	}
	return s.buf[s.pos], true
}

// Get implements Reader.
func (s *ConstString) Get() (byte, bool) {
	b, ok := s.Peek()
	if ok {
		s.pos++
	}
	return b, ok
}

// GetAndClear implements Reader. ConstString has no mutable backing
// storage, so this behaves exactly like Get.
func (s *ConstString) GetAndClear() (byte, bool) { return s.Get() }

// ReadN implements Reader.
func (s *ConstString) ReadN(n int) ([]byte, error) {
	if s.pos+n > len(s.buf) {
		return nil, fmt.Errorf("const string stream: short read at offset %d: want %d bytes, have %d", s.pos, n, len(s.buf)-s.pos)
	}
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// Skip implements Reader.
func (s *ConstString) Skip(n int) error {
	if s.pos+n > len(s.buf) {
		return rpcerr.New(rpcerr.BufferOverrun, "skip past end of const string stream")
	}
	s.pos += n
	return nil
}

// EOF implements Reader.
func (s *ConstString) EOF() bool { return s.pos >= len(s.buf) }

// Tell implements Reader.
func (s *ConstString) Tell() int64 { return int64(s.pos) }
