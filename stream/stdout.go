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

import "os"

// Stdout is a thin Writer wrapper around os.Stdout, for printing an
// encoded document without going through a socket.
type Stdout struct{}

// NewStdout returns a Writer that writes to os.Stdout.
func NewStdout() *Stdout { return &Stdout{} }

var _ Writer = (*Stdout)(nil)

// Put implements Writer.
func (Stdout) Put(b byte) error {
	_, err := os.Stdout.Write([]byte{b})
	return err
}

// PutSlice implements Writer.
func (Stdout) PutSlice(b []byte) error {
	_, err := os.Stdout.Write(b)
	return err
}

// Flush implements Writer; os.Stdout is unbuffered from our side.
func (Stdout) Flush() error { return nil }
