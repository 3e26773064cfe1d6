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

package main

import (
	"strconv"

	"github.com/anyrpc-go/anyrpc/value"
)

// parseParams turns positional command-line arguments into an array
// Value, trying int64 then float64 before falling back to a plain
// string, so `anyrpc-client call add 5 6` and `anyrpc-client call echo
// hello` both do the right thing without a --type flag per argument.
func parseParams(args []string) value.Value {
	elems := make([]value.Value, len(args))
	for i, a := range args {
		elems[i] = parseOne(a)
	}
	return value.Array(elems...)
}

func parseOne(a string) value.Value {
	if n, err := strconv.ParseInt(a, 10, 64); err == nil {
		return value.Int(n)
	}
	if f, err := strconv.ParseFloat(a, 64); err == nil {
		return value.Double(f)
	}
	return value.String(a)
}
