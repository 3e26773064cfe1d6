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

package metrics

import (
	"time"

	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/value"
)

// InstrumentedExecute wraps registry.Execute with dispatch timing and
// fault-code recording, keeping the registry itself free of a metrics
// dependency: every server content handler calls this instead of
// reg.Execute directly.
func InstrumentedExecute(r *Recorder, reg *registry.Registry, transport, codec, method string, params value.Value) (value.Value, error) {
	start := time.Now()
	result, err := reg.Execute(method, params)
	took := time.Since(start)
	if r == nil {
		return result, err
	}
	if err != nil {
		code := int(rpcerr.InternalError)
		if rerr := rpcerr.AsError(err); rerr != nil {
			code = int(rerr.Code)
		}
		r.RecordDispatch(method, transport, codec, code, took)
		return result, err
	}
	r.RecordDispatch(method, transport, codec, 0, took)
	return result, nil
}
