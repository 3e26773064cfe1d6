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
	"sync/atomic"
	"time"

	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/value"
)

// multiplier is a stateful registry.Method, tracking how many times it
// has been called. Most registered methods need no state beyond a
// closure; this one exists to exercise AddMethod's stateful path rather
// than AddFunction's.
type multiplier struct {
	calls atomic.Uint64
}

func (m *multiplier) Call(params value.Value) (value.Value, error) {
	a, b, err := twoNumbers(params)
	if err != nil {
		return value.Invalid(), err
	}
	m.calls.Add(1)
	return value.Double(a * b), nil
}

func twoNumbers(params value.Value) (float64, float64, error) {
	if params.Kind() != value.KindArray || params.Len() != 2 {
		return 0, 0, rpcerr.New(rpcerr.InvalidParams, "Invalid parameters")
	}
	a, err := numberAt(params, 0)
	if err != nil {
		return 0, 0, err
	}
	b, err := numberAt(params, 1)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func numberAt(params value.Value, i int) (float64, error) {
	elem, err := params.Elem(i)
	if err != nil {
		return 0, rpcerr.New(rpcerr.InvalidParams, "Invalid parameters")
	}
	if f, ferr := elem.Double(); ferr == nil {
		return f, nil
	}
	if n, ierr := elem.Int64(); ierr == nil {
		return float64(n), nil
	}
	return 0, rpcerr.New(rpcerr.InvalidParams, "Invalid parameters")
}

func add(params value.Value) (value.Value, error) {
	a, b, err := twoNumbers(params)
	if err != nil {
		return value.Invalid(), err
	}
	return value.Double(a + b), nil
}

func subtract(params value.Value) (value.Value, error) {
	a, b, err := twoNumbers(params)
	if err != nil {
		return value.Invalid(), err
	}
	return value.Double(a - b), nil
}

// wait delays by the millisecond count given as its single parameter,
// mirroring exampleServer.cpp's Wait/MilliSleep pair, and returns null.
func wait(params value.Value) (value.Value, error) {
	if params.Kind() != value.KindArray || params.Len() != 1 {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "Invalid parameters")
	}
	delayVal, err := params.Elem(0)
	if err != nil {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "Invalid parameters")
	}
	delay, err := delayVal.Int64()
	if err != nil {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "Invalid parameters")
	}
	time.Sleep(time.Duration(delay) * time.Millisecond)
	return value.Null(), nil
}

// echo returns params unchanged.
func echo(params value.Value) (value.Value, error) {
	return params, nil
}

// registerExampleMethods populates reg with the add/subtract/multiply/
// wait/echo method set exampleServer.cpp demonstrates.
func registerExampleMethods(reg *registry.Registry) error {
	if err := reg.AddFunction("add", "Add two numbers together", add, false); err != nil {
		return err
	}
	if err := reg.AddFunction("subtract", "Subtract two numbers", subtract, false); err != nil {
		return err
	}
	if err := reg.AddMethod("multiply", "Multiply two numbers", &multiplier{}, false); err != nil {
		return err
	}
	if err := reg.AddFunction("wait", "Wait a given number of milliseconds", wait, false); err != nil {
		return err
	}
	if err := reg.AddFunction("echo", "Echo the given parameters back", echo, false); err != nil {
		return err
	}
	return nil
}
