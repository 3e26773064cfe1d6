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

// Package registry implements the name-to-method table every RPC server
// dispatches through. It is grounded on ptp4u/server/subscription.go's
// syncMapCli idiom (a mutex-guarded map with explicit lock/unlock pairs
// around mutation and iteration), generalized from a fixed
// client-tracking map to a name->method registry with active-call
// refcounting.
package registry

import (
	"sort"
	"sync"

	"github.com/anyrpc-go/anyrpc/rpcerr"
	"github.com/anyrpc-go/anyrpc/value"
)

// Func is the plain-function method shape: most registered methods need
// no state beyond their closure.
type Func func(params value.Value) (value.Value, error)

// Method is implemented by stateful methods that need a handle beyond a
// bare closure (e.g. to be explicitly torn down on Remove).
type Method interface {
	Call(params value.Value) (value.Value, error)
}

// funcMethod adapts a Func to Method.
type funcMethod Func

func (f funcMethod) Call(params value.Value) (value.Value, error) { return f(params) }

// entry is one registered method plus its registry-managed bookkeeping.
type entry struct {
	method         Method
	help           string
	closer         func() // invoked on Remove/redefine rejection when deleteOnRemove is set
	deleteOnRemove bool

	active        int // goroutines currently inside Call
	pendingDelete bool
}

// Registry maps method names to methods, dispatching Execute under a
// refcount that keeps Remove from tearing a method down while a call is
// still inside it.
type Registry struct {
	mu      sync.Mutex
	methods map[string]*entry
}

// New returns an empty Registry with system.listMethods and
// system.methodHelp pre-registered.
func New() *Registry {
	r := &Registry{methods: make(map[string]*entry)}
	r.AddFunction("system.listMethods", "Returns an array of the names of the registered methods", r.listMethods, false)
	r.AddFunction("system.methodHelp", "Returns the help string for the named method", r.methodHelp, false)
	return r
}

// AddFunction registers a stateless function under name. deleteOnRemove
// is accepted for fidelity with the original API surface (stateful
// instances there own heap resources a close hook must release); a plain
// Func has nothing to close, so it is ignored here and only meaningful
// via AddMethod.
func (r *Registry) AddFunction(name, help string, fn Func, deleteOnRemove bool) error {
	return r.add(name, help, funcMethod(fn), nil, deleteOnRemove, rpcerr.FunctionRedefine)
}

// AddMethod registers a stateful Method under name. If deleteOnRemove is
// true and m implements an optional Close() method, Close is invoked
// once the method is actually torn down (on Remove, or on a later
// decrement to zero if calls were active at Remove time), and also if
// AddMethod itself fails because name is already taken.
func (r *Registry) AddMethod(name, help string, m Method, deleteOnRemove bool) error {
	var closer func()
	if c, ok := m.(interface{ Close() }); ok && deleteOnRemove {
		closer = c.Close
	}
	return r.add(name, help, m, closer, deleteOnRemove, rpcerr.MethodRedefine)
}

func (r *Registry) add(name, help string, m Method, closer func(), deleteOnRemove bool, redefineCode rpcerr.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.methods[name]; ok && !existing.pendingDelete {
		if closer != nil {
			closer()
		}
		return rpcerr.New(redefineCode, "method already registered: "+name)
	}
	r.methods[name] = &entry{method: m, help: help, closer: closer, deleteOnRemove: deleteOnRemove}
	return nil
}

// Remove unregisters name. If the method has active callers, the removal
// is deferred: the entry is marked pending-delete so Execute stops
// admitting new calls, and the last caller to finish physically deletes
// it and runs its close hook.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.methods[name]
	if !ok || e.pendingDelete {
		return rpcerr.New(rpcerr.MethodNotFound, "method not found: "+name)
	}
	if e.active > 0 {
		e.pendingDelete = true
		return nil
	}
	delete(r.methods, name)
	if e.deleteOnRemove && e.closer != nil {
		e.closer()
	}
	return nil
}

// Execute looks up name, holds a reference against concurrent removal
// for the duration of the call, and invokes it. Methods marked
// pending-delete are treated as not-found for new lookups.
func (r *Registry) Execute(name string, params value.Value) (value.Value, error) {
	r.mu.Lock()
	e, ok := r.methods[name]
	if !ok || e.pendingDelete {
		r.mu.Unlock()
		return value.Invalid(), rpcerr.New(rpcerr.MethodNotFound, "method not found: "+name)
	}
	e.active++
	r.mu.Unlock()

	result, err := e.method.Call(params)

	r.mu.Lock()
	e.active--
	if e.pendingDelete && e.active == 0 {
		delete(r.methods, name)
		if e.deleteOnRemove && e.closer != nil {
			e.closer()
		}
	}
	r.mu.Unlock()

	return result, err
}

// listMethods implements system.listMethods.
func (r *Registry) listMethods(value.Value) (value.Value, error) {
	r.mu.Lock()
	names := make([]string, 0, len(r.methods))
	for name, e := range r.methods {
		if !e.pendingDelete {
			names = append(names, name)
		}
	}
	r.mu.Unlock()
	sort.Strings(names)

	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i] = value.String(n)
	}
	return value.Array(elems...), nil
}

// methodHelp implements system.methodHelp.
func (r *Registry) methodHelp(params value.Value) (value.Value, error) {
	if params.Kind() != value.KindArray || params.Len() < 1 {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "system.methodHelp requires a method name parameter")
	}
	nameVal, err := params.Elem(0)
	if err != nil {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "system.methodHelp requires a method name parameter")
	}
	name, err := nameVal.AsString()
	if err != nil {
		return value.Invalid(), rpcerr.New(rpcerr.InvalidParams, "system.methodHelp requires a string method name")
	}

	r.mu.Lock()
	e, ok := r.methods[name]
	var help string
	if ok && !e.pendingDelete {
		help = e.help
	}
	r.mu.Unlock()
	if !ok {
		return value.Invalid(), rpcerr.New(rpcerr.MethodNotFound, "method not found: "+name)
	}
	return value.String(help), nil
}
