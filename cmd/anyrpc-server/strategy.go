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
	"fmt"

	"github.com/anyrpc-go/anyrpc/config"
	"github.com/anyrpc-go/anyrpc/connstate"
	"github.com/anyrpc-go/anyrpc/rpcserver"
)

// rpcServer is the subset of ServerST/ServerMT/ServerTP every listener
// goroutine needs.
type rpcServer interface {
	Run(addr string) error
}

// newStrategy builds the HTTP-framed server matching cfg.Strategy.
func newStrategy(cfg config.ServerConfig, handlers []connstate.ContentHandler) (rpcServer, error) {
	return buildStrategy(cfg, handlers, connstate.HTTPFraming)
}

// newNetstringStrategy builds a single-codec netstring-framed server of
// the same concurrency strategy, one per configured
// config.NetstringListeners address.
func newNetstringStrategy(cfg config.ServerConfig, handlers []connstate.ContentHandler) (rpcServer, error) {
	return buildStrategy(cfg, handlers, connstate.NetstringFraming)
}

func buildStrategy(cfg config.ServerConfig, handlers []connstate.ContentHandler, framing connstate.Framing) (rpcServer, error) {
	rcfg := cfg.RPCServerConfig()
	switch cfg.Strategy {
	case config.SingleThreaded:
		return rpcserver.NewServerST(rcfg, handlers, framing), nil
	case config.Threaded:
		return rpcserver.NewServerMT(rcfg, handlers, framing), nil
	case config.Pooled:
		return rpcserver.NewServerTP(rcfg, handlers, framing), nil
	default:
		return nil, fmt.Errorf("anyrpc-server: unknown strategy %q", cfg.Strategy)
	}
}
