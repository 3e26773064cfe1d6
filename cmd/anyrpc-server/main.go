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

// Command anyrpc-server runs the example add/subtract/multiply/wait/echo
// method set over every enabled codec, grounded on
// original_source/example/exampleServer.cpp's method set and its
// server-type selection by config rather than a positional argument.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anyrpc-go/anyrpc/config"
	"github.com/anyrpc-go/anyrpc/metrics"
	"github.com/anyrpc-go/anyrpc/registry"
	"github.com/anyrpc-go/anyrpc/rpc/xmlrpc"
)

// RootCmd is anyrpc-server's single command: load a config, register the
// example methods, and run every listener it describes; it returns once
// all of them have exited, with the first error any of them reported.
var RootCmd = &cobra.Command{
	Use:   "anyrpc-server",
	Short: "Example anyrpc method server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var (
	rootVerboseFlag  bool
	rootConfigFlag   string
	rootLogLevelFlag string
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootConfigFlag, "config", "c", os.Getenv("ANYRPC_CONFIG"), "path to a server config YAML file; defaults are used when empty (ANYRPC_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&rootLogLevelFlag, "loglevel", os.Getenv("ANYRPC_LOGLEVEL"), "log level, overriding the config file's log_level (ANYRPC_LOGLEVEL)")
}

// ConfigureVerbosity applies -loglevel/ANYRPC_LOGLEVEL, then -v, on top
// of the config file's log_level.
func ConfigureVerbosity(level string) {
	if rootLogLevelFlag != "" {
		level = rootLogLevelFlag
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

func runServer() error {
	cfg := config.DefaultServerConfig()
	if rootConfigFlag != "" {
		loaded, err := config.LoadServerConfig(rootConfigFlag)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	ConfigureVerbosity(cfg.LogLevel)

	reg := registry.New()
	if err := registerExampleMethods(reg); err != nil {
		return fmt.Errorf("registering methods: %w", err)
	}
	if cfg.Codecs.XML {
		if err := xmlrpc.RegisterMulticall(reg); err != nil {
			return fmt.Errorf("registering system.multicall: %w", err)
		}
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder()
	}

	server, err := newStrategy(cfg, httpContentHandlers(reg, rec, enabledCodecs{
		json: cfg.Codecs.JSON, xml: cfg.Codecs.XML, msgpack: cfg.Codecs.MsgPack,
	}))
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		log.Infof("anyrpc-server: serving codecs %+v over HTTP on %s", cfg.Codecs, cfg.ListenAddr)
		return server.Run(cfg.ListenAddr)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error { return rec.Serve(cfg.Metrics.Addr) })
	}
	for codec, addr := range map[string]string{
		"json":    cfg.Netstring.JSONAddr,
		"xml":     cfg.Netstring.XMLAddr,
		"msgpack": cfg.Netstring.MsgPackAddr,
	} {
		if addr == "" {
			continue
		}
		codec, addr := codec, addr
		nsServer, err := newNetstringStrategy(cfg, netstringContentHandler(reg, rec, codec))
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Infof("anyrpc-server: serving %s over netstring on %s", codec, addr)
			return nsServer.Run(addr)
		})
	}
	return g.Wait()
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
