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

// Package config loads the anyrpc-server YAML configuration and the
// anyrpc-client INI connection presets, grounded on
// ptp4u/server/config.go's yaml.Unmarshal-based Config and
// calnex/config/config.go's ini.Section-based loader.
package config

import (
	"fmt"
	"os"

	"github.com/anyrpc-go/anyrpc/rpcserver"
	yaml "gopkg.in/yaml.v2"
)

// Strategy names the concurrency strategy a server binds to, mirroring
// rpcserver's three implementations.
type Strategy string

const (
	SingleThreaded Strategy = "single"
	Threaded       Strategy = "threaded"
	Pooled         Strategy = "pooled"
)

// Codecs enables or disables each supported envelope independently, so
// a deployment can run JSON-RPC only, or all three at once.
type Codecs struct {
	JSON    bool `yaml:"json"`
	XML     bool `yaml:"xml"`
	MsgPack bool `yaml:"msgpack"`
}

// Metrics configures the optional Prometheus exposition endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// NetstringListeners names one single-codec, netstring-framed TCP
// listener address per codec, mirroring the original design's
// per-protocol JsonTcpServer/XmlTcpServer/MessagePackTcpServer split. An
// empty address leaves that listener disabled; ListenAddr's HTTP
// listener always multiplexes all enabled codecs by content type
// instead.
type NetstringListeners struct {
	JSONAddr    string `yaml:"json_addr"`
	XMLAddr     string `yaml:"xml_addr"`
	MsgPackAddr string `yaml:"msgpack_addr"`
}

// ServerConfig is the anyrpc-server YAML configuration document.
type ServerConfig struct {
	ListenAddr     string             `yaml:"listen_addr"`
	Strategy       Strategy           `yaml:"strategy"`
	MaxConnections int                `yaml:"max_connections"`
	WorkerPoolSize int                `yaml:"worker_pool_size"`
	Codecs         Codecs             `yaml:"codecs"`
	Netstring      NetstringListeners `yaml:"netstring"`
	Metrics        Metrics            `yaml:"metrics"`
	LogLevel       string             `yaml:"log_level"`
}

// DefaultServerConfig mirrors rpcserver.DefaultConfig's admission
// defaults and enables every codec over a single netstring-free HTTP
// listener.
func DefaultServerConfig() ServerConfig {
	def := rpcserver.DefaultConfig()
	return ServerConfig{
		ListenAddr:     ":8080",
		Strategy:       SingleThreaded,
		MaxConnections: def.MaxConnections,
		WorkerPoolSize: def.PoolSize,
		Codecs:         Codecs{JSON: true, XML: true, MsgPack: true},
		LogLevel:       "info",
	}
}

// LoadServerConfig reads and parses a YAML server config file, starting
// from DefaultServerConfig so a file only needs to override what it
// cares about.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configs the server can't run with.
func (c ServerConfig) Validate() error {
	switch c.Strategy {
	case SingleThreaded, Threaded, Pooled:
	default:
		return fmt.Errorf("config: unknown server strategy %q", c.Strategy)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("config: max_connections must be positive")
	}
	if c.Strategy == Pooled && c.WorkerPoolSize <= 0 {
		return fmt.Errorf("config: worker_pool_size must be positive for the pooled strategy")
	}
	if !c.Codecs.JSON && !c.Codecs.XML && !c.Codecs.MsgPack {
		return fmt.Errorf("config: at least one codec must be enabled")
	}
	return nil
}

// RPCServerConfig projects c onto rpcserver.Config.
func (c ServerConfig) RPCServerConfig() rpcserver.Config {
	return rpcserver.Config{MaxConnections: c.MaxConnections, PoolSize: c.WorkerPoolSize}
}
