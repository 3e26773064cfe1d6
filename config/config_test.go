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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	contents := "listen_addr: \":9090\"\nstrategy: pooled\nworker_pool_size: 6\ncodecs:\n  json: true\n  xml: false\n  msgpack: false\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, Pooled, cfg.Strategy)
	require.Equal(t, 6, cfg.WorkerPoolSize)
	require.True(t, cfg.Codecs.JSON)
	require.False(t, cfg.Codecs.XML)
	// untouched fields keep their defaults
	require.Equal(t, DefaultServerConfig().MaxConnections, cfg.MaxConnections)
}

func TestServerConfigValidateRejectsNoCodecs(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Codecs = Codecs{}
	require.Error(t, cfg.Validate())
}

func TestServerConfigValidateRejectsPooledWithoutWorkers(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Strategy = Pooled
	cfg.WorkerPoolSize = 0
	require.Error(t, cfg.Validate())
}

func TestLoadServerConfigParsesNetstringAddrs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	contents := "netstring:\n  json_addr: \":9001\"\n  msgpack_addr: \":9003\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9001", cfg.Netstring.JSONAddr)
	require.Equal(t, "", cfg.Netstring.XMLAddr)
	require.Equal(t, ":9003", cfg.Netstring.MsgPackAddr)
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.ini")
	contents := "[prod]\naddr = 10.0.0.1:8080\ncodec = msgpack\ntransport = netstring\n\n[staging]\naddr = 10.0.0.2:8080\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	presets, err := LoadPresets(path)
	require.NoError(t, err)
	require.Equal(t, Preset{Addr: "10.0.0.1:8080", Codec: "msgpack", Transport: "netstring"}, presets["prod"])
	require.Equal(t, Preset{Addr: "10.0.0.2:8080", Codec: "json", Transport: "http"}, presets["staging"])
}

func TestLoadPresetsRejectsMissingAddr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.ini")
	require.NoError(t, os.WriteFile(path, []byte("[bad]\ncodec = json\n"), 0o644))

	_, err := LoadPresets(path)
	require.Error(t, err)
}
