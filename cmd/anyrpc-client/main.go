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

// Command anyrpc-client drives a connection the way
// original_source/example/exampleClient.cpp's TestClient does: plain
// Call, a pipelined Post/GetPostResult batch, a fire-and-forget Notify,
// and a delayed Call, against whichever codec/transport/address the
// caller selects.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anyrpc-go/anyrpc/config"
)

// RootCmd is anyrpc-client's entry point; call/notify/demo hang off it.
var RootCmd = &cobra.Command{
	Use:   "anyrpc-client",
	Short: "Example anyrpc client",
}

var (
	rootVerboseFlag   bool
	rootAddrFlag      string
	rootCodecFlag     string
	rootTransportFlag string
	rootPresetsFlag   string
	rootPresetFlag    string
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVar(&rootAddrFlag, "addr", "127.0.0.1:8080", "server address")
	RootCmd.PersistentFlags().StringVar(&rootCodecFlag, "codec", "json", "codec to speak: json, xml, or msgpack")
	RootCmd.PersistentFlags().StringVar(&rootTransportFlag, "transport", "http", "transport to use: http or netstring")
	RootCmd.PersistentFlags().StringVar(&rootPresetsFlag, "presets", "", "path to a connection presets INI file")
	RootCmd.PersistentFlags().StringVar(&rootPresetFlag, "preset", "", "named preset from --presets to use instead of --addr/--codec/--transport")
}

// ConfigureVerbosity configures log verbosity based on parsed flags.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// resolveConnection applies --preset over --addr/--codec/--transport
// when one is named, mirroring config.Preset's purpose.
func resolveConnection() (addr, codec, transport string, err error) {
	addr, codec, transport = rootAddrFlag, rootCodecFlag, rootTransportFlag
	if rootPresetFlag == "" {
		return addr, codec, transport, nil
	}
	if rootPresetsFlag == "" {
		return "", "", "", fmt.Errorf("anyrpc-client: --preset requires --presets")
	}
	presets, err := config.LoadPresets(rootPresetsFlag)
	if err != nil {
		return "", "", "", err
	}
	p, ok := presets[rootPresetFlag]
	if !ok {
		return "", "", "", fmt.Errorf("anyrpc-client: unknown preset %q", rootPresetFlag)
	}
	return p.Addr, p.Codec, p.Transport, nil
}

// Execute is anyrpc-client's main entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
