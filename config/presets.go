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
	"fmt"

	"github.com/go-ini/ini"
)

// Preset is one named connection shortcut for the example client
// binary: an address plus which codec and transport to speak, so a
// user can write `anyrpc-client call --presets presets.ini --preset prod-json add 1 2`
// instead of repeating flags.
type Preset struct {
	Addr      string
	Codec     string // "json", "xml", or "msgpack"
	Transport string // "http" or "netstring"
}

// LoadPresets reads a connection preset file, one [section] per named
// preset, mirroring calnex/config's ini.Section-keyed loading.
func LoadPresets(path string) (map[string]Preset, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	presets := make(map[string]Preset)
	for _, s := range f.Sections() {
		if s.Name() == ini.DefaultSection {
			continue
		}
		p := Preset{
			Addr:      s.Key("addr").String(),
			Codec:     s.Key("codec").MustString("json"),
			Transport: s.Key("transport").MustString("http"),
		}
		if p.Addr == "" {
			return nil, fmt.Errorf("config: preset %q missing addr", s.Name())
		}
		presets[s.Name()] = p
	}
	return presets, nil
}
