// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config implements the recursive config document from
// spec.md §3/§4.K: top-level bar defaults plus a per-monitor map of
// either a single bar or an ordered list of bars, loaded from
// whichever of JSON, TOML, YAML, or Corn the file extension names.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/ferrobar/ferrobar/internal/bar"
	"github.com/ferrobar/ferrobar/internal/config/corn"
)

// ExitCodeParseFailure is the stable process exit code used when
// config parsing fails at startup (spec.md §4.K "exits the process
// with a named, stable exit code so launchers can detect configuration
// errors").
const ExitCodeParseFailure = 78 // EX_CONFIG, sysexits.h

// ModuleConfig is one entry in a module list: a kind tag, the common
// wrapper options every module shares (spec.md §4.H "Common wrapper"),
// and kind-specific fields carried as a raw, not-yet-decoded document
// so that adding a new module kind never touches this package.
type ModuleConfig struct {
	Kind   string
	Common bar.CommonConfig
	Raw    map[string]any
}

// commonFieldNames lists the keys genericDecode strips out of Raw
// because they belong to bar.CommonConfig, not the module's own
// fields.
var commonFieldNames = map[string]bool{
	"type": true, "name": true, "class": true, "show_if": true,
	"on_click_left": true, "on_click_middle": true, "on_click_right": true,
	"on_scroll_up": true, "on_scroll_down": true, "tooltip": true,
	"transition_type": true, "transition_millis": true,
}

func parseClickHandler(v any) bar.ClickHandler {
	s, _ := v.(string)
	if after, ok := strings2CutPrefix(s, "popup:"); ok {
		return bar.ClickHandler{PopupAction: after}
	}
	return bar.ClickHandler{Shell: s}
}

func strings2CutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

// genericDecode splits a decoded "any-map" module entry into its
// Kind/Common/Raw parts. Called from each format's Unmarshal hook so
// that JSON, TOML, and YAML module entries all end up with the same
// shape regardless of which library decoded them.
func genericDecode(m map[string]any) ModuleConfig {
	mc := ModuleConfig{Raw: map[string]any{}}
	if kind, ok := m["type"].(string); ok {
		mc.Kind = kind
	}
	if name, ok := m["name"].(string); ok {
		mc.Common.Name = name
	}
	if class, ok := m["class"].(string); ok {
		mc.Common.Class = class
	}
	if showIf, ok := m["show_if"].(string); ok {
		mc.Common.ShowIf = showIf
	}
	if v, ok := m["on_click_left"]; ok {
		mc.Common.OnClickLeft = parseClickHandler(v)
	}
	if v, ok := m["on_click_middle"]; ok {
		mc.Common.OnClickMiddle = parseClickHandler(v)
	}
	if v, ok := m["on_click_right"]; ok {
		mc.Common.OnClickRight = parseClickHandler(v)
	}
	if v, ok := m["on_scroll_up"]; ok {
		mc.Common.OnScrollUp = parseClickHandler(v)
	}
	if v, ok := m["on_scroll_down"]; ok {
		mc.Common.OnScrollDown = parseClickHandler(v)
	}
	if tooltip, ok := m["tooltip"].(string); ok {
		mc.Common.Tooltip = tooltip
	}
	if tt, ok := m["transition_type"].(string); ok {
		mc.Common.TransitionType = tt
	}
	switch tm := m["transition_millis"].(type) {
	case float64:
		mc.Common.TransitionMillis = int(tm)
	case int64:
		mc.Common.TransitionMillis = int(tm)
	case int:
		mc.Common.TransitionMillis = tm
	}
	for k, v := range m {
		if !commonFieldNames[k] {
			mc.Raw[k] = v
		}
	}
	return mc
}

// UnmarshalJSON decodes a module entry generically, then splits it
// via genericDecode.
func (mc *ModuleConfig) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*mc = genericDecode(m)
	return nil
}

// UnmarshalYAML implements yaml.v2's Unmarshaler so module entries
// decode through the same genericDecode path as JSON.
func (mc *ModuleConfig) UnmarshalYAML(unmarshal func(any) error) error {
	var m map[string]any
	if err := unmarshal(&m); err != nil {
		return err
	}
	*mc = genericDecode(stringifyYAMLKeys(m))
	return nil
}

// stringifyYAMLKeys normalizes yaml.v2's map[interface{}]interface{}
// nesting (which it produces for untyped maps) into map[string]any so
// genericDecode can treat YAML and JSON documents identically.
func stringifyYAMLKeys(in any) map[string]any {
	out := map[string]any{}
	switch v := in.(type) {
	case map[string]any:
		for k, val := range v {
			out[k] = val
		}
	case map[any]any:
		for k, val := range v {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
	}
	return out
}

// UnmarshalTOML implements BurntSushi/toml's Unmarshaler so module
// entries decode through the same genericDecode path as JSON.
func (mc *ModuleConfig) UnmarshalTOML(in any) error {
	m, ok := in.(map[string]any)
	if !ok {
		return fmt.Errorf("config: module entry is not a table")
	}
	*mc = genericDecode(m)
	return nil
}

// BarConfig is one bar block: the fields of internal/bar.Bar that are
// config-controlled, plus its module lists.
type BarConfig struct {
	Position      bar.Position `json:"position" toml:"position" yaml:"position"`
	AnchorToEdges bool         `json:"anchor_to_edges" toml:"anchor_to_edges" yaml:"anchor_to_edges"`
	Height        int          `json:"height" toml:"height" yaml:"height"`
	Margin        bar.Margin   `json:"margin" toml:"margin" yaml:"margin"`
	Name          string       `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	Class         string       `json:"class,omitempty" toml:"class,omitempty" yaml:"class,omitempty"`

	Start  []ModuleConfig `json:"start,omitempty" toml:"start,omitempty" yaml:"start,omitempty"`
	Center []ModuleConfig `json:"center,omitempty" toml:"center,omitempty" yaml:"center,omitempty"`
	End    []ModuleConfig `json:"end,omitempty" toml:"end,omitempty" yaml:"end,omitempty"`
}

// Defaults returns the built-in bar defaults (spec.md §4.K "merged
// with defaults: bar position = Bottom, height = 42, anchor-to-edges
// true, empty module lists").
func Defaults() BarConfig {
	return BarConfig{
		Position:      bar.Bottom,
		AnchorToEdges: true,
		Height:        42,
	}
}

// MonitorConfig is either a single bar or an ordered list of bars for
// one monitor key (spec.md §3 "either a single bar config or an
// ordered list of bar configs").
type MonitorConfig struct {
	Single   *BarConfig
	Multiple []BarConfig
}

// IsMultiple reports whether this monitor entry names more than one
// bar.
func (m MonitorConfig) IsMultiple() bool { return m.Multiple != nil }

// Bars returns the monitor's bar configs as a slice regardless of
// which form was used, for code that only needs to iterate.
func (m MonitorConfig) Bars() []BarConfig {
	if m.Multiple != nil {
		return m.Multiple
	}
	if m.Single != nil {
		return []BarConfig{*m.Single}
	}
	return nil
}

func (m *MonitorConfig) UnmarshalJSON(data []byte) error {
	var multi []BarConfig
	if err := json.Unmarshal(data, &multi); err == nil {
		m.Multiple = multi
		return nil
	}
	var single BarConfig
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	m.Single = &single
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON's single-or-list flexibility for
// YAML documents.
func (m *MonitorConfig) UnmarshalYAML(unmarshal func(any) error) error {
	var multi []BarConfig
	if err := unmarshal(&multi); err == nil {
		m.Multiple = multi
		return nil
	}
	var single BarConfig
	if err := unmarshal(&single); err != nil {
		return err
	}
	m.Single = &single
	return nil
}

// Config is the whole recursive document (spec.md §3 "Config").
type Config struct {
	Default   BarConfig                `json:"default" toml:"default" yaml:"default"`
	Monitors  map[string]MonitorConfig `json:"monitors,omitempty" toml:"monitors,omitempty" yaml:"monitors,omitempty"`
	IPCSocket string                   `json:"ipc_socket,omitempty" toml:"ipc_socket,omitempty" yaml:"ipc_socket,omitempty"`
}

// Load reads and parses the config file at path, selecting a format
// by extension (spec.md §4.K "extension selects format"), and merges
// the result onto Defaults(). Unrecognized extensions are treated as
// JSON, matching the most common case for a missing/unusual suffix.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Config{Default: Defaults()}
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".corn":
		err = corn.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
