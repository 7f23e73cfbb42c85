// Copyright 2017 Google Inc.
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

// Package colors manages the named color scheme a config can declare
// (spec.md §6 "icon_theme" and sibling style fields; SPEC_FULL.md's
// DOMAIN STACK keeps go-colorful for exactly this role). Bar/module
// styling itself is out of scope (spec.md §1), but modules and the
// popup manager's "popup" style class both need named colors (e.g.
// "good"/"bad"/"degraded") resolvable at render time.
package colors

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorfulColor extends image/color.Color with access to the
// underlying go-colorful.Color, avoiding a round-trip through
// colorful.MakeColor for values that already have one.
type ColorfulColor interface {
	color.Color
	Colorful() colorful.Color
}

type colorfulColor struct {
	colorful.Color
}

func (c *colorfulColor) Colorful() colorful.Color { return c.Color }

// Hex constructs a color from a hex string ("#rrggbb" or "#rgb").
// Returns nil if the string cannot be parsed.
func Hex(hex string) ColorfulColor {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil
	}
	return &colorfulColor{c}
}

var scheme = map[string]ColorfulColor{}

// Scheme looks up a named scheme color ("good", "bad", "degraded" are
// the conventional names modules fall back to).
func Scheme(name string) ColorfulColor {
	return scheme[name]
}

// Set assigns a named scheme color, or removes it if color is nil.
func Set(name string, c color.Color) {
	if c == nil {
		delete(scheme, name)
		return
	}
	if cc, ok := colorful.MakeColor(c); ok {
		scheme[name] = &colorfulColor{cc}
	}
}

func splitAtLastEqual(s string) (string, string, bool) {
	idx := strings.LastIndex(s, "=")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

// LoadFromArgs parses "name=value" pairs, typically from a CLI flag
// repeated per color.
func LoadFromArgs(args []string) {
	for _, arg := range args {
		if name, value, ok := splitAtLastEqual(arg); ok {
			if c := Hex(value); c != nil {
				scheme[name] = c
			}
		}
	}
}

// LoadFromMap loads the color scheme from a config-declared map
// (SPEC_FULL.md §6: a `colors` block alongside the documented style
// fields).
func LoadFromMap(m map[string]string) {
	for name, value := range m {
		if c := Hex(value); c != nil {
			scheme[name] = c
		}
	}
}
