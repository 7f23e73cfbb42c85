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

// Package dynstr implements the dynamic-string template language from
// spec.md §3/§4.E: literal text interleaved with `{{ script }}`
// substitutions and `#variable` references, re-rendered live as each
// source updates. It deliberately does not use text/template (the
// teacher's outputs.TextTemplate): spec.md's grammar is its own small
// escape-aware scanner, not Go template syntax.
package dynstr

import (
	"strings"

	"github.com/ferrobar/ferrobar/internal/script"
)

// SegmentKind distinguishes the three segment types from spec.md §3.
type SegmentKind int

const (
	// Static is literal text that never changes.
	Static SegmentKind = iota
	// Script is a {{ ... }} substitution backed by a script.Command.
	Script
	// Variable is a #name ironvar reference.
	Variable
)

// Segment is one piece of a parsed template.
type Segment struct {
	Kind SegmentKind
	// Text holds the literal text for Static segments.
	Text string
	// Command holds the parsed script for Script segments.
	Command script.Command
	// Name holds the ironvar name for Variable segments.
	Name string
}

var nameChar = func(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-'
}

// Parse scans input into segments and reports whether every segment is
// Static (a template with no dynamic content renders once, immediately).
func Parse(input string) (segments []Segment, isStatic bool) {
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			segments = append(segments, Segment{Kind: Static, Text: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(input)
	isStatic = true
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '#' && i+1 < len(runes) && runes[i+1] == '#':
			lit.WriteRune('#')
			i++
		case r == '{' && i+1 < len(runes) && runes[i+1] == '{':
			end := indexOf(runes, i+2, "}}")
			if end < 0 {
				// Unterminated script block: treat the rest as literal,
				// matching a tolerant scanner rather than erroring.
				lit.WriteString(string(runes[i:]))
				i = len(runes)
				break
			}
			flushLit()
			cmdText := strings.TrimSpace(string(runes[i+2 : end]))
			segments = append(segments, Segment{
				Kind:    Script,
				Command: script.Parse(cmdText),
			})
			isStatic = false
			i = end + 1 // loop's i++ advances past the second '}'
		case r == '#':
			j := i + 1
			for j < len(runes) && nameChar(runes[j]) {
				j++
			}
			if j == i+1 {
				// Bare '#' followed by a non-name character: literal.
				lit.WriteRune('#')
				continue
			}
			flushLit()
			segments = append(segments, Segment{Kind: Variable, Name: string(runes[i+1 : j])})
			isStatic = false
			i = j - 1
		default:
			lit.WriteRune(r)
		}
	}
	flushLit()
	return segments, isStatic
}

func indexOf(runes []rune, from int, sub string) int {
	s := string(runes[from:])
	idx := strings.Index(s, sub)
	if idx < 0 {
		return -1
	}
	// Translate byte offset within the substring back into a rune index.
	return from + len([]rune(s[:idx]))
}

// Renderer holds the latest value observed for each dynamic segment and
// re-renders the full concatenation on every update, matching the testable
// property in spec.md §4.E/§8.6: the rendered string always equals the
// concatenation of the latest value observed per segment, in segment
// order.
type Renderer struct {
	segments []Segment
	values   []string
	emit     func(string)
}

// NewRenderer constructs a Renderer for the given segments. Static segment
// values are pre-filled; dynamic segments start as empty placeholders, to
// be filled by the first value from their source (spec.md §4.E).
func NewRenderer(segments []Segment, emit func(string)) *Renderer {
	r := &Renderer{segments: segments, values: make([]string, len(segments)), emit: emit}
	for i, seg := range segments {
		if seg.Kind == Static {
			r.values[i] = seg.Text
		}
	}
	return r
}

// Update sets the current value for segment index i and re-renders.
func (r *Renderer) Update(i int, value string) {
	r.values[i] = value
	r.render()
}

func (r *Renderer) render() {
	var sb strings.Builder
	for _, v := range r.values {
		sb.WriteString(v)
	}
	r.emit(sb.String())
}

// RenderOnce immediately emits the current concatenation, used for a
// static-only template (no dynamic segments to wait on).
func (r *Renderer) RenderOnce() { r.render() }
