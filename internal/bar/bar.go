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

// Package bar implements the Bar and ModuleInstance data model from
// spec.md §3: a layer-shell surface identified by (monitor, index),
// anchored to one edge, containing three ordered module lists. It
// plays the role the teacher's bar.Module/bar.Output pair play for
// i3bar, generalized to a popup-capable, config-driven bar instead of
// a single streamed text protocol.
package bar

import (
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Position names the edge of the monitor a bar is anchored to.
type Position string

// The four supported anchor edges.
const (
	Top    Position = "top"
	Bottom Position = "bottom"
	Left   Position = "left"
	Right  Position = "right"
)

// Horizontal reports whether bars at this position run along the
// horizontal axis (Top/Bottom), used by the popup manager's
// positioning math (spec.md §4.I).
func (p Position) Horizontal() bool {
	return p == Top || p == Bottom
}

// Margin is the per-edge gap between a bar's layer-shell surface and
// its monitor's edges.
type Margin struct {
	Top, Bottom, Left, Right int
}

// Button identifies a physical mouse button or scroll direction for
// click/scroll handlers (spec.md §4.H "Common wrapper"), mirroring
// the teacher's bar.Button enum.
type Button int

// Recognized buttons and scroll directions.
const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
	ScrollUp     Button = 4
	ScrollDown   Button = 5
)

// ClickHandler is one common-config action: either a shell command or
// a "popup:{toggle,open,close}" directive (spec.md §4.H).
type ClickHandler struct {
	// Shell holds the command to run, when PopupAction is empty.
	Shell string
	// PopupAction is one of "toggle", "open", "close", when non-empty.
	PopupAction string
}

// CommonConfig holds the options every module widget is wrapped with
// (spec.md §4.H "Common wrapper", §6 "Common module fields").
type CommonConfig struct {
	Name             string
	Class            string
	ShowIf           string // script whose stdout truthiness toggles visibility
	OnClickLeft      ClickHandler
	OnClickMiddle    ClickHandler
	OnClickRight     ClickHandler
	OnScrollUp       ClickHandler
	OnScrollDown     ClickHandler
	Tooltip          string
	TransitionType   string
	TransitionMillis int
}

// ModuleInstance is one live module attached to a bar (spec.md §3).
// Every visible module has exactly one controller task; Cancel tears
// that task down via cooperative channel closure.
type ModuleInstance struct {
	ID           uint64
	Kind         string
	Common       CommonConfig
	Widget       widget.Handle
	PopupContent widget.Handle // nil if the module has no popup

	// Cancel stops the module's controller task. Set by whatever
	// constructed the instance (internal/module); nil-safe to call.
	Cancel func()
}

// NewModuleInstance allocates a fresh module identity (spec.md §3
// "id: u64").
func NewModuleInstance(kind string, common CommonConfig) *ModuleInstance {
	return &ModuleInstance{ID: widget.NewID(), Kind: kind, Common: common}
}

// Close cancels the instance's controller task, if any. Safe to call
// more than once.
func (m *ModuleInstance) Close() {
	if m.Cancel != nil {
		cancel := m.Cancel
		m.Cancel = nil
		cancel()
	}
}

// Bar is one layer-shell surface, identified by (MonitorName, Index)
// (spec.md §3 "Bar"). Created when its monitor appears and config
// names it; destroyed when the monitor disappears or its config entry
// is removed.
type Bar struct {
	MonitorName string
	Index       int

	Position      Position
	AnchorToEdges bool
	Thickness     int
	Margin        Margin
	Name          string
	Class         string

	Start, Center, End []*ModuleInstance

	Popups  *popup.Registry
	Visible bool
}

// New constructs a bar with an initialized, empty popup registry.
func New(monitorName string, index int) *Bar {
	return &Bar{
		MonitorName:   monitorName,
		Index:         index,
		AnchorToEdges: true,
		Visible:       true,
		Popups:        popup.NewRegistry(),
	}
}

// Modules returns every module instance across all three lists, in
// start/center/end order.
func (b *Bar) Modules() []*ModuleInstance {
	all := make([]*ModuleInstance, 0, len(b.Start)+len(b.Center)+len(b.End))
	all = append(all, b.Start...)
	all = append(all, b.Center...)
	all = append(all, b.End...)
	return all
}

// Close tears down every module instance and hides the popup surface.
func (b *Bar) Close() {
	for _, m := range b.Modules() {
		m.Close()
	}
	b.Popups.Hide()
}
