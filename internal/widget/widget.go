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

// Package widget defines the narrowest abstraction the module runtime
// needs over the (out-of-scope, per spec.md §1) GUI toolkit: a handle
// that can be mounted, unmounted, and asked for its on-screen geometry
// for popup positioning (spec.md §4.I). Nothing here renders anything;
// a concrete toolkit binding implements Handle for real widgets.
package widget

import "sync/atomic"

// Geometry is a widget's position and size in surface coordinates,
// used by the popup manager to compute trigger-relative positions.
type Geometry struct {
	X, Y          int
	Width, Height int
}

// Center returns the geometry's midpoint, the anchor spec.md §4.I's
// positioning formula is expressed in terms of.
func (g Geometry) Center() (x, y int) {
	return g.X + g.Width/2, g.Y + g.Height/2
}

// Handle is the abstract surface a module's widget or popup-contents
// occupies. A real binding (GTK, or any other layer-shell toolkit)
// supplies a concrete implementation; tests use a fake recording
// calls instead of rendering anything.
type Handle interface {
	// Mount attaches the widget to its parent container.
	Mount()
	// Unmount detaches the widget without destroying it.
	Unmount()
	// Geometry returns the widget's current on-screen position/size.
	Geometry() Geometry
	// SetVisible shows or hides the widget without unmounting it.
	SetVisible(visible bool)
	// AddClass/RemoveClass toggle a CSS-style class name, the only
	// styling hook the core touches (spec.md §1 excludes pixel styling).
	AddClass(name string)
	RemoveClass(name string)
}

// Button is a Handle that additionally carries a stable identity used
// to disambiguate which trigger opened a popup (spec.md §3
// "button_id").
type Button interface {
	Handle
	ButtonID() uint64
}

// nextID hands out process-wide unique button/module identities
// (spec.md §3 "id: u64" / "button_id: u64"). Bars are built from the
// IPC and hot-reload goroutines as well as at start-up, so it is
// incremented atomically.
var nextID uint64

// NewID returns a fresh process-wide unique identity.
func NewID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}
