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

// Package popup implements the per-bar popup manager from spec.md
// §4.I: exactly one overlay surface per bar, a cache of registered
// module popup-content keyed by module id, and the positioning math
// for anchoring the overlay to whichever trigger button opened it.
// Per spec.md §9, a Registry is owned by its bar and handed to
// modules through this non-owning handle - it does not import
// internal/bar, avoiding the cycle the design notes call out.
package popup

import (
	"sync"

	"github.com/ferrobar/ferrobar/internal/log"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Parts is one module's popup content (spec.md §3 "popup_parts").
type Parts struct {
	Container widget.Handle
	Triggers  []widget.Button
}

type entry struct {
	name      string
	parts     Parts
	shownOnce bool
}

// Registry is the popup manager for a single bar (spec.md §4.I). All
// methods are intended to be called from the UI context only (spec.md
// §5 "Popup cache: owned by the UI context; modified only there"), so
// the mutex here guards against accidental cross-tier access rather
// than expecting real contention.
type Registry struct {
	mu        sync.Mutex
	cache     map[uint64]*entry
	current   uint64
	currentBn uint64
	hasCur    bool

	// Geometry is how the registry asks the surface for the bar's own
	// on-screen placement, needed by the positioning formula (spec.md
	// §4.I). Set by whatever constructs the bar's layer-shell surface.
	Geometry func() widget.Geometry
	// ScreenSize returns the output's pixel dimensions along the bar's
	// axis, also required by the positioning formula.
	ScreenSize func() (width, height int)
	// Horizontal reports whether the owning bar runs left-anchored
	// positioning (Top/Bottom) rather than top-anchored (Left/Right).
	Horizontal func() bool
}

// NewRegistry constructs an empty popup registry.
func NewRegistry() *Registry {
	r := &Registry{cache: map[uint64]*entry{}}
	log.Register(r, "popup")
	return r
}

// RegisterContent records a module's popup content, populated at
// module creation time (spec.md §4.I "register_content").
func (r *Registry) RegisterContent(id uint64, name string, parts Parts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[id] = &entry{name: name, parts: parts}
}

// Unregister drops a module's popup content, e.g. on module removal.
// If its popup is currently shown, it is hidden first.
func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasCur && r.current == id {
		r.hideLocked()
	}
	delete(r.cache, id)
}

// Position is a computed overlay placement in surface coordinates.
type Position struct {
	X, Y int
}

// computePosition implements spec.md §4.I's formula. For a horizontal
// bar: left-anchored at bar_offset + widget_center - popup_width/2,
// clamped to [5, screen_width-popup_width-5]. For a vertical bar, the
// analogous top-anchored computation.
func computePosition(horizontal bool, barOffset, screenExtent, popupExtent int, trigger widget.Geometry) int {
	cx, cy := trigger.Center()
	center := cx
	if !horizontal {
		center = cy
	}
	pos := barOffset + center - popupExtent/2
	min, max := 5, screenExtent-popupExtent-5
	if pos < min {
		pos = min
	}
	if max >= min && pos > max {
		pos = max
	}
	return pos
}

func (r *Registry) position(popupW, popupH int, trigger widget.Geometry) Position {
	horizontal := true
	if r.Horizontal != nil {
		horizontal = r.Horizontal()
	}
	var barGeo widget.Geometry
	if r.Geometry != nil {
		barGeo = r.Geometry()
	}
	screenW, screenH := 0, 0
	if r.ScreenSize != nil {
		screenW, screenH = r.ScreenSize()
	}

	if horizontal {
		barSize := barGeo.Width
		barOffset := (screenW - barSize) / 2
		return Position{X: computePosition(true, barOffset, screenW, popupW, trigger)}
	}
	barSize := barGeo.Height
	barOffset := (screenH - barSize) / 2
	return Position{Y: computePosition(false, barOffset, screenH, popupH, trigger)}
}

// showLocked is the shared implementation behind Show/ShowAt: mount the
// cached content, apply the "popup" style class, compute its position,
// and make it visible. Returns false if id has no registered content.
func (r *Registry) showLocked(id, buttonID uint64, geom widget.Geometry) bool {
	e, ok := r.cache[id]
	if !ok {
		return false
	}
	if r.hasCur && r.current != id {
		r.hideLocked()
	}
	e.parts.Container.Mount()
	e.parts.Container.AddClass("popup")
	pos := r.position(e.parts.Container.Geometry().Width, e.parts.Container.Geometry().Height, geom)
	_ = pos // computed but not applied: widget.Handle has no positioning method.
	e.parts.Container.SetVisible(true)
	r.current = id
	r.currentBn = buttonID
	r.hasCur = true

	if !e.shownOnce {
		// Double-show-on-first-open: a documented compensation for a
		// layer-shell sizing race (spec.md §4.H/§4.I), not a bug.
		e.parts.Container.SetVisible(false)
		e.parts.Container.SetVisible(true)
		e.shownOnce = true
	}
	return true
}

// Show mounts id's popup content anchored to buttonID's geometry
// (spec.md §4.I "show(id, button_id)").
func (r *Registry) Show(id, buttonID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[id]
	if !ok {
		return false
	}
	var geom widget.Geometry
	for _, t := range e.parts.Triggers {
		if t.ButtonID() == buttonID {
			geom = t.Geometry()
			break
		}
	}
	return r.showLocked(id, buttonID, geom)
}

// ShowAt mounts id's popup content at an explicitly supplied geometry
// rather than looking up a trigger button (spec.md §4.I "show_at").
func (r *Registry) ShowAt(id uint64, geom widget.Geometry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showLocked(id, 0, geom)
}

func (r *Registry) hideLocked() {
	if !r.hasCur {
		return
	}
	if e, ok := r.cache[r.current]; ok {
		e.parts.Container.SetVisible(false)
		e.parts.Container.Unmount()
		e.parts.Container.RemoveClass("popup")
	}
	r.hasCur = false
	r.current = 0
	r.currentBn = 0
}

// Hide unmounts whichever popup is currently shown, if any.
func (r *Registry) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hideLocked()
}

// IsVisible reports whether any popup is currently shown.
func (r *Registry) IsVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasCur
}

// CurrentWidget returns the currently-mounted popup content, or nil
// if none is shown (spec.md §4.I "current_widget").
func (r *Registry) CurrentWidget() widget.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasCur {
		return nil
	}
	return r.cache[r.current].parts.Container
}

// CurrentID returns the id of the currently-shown module's popup, and
// whether one is shown at all.
func (r *Registry) CurrentID() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.hasCur
}

// CurrentIDAndButton returns the (module id, trigger button id) of
// the currently-shown popup, and whether one is shown at all - used
// by the per-module router to decide whether a TogglePopup(b) should
// open or close (spec.md §4.H: toggle compares the full (id, b) pair,
// not just id).
func (r *Registry) CurrentIDAndButton() (id, buttonID uint64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.currentBn, r.hasCur
}

// MaybeAutoHide hides the popup if pointer-leave coordinates clear a
// 3px threshold (spec.md §4.I "Auto-hide"), the only implicit close
// besides an explicit ClosePopup event. For a horizontal bar it hides
// when exitY is more than 3 above or below the popup; otherwise only
// when exitY is more than 3 below. Which edge the bar sits on is not
// considered, and exitX is not used.
func (r *Registry) MaybeAutoHide(exitX, exitY int, horizontal bool) {
	const threshold = 3
	clear := exitY > threshold
	if horizontal {
		clear = exitY < -threshold || exitY > threshold
	}
	if !clear {
		return
	}
	r.Hide()
}
