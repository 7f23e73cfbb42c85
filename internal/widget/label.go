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

package widget

import "sync"

// Label is the one concrete Handle this core ships: a text surface
// with no rendering of its own, just enough state for a headless
// module (or a test) to observe what would be on screen. A real
// layer-shell binding replaces this with a toolkit-backed Handle;
// module kinds that only need to display rendered text can use Label
// either way, since both satisfy the same interface.
type Label struct {
	mu      sync.Mutex
	text    string
	visible bool
	classes map[string]bool
	mounted bool
	geom    Geometry
}

// NewLabel constructs a Label, initially visible and showing text.
func NewLabel(text string) *Label {
	return &Label{text: text, visible: true, classes: map[string]bool{}}
}

func (l *Label) Mount()   { l.mu.Lock(); l.mounted = true; l.mu.Unlock() }
func (l *Label) Unmount() { l.mu.Lock(); l.mounted = false; l.mu.Unlock() }

func (l *Label) Geometry() Geometry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.geom
}

// SetGeometry lets a toolkit-free environment (tests, the popup
// positioning logic) fake a layout pass.
func (l *Label) SetGeometry(g Geometry) {
	l.mu.Lock()
	l.geom = g
	l.mu.Unlock()
}

func (l *Label) SetVisible(v bool) { l.mu.Lock(); l.visible = v; l.mu.Unlock() }

func (l *Label) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible
}

func (l *Label) AddClass(name string)    { l.mu.Lock(); l.classes[name] = true; l.mu.Unlock() }
func (l *Label) RemoveClass(name string) { l.mu.Lock(); delete(l.classes, name); l.mu.Unlock() }

// SetText replaces the label's displayed text, the hook a module's
// IntoWidget uses to apply values received from ctx.Subscribe().
func (l *Label) SetText(text string) {
	l.mu.Lock()
	l.text = text
	l.mu.Unlock()
}

// Text returns the label's current text.
func (l *Label) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}
