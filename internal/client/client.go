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

// Package client implements the client registry (spec.md §4.C) and the
// uniform service-client contract (spec.md §4.D): every client exposes
// Subscribe (a hot, multi-consumer broadcast of state changes), and most
// also expose State (a blocking snapshot accessor) and a handful of
// fire-and-forget command methods. Each concrete client (compositor, music, volume, upower, tray,
// network, clipboard, libinput, notifications, bluetooth, sysinfo, inhibit,
// brightness) lives in its own subpackage; this package only owns the
// registry that lazily constructs and caches them.
package client

import (
	"fmt"
	"sync"

	"github.com/ferrobar/ferrobar/internal/log"
)

// Capability names the long-lived clients the registry can hand out.
// Using a closed set of string constants (rather than reflection on a
// type) keeps the registry's cache keyed on something loggable.
type Capability string

const (
	Compositor    Capability = "compositor"
	KeyboardState Capability = "keyboard-layout"
	Music         Capability = "music"
	Volume        Capability = "volume"
	Upower        Capability = "upower"
	Tray          Capability = "tray"
	Network       Capability = "network"
	Clipboard     Capability = "clipboard"
	Libinput      Capability = "libinput"
	Notifications Capability = "notifications"
	Bluetooth     Capability = "bluetooth"
	Sysinfo       Capability = "sysinfo"
	Inhibit       Capability = "inhibit"
	Brightness    Capability = "brightness"
)

// Factory constructs a client for a capability. It returns an error only
// for constructor failure (spec.md §4.C distinguishes this from runtime
// failure, which is surfaced through the client's own event stream
// instead of here).
type Factory func() (interface{}, error)

// Registry is the process-wide container of lazily-constructed,
// reference-counted service clients described in spec.md §4.C. It is
// constructed once by the supervisor (spec.md §9 "Global state") and
// threaded explicitly through WidgetContext, never reached via an ambient
// global.
type Registry struct {
	mu        sync.Mutex
	factories map[Capability]Factory
	cache     map[Capability]interface{}
	errs      map[Capability]error
}

// NewRegistry constructs an empty registry. Call Provide to register a
// constructor for each capability before any Get call for it.
func NewRegistry() *Registry {
	r := &Registry{
		factories: map[Capability]Factory{},
		cache:     map[Capability]interface{}{},
		errs:      map[Capability]error{},
	}
	log.Register(r, "client-registry")
	return r
}

// Provide registers the constructor used the first time cap is requested.
func (r *Registry) Provide(cap Capability, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[cap] = f
}

// Get returns the cached client for cap, constructing it on first use. A
// constructor failure is cached too, so repeated Get calls for a
// permanently-unavailable capability don't retry the (possibly expensive)
// constructor on every caller.
func (r *Registry) Get(cap Capability) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cache[cap]; ok {
		return c, nil
	}
	if err, ok := r.errs[cap]; ok {
		return nil, err
	}
	f, ok := r.factories[cap]
	if !ok {
		return nil, fmt.Errorf("client: no factory registered for %q", cap)
	}
	log.Fine("client-registry", "constructing %s", cap)
	c, err := f()
	if err != nil {
		r.errs[cap] = err
		return nil, err
	}
	r.cache[cap] = c
	return c, nil
}

// Eager constructs cap immediately rather than lazily, matching spec.md
// §4.N step 4: the compositor adapter is the one client initialized
// eagerly at process start, since workspace/keyboard-layout clients can't
// resolve the right backend without it.
func (r *Registry) Eager(cap Capability) error {
	_, err := r.Get(cap)
	return err
}
