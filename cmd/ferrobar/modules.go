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

package main

import (
	"github.com/ferrobar/ferrobar/internal/barassembler"
	"github.com/ferrobar/ferrobar/internal/modules/bluetooth"
	"github.com/ferrobar/ferrobar/internal/modules/brightness"
	"github.com/ferrobar/ferrobar/internal/modules/clipboard"
	"github.com/ferrobar/ferrobar/internal/modules/clock"
	"github.com/ferrobar/ferrobar/internal/modules/inhibit"
	"github.com/ferrobar/ferrobar/internal/modules/libinput"
	"github.com/ferrobar/ferrobar/internal/modules/music"
	"github.com/ferrobar/ferrobar/internal/modules/network"
	"github.com/ferrobar/ferrobar/internal/modules/notifications"
	"github.com/ferrobar/ferrobar/internal/modules/sysinfo"
	"github.com/ferrobar/ferrobar/internal/modules/tray"
	"github.com/ferrobar/ferrobar/internal/modules/upower"
	"github.com/ferrobar/ferrobar/internal/modules/volume"
	"github.com/ferrobar/ferrobar/internal/modules/workspaces"
)

// registerBuiltinModuleKinds wires every module kind this build ships
// into the assembler's registry, by config "type" name. Every kind
// here is backed by a real internal/client/* service client - there
// is no module kind shipped without a working client behind it.
func registerBuiltinModuleKinds(kinds *barassembler.Registry) {
	kinds.Register("clock", clock.Kind)
	kinds.Register("workspaces", workspaces.Kind)
	kinds.Register("tray", tray.Kind)
	kinds.Register("music", music.Kind)
	kinds.Register("volume", volume.Kind)
	kinds.Register("battery", upower.Kind)
	kinds.Register("network", network.Kind)
	kinds.Register("bluetooth", bluetooth.Kind)
	kinds.Register("notifications", notifications.Kind)
	kinds.Register("sysinfo", sysinfo.Kind)
	kinds.Register("brightness", brightness.Kind)
	kinds.Register("inhibit", inhibit.Kind)
	kinds.Register("clipboard", clipboard.Kind)
	kinds.Register("keyboard", libinput.Kind)
}
