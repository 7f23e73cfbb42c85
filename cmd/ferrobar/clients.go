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
	"os"
	"time"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/bluetooth"
	"github.com/ferrobar/ferrobar/internal/client/brightness"
	"github.com/ferrobar/ferrobar/internal/client/clipboard"
	"github.com/ferrobar/ferrobar/internal/client/inhibit"
	"github.com/ferrobar/ferrobar/internal/client/libinput"
	"github.com/ferrobar/ferrobar/internal/client/music"
	"github.com/ferrobar/ferrobar/internal/client/network"
	"github.com/ferrobar/ferrobar/internal/client/notifications"
	"github.com/ferrobar/ferrobar/internal/client/sysinfo"
	"github.com/ferrobar/ferrobar/internal/client/tray"
	"github.com/ferrobar/ferrobar/internal/client/upower"
	"github.com/ferrobar/ferrobar/internal/client/volume"
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// registerBuiltinClientFactories provides a constructor for every
// capability a builtin module kind can ask for (spec.md §4.C). Every
// factory is lazy except the compositor, which the caller (runDaemon)
// initializes eagerly per spec.md §4.N step 4 - the rest only pay the
// connection cost when a configured module actually needs them.
func registerBuiltinClientFactories(clients *client.Registry) {
	clients.Provide(client.Tray, func() (any, error) { return tray.New() })
	clients.Provide(client.Music, func() (any, error) {
		return music.New(envOr("FERROBAR_MUSIC_PLAYER", "playerctld"))
	})
	clients.Provide(client.Volume, func() (any, error) {
		return volume.New(os.Getenv("FERROBAR_VOLUME_SINK"))
	})
	clients.Provide(client.Upower, func() (any, error) {
		return upower.New(envOr("FERROBAR_BATTERY_PATH", "/org/freedesktop/UPower/devices/DisplayDevice"))
	})
	clients.Provide(client.Network, func() (any, error) { return network.New(), nil })
	clients.Provide(client.Bluetooth, func() (any, error) {
		return bluetooth.New(envOr("FERROBAR_BT_ADAPTER", "hci0"))
	})
	clients.Provide(client.Notifications, func() (any, error) { return notifications.New() })
	clients.Provide(client.Sysinfo, func() (any, error) { return sysinfo.New(5 * time.Second), nil })
	clients.Provide(client.Brightness, func() (any, error) {
		return brightness.New(
			envOr("FERROBAR_BACKLIGHT_SUBSYSTEM", "backlight"),
			os.Getenv("FERROBAR_BACKLIGHT_NAME"),
			envOr("FERROBAR_SEAT", "seat0"),
			2*time.Second,
		), nil
	})
	clients.Provide(client.Inhibit, func() (any, error) {
		durations := []time.Duration{15 * time.Minute, 30 * time.Minute, time.Hour, 0}
		return inhibit.New(durations, 30*time.Minute)
	})
	clients.Provide(client.Clipboard, func() (any, error) {
		return clipboard.New(envOr("FERROBAR_CLIPBOARD_MIME", "text")), nil
	})
	clients.Provide(client.KeyboardState, func() (any, error) {
		return libinput.New(envOr("FERROBAR_LED_DIR", "/sys/class/leds"), nil, 2*time.Second), nil
	})
}
