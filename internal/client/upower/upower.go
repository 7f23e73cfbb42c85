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

// Package upower implements the upower capability client (spec.md
// §4.C/§4.D): battery state watched over the UPower D-Bus service,
// adapted from the teacher's modules/battery (which read the same
// fields out of /sys/class/power_supply) onto a PropertiesWatcher so
// it participates in the same event-driven broadcast contract as the
// other D-Bus-backed clients.
package upower

import (
	"math"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// BusType selects which bus a Client connects to; overridden in tests.
var BusType = dbus.System

// Info is a battery snapshot, field-for-field compatible with the
// teacher's battery.Info so its derived accessors carry over unchanged.
type Info struct {
	Capacity   int
	EnergyFull float64
	EnergyNow  float64
	Power      float64
	Voltage    float64
	Status     string
	Technology string
}

// Remaining returns the fraction of battery capacity remaining.
func (i Info) Remaining() float64 {
	if math.Nextafter(i.EnergyFull, 0) == 0 {
		return 0
	}
	return i.EnergyNow / i.EnergyFull
}

// RemainingPct returns the percentage of battery capacity remaining.
func (i Info) RemainingPct() int { return int(i.Remaining() * 100) }

// RemainingTime is the best-effort estimate from current power draw.
func (i Info) RemainingTime() time.Duration {
	if math.Nextafter(i.Power, 0) == 0 {
		return 0
	}
	hours := i.EnergyNow / i.Power
	return time.Duration(int(hours*3600)) * time.Second
}

// PluggedIn reports whether the device is charging or full.
func (i Info) PluggedIn() bool { return i.Status == "Charging" || i.Status == "Full" }

var upowerStates = map[uint32]string{
	0: "Unknown", 1: "Charging", 2: "Discharging", 3: "Empty",
	4: "Full", 5: "Pending charge", 6: "Pending discharge",
}

// Client watches a single UPower device, typically
// "/org/freedesktop/UPower/devices/battery_BAT0".
type Client struct {
	watcher *dbus.PropertiesWatcher
	broad   *chanx.Broadcaster[Info]
	stop    chan struct{}
}

// New constructs a client for the named UPower device path and starts
// watching it immediately.
func New(devicePath string) (*Client, error) {
	w := dbus.WatchProperties(
		BusType, "org.freedesktop.UPower", godbus.ObjectPath(devicePath), "org.freedesktop.UPower.Device",
		[]string{"Percentage", "EnergyFull", "Energy", "EnergyRate", "Voltage", "State", "Technology"},
	)
	c := &Client{watcher: w, broad: chanx.NewBroadcaster[Info](), stop: make(chan struct{})}
	log.Register(c, "upower:"+devicePath)
	go c.run()
	return c, nil
}

// Subscribe returns a live feed of battery snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Info] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot without subscribing.
func (c *Client) State() Info { return c.snapshot() }

// Close stops the watcher and the broadcaster.
func (c *Client) Close() {
	close(c.stop)
	c.watcher.Unsubscribe()
	c.broad.Close()
}

func (c *Client) run() {
	for {
		select {
		case <-c.watcher.Updates:
			c.broad.Publish(c.snapshot())
		case <-c.stop:
			return
		}
	}
}

func (c *Client) snapshot() Info {
	props := c.watcher.Get()
	i := Info{Status: "Disconnected"}

	if pct, ok := props["Percentage"].(float64); ok {
		i.Capacity = int(pct)
	}
	i.EnergyFull, _ = props["EnergyFull"].(float64)
	i.EnergyNow, _ = props["Energy"].(float64)
	i.Power, _ = props["EnergyRate"].(float64)
	i.Voltage, _ = props["Voltage"].(float64)
	i.Technology = technologyName(props["Technology"])
	if state, ok := props["State"].(uint32); ok {
		if name, ok := upowerStates[state]; ok {
			i.Status = name
		} else {
			i.Status = "Unknown"
		}
	}
	return i
}

func technologyName(v interface{}) string {
	n, ok := v.(uint32)
	if !ok {
		return "Unknown"
	}
	switch n {
	case 1:
		return "Li-ion"
	case 2:
		return "Li-Poly"
	case 3:
		return "Li-Iron"
	case 4:
		return "Lead-acid"
	case 5:
		return "Ni-Cd"
	case 6:
		return "Ni-MH"
	default:
		return "Unknown"
	}
}
