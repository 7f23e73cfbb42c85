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

// Package bluetooth implements the bluetooth capability client
// (spec.md §4.C/§4.D), adapted from the teacher's modules/bluetooth:
// one PropertiesWatcher per bluez adapter and per bonded device,
// fanned into a single Broadcaster of AdapterState snapshots.
package bluetooth

import (
	"fmt"
	"strings"

	godbus "github.com/godbus/dbus/v5"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// BusType selects which bus a Client connects to; overridden in tests.
var BusType = dbus.System

// DeviceInfo mirrors one bonded/paired bluetooth device's properties.
type DeviceInfo struct {
	Path      string
	Name      string
	Alias     string
	Address   string
	Battery   int
	Paired    bool
	Connected bool
	Trusted   bool
	Blocked   bool
}

// AdapterState is a full snapshot of one adapter and its known devices.
type AdapterState struct {
	Name         string
	Alias        string
	Address      string
	Discoverable bool
	Pairable     bool
	Powered      bool
	Discovering  bool
	Devices      []DeviceInfo
}

// Client watches a single bluez adapter ("hci0" by default) and any
// devices registered with Watch, broadcasting a fresh AdapterState on
// every property change (spec.md §4.D: clients broadcast state, they
// don't push rendering decisions).
type Client struct {
	adapter string
	watcher *dbus.PropertiesWatcher
	devices map[string]*deviceWatch
	broad   *chanx.Broadcaster[AdapterState]
	stop    chan struct{}
}

type deviceWatch struct {
	path string
	w    *dbus.PropertiesWatcher
	batt *dbus.PropertiesWatcher
}

// New constructs a client for the named adapter (e.g. "hci0") and
// starts watching it immediately.
func New(adapter string) (*Client, error) {
	w := dbus.WatchProperties(
		BusType, "org.bluez", godbus.ObjectPath("/org/bluez/"+adapter), "org.bluez.Adapter1",
		[]string{"Name", "Alias", "Address", "Discoverable", "Pairable", "Powered", "Discovering"},
	)
	c := &Client{
		adapter: adapter,
		watcher: w,
		devices: map[string]*deviceWatch{},
		broad:   chanx.NewBroadcaster[AdapterState](),
		stop:    make(chan struct{}),
	}
	log.Register(c, "bluetooth:"+adapter)
	go c.run()
	return c, nil
}

// WatchDevice adds a bonded device (by MAC address, "AA:BB:CC:DD:EE:FF")
// to the snapshot, matching the teacher's path-construction convention
// in modules/bluetooth/device.go.
func (c *Client) WatchDevice(mac string) {
	macPath := strings.ReplaceAll(strings.ToUpper(mac), ":", "_")
	path := "/org/bluez/" + c.adapter + "/dev_" + macPath
	dw := &deviceWatch{
		path: path,
		w: dbus.WatchProperties(BusType, "org.bluez", godbus.ObjectPath(path), "org.bluez.Device1",
			[]string{"Name", "Alias", "Address", "Paired", "Connected", "Trusted", "Blocked"}),
		batt: dbus.WatchProperties(BusType, "org.bluez", godbus.ObjectPath(path), "org.bluez.Battery1",
			[]string{"Percentage"}),
	}
	c.devices[path] = dw
	go func() {
		for {
			select {
			case <-dw.w.Updates:
			case <-dw.batt.Updates:
			case <-c.stop:
				return
			}
			c.broad.Publish(c.snapshot())
		}
	}()
}

// Subscribe returns a live feed of adapter snapshots published after
// the call; no initial value is delivered, so the current state comes
// from State.
func (c *Client) Subscribe() *chanx.Subscription[AdapterState] {
	sub := c.broad.Subscribe(chanx.DefaultCapacity)
	return sub
}

// State returns the current snapshot without subscribing.
func (c *Client) State() AdapterState { return c.snapshot() }

// SetPowered calls bluez's org.bluez.Adapter1.Powered setter indirectly
// via Call; spec.md §4.D commands are fire-and-forget best effort.
func (c *Client) SetPowered(on bool) error {
	_, err := c.watcher.Call("Powered", on)
	if err != nil {
		return fmt.Errorf("bluetooth: set powered: %w", err)
	}
	return nil
}

// Close stops all watchers and the broadcaster.
func (c *Client) Close() {
	close(c.stop)
	c.watcher.Unsubscribe()
	for _, dw := range c.devices {
		dw.w.Unsubscribe()
		dw.batt.Unsubscribe()
	}
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

func (c *Client) snapshot() AdapterState {
	props := c.watcher.Get()
	s := AdapterState{}
	s.Name, _ = props["Name"].(string)
	s.Alias, _ = props["Alias"].(string)
	s.Address, _ = props["Address"].(string)
	s.Discoverable, _ = props["Discoverable"].(bool)
	s.Pairable, _ = props["Pairable"].(bool)
	s.Powered, _ = props["Powered"].(bool)
	s.Discovering, _ = props["Discovering"].(bool)

	for path, dw := range c.devices {
		dprops := dw.w.Get()
		d := DeviceInfo{Path: path}
		d.Name, _ = dprops["Name"].(string)
		d.Alias, _ = dprops["Alias"].(string)
		d.Address, _ = dprops["Address"].(string)
		d.Paired, _ = dprops["Paired"].(bool)
		d.Connected, _ = dprops["Connected"].(bool)
		d.Trusted, _ = dprops["Trusted"].(bool)
		d.Blocked, _ = dprops["Blocked"].(bool)
		if pct, ok := dw.batt.Get()["Percentage"].(byte); ok {
			d.Battery = int(pct)
		}
		s.Devices = append(s.Devices, d)
	}
	return s
}
