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

// Package notifications implements the notifications capability
// client (spec.md §4.C/§4.D) against swaync's control-center D-Bus
// service, on the same PropertiesWatcher/AddSignalHandler pattern used
// for bluetooth, upower and music: swaync emits bespoke signals for
// count/visibility/dnd changes rather than PropertiesChanged, which is
// exactly what AddSignalHandler exists to bridge into the same
// Updates channel.
package notifications

import (
	godbus "github.com/godbus/dbus/v5"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// BusType selects which bus a Client connects to; overridden in tests.
var BusType = dbus.Session

const (
	service = "org.erikreider.swaync.cc"
	path    = "/org/erikreider/swaync/cc"
	iface   = "org.erikreider.swaync.cc"
)

// State is a snapshot of the notification control center.
type State struct {
	Count             int
	Dnd               bool
	ControlCenterOpen bool
}

// Client watches swaync's control-center service.
type Client struct {
	watcher *dbus.PropertiesWatcher
	broad   *chanx.Broadcaster[State]
	stop    chan struct{}
}

// New connects to swaync and starts watching it.
func New() (*Client, error) {
	w := dbus.WatchProperties(BusType, service, godbus.ObjectPath(path), iface,
		[]string{"Count", "Dnd", "Visibility"})
	c := &Client{watcher: w, broad: chanx.NewBroadcaster[State](), stop: make(chan struct{})}
	w.AddSignalHandler("NotificationCountChanged", c.onSignal("Count"))
	w.AddSignalHandler("DndToggled", c.onSignal("Dnd"))
	w.AddSignalHandler("ControlCenterVisibilityChanged", c.onSignal("Visibility"))
	log.Register(c, "notifications")
	go c.run()
	return c, nil
}

func (c *Client) onSignal(prop string) func(*dbus.Signal, dbus.Fetcher) map[string]interface{} {
	return func(sig *dbus.Signal, fetch dbus.Fetcher) map[string]interface{} {
		if len(sig.Body) == 0 {
			return nil
		}
		return map[string]interface{}{prop: sig.Body[0]}
	}
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

func (c *Client) snapshot() State {
	props := c.watcher.Get()
	s := State{}
	if count, ok := props["Count"].(uint32); ok {
		s.Count = int(count)
	}
	s.Dnd, _ = props["Dnd"].(bool)
	s.ControlCenterOpen, _ = props["Visibility"].(bool)
	return s
}

// Subscribe returns a live feed of control-center state.
func (c *Client) Subscribe() *chanx.Subscription[State] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot without subscribing.
func (c *Client) State() State { return c.snapshot() }

// ToggleDnd toggles do-not-disturb.
func (c *Client) ToggleDnd() error {
	_, err := c.watcher.Call("ToggleDnd")
	return err
}

// ToggleControlCenter opens or closes the notification panel.
func (c *Client) ToggleControlCenter() error {
	_, err := c.watcher.Call("ToggleVisibility")
	return err
}

// Close stops watching and the broadcaster.
func (c *Client) Close() {
	close(c.stop)
	c.watcher.Unsubscribe()
	c.broad.Close()
}
