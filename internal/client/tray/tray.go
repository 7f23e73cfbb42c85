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

// Package tray implements the tray capability client (spec.md
// §4.C/§4.D): a StatusNotifierWatcher/StatusNotifierItem (the
// freedesktop systray protocol) client, adapted onto the teacher's
// PropertiesWatcher (base/watchers/dbus) for per-item state, with item
// order preserved using internal/ordered the same way the teacher
// preserves bar module order.
package tray

import (
	"strings"

	godbus "github.com/godbus/dbus/v5"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
	"github.com/ferrobar/ferrobar/internal/ordered"
)

// BusType selects which bus a Client connects to; overridden in tests.
var BusType = dbus.Session

const (
	watcherService   = "org.kde.StatusNotifierWatcher"
	watcherPath      = "/StatusNotifierWatcher"
	watcherInterface = "org.kde.StatusNotifierWatcher"
	itemInterface    = "org.kde.StatusNotifierItem"
)

// Item is one tray icon's visible state.
type Item struct {
	ID          string
	Title       string
	IconName    string
	Status      string
	Tooltip     string
	ItemIsMenu  bool
	MenuPath    string
}

// Snapshot is the full ordered set of tray items.
type Snapshot struct {
	Items []Item
}

// Client watches org.kde.StatusNotifierWatcher for item registration
// and each item's own properties.
type Client struct {
	watcher *dbus.PropertiesWatcher
	items   *ordered.Map[string, *dbus.PropertiesWatcher]
	broad   *chanx.Broadcaster[Snapshot]
	stop    chan struct{}
}

// New connects to the tray watcher service and starts tracking items.
func New() (*Client, error) {
	w := dbus.WatchProperties(BusType, watcherService, godbus.ObjectPath(watcherPath), watcherInterface,
		[]string{"RegisteredStatusNotifierItems"})
	c := &Client{
		watcher: w,
		items:   ordered.New[string, *dbus.PropertiesWatcher](),
		broad:   chanx.NewBroadcaster[Snapshot](),
		stop:    make(chan struct{}),
	}
	log.Register(c, "tray")
	c.reconcile()
	go c.run()
	return c, nil
}

func (c *Client) run() {
	for {
		select {
		case <-c.watcher.Updates:
			c.reconcile()
		case <-c.stop:
			return
		}
	}
}

// reconcile adds PropertiesWatcher for newly-registered items and
// drops those no longer registered.
func (c *Client) reconcile() {
	raw, _ := c.watcher.Get()["RegisteredStatusNotifierItems"].([]string)
	seen := map[string]bool{}
	for _, addr := range raw {
		seen[addr] = true
		if c.items.Contains(addr) {
			continue
		}
		service, path := splitItemAddress(addr)
		iw := dbus.WatchProperties(BusType, service, path, itemInterface,
			[]string{"Title", "IconName", "Status", "ToolTip", "ItemIsMenu", "Menu"})
		c.items.Insert(addr, iw)
		go c.watchItem(addr, iw)
	}
	for _, addr := range c.items.Keys() {
		if !seen[addr] {
			if iw, ok := c.items.Remove(addr); ok {
				iw.Unsubscribe()
			}
		}
	}
	c.broad.Publish(c.snapshot())
}

func (c *Client) watchItem(addr string, iw *dbus.PropertiesWatcher) {
	for range iw.Updates {
		if _, ok := c.items.Get(addr); !ok {
			return
		}
		c.broad.Publish(c.snapshot())
	}
}

func (c *Client) snapshot() Snapshot {
	s := Snapshot{}
	c.items.Each(func(addr string, iw *dbus.PropertiesWatcher) {
		props := iw.Get()
		item := Item{ID: addr}
		item.Title, _ = props["Title"].(string)
		item.IconName, _ = props["IconName"].(string)
		item.Status, _ = props["Status"].(string)
		item.ItemIsMenu, _ = props["ItemIsMenu"].(bool)
		if menu, ok := props["Menu"].(godbus.ObjectPath); ok {
			item.MenuPath = string(menu)
		}
		s.Items = append(s.Items, item)
	})
	return s
}

func splitItemAddress(addr string) (string, godbus.ObjectPath) {
	if i := strings.Index(addr, "/"); i >= 0 {
		return addr[:i], godbus.ObjectPath(addr[i:])
	}
	return addr, godbus.ObjectPath("/StatusNotifierItem")
}

// Subscribe returns a live feed of tray snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Snapshot] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot without subscribing.
func (c *Client) State() Snapshot { return c.snapshot() }

// Activate invokes the item's primary activation method (left click).
func (c *Client) Activate(id string, x, y int32) error {
	iw, ok := c.items.Get(id)
	if !ok {
		return nil
	}
	_, err := iw.Call("Activate", x, y)
	return err
}

// Close stops all watchers and the broadcaster.
func (c *Client) Close() {
	close(c.stop)
	c.watcher.Unsubscribe()
	c.items.Each(func(_ string, iw *dbus.PropertiesWatcher) { iw.Unsubscribe() })
	c.broad.Close()
}
