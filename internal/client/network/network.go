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

// Package network implements the network capability client (spec.md
// §4.C/§4.D), adapted from the teacher's base/watchers/netlink: that
// package already exposes exactly the subscribe/unsubscribe contract
// a client needs, so this just republishes its "best link" feed onto
// a chanx.Broadcaster rather than reimplementing link-state parsing.
package network

import (
	"sync"

	"github.com/ferrobar/ferrobar/base/watchers/netlink"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// Link re-exports the watcher's link snapshot.
type Link = netlink.Link

// OperState re-exports the watcher's operating-state enum.
type OperState = netlink.OperState

// Client tracks the "best" link (preferring Up over Down, etc., per
// netlink.Any) or links with a given name/prefix.
type Client struct {
	sub   netlink.Subscription
	broad *chanx.Broadcaster[Link]
	stop  chan struct{}

	mu      sync.RWMutex
	current Link
}

// New watches the single best network link on the system.
func New() *Client {
	return newFor(netlink.Any())
}

// ForInterface watches a single named interface (e.g. "wlan0").
func ForInterface(name string) *Client {
	return newFor(netlink.ByName(name))
}

// ForPrefix watches the best link whose name has the given prefix
// (e.g. "wl" for wireless, "e" for ethernet).
func ForPrefix(prefix string) *Client {
	return newFor(netlink.WithPrefix(prefix))
}

func newFor(sub netlink.Subscription) *Client {
	c := &Client{sub: sub, broad: chanx.NewBroadcaster[Link](), stop: make(chan struct{})}
	log.Register(c, "network")
	go c.run()
	return c
}

func (c *Client) run() {
	for {
		select {
		case link, ok := <-c.sub:
			if !ok {
				return
			}
			c.mu.Lock()
			c.current = link
			c.mu.Unlock()
			c.broad.Publish(link)
		case <-c.stop:
			return
		}
	}
}

// Subscribe returns a live feed of link snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Link] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the most recently observed link snapshot.
func (c *Client) State() Link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Close stops watching and releases the underlying netlink subscription.
func (c *Client) Close() {
	close(c.stop)
	c.sub.Unsubscribe()
	c.broad.Close()
}
