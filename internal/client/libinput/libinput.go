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

// Package libinput implements the keyboard-layout capability client
// (spec.md §4.C/§4.D): lock-key LED state, read the same afero-backed
// sysfs-polling way modules/battery and internal/client/brightness
// read device state, paired with the active keyboard layout name from
// an optional LayoutSource (there is no stable cross-compositor Go
// libinput binding in this corpus, so LED state is read from sysfs
// rather than raw evdev). No compositor adapter implements
// LayoutSource, so the layout name is empty in the builtin wiring.
package libinput

import (
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// fs is the filesystem used for LED reads; overridden in tests.
var fs = afero.NewOsFs()

// LayoutSource supplies the active keyboard layout name. No compositor
// client implements it: the builtin client factory passes nil, so
// State.Layout stays empty.
type LayoutSource interface {
	Layout() string
}

// State is a snapshot of lock-key and layout state.
type State struct {
	CapsLock   bool
	NumLock    bool
	ScrollLock bool
	Layout     string
}

// Client polls LED sysfs entries and an optional layout source.
type Client struct {
	ledDir string
	layout LayoutSource
	interval time.Duration

	broad *chanx.Broadcaster[State]
	stop  chan struct{}
}

// New polls the LEDs under ledDir (typically /sys/class/leds) every
// interval. layout may be nil, in which case Layout is always empty.
func New(ledDir string, layout LayoutSource, interval time.Duration) *Client {
	if interval <= 0 {
		interval = time.Second
	}
	c := &Client{ledDir: ledDir, layout: layout, interval: interval, broad: chanx.NewBroadcaster[State](), stop: make(chan struct{})}
	log.Register(c, "libinput")
	go c.run()
	return c
}

func (c *Client) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	last := c.read()
	c.broad.Publish(last)
	for {
		select {
		case <-ticker.C:
			next := c.read()
			if next != last {
				last = next
				c.broad.Publish(next)
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) read() State {
	s := State{
		CapsLock:   c.ledOn("capslock"),
		NumLock:    c.ledOn("numlock"),
		ScrollLock: c.ledOn("scrolllock"),
	}
	if c.layout != nil {
		s.Layout = c.layout.Layout()
	}
	return s
}

// ledOn reports whether any LED device under ledDir whose name
// contains suffix (e.g. "capslock") is currently lit.
func (c *Client) ledOn(suffix string) bool {
	entries, err := afero.ReadDir(fs, c.ledDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !strings.Contains(e.Name(), suffix) {
			continue
		}
		data, err := afero.ReadFile(fs, c.ledDir+"/"+e.Name()+"/brightness")
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) != "0" {
			return true
		}
	}
	return false
}

// Subscribe returns a live feed of lock-key/layout state.
func (c *Client) Subscribe() *chanx.Subscription[State] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot without subscribing.
func (c *Client) State() State { return c.read() }

// Close stops polling.
func (c *Client) Close() {
	close(c.stop)
	c.broad.Close()
}
