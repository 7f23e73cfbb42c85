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

// Package brightness implements the brightness capability client
// (spec.md §4.C/§4.D), reading backlight state out of sysfs the way
// the teacher's modules/battery reads power_supply state (same afero
// filesystem abstraction, same uevent-style key=value parsing idiom)
// and writing it back through the logind D-Bus session interface
// (org.freedesktop.login1.Session.SetBrightness), which does not
// require root the way writing /sys/class/backlight directly would.
package brightness

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/afero"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// BusType selects which bus Set calls go over; overridden in tests.
var BusType = dbus.System

var fs = afero.NewOsFs()

// Info is a backlight snapshot.
type Info struct {
	Subsystem string
	Name      string
	Current   int
	Max       int
}

// Pct returns the current brightness as a percentage.
func (i Info) Pct() int {
	if i.Max == 0 {
		return 0
	}
	return int(float64(i.Current) / float64(i.Max) * 100)
}

// Client polls a single backlight device's sysfs attributes.
type Client struct {
	subsystem, name, seat string
	interval              time.Duration
	broad                 *chanx.Broadcaster[Info]
	stop                  chan struct{}
}

// New constructs a client for a backlight device (e.g. subsystem
// "backlight", name "intel_backlight"), polling sysfs every interval
// and issuing Set calls against the given logind seat.
func New(subsystem, name, seat string, interval time.Duration) *Client {
	c := &Client{subsystem: subsystem, name: name, seat: seat, interval: interval,
		broad: chanx.NewBroadcaster[Info](), stop: make(chan struct{})}
	log.Register(c, "brightness:"+name)
	go c.run()
	return c
}

func (c *Client) run() {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	if info, err := c.read(); err == nil {
		c.broad.Publish(info)
	}
	for {
		select {
		case <-t.C:
			if info, err := c.read(); err == nil {
				c.broad.Publish(info)
			} else {
				log.Fine("brightness", "read %s: %v", c.name, err)
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) read() (Info, error) {
	base := fmt.Sprintf("/sys/class/%s/%s", c.subsystem, c.name)
	cur, err := readIntFile(base + "/brightness")
	if err != nil {
		return Info{}, err
	}
	max, err := readIntFile(base + "/max_brightness")
	if err != nil {
		return Info{}, err
	}
	return Info{Subsystem: c.subsystem, Name: c.name, Current: cur, Max: max}, nil
}

func readIntFile(path string) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	if !s.Scan() {
		return 0, fmt.Errorf("brightness: empty %s", path)
	}
	return strconv.Atoi(strings.TrimSpace(s.Text()))
}

// Set requests an absolute brightness value via logind.
func (c *Client) Set(value int) error {
	conn := BusType()
	defer conn.Close()
	obj := conn.Object("org.freedesktop.login1", godbus.ObjectPath("/org/freedesktop/login1/seat/"+c.seat))
	call := obj.Call("org.freedesktop.login1.Seat.SetBrightness", 0, c.subsystem, c.name, uint32(value))
	if call.Err != nil {
		return fmt.Errorf("brightness: set %s: %w", c.name, call.Err)
	}
	return nil
}

// Subscribe returns a live feed of brightness snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Info] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// Close stops polling.
func (c *Client) Close() {
	close(c.stop)
	c.broad.Close()
}
