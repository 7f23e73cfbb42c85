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

// Package sysinfo implements the sysinfo capability client (spec.md
// §4.C/§4.D), adapted directly from the teacher's modules/sysinfo: the
// same unix.Sysinfo_t decoding into martinlindhe/unit.Datasize values,
// polled on an interval and broadcast instead of pushed through a
// package-level singleton.
package sysinfo

import (
	"time"

	"github.com/martinlindhe/unit"
	"golang.org/x/sys/unix"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// loadScale is LINUX_SYSINFO_LOADS_SCALE.
const loadScale = 65536.0

// Info wraps the result of the sysinfo(2) syscall.
type Info struct {
	Uptime       time.Duration
	Loads        [3]float64
	TotalRAM     unit.Datasize
	FreeRAM      unit.Datasize
	SharedRAM    unit.Datasize
	BufferRAM    unit.Datasize
	TotalSwap    unit.Datasize
	FreeSwap     unit.Datasize
	Procs        uint16
	TotalHighRAM unit.Datasize
	FreeHighRAM  unit.Datasize
}

// Client polls sysinfo(2) on an interval and broadcasts Info snapshots.
type Client struct {
	interval time.Duration
	broad    *chanx.Broadcaster[Info]
	stop     chan struct{}
}

// New constructs a client that refreshes every interval.
func New(interval time.Duration) *Client {
	c := &Client{interval: interval, broad: chanx.NewBroadcaster[Info](), stop: make(chan struct{})}
	log.Register(c, "sysinfo")
	go c.run()
	return c
}

func (c *Client) run() {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	if info, err := read(); err == nil {
		c.broad.Publish(info)
	}
	for {
		select {
		case <-t.C:
			if info, err := read(); err == nil {
				c.broad.Publish(info)
			} else {
				log.Fine("sysinfo", "read: %v", err)
			}
		case <-c.stop:
			return
		}
	}
}

func read() (Info, error) {
	var raw unix.Sysinfo_t
	if err := unix.Sysinfo(&raw); err != nil {
		return Info{}, err
	}
	mult := unit.Datasize(raw.Unit) * unit.Byte
	return Info{
		Uptime: time.Duration(raw.Uptime) * time.Second,
		Loads: [3]float64{
			float64(raw.Loads[0]) / loadScale,
			float64(raw.Loads[1]) / loadScale,
			float64(raw.Loads[2]) / loadScale,
		},
		Procs:        raw.Procs,
		TotalRAM:     unit.Datasize(raw.Totalram) * mult,
		FreeRAM:      unit.Datasize(raw.Freeram) * mult,
		SharedRAM:    unit.Datasize(raw.Sharedram) * mult,
		BufferRAM:    unit.Datasize(raw.Bufferram) * mult,
		TotalSwap:    unit.Datasize(raw.Totalswap) * mult,
		FreeSwap:     unit.Datasize(raw.Freeswap) * mult,
		TotalHighRAM: unit.Datasize(raw.Totalhigh) * mult,
		FreeHighRAM:  unit.Datasize(raw.Freehigh) * mult,
	}, nil
}

// Subscribe returns a live feed of sysinfo snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Info] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State reads the current snapshot directly (not cached).
func (c *Client) State() (Info, error) { return read() }

// Close stops polling.
func (c *Client) Close() {
	close(c.stop)
	c.broad.Close()
}
