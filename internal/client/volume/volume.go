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

// Package volume implements the volume capability client (spec.md
// §4.C/§4.D) against the PulseAudio native protocol, via
// github.com/jfreymuth/pulse. It keeps the teacher's Volume/Frac/Pct
// data model (modules/volume) and its rate-limited SetVolume/SetMuted
// throttling (modules/volume.alsaLimiter), but replaces alsa/cgo and
// the PulseAudio D-Bus extension (modules/volume/pulseaudio) with the
// native-protocol client, which needs no cgo and no PulseAudio D-Bus
// module to be loaded.
package volume

import (
	"fmt"
	"time"

	"github.com/jfreymuth/pulse"
	"golang.org/x/time/rate"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// Volume is a snapshot of a sink or source's volume and mute state.
type Volume struct {
	Min, Max, Vol int64
	Mute          bool
}

// Frac returns the current volume as a fraction of the total range.
func (v Volume) Frac() float64 {
	if v.Max == v.Min {
		return 0
	}
	return float64(v.Vol-v.Min) / float64(v.Max-v.Min)
}

// Pct returns the current volume in the range 0-100.
func (v Volume) Pct() int { return int((v.Frac() * 100) + 0.5) }

// setLimiter throttles SetVolume/SetMuted calls to once every ~20ms,
// matching the teacher's alsaLimiter (modules/volume.go): rapid
// scroll-wheel events would otherwise flood the server with updates.
var setLimiter = rate.NewLimiter(rate.Every(20*time.Millisecond), 1)

const normalizedMax = 0x10000 // pulse.Volume's full-scale value.

// Client tracks the volume of a single PulseAudio sink (output device)
// by name, or the default sink when name is "".
type Client struct {
	client *pulse.Client
	name   string
	broad  *chanx.Broadcaster[Volume]
	stop   chan struct{}
}

// New connects to the PulseAudio server and starts tracking the named
// sink (or the default sink, if name is "").
func New(sinkName string) (*Client, error) {
	pc, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("volume: connect to pulseaudio: %w", err)
	}
	c := &Client{client: pc, name: sinkName, broad: chanx.NewBroadcaster[Volume](), stop: make(chan struct{})}
	log.Register(c, "volume:"+sinkName)

	updates, err := pc.Updates()
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("volume: subscribe to updates: %w", err)
	}
	go c.run(updates)
	return c, nil
}

func (c *Client) run(updates <-chan struct{}) {
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
			if v, err := c.read(); err == nil {
				c.broad.Publish(v)
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) sink() (*pulse.Sink, error) {
	if c.name == "" {
		return c.client.DefaultSink()
	}
	sinks, err := c.client.ListSinks()
	if err != nil {
		return nil, err
	}
	for _, s := range sinks {
		if s.Name() == c.name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("volume: no such sink %q", c.name)
}

func (c *Client) read() (Volume, error) {
	sink, err := c.sink()
	if err != nil {
		return Volume{}, err
	}
	return Volume{
		Min:  0,
		Max:  normalizedMax,
		Vol:  int64(sink.Volume() * normalizedMax),
		Mute: sink.Muted(),
	}, nil
}

// Subscribe returns a live feed of volume snapshots.
func (c *Client) Subscribe() *chanx.Subscription[Volume] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot without subscribing.
func (c *Client) State() Volume {
	v, err := c.read()
	if err != nil {
		log.Fine("volume", "read %s: %v", c.name, err)
	}
	return v
}

// SetVolume sets the sink volume; it does not change mute status.
func (c *Client) SetVolume(vol int64) error {
	if !setLimiter.Allow() {
		return nil
	}
	sink, err := c.sink()
	if err != nil {
		return err
	}
	frac := float32(vol) / float32(normalizedMax)
	return c.client.SetSinkVolume(sink, frac)
}

// SetMuted controls whether the sink is muted.
func (c *Client) SetMuted(muted bool) error {
	if !setLimiter.Allow() {
		return nil
	}
	sink, err := c.sink()
	if err != nil {
		return err
	}
	return c.client.SetSinkMuted(sink, muted)
}

// Close disconnects from the PulseAudio server.
func (c *Client) Close() {
	close(c.stop)
	c.client.Close()
	c.broad.Close()
}
