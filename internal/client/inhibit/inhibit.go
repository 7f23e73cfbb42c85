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

// Package inhibit implements the idle-inhibit capability client
// (spec.md §4.C/§4.D): taking and releasing a logind "sleep" inhibitor
// lock, the same way modules/systemd uses go-systemd's dbus package
// for unit control, but reaching for go-systemd's login1 package
// (already part of the stack) since that's the purpose-built wrapper
// around org.freedesktop.login1.Manager.Inhibit.
package inhibit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/login1"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// newConn is overridden in tests to avoid a real logind connection.
var newConn = func() (conn, error) { return login1.New() }

// conn is the subset of *login1.Conn used by Client, extracted so
// tests can substitute a fake.
type conn interface {
	Inhibit(what, who, why, mode string) (*os.File, error)
}

// State is the current inhibit status shown by a module.
type State struct {
	Active   bool
	Duration time.Duration
}

// Client holds a logind idle-inhibit lock, cycling through a list of
// durations the same way the inhibit module does in original form.
type Client struct {
	conn conn

	mu        sync.Mutex
	durations []time.Duration
	idx       int
	lock      *os.File
	state     State
	expiry    *time.Timer

	broad *chanx.Broadcaster[State]
}

// New creates an inhibit client cycling through durations, starting
// at defaultDuration (or the first entry if not found). A duration of
// 0 means "inhibit indefinitely".
func New(durations []time.Duration, defaultDuration time.Duration) (*Client, error) {
	if len(durations) == 0 {
		durations = []time.Duration{30 * time.Minute}
	}
	c, err := newConn()
	if err != nil {
		return nil, fmt.Errorf("inhibit: connect to logind: %w", err)
	}
	idx := 0
	for i, d := range durations {
		if d == defaultDuration {
			idx = i
			break
		}
	}
	cl := &Client{
		conn:      c,
		durations: durations,
		idx:       idx,
		state:     State{Duration: durations[idx]},
		broad:     chanx.NewBroadcaster[State](),
	}
	log.Register(cl, "inhibit")
	return cl, nil
}

// Subscribe returns a live feed of inhibit state.
func (c *Client) Subscribe() *chanx.Subscription[State] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// State returns the current snapshot.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cycle advances to the next configured duration without changing
// whether the inhibitor is currently held.
func (c *Client) Cycle() {
	c.mu.Lock()
	c.idx = (c.idx + 1) % len(c.durations)
	c.state.Duration = c.durations[c.idx]
	s := c.state
	c.mu.Unlock()
	c.broad.Publish(s)
}

// Toggle flips the inhibitor on or off, taking or releasing the
// logind lock accordingly.
func (c *Client) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Active {
		return c.releaseLocked()
	}
	return c.acquireLocked()
}

func (c *Client) acquireLocked() error {
	f, err := c.conn.Inhibit("idle:sleep", "ferrobar", "user requested idle inhibit", "block")
	if err != nil {
		return fmt.Errorf("inhibit: acquire: %w", err)
	}
	c.lock = f
	c.state.Active = true
	if c.expiry != nil {
		c.expiry.Stop()
	}
	if d := c.durations[c.idx]; d > 0 {
		c.expiry = time.AfterFunc(d, c.expire)
	}
	c.publishLocked()
	return nil
}

func (c *Client) releaseLocked() error {
	if c.lock != nil {
		c.lock.Close()
		c.lock = nil
	}
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	c.state.Active = false
	c.state.Duration = c.durations[c.idx]
	c.publishLocked()
	return nil
}

func (c *Client) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

func (c *Client) publishLocked() {
	s := c.state
	go c.broad.Publish(s)
}

// Close releases any held inhibitor lock and stops the broadcaster.
func (c *Client) Close() {
	c.mu.Lock()
	c.releaseLocked()
	c.mu.Unlock()
	c.broad.Close()
}
