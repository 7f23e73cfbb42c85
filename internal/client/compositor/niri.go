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

// Package compositor implements the workspace capability client
// (spec.md §4.C/§4.D) against niri's IPC socket: a newline-delimited
// JSON request/response and event-stream protocol reached over
// net.Dial("unix", ...), the same shape the teacher's notifier package
// uses for its own socket listener, just as a client instead of a
// server. Niri only ever reports a full WorkspacesChanged snapshot, so
// Client diffs successive snapshots into Add/Remove/Rename/Move
// updates the way the original workspace module does.
package compositor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

// Workspace mirrors one niri workspace.
type Workspace struct {
	ID      int64
	Name    string
	Monitor string
	Active  bool
	Focused bool
}

// UpdateKind identifies the shape of a WorkspaceUpdate.
type UpdateKind int

// The possible WorkspaceUpdate kinds.
const (
	Init UpdateKind = iota
	Add
	Remove
	Rename
	Move
)

// WorkspaceUpdate is a single change to the workspace set.
type WorkspaceUpdate struct {
	Kind       UpdateKind
	Workspaces []Workspace // Init only
	Workspace  Workspace   // Add, Move
	ID         int64       // Remove, Rename
	Name       string      // Rename
}

// dialSocket is overridden in tests.
var dialSocket = func() (net.Conn, error) {
	sock := os.Getenv("NIRI_SOCKET")
	if sock == "" {
		return nil, fmt.Errorf("compositor: NIRI_SOCKET is not set")
	}
	return net.Dial("unix", sock)
}

// Client streams workspace updates from niri.
type Client struct {
	conn  net.Conn
	broad *chanx.Broadcaster[WorkspaceUpdate]
	stop  chan struct{}

	mu    sync.RWMutex
	state []Workspace
}

// New connects to niri's IPC socket and starts streaming events.
func New() (*Client, error) {
	conn, err := dialSocket()
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(conn)
	if err := enc.Encode("EventStream"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("compositor: request event stream: %w", err)
	}
	c := &Client{conn: conn, broad: chanx.NewBroadcaster[WorkspaceUpdate](), stop: make(chan struct{})}
	log.Register(c, "compositor")
	go c.run()
	return c, nil
}

type niriWorkspace struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Output    string `json:"output"`
	IsActive  bool   `json:"is_active"`
	IsFocused bool   `json:"is_focused"`
}

type niriEvent struct {
	WorkspacesChanged *struct {
		Workspaces []niriWorkspace `json:"workspaces"`
	} `json:"WorkspacesChanged"`
	WorkspaceActivated *struct {
		ID      int64 `json:"id"`
		Focused bool  `json:"focused"`
	} `json:"WorkspaceActivated"`
}

func (c *Client) run() {
	scanner := bufio.NewScanner(c.conn)
	// Discard the command's own acknowledgement line before events begin.
	if scanner.Scan() {
		// Handshake response; not used by the client.
	}
	for scanner.Scan() {
		select {
		case <-c.stop:
			return
		default:
		}
		var ev niriEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		for _, u := range c.apply(ev) {
			c.broad.Publish(u)
		}
	}
}

func (c *Client) apply(ev niriEvent) []WorkspaceUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.WorkspacesChanged != nil {
		next := make([]Workspace, 0, len(ev.WorkspacesChanged.Workspaces))
		for _, w := range ev.WorkspacesChanged.Workspaces {
			next = append(next, Workspace{ID: w.ID, Name: w.Name, Monitor: w.Output, Active: w.IsActive, Focused: w.IsFocused})
		}
		sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

		if c.state == nil {
			c.state = next
			return []WorkspaceUpdate{{Kind: Init, Workspaces: append([]Workspace(nil), next...)}}
		}

		var updates []WorkspaceUpdate
		byID := map[int64]Workspace{}
		for _, w := range c.state {
			byID[w.ID] = w
		}
		seen := map[int64]bool{}
		for _, w := range next {
			seen[w.ID] = true
			old, ok := byID[w.ID]
			if !ok {
				updates = append(updates, WorkspaceUpdate{Kind: Add, Workspace: w})
				continue
			}
			if old.Name != w.Name {
				updates = append(updates, WorkspaceUpdate{Kind: Rename, ID: w.ID, Name: w.Name})
			}
			if old.Monitor != w.Monitor {
				updates = append(updates, WorkspaceUpdate{Kind: Move, Workspace: w})
			}
		}
		for id := range byID {
			if !seen[id] {
				updates = append(updates, WorkspaceUpdate{Kind: Remove, ID: id})
			}
		}
		c.state = next
		return updates
	}

	if ev.WorkspaceActivated != nil {
		id := ev.WorkspaceActivated.ID
		for i := range c.state {
			if ev.WorkspaceActivated.Focused && c.state[i].Focused {
				c.state[i].Focused = false
			}
			if c.state[i].ID == id {
				c.state[i].Active = true
				if ev.WorkspaceActivated.Focused {
					c.state[i].Focused = true
				}
			}
		}
		return nil
	}

	return nil
}

// Subscribe returns a live feed of workspace updates.
func (c *Client) Subscribe() *chanx.Subscription[WorkspaceUpdate] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// Workspaces returns the current known workspace set.
func (c *Client) Workspaces() []Workspace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Workspace(nil), c.state...)
}

// Focus requests niri switch to the named workspace.
func (c *Client) Focus(name string) error {
	req := map[string]interface{}{
		"Action": map[string]interface{}{
			"FocusWorkspace": map[string]interface{}{
				"reference": map[string]string{"Name": name},
			},
		},
	}
	conn, err := dialSocket()
	if err != nil {
		return err
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(req)
}

// Close disconnects from niri.
func (c *Client) Close() {
	close(c.stop)
	c.conn.Close()
	c.broad.Close()
}
