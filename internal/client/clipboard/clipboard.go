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

// Package clipboard implements the clipboard capability client
// (spec.md §4.C/§4.D). Wayland's data-control protocol has no stable
// Go binding in this corpus, so this client shells out to wl-clipboard
// the same way modules/shell streams a long-running command's output:
// it runs internal/script in Watch mode against `wl-paste --watch`,
// which blocks and emits one line per clipboard change.
package clipboard

import (
	"context"
	"os/exec"
	"strings"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
	"github.com/ferrobar/ferrobar/internal/script"
)

// Entry is one clipboard snapshot.
type Entry struct {
	MimeType string
	Text     string
}

// Client watches the Wayland clipboard for text changes.
type Client struct {
	broad  *chanx.Broadcaster[Entry]
	cancel context.CancelFunc
}

// New starts watching the clipboard. mimeType selects which
// `wl-paste --type` filter to apply ("text" if empty).
func New(mimeType string) *Client {
	if mimeType == "" {
		mimeType = "text"
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{broad: chanx.NewBroadcaster[Entry](), cancel: cancel}
	log.Register(c, "clipboard")

	cmd := script.Command{Mode: script.Watch, Command: "wl-paste --no-newline --type " + mimeType + " --watch cat"}
	go script.Run(ctx, cmd, func(o script.Output) {
		if o.Stream != script.Stdout {
			return
		}
		c.broad.Publish(Entry{MimeType: mimeType, Text: o.Text})
	})
	return c
}

// Subscribe returns a live feed of clipboard entries.
func (c *Client) Subscribe() *chanx.Subscription[Entry] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// SetText copies text to the clipboard via wl-copy.
func (c *Client) SetText(text string) error {
	cmd := exec.Command("wl-copy")
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// Close stops watching the clipboard.
func (c *Client) Close() {
	c.cancel()
	c.broad.Close()
}
