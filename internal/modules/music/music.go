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

// Package music is a module kind (spec.md §4.H/§4.J) rendering the
// shared MPRIS player's playback state, the direct descendant of the
// teacher's modules/media in this codebase: the dbus plumbing already
// lives in internal/client/music, so this package only renders its
// Info and wires it to a label.
package music

import (
	"fmt"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/music"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Module renders the shared MPRIS player's current track and state.
type Module struct{}

// New builds a music module. The player itself is selected process-
// wide, via the FERROBAR_MUSIC_PLAYER environment variable the client
// is constructed with (spec.md §4.C clients are singletons per
// capability, not per module instance).
func New(raw map[string]any) *Module { return &Module{} }

func render(info music.Info) string {
	if !info.Connected() {
		return ""
	}
	state := "▶"
	if info.Paused() {
		state = "⏸"
	} else if info.Stopped() {
		state = "⏹"
	}
	if info.Artist == "" {
		return fmt.Sprintf("%s %s", state, info.Title)
	}
	return fmt.Sprintf("%s %s - %s", state, info.Artist, info.Title)
}

// SpawnController streams playback info from the shared music client.
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	c, err := ctx.Clients.Get(client.Music)
	if err != nil {
		return err
	}
	mc := c.(*music.Client)
	sub := mc.Subscribe()

	go func() {
		ctx.Tx().SendExpect(module.UpdateValue(render(mc.State())))
		for {
			select {
			case info, ok := <-sub.Recv():
				if !ok {
					return
				}
				ctx.Tx().SendExpect(module.UpdateValue(render(info)))
			case _, ok := <-ctx.ControllerTx.Recv():
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// IntoWidget builds a label tracking the controller's rendered text.
func (m *Module) IntoWidget(ctx *module.Context[string, struct{}]) (module.Parts, error) {
	label := widget.NewLabel("")
	sub := ctx.Subscribe()
	go func() {
		for v := range sub.Recv() {
			label.SetText(v)
		}
	}()
	return module.Parts{Widget: label}, nil
}

// Kind is this module's factory registration for barassembler.Registry.
func Kind(raw map[string]any, id uint64, popups *popup.Registry, clients *client.Registry) (module.Parts, func(), error) {
	inst, err := module.New(id, New(raw), popups, clients)
	if err != nil {
		return module.Parts{}, nil, err
	}
	return inst.Parts, inst.Close, nil
}
