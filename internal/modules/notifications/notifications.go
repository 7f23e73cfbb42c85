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

// Package notifications is a module kind (spec.md §4.H/§4.J)
// rendering the shared notification daemon's pending count and
// do-not-disturb state.
package notifications

import (
	"fmt"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/notifications"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Module renders the shared notification daemon's state.
type Module struct{}

// New builds a notifications module; there is no per-instance config.
func New(raw map[string]any) *Module { return &Module{} }

func render(s notifications.State) string {
	if s.Dnd {
		return "dnd"
	}
	if s.Count == 0 {
		return ""
	}
	return fmt.Sprintf("%d", s.Count)
}

// SpawnController streams notification daemon state from the shared client.
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	c, err := ctx.Clients.Get(client.Notifications)
	if err != nil {
		return err
	}
	nc := c.(*notifications.Client)
	sub := nc.Subscribe()

	go func() {
		ctx.Tx().SendExpect(module.UpdateValue(render(nc.State())))
		for {
			select {
			case s, ok := <-sub.Recv():
				if !ok {
					return
				}
				ctx.Tx().SendExpect(module.UpdateValue(render(s)))
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
