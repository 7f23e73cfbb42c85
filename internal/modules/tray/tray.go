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

// Package tray is a module kind (spec.md §4.H/§4.J) rendering the
// freedesktop systray's item set from the shared tray client.
package tray

import (
	"strings"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/tray"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Module renders every registered tray item's title, in the watcher's
// registration order.
type Module struct{}

// New builds a tray module. Tray has no per-instance config: every
// bar showing a tray shows the same process-wide item set.
func New(raw map[string]any) *Module { return &Module{} }

func render(snap tray.Snapshot) string {
	titles := make([]string, 0, len(snap.Items))
	for _, it := range snap.Items {
		t := it.Title
		if t == "" {
			t = it.IconName
		}
		titles = append(titles, t)
	}
	return strings.Join(titles, " ")
}

// SpawnController streams tray snapshots from the shared tray client.
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	c, err := ctx.Clients.Get(client.Tray)
	if err != nil {
		return err
	}
	tc := c.(*tray.Client)
	sub := tc.Subscribe()

	go func() {
		for {
			select {
			case snap, ok := <-sub.Recv():
				if !ok {
					return
				}
				ctx.Tx().SendExpect(module.UpdateValue(render(snap)))
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
