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

// Package workspaces is a module kind rendering the compositor's
// workspace set (spec.md §4.D "compositor" client), the system's
// closest analogue to the teacher's wlan/sysinfo-style "poll a client,
// render its state" modules even though the teacher itself never
// shipped a workspace module (barista targets i3, not a Wayland
// compositor).
package workspaces

import (
	"strings"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/compositor"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Module renders every workspace on this module's monitor, marking the
// focused one, re-rendering on every compositor update.
type Module struct {
	monitor string
}

// New builds a workspaces module scoped to a single monitor name, read
// from its raw config's "monitor" field (empty shows every monitor's
// workspaces).
func New(raw map[string]any) *Module {
	m := &Module{}
	if v, ok := raw["monitor"].(string); ok {
		m.monitor = v
	}
	return m
}

func (m *Module) render(all []compositor.Workspace) string {
	var sb strings.Builder
	for _, w := range all {
		if m.monitor != "" && w.Monitor != m.monitor {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		if w.Focused {
			sb.WriteString("[" + w.Name + "]")
		} else {
			sb.WriteString(w.Name)
		}
	}
	return sb.String()
}

// SpawnController streams workspace updates from the shared compositor
// client and re-renders the full set on every change (spec.md §4.D
// "compositor" delivers full-snapshot updates, so a module reacting to
// it re-derives its display from the client's current state rather
// than patching incrementally).
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	c, err := ctx.Clients.Get(client.Compositor)
	if err != nil {
		return err
	}
	comp := c.(*compositor.Client)
	sub := comp.Subscribe()

	go func() {
		ctx.Tx().SendExpect(module.UpdateValue(m.render(comp.Workspaces())))
		for {
			select {
			case _, ok := <-sub.Recv():
				if !ok {
					return
				}
				ctx.Tx().SendExpect(module.UpdateValue(m.render(comp.Workspaces())))
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
