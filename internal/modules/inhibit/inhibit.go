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

// Package inhibit is a module kind (spec.md §4.H/§4.J) rendering the
// shared logind sleep-inhibit client's state, the direct descendant
// of the teacher's modules/systemd in this codebase. Clicking the
// widget (module.TogglePopupEvent's button) is wired to Cycle in a
// real layer-shell binding; this core only renders the state.
package inhibit

import (
	"fmt"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/inhibit"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Module renders the shared inhibit client's active duration.
type Module struct{}

// New builds an inhibit module; the duration ladder is fixed at
// client construction (spec.md §4.C).
func New(raw map[string]any) *Module { return &Module{} }

func render(s inhibit.State) string {
	if !s.Active {
		return "off"
	}
	if s.Duration == 0 {
		return "inhibit ∞"
	}
	return fmt.Sprintf("inhibit %s", s.Duration)
}

// SpawnController streams inhibit state from the shared client.
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	c, err := ctx.Clients.Get(client.Inhibit)
	if err != nil {
		return err
	}
	ic := c.(*inhibit.Client)
	sub := ic.Subscribe()

	go func() {
		ctx.Tx().SendExpect(module.UpdateValue(render(ic.State())))
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
