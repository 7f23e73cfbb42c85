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

// Package sysinfo is a module kind (spec.md §4.H/§4.J) rendering the
// shared sysinfo client's load average and free memory, the direct
// descendant of the teacher's modules/sysinfo and modules/meminfo in
// this codebase. Free/total RAM is formatted with go-humanize the way
// the teacher's sample bars format byte counts for a human reader,
// rather than printing raw byte totals.
package sysinfo

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/sysinfo"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// Module renders the shared sysinfo client's 1-minute load average and
// free/total RAM.
type Module struct{}

// New builds a sysinfo module; there is no per-instance config, the
// polling interval is fixed at client construction (spec.md §4.C).
func New(raw map[string]any) *Module { return &Module{} }

func render(info sysinfo.Info) string {
	return fmt.Sprintf("%.2f  %s/%s", info.Loads[0],
		humanize.Bytes(uint64(info.FreeRAM.Bytes())), humanize.Bytes(uint64(info.TotalRAM.Bytes())))
}

// SpawnController streams sysinfo snapshots from the shared client.
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	c, err := ctx.Clients.Get(client.Sysinfo)
	if err != nil {
		return err
	}
	sc := c.(*sysinfo.Client)
	sub := sc.Subscribe()

	go func() {
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
