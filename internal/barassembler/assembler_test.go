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

package barassembler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferrobar/ferrobar/internal/bar"
	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/config"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

type fakeHandle struct{ classes map[string]bool }

func newFakeHandle() *fakeHandle { return &fakeHandle{classes: map[string]bool{}} }

func (h *fakeHandle) Mount()                    {}
func (h *fakeHandle) Unmount()                  {}
func (h *fakeHandle) Geometry() widget.Geometry { return widget.Geometry{} }
func (h *fakeHandle) SetVisible(bool)           {}
func (h *fakeHandle) AddClass(name string)      { h.classes[name] = true }
func (h *fakeHandle) RemoveClass(name string)   { delete(h.classes, name) }

func clockKind(raw map[string]any, id uint64, popups *popup.Registry, clients *client.Registry) (module.Parts, func(), error) {
	return module.Parts{Widget: newFakeHandle()}, func() {}, nil
}

func TestBuildPopulatesModuleLists(t *testing.T) {
	require := require.New(t)
	kinds := NewRegistry()
	kinds.Register("clock", clockKind)

	a := New(kinds, client.NewRegistry())
	cfg := config.BarConfig{
		Position: bar.Bottom,
		Start:    []config.ModuleConfig{{Kind: "clock", Common: bar.CommonConfig{Name: "c1"}}},
	}

	b, err := a.Build("eDP-1", 0, cfg)
	require.NoError(err)
	require.Len(b.Start, 1)
	require.Equal("c1", b.Start[0].Common.Name)
	require.NotNil(b.Start[0].Widget)
}

func TestBuildUnknownKindErrors(t *testing.T) {
	require := require.New(t)
	a := New(NewRegistry(), client.NewRegistry())
	cfg := config.BarConfig{Start: []config.ModuleConfig{{Kind: "nonexistent"}}}

	_, err := a.Build("eDP-1", 0, cfg)
	require.Error(err)
}
