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

// Package clock is a module kind (spec.md §4.H/§4.J) displaying the
// current time. Adapted from modules/clock.go's builder API into a
// config-driven module.Module[string, struct{}]: the granularity
// computed from a Go time.Format layout is ported verbatim from that
// file's OutputFormat, since the format-sniffing rule has nothing to
// do with the old fluent-builder shape around it.
package clock

import (
	"strings"
	"time"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/module"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

const defaultFormat = "15:04"

// Module renders time.Now() in a configured timezone and format,
// re-rendering at the coarsest granularity the format needs.
type Module struct {
	format      string
	loc         *time.Location
	granularity time.Duration
}

// New builds a clock module from its raw config fields: "format" (a
// Go time layout, default "15:04") and "timezone" (an IANA zone name,
// default the local zone).
func New(raw map[string]any) *Module {
	m := &Module{format: defaultFormat, loc: time.Local}
	if v, ok := raw["format"].(string); ok && v != "" {
		m.format = v
	}
	if v, ok := raw["timezone"].(string); ok && v != "" {
		if loc, err := time.LoadLocation(v); err == nil {
			m.loc = loc
		}
	}
	m.granularity = granularityFor(m.format)
	return m
}

// granularityFor picks the coarsest refresh interval that still shows
// every change the format string can display.
func granularityFor(format string) time.Duration {
	switch {
	case strings.Contains(format, ".000"):
		return time.Millisecond
	case strings.Contains(format, ".00"):
		return 10 * time.Millisecond
	case strings.Contains(format, ".0"):
		return 100 * time.Millisecond
	case strings.Contains(format, "05"):
		return time.Second
	case strings.Contains(format, "04"):
		return time.Minute
	default:
		return time.Hour
	}
}

// SpawnController ticks at m.granularity, formatting the current time
// into the module's update channel (spec.md §4.H controller half).
func (m *Module) SpawnController(ctx *module.Context[string, struct{}]) error {
	go func() {
		for {
			now := time.Now().In(m.loc)
			ctx.Tx().SendExpect(module.UpdateValue(now.Format(m.format)))
			next := now.Add(m.granularity).Truncate(m.granularity)
			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
			case _, ok := <-ctx.ControllerTx.Recv():
				timer.Stop()
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// IntoWidget builds a label that tracks the controller's broadcast
// updates (spec.md §4.H UI half).
func (m *Module) IntoWidget(ctx *module.Context[string, struct{}]) (module.Parts, error) {
	label := widget.NewLabel(time.Now().In(m.loc).Format(m.format))
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
