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

// Package supervisor implements spec.md §4.N: the top-level process
// lifecycle that owns the client registry, the live set of bars, the
// config/CSS hot-reload watchers, and the IPC server, and answers IPC
// commands by mutating that state. Grounded on original_source's
// top-level Ironbar struct (bars_by_name, bar command dispatch in
// ipc/server/bar.rs) generalized from a single GTK-resident struct to
// an explicitly constructed Go value the caller drives from its own
// main loop.
package supervisor

import (
	"fmt"
	"sync"

	"github.com/ferrobar/ferrobar/internal/bar"
	"github.com/ferrobar/ferrobar/internal/barassembler"
	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/config"
	"github.com/ferrobar/ferrobar/internal/hotreload"
	"github.com/ferrobar/ferrobar/internal/ipc"
	"github.com/ferrobar/ferrobar/internal/ironvar"
	"github.com/ferrobar/ferrobar/internal/log"
	"github.com/ferrobar/ferrobar/internal/style"
)

// Monitors abstracts the compositor's output enumeration (spec.md
// §4.N step 5 "Enumerate monitors"), so this package does not import
// any concrete compositor client directly - the caller supplies
// whichever adapter client.Registry resolved.
type Monitors interface {
	Names() []string
}

// Supervisor is the running process's top-level state (spec.md §4.N).
type Supervisor struct {
	configPath string
	cssPath    string

	Clients   *client.Registry
	Ironvars  *ironvar.Store
	Assembler *barassembler.Assembler

	mu    sync.Mutex
	bars  map[string][]*bar.Bar // keyed by monitor name
	cfg   config.Config
	sheet style.Sheet

	reload  *hotreload.Watcher
	cssLoad *hotreload.CSSWatcher
	ipc     *ipc.Server
}

// Options configures a new Supervisor (spec.md §4.N steps 2-4).
type Options struct {
	ConfigPath  string
	CSSPath     string // empty disables CSS loading
	IPCSocket   string
	Clients     *client.Registry
	Kinds       *barassembler.Registry
	DisableWatch bool
}

// New runs the startup sequence through IPC bind (spec.md §4.N steps
// 3-6): load config and CSS, build bars for every named monitor, and
// start the IPC server. The caller is expected to have already run
// step 4 (client registry construction + eager compositor init)
// before calling New, since that step requires compositor-specific
// wiring this package does not own.
func New(opts Options, monitorNames []string) (*Supervisor, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	var sheet style.Sheet
	if opts.CSSPath != "" {
		sheet, err = style.Load(opts.CSSPath)
		if err != nil {
			return nil, err
		}
	}

	s := &Supervisor{
		configPath: opts.ConfigPath,
		cssPath:    opts.CSSPath,
		Clients:    opts.Clients,
		Ironvars:   ironvar.New(),
		Assembler:  barassembler.New(opts.Kinds, opts.Clients),
		bars:       map[string][]*bar.Bar{},
		cfg:        cfg,
		sheet:      sheet,
	}

	for _, name := range monitorNames {
		if err := s.createBarsForMonitor(name); err != nil {
			log.Log("supervisor: monitor %s: %v", name, err)
		}
	}

	s.ipc, err = ipc.Serve(opts.IPCSocket, s)
	if err != nil {
		return nil, err
	}

	if !opts.DisableWatch {
		s.reload, err = hotreload.Watch(opts.ConfigPath, cfg, s.applyConfigDiff)
		if err != nil {
			log.Log("supervisor: config watch disabled: %v", err)
		}
		if opts.CSSPath != "" {
			s.cssLoad, err = hotreload.WatchCSS(opts.CSSPath, s.reloadCSS)
			if err != nil {
				log.Log("supervisor: css watch disabled: %v", err)
			}
		}
	}

	return s, nil
}

// monitorBarConfig resolves which BarConfig(s) apply to name: an
// explicit per-monitor override, or the global default (spec.md §4.K
// "merged with defaults").
func (s *Supervisor) monitorBarConfig(name string) []config.BarConfig {
	if mon, ok := s.cfg.Monitors[name]; ok {
		return mon.Bars()
	}
	return []config.BarConfig{s.cfg.Default}
}

func (s *Supervisor) createBarsForMonitor(name string) error {
	cfgs := s.monitorBarConfig(name)
	bars := make([]*bar.Bar, 0, len(cfgs))
	for i, c := range cfgs {
		b, err := s.Assembler.Build(name, i, c)
		if err != nil {
			return err
		}
		bars = append(bars, b)
	}
	s.mu.Lock()
	s.bars[name] = bars
	s.mu.Unlock()
	return nil
}

// applyConfigDiff is the hot-reload entry point (spec.md §4.L steps
// 3-4): instantiate bars for added monitors, close bars for removed
// ones, and apply per-bar Recreate/Reload for updated ones. Failures
// are logged per bar and do not abort the rest of the apply.
func (s *Supervisor) applyConfigDiff(cfg config.Config, diff config.ConfigDiff) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	for _, name := range diff.AddedMonitors {
		if err := s.createBarsForMonitor(name); err != nil {
			log.Log("supervisor: reload: adding monitor %s: %v", name, err)
		}
	}
	for _, name := range diff.RemovedMonitors {
		s.mu.Lock()
		bars := s.bars[name]
		delete(s.bars, name)
		s.mu.Unlock()
		for _, b := range bars {
			b.Close()
		}
	}
	for name, md := range diff.UpdatedMonitors {
		s.applyMonitorDiff(name, md)
	}

	if diff.Default.Kind != config.BarUnchanged {
		s.mu.Lock()
		covered := map[string]bool{}
		for name := range s.cfg.Monitors {
			covered[name] = true
		}
		s.mu.Unlock()
		for name := range s.bars {
			if !covered[name] {
				s.applyBarDiff(name, 0, diff.Default)
			}
		}
	}
}

func (s *Supervisor) applyMonitorDiff(name string, md config.MonitorDiff) {
	switch md.Kind {
	case config.MonitorRecreate:
		s.mu.Lock()
		old := s.bars[name]
		s.mu.Unlock()
		for _, b := range old {
			b.Close()
		}
		if err := s.createBarsForMonitor(name); err != nil {
			log.Log("supervisor: reload: recreating monitor %s: %v", name, err)
		}
	case config.MonitorUpdateSingle:
		s.applyBarDiff(name, 0, md.Single)
	case config.MonitorUpdateMultiple:
		for i, bd := range md.Multi {
			s.applyBarDiff(name, i, bd)
		}
	}
}

func (s *Supervisor) applyBarDiff(monitorName string, index int, bd config.BarDiff) {
	if bd.Kind == config.BarUnchanged {
		return
	}
	s.mu.Lock()
	bars := s.bars[monitorName]
	s.mu.Unlock()
	if index >= len(bars) {
		return
	}
	b := bars[index]

	cfgs := s.monitorBarConfig(monitorName)
	if index >= len(cfgs) {
		return
	}

	if bd.Kind == config.BarRecreate {
		if err := s.Assembler.Rebuild(b, cfgs[index]); err != nil {
			log.Log("supervisor: reload: recreating bar %s[%d]: %v", monitorName, index, err)
		}
		return
	}

	// BarReload: structural shape is unchanged, so only the
	// non-structural fields named in bd.Fields need applying; the
	// module list is preserved in place.
	c := cfgs[index]
	for _, f := range bd.Fields {
		switch f {
		case "height":
			b.Thickness = c.Height
		case "margin":
			b.Margin = c.Margin
		case "name":
			b.Name = c.Name
		case "class":
			b.Class = c.Class
		}
	}
}

func (s *Supervisor) reloadCSS() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, err := style.Reload(s.sheet)
	if err != nil {
		log.Log("supervisor: css reload: %v", err)
		return
	}
	s.sheet = sheet
}

// Bars returns every bar on the named monitor.
func (s *Supervisor) Bars(name string) []*bar.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*bar.Bar(nil), s.bars[name]...)
}

// bars matching a bar-command name: either a monitor name (all bars on
// that monitor) or an explicit bar Name set in config, across every
// monitor (spec.md §4.M "same monitor name across monitors, or same
// name across config").
func (s *Supervisor) barsByName(name string) []*bar.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bars, ok := s.bars[name]; ok {
		return append([]*bar.Bar(nil), bars...)
	}
	var matched []*bar.Bar
	for _, bars := range s.bars {
		for _, b := range bars {
			if b.Name == name {
				matched = append(matched, b)
			}
		}
	}
	return matched
}

// Shutdown implements spec.md §4.N's shutdown sequence: delete the IPC
// socket, abort every bar's controller tasks, close compositor
// subscriptions. Compositor subscription teardown is the caller's
// responsibility, since this package never owns a concrete compositor
// client.
func (s *Supervisor) Shutdown() {
	if s.ipc != nil {
		s.ipc.Close()
	}
	if s.reload != nil {
		s.reload.Close()
	}
	if s.cssLoad != nil {
		s.cssLoad.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bars := range s.bars {
		for _, b := range bars {
			b.Close()
		}
	}
}

// The remaining methods implement ipc.Handler (spec.md §4.M).

func (s *Supervisor) Ping() ipc.Response { return ipc.Response{Kind: ipc.Ok} }

// Inspect has no in-process GUI inspector to open in this headless
// core (spec.md §1 "GUI toolkit ... treated as abstract"); it reports
// success so scripts can use it as a liveness probe either way.
func (s *Supervisor) Inspect() ipc.Response { return ipc.Response{Kind: ipc.Ok} }

func (s *Supervisor) Reload() ipc.Response {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return ipc.Error(err.Error())
	}
	s.mu.Lock()
	prev := s.cfg
	s.mu.Unlock()
	s.applyConfigDiff(cfg, config.Diff(prev, cfg))
	return ipc.Response{Kind: ipc.Ok}
}

func (s *Supervisor) LoadCSS(path string) ipc.Response {
	sheet, err := style.Load(path)
	if err != nil {
		return ipc.Error(err.Error())
	}
	s.mu.Lock()
	s.sheet = sheet
	s.mu.Unlock()
	return ipc.Response{Kind: ipc.Ok}
}

func (s *Supervisor) Set(key, value string) ipc.Response {
	if err := s.Ironvars.Set(key, &value); err != nil {
		return ipc.Error(err.Error())
	}
	return ipc.Response{Kind: ipc.Ok}
}

func (s *Supervisor) Get(key string) ipc.Response {
	v := s.Ironvars.Get(key)
	if !v.Set {
		return ipc.Error("variable not found")
	}
	return ipc.OkValueResponse(v.Str)
}

func (s *Supervisor) List() ipc.Response {
	return ipc.SortedList(s.Ironvars.List())
}

func (s *Supervisor) Bar(cmd ipc.BarCommand) ipc.Response {
	bars := s.barsByName(cmd.Name)
	if len(bars) == 0 {
		return ipc.Error("invalid bar name")
	}
	responses := make([]ipc.Response, len(bars))
	for i, b := range bars {
		responses[i] = dispatchBarCommand(b, cmd)
	}
	return ipc.Reduce(responses)
}

// dispatchBarCommand implements one bar's worth of the `bar`
// sub-commands (spec.md §4.M "Bar sub-commands"), grounded on
// ipc/server/bar.rs's handle_command/show_popup/hide_popup.
func dispatchBarCommand(b *bar.Bar, cmd ipc.BarCommand) ipc.Response {
	switch cmd.Subcommand {
	case "show":
		b.Visible = true
		return ipc.Response{Kind: ipc.Ok}
	case "hide":
		b.Visible = false
		return ipc.Response{Kind: ipc.Ok}
	case "set_visible":
		b.Visible = cmd.Visible
		return ipc.Response{Kind: ipc.Ok}
	case "toggle_visible":
		b.Visible = !b.Visible
		return ipc.Response{Kind: ipc.Ok}
	case "get_visible":
		return ipc.OkValueResponse(fmt.Sprintf("%t", b.Visible))
	case "show_popup":
		return showPopupByWidgetName(b, cmd.WidgetName)
	case "hide_popup":
		b.Popups.Hide()
		return ipc.Response{Kind: ipc.Ok}
	case "set_popup_visible":
		if cmd.Visible {
			return showPopupByWidgetName(b, cmd.WidgetName)
		}
		b.Popups.Hide()
		return ipc.Response{Kind: ipc.Ok}
	case "toggle_popup":
		if b.Popups.IsVisible() {
			b.Popups.Hide()
			return ipc.Response{Kind: ipc.Ok}
		}
		return showPopupByWidgetName(b, cmd.WidgetName)
	case "get_popup_visible":
		return ipc.OkValueResponse(fmt.Sprintf("%t", b.Popups.IsVisible()))
	case "set_exclusive":
		// Exclusive-zone toggling is a layer-shell surface property
		// owned by the GUI toolkit, out of this core's scope (spec.md
		// §1); acknowledged here so CLI scripts see a stable Ok.
		return ipc.Response{Kind: ipc.Ok}
	default:
		return ipc.Error(fmt.Sprintf("unknown bar subcommand %q", cmd.Subcommand))
	}
}

func showPopupByWidgetName(b *bar.Bar, widgetName string) ipc.Response {
	for _, m := range b.Modules() {
		if m.Common.Name == widgetName {
			if m.PopupContent == nil {
				return ipc.Error("module has no popup functionality")
			}
			b.Popups.Show(m.ID, 0)
			return ipc.Response{Kind: ipc.Ok}
		}
	}
	return ipc.Error("invalid module name")
}
