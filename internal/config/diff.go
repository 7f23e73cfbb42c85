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

package config

import "reflect"

// BarKind is the outcome of diffing two BarConfigs: either the bar can
// be reconfigured in place, or it must be torn down and rebuilt
// (spec.md §3 "ConfigDiff").
type BarKind int

const (
	// BarUnchanged means old and new are structurally identical.
	BarUnchanged BarKind = iota
	// BarReload means only reloadable fields changed; the module list
	// is preserved.
	BarReload
	// BarRecreate means a structural field changed; the bar is torn
	// down and rebuilt from new.
	BarRecreate
)

// BarDiff is the result of diffing one bar's old and new config.
type BarDiff struct {
	Kind   BarKind
	Fields []string // names of changed reloadable fields, set only for BarReload
}

// moduleListShape returns a comparable summary of a module list's
// structure: its length and the kind of each entry, used to decide
// whether the "module-list shape" changed (spec.md §4.K "structural
// field changes ... module-list shape").
func moduleListShape(mods []ModuleConfig) []string {
	shape := make([]string, len(mods))
	for i, m := range mods {
		shape[i] = m.Kind
	}
	return shape
}

// diffBar implements spec.md §4.K's decision table: position, anchor,
// and module-list shape are structural (force Recreate); height,
// margin, name, and class are reloadable.
func diffBar(old, new BarConfig) BarDiff {
	if old.Position != new.Position ||
		old.AnchorToEdges != new.AnchorToEdges ||
		!reflect.DeepEqual(moduleListShape(old.Start), moduleListShape(new.Start)) ||
		!reflect.DeepEqual(moduleListShape(old.Center), moduleListShape(new.Center)) ||
		!reflect.DeepEqual(moduleListShape(old.End), moduleListShape(new.End)) {
		return BarDiff{Kind: BarRecreate}
	}

	var fields []string
	if old.Height != new.Height {
		fields = append(fields, "height")
	}
	if old.Margin != new.Margin {
		fields = append(fields, "margin")
	}
	if old.Name != new.Name {
		fields = append(fields, "name")
	}
	if old.Class != new.Class {
		fields = append(fields, "class")
	}
	if !reflect.DeepEqual(old.Start, new.Start) ||
		!reflect.DeepEqual(old.Center, new.Center) ||
		!reflect.DeepEqual(old.End, new.End) {
		fields = append(fields, "module_values")
	}

	if len(fields) == 0 {
		return BarDiff{Kind: BarUnchanged}
	}
	return BarDiff{Kind: BarReload, Fields: fields}
}

// MonitorKind is the outcome of diffing two MonitorConfigs.
type MonitorKind int

const (
	MonitorUnchanged MonitorKind = iota
	MonitorRecreate
	MonitorUpdateSingle
	MonitorUpdateMultiple
)

// MonitorDiff is the result of diffing one monitor's old and new
// config entry (spec.md §3 "MonitorDiff").
type MonitorDiff struct {
	Kind   MonitorKind
	Single BarDiff   // set for MonitorUpdateSingle
	Multi  []BarDiff // set for MonitorUpdateMultiple, one per bar index
}

// diffMonitor implements spec.md §4.K's monitor-level rule: a shape
// change (Single↔Multiple, or different list length) forces Recreate;
// Single↔Single diffs the one bar; Multiple↔Multiple of equal length
// diffs per index.
func diffMonitor(old, new MonitorConfig) MonitorDiff {
	if old.IsMultiple() != new.IsMultiple() {
		return MonitorDiff{Kind: MonitorRecreate}
	}
	if !old.IsMultiple() {
		d := diffBar(*old.Single, *new.Single)
		if d.Kind == BarUnchanged {
			return MonitorDiff{Kind: MonitorUnchanged}
		}
		return MonitorDiff{Kind: MonitorUpdateSingle, Single: d}
	}
	if len(old.Multiple) != len(new.Multiple) {
		return MonitorDiff{Kind: MonitorRecreate}
	}
	diffs := make([]BarDiff, len(old.Multiple))
	unchanged := true
	for i := range old.Multiple {
		diffs[i] = diffBar(old.Multiple[i], new.Multiple[i])
		if diffs[i].Kind != BarUnchanged {
			unchanged = false
		}
	}
	if unchanged {
		return MonitorDiff{Kind: MonitorUnchanged}
	}
	return MonitorDiff{Kind: MonitorUpdateMultiple, Multi: diffs}
}

// ConfigDiff is the full structural diff between two Config snapshots
// (spec.md §3 "ConfigDiff").
type ConfigDiff struct {
	Default BarDiff

	AddedMonitors   []string
	RemovedMonitors []string
	UpdatedMonitors map[string]MonitorDiff
}

// Diff computes the structural difference between an old and a new
// Config, the input to the hot-reload watcher's incremental apply step
// (spec.md §4.K, §4.L).
func Diff(old, new Config) ConfigDiff {
	d := ConfigDiff{
		Default:         diffBar(old.Default, new.Default),
		UpdatedMonitors: map[string]MonitorDiff{},
	}

	for name := range old.Monitors {
		if _, ok := new.Monitors[name]; !ok {
			d.RemovedMonitors = append(d.RemovedMonitors, name)
		}
	}
	for name, newMon := range new.Monitors {
		oldMon, ok := old.Monitors[name]
		if !ok {
			d.AddedMonitors = append(d.AddedMonitors, name)
			continue
		}
		md := diffMonitor(oldMon, newMon)
		if md.Kind != MonitorUnchanged {
			d.UpdatedMonitors[name] = md
		}
	}
	return d
}
