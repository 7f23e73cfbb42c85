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

// Package style treats the CSS stylesheet (spec.md §1, §6) as the
// single opaque resource spec.md's Non-goals describe: this package
// does not parse CSS, it only tracks the path and hands the raw bytes
// to whatever toolkit binding applies them. Load and Reload are the
// entire surface, deliberately narrow.
package style

import (
	"github.com/spf13/afero"

	"github.com/ferrobar/ferrobar/internal/log"
)

// fs is the filesystem style reads through; overridden in tests so
// hot-reload and startup parsing can run without touching disk.
var fs = afero.NewOsFs()

// Sheet is the loaded stylesheet: its source path and raw contents.
// Applying it to a running UI is entirely the toolkit binding's
// business; this package only tracks what was last read.
type Sheet struct {
	Path string
	CSS  string
}

// Load reads the stylesheet at path. A missing file is not an error -
// running without a stylesheet is valid (spec.md §6 "CSS file" is
// optional).
func Load(path string) (Sheet, error) {
	if path == "" {
		return Sheet{}, nil
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return Sheet{}, err
	}
	if !exists {
		log.Fine("style", "no stylesheet at %s", path)
		return Sheet{Path: path}, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Sheet{}, err
	}
	return Sheet{Path: path, CSS: string(data)}, nil
}

// Reload re-reads the stylesheet's path, returning the new Sheet. It
// is a plain re-invocation of Load on s.Path, kept as a distinct name
// for the stylesheet hot-reload path; s itself is not modified, the
// caller uses the returned Sheet.
func Reload(s Sheet) (Sheet, error) {
	return Load(s.Path)
}
