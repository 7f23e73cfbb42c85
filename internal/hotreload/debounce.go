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

package hotreload

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ferrobar/ferrobar/internal/log"
)

// fileWatcher is the format-agnostic half of spec.md §4.L: watch a
// single file's parent directory (so editor replace-on-save, which
// unlinks and recreates the file, is still observed) and call onChange
// once per coalesced burst of events. Watcher (config reload) and
// CSSWatcher both build on this instead of duplicating the fsnotify
// plumbing and debounce timer.
type fileWatcher struct {
	path     string
	onChange func()

	fsw      *fsnotify.Watcher
	stop     chan struct{}
	stopOnce sync.Once
}

func watchFile(path string, onChange func()) (*fileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &fileWatcher{
		path:     path,
		onChange: onChange,
		fsw:      fsw,
		stop:     make(chan struct{}),
	}
	log.Register(w, "hotreload")
	go w.run()
	return w, nil
}

func (w *fileWatcher) run() {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			log.Fine("hotreload", "debouncing event: %s", ev)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(DebounceWindow)
			pending = timer.C
		case <-pending:
			pending = nil
			w.onChange()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Log("hotreload: watch error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *fileWatcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.fsw.Close()
	})
}
