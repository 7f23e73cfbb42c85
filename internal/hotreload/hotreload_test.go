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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ferrobar/ferrobar/internal/config"
)

func TestWatchAppliesOnChange(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(os.WriteFile(path, []byte(`{"default":{"height":42}}`), 0o644))

	initial, err := config.Load(path)
	require.NoError(err)

	applied := make(chan config.ConfigDiff, 4)
	w, err := Watch(path, initial, func(cfg config.Config, diff config.ConfigDiff) {
		applied <- diff
	})
	require.NoError(err)
	defer w.Close()

	require.NoError(os.WriteFile(path, []byte(`{"default":{"height":50}}`), 0o644))

	select {
	case diff := <-applied:
		require.Equal(config.BarReload, diff.Default.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatchCSSAppliesOnChange(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "style.css")
	require.NoError(os.WriteFile(path, []byte("* { color: red; }"), 0o644))

	applied := make(chan struct{}, 4)
	w, err := WatchCSS(path, func() { applied <- struct{}{} })
	require.NoError(err)
	defer w.Close()

	require.NoError(os.WriteFile(path, []byte("* { color: blue; }"), 0o644))

	select {
	case <-applied:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for css reload")
	}
}

func TestWatchIgnoresParseFailure(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(os.WriteFile(path, []byte(`{"default":{"height":42}}`), 0o644))

	initial, err := config.Load(path)
	require.NoError(err)

	applied := make(chan config.ConfigDiff, 4)
	w, err := Watch(path, initial, func(cfg config.Config, diff config.ConfigDiff) {
		applied <- diff
	})
	require.NoError(err)
	defer w.Close()

	require.NoError(os.WriteFile(path, []byte(`not json`), 0o644))

	select {
	case <-applied:
		t.Fatal("apply should not have been called for invalid config")
	case <-time.After(DebounceWindow + 500*time.Millisecond):
	}
}
