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

package style

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	require := require.New(t)
	fs = afero.NewMemMapFs()

	s, err := Load("/style.css")
	require.NoError(err)
	require.Empty(s.CSS)
	require.Equal("/style.css", s.Path)
}

func TestLoadAndReload(t *testing.T) {
	require := require.New(t)
	fs = afero.NewMemMapFs()
	afero.WriteFile(fs, "/style.css", []byte("* { color: red; }"), 0o644)

	s, err := Load("/style.css")
	require.NoError(err)
	require.Equal("* { color: red; }", s.CSS)

	afero.WriteFile(fs, "/style.css", []byte("* { color: blue; }"), 0o644)
	s, err = Reload(s)
	require.NoError(err)
	require.Equal("* { color: blue; }", s.CSS)
}

func TestLoadEmptyPathIsNoop(t *testing.T) {
	require := require.New(t)
	s, err := Load("")
	require.NoError(err)
	require.Equal(Sheet{}, s)
}
