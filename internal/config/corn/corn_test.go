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

package corn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalFlatObject(t *testing.T) {
	require := require.New(t)

	var out struct {
		Position string `json:"position"`
		Height   int    `json:"height"`
		Anchor   bool   `json:"anchor_to_edges"`
	}
	src := `
		// top-level bar config
		position = "bottom"
		height = 42
		anchor_to_edges = true
	`
	require.NoError(Unmarshal([]byte(src), &out))
	require.Equal("bottom", out.Position)
	require.Equal(42, out.Height)
	require.True(out.Anchor)
}

func TestUnmarshalNestedAndArrays(t *testing.T) {
	require := require.New(t)

	var out struct {
		Monitors map[string]struct {
			Height int      `json:"height"`
			Start  []string `json:"start"`
		} `json:"monitors"`
	}
	src := `
		monitors = {
			eDP-1 = {
				height = 32
				start = ["clock", "workspaces"]
			}
		}
	`
	require.NoError(Unmarshal([]byte(src), &out))
	require.Equal(32, out.Monitors["eDP-1"].Height)
	require.Equal([]string{"clock", "workspaces"}, out.Monitors["eDP-1"].Start)
}
