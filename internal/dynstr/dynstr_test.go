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

package dynstr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStaticOnly(t *testing.T) {
	require := require.New(t)
	segs, isStatic := Parse("hello world")
	require.True(isStatic)
	require.Len(segs, 1)
	require.Equal(Static, segs[0].Kind)
	require.Equal("hello world", segs[0].Text)
}

func TestParseEscapedHash(t *testing.T) {
	require := require.New(t)
	segs, isStatic := Parse("50%## done")
	require.True(isStatic)
	require.Equal("50%# done", segs[0].Text)
}

func TestParseScriptAndVariable(t *testing.T) {
	require := require.New(t)
	segs, isStatic := Parse("hello {{echo world}} #user")
	require.False(isStatic)
	require.Len(segs, 4)
	require.Equal(Static, segs[0].Kind)
	require.Equal("hello ", segs[0].Text)
	require.Equal(Script, segs[1].Kind)
	require.Equal("echo world", segs[1].Command.Command)
	require.Equal(Static, segs[2].Kind)
	require.Equal(" ", segs[2].Text)
	require.Equal(Variable, segs[3].Kind)
	require.Equal("user", segs[3].Name)
}

func TestVariableTerminatesOnNonNameChar(t *testing.T) {
	require := require.New(t)
	segs, _ := Parse("#user!")
	require.Len(segs, 2)
	require.Equal(Variable, segs[0].Kind)
	require.Equal("user", segs[0].Name)
	require.Equal(Static, segs[1].Kind)
	require.Equal("!", segs[1].Text)
}

// TestScenarioS2 is spec.md §8 scenario S2.
func TestScenarioS2(t *testing.T) {
	require := require.New(t)
	segs, isStatic := Parse("hello {{echo world}} #user")
	require.False(isStatic)

	var rendered string
	r := NewRenderer(segs, func(s string) { rendered = s })
	r.RenderOnce()
	require.Equal("hello  ", rendered)

	r.Update(1, "world")
	require.Equal("hello world ", rendered)
	r.Update(1, "world!")
	require.Equal("hello world! ", rendered)
	r.Update(3, "alice")
	require.Equal("hello world! alice", rendered)
	r.Update(3, "")
	require.Equal("hello world! ", rendered)
}

// TestLatestValuePerSegmentInOrder is the testable property from spec.md
// §4.E/§8.6, for an arbitrary interleaving of updates.
func TestLatestValuePerSegmentInOrder(t *testing.T) {
	require := require.New(t)
	segs, _ := Parse("[{{a}}][{{b}}][{{c}}]")
	require.Len(segs, 7) // static/script pairs, with a trailing static "]"

	var rendered string
	r := NewRenderer(segs, func(s string) { rendered = s })
	r.RenderOnce()

	order := []struct {
		idx int
		val string
	}{
		{3, "B1"}, {1, "A1"}, {5, "C1"}, {1, "A2"}, {3, "B2"},
	}
	for _, u := range order {
		r.Update(u.idx, u.val)
	}
	require.Equal("[A2][B2][C1]", rendered)
}
