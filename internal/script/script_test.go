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

package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseShorthand is spec.md §8 scenario S1.
func TestParseShorthand(t *testing.T) {
	require := require.New(t)
	cmd := Parse("w:300:uptime | awk '{print $1}'")
	require.Equal(Watch, cmd.Mode)
	require.Equal(uint64(300), cmd.IntervalMs)
	require.Equal("uptime | awk '{print $1}'", cmd.Command)
}

func TestParseBareCommandDefaultsToPoll(t *testing.T) {
	require := require.New(t)
	cmd := Parse("echo hi")
	require.Equal(Poll, cmd.Mode)
	require.Equal(uint64(0), cmd.IntervalMs)
	require.Equal("echo hi", cmd.Command)
}

func TestParseModeOnly(t *testing.T) {
	require := require.New(t)
	cmd := Parse("poll:date +%s")
	require.Equal(Poll, cmd.Mode)
	require.Equal("date +%s", cmd.Command)
}

func TestRunPollInvokesCallbackWithTrimmedOutput(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := Command{Mode: Poll, IntervalMs: 0, Command: "echo hello"}
	outCh := make(chan Output, 1)
	go Run(ctx, cmd, func(o Output) { outCh <- o })

	select {
	case o := <-outCh:
		require.Equal(Stdout, o.Stream)
		require.Equal("hello", o.Text)
		require.True(o.ExitOK)
	case <-time.After(2 * time.Second):
		require.Fail("script did not produce output")
	}
}

func TestRunWatchStreamsLines(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := Command{Mode: Watch, Command: "printf 'a\\nb\\n'"}
	outCh := make(chan Output, 4)
	go Run(ctx, cmd, func(o Output) { outCh <- o })

	var lines []string
	for i := 0; i < 2; i++ {
		select {
		case o := <-outCh:
			lines = append(lines, o.Text)
		case <-time.After(2 * time.Second):
			require.Fail("did not receive expected watch lines")
		}
	}
	require.ElementsMatch([]string{"a", "b"}, lines)
}
