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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

func TestGranularityForPicksCoarsestMatchingFormat(t *testing.T) {
	require := require.New(t)
	require.Equal(time.Minute, granularityFor("15:04"))
	require.Equal(time.Second, granularityFor("15:04:05"))
	require.Equal(time.Hour, granularityFor("Jan 2"))
}

func TestNewAppliesRawConfig(t *testing.T) {
	require := require.New(t)
	m := New(map[string]any{"format": "15:04:05", "timezone": "UTC"})
	require.Equal("15:04:05", m.format)
	require.Equal(time.UTC, m.loc)
	require.Equal(time.Second, m.granularity)
}

func TestKindProducesALiveLabel(t *testing.T) {
	require := require.New(t)
	parts, cancel, err := Kind(map[string]any{"format": "15:04:05"}, 1, popup.NewRegistry(), client.NewRegistry())
	require.NoError(err)
	defer cancel()

	label, ok := parts.Widget.(*widget.Label)
	require.True(ok)
	require.Eventually(func() bool {
		return label.Text() != ""
	}, time.Second, 10*time.Millisecond)
}
