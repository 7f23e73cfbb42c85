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

package inhibit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/inhibit"
	"github.com/ferrobar/ferrobar/internal/popup"
)

func TestRenderShowsOffWhenInactive(t *testing.T) {
	require.Equal(t, "off", render(inhibit.State{}))
}

func TestRenderShowsDurationWhenActive(t *testing.T) {
	got := render(inhibit.State{Active: true, Duration: 30 * time.Minute})
	require.Equal(t, "inhibit 30m0s", got)
}

func TestRenderShowsInfinityForZeroDuration(t *testing.T) {
	require.Equal(t, "inhibit ∞", render(inhibit.State{Active: true}))
}

func TestKindErrorsWithoutInhibitCapability(t *testing.T) {
	_, _, err := Kind(nil, 1, popup.NewRegistry(), client.NewRegistry())
	require.Error(t, err)
}
