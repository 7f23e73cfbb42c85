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

package brightness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/client/brightness"
	"github.com/ferrobar/ferrobar/internal/popup"
)

func TestRenderShowsPercentage(t *testing.T) {
	got := render(brightness.Info{Current: 150, Max: 255})
	require.Equal(t, "58%", got)
}

func TestKindErrorsWithoutBrightnessCapability(t *testing.T) {
	_, _, err := Kind(nil, 1, popup.NewRegistry(), client.NewRegistry())
	require.Error(t, err)
}
