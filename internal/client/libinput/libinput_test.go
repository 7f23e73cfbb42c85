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

package libinput

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type fakeLayout struct{ name string }

func (f fakeLayout) Layout() string { return f.name }

func setupLeds(t *testing.T) {
	fs = afero.NewMemMapFs()
	afero.WriteFile(fs, "/sys/class/leds/input3::capslock/brightness", []byte("0\n"), 0o644)
	afero.WriteFile(fs, "/sys/class/leds/input3::numlock/brightness", []byte("1\n"), 0o644)
	afero.WriteFile(fs, "/sys/class/leds/input3::scrolllock/brightness", []byte("0\n"), 0o644)
}

func TestReadReflectsLedState(t *testing.T) {
	require := require.New(t)
	setupLeds(t)

	c := New("/sys/class/leds", fakeLayout{name: "English (US)"}, time.Hour)
	defer c.Close()

	s := c.State()
	require.False(s.CapsLock)
	require.True(s.NumLock)
	require.False(s.ScrollLock)
	require.Equal("English (US)", s.Layout)
}

func TestSubscribePublishesOnChange(t *testing.T) {
	require := require.New(t)
	setupLeds(t)

	c := New("/sys/class/leds", nil, 10*time.Millisecond)
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Unsubscribe()

	select {
	case <-sub.Recv():
	case <-time.After(time.Second):
		require.Fail("did not receive initial snapshot")
	}

	afero.WriteFile(fs, "/sys/class/leds/input3::capslock/brightness", []byte("1\n"), 0o644)

	select {
	case s := <-sub.Recv():
		require.True(s.CapsLock)
	case <-time.After(time.Second):
		require.Fail("did not observe capslock LED change")
	}
}
