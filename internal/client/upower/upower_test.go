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

package upower

import (
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/ferrobar/ferrobar/base/watchers/dbus"
)

func init() {
	BusType = dbus.Test
}

const devicePath = "/org/freedesktop/UPower/devices/battery_BAT0"

func setupTestDevice() *dbus.TestBusObject {
	bus := dbus.SetupTestBus()
	svc := bus.RegisterService("org.freedesktop.UPower")
	return svc.Object(godbus.ObjectPath(devicePath), "org.freedesktop.UPower.Device")
}

func TestSnapshotFieldsAndDerivedAccessors(t *testing.T) {
	require := require.New(t)
	dev := setupTestDevice()
	dev.SetProperties(map[string]interface{}{
		"Percentage": 57.0,
		"EnergyFull": 50.0,
		"Energy":     28.5,
		"EnergyRate": 9.5,
		"Voltage":    12.1,
		"State":      uint32(2),
		"Technology": uint32(1),
	}, dbus.SignalTypeNone)

	c, err := New(devicePath)
	require.NoError(err)
	defer c.Close()

	s := c.State()
	require.Equal(57, s.Capacity)
	require.Equal("Discharging", s.Status)
	require.Equal("Li-ion", s.Technology)
	require.False(s.PluggedIn())
	require.InDelta(0.57, s.Remaining(), 0.01)
}

func TestPublishesOnStateChange(t *testing.T) {
	require := require.New(t)
	dev := setupTestDevice()
	dev.SetProperties(map[string]interface{}{
		"State": uint32(2),
	}, dbus.SignalTypeNone)

	c, err := New(devicePath)
	require.NoError(err)
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Unsubscribe()

	dev.SetPropertyForTest("State", uint32(4), dbus.SignalTypeChanged)

	select {
	case s := <-sub.Recv():
		require.Equal("Full", s.Status)
		require.True(s.PluggedIn())
	case <-time.After(2 * time.Second):
		require.Fail("did not receive updated snapshot")
	}
}
