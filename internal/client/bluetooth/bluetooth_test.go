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

package bluetooth

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

func setupTestAdapter(name string) *dbus.TestBusObject {
	bus := dbus.SetupTestBus()
	bluez := bus.RegisterService("org.bluez")
	path := godbus.ObjectPath("/org/bluez/" + name)
	return bluez.Object(path, "org.bluez.Adapter1")
}

func TestAdapterSnapshot(t *testing.T) {
	require := require.New(t)
	adapter := setupTestAdapter("hci0")
	adapter.SetProperties(map[string]interface{}{
		"Name":         "foo",
		"Alias":        "foo alias",
		"Address":      "28:C2:DD:8B:73:8C",
		"Discoverable": false,
		"Pairable":     true,
		"Powered":      true,
		"Discovering":  false,
	}, dbus.SignalTypeNone)

	c, err := New("hci0")
	require.NoError(err)
	defer c.Close()

	s := c.State()
	require.Equal("foo", s.Name)
	require.True(s.Powered)
	require.True(s.Pairable)
}

func TestAdapterPublishesOnChange(t *testing.T) {
	require := require.New(t)
	adapter := setupTestAdapter("hci0")
	adapter.SetProperties(map[string]interface{}{
		"Name": "foo", "Powered": true,
	}, dbus.SignalTypeNone)

	c, err := New("hci0")
	require.NoError(err)
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Unsubscribe()

	adapter.SetPropertyForTest("Powered", false, dbus.SignalTypeChanged)

	select {
	case s := <-sub.Recv():
		require.False(s.Powered)
	case <-time.After(2 * time.Second):
		require.Fail("did not receive updated snapshot")
	}
}
