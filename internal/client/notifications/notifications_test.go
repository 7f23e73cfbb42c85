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

package notifications

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

func setupTestService(t *testing.T) *dbus.TestBusObject {
	bus := dbus.SetupTestBus()
	svc := bus.RegisterService(service)
	obj := svc.Object(godbus.ObjectPath(path), iface)
	obj.SetProperties(map[string]interface{}{
		"Count":      uint32(2),
		"Dnd":        false,
		"Visibility": false,
	}, dbus.SignalTypeNone)
	return obj
}

func TestInitialSnapshot(t *testing.T) {
	require := require.New(t)
	setupTestService(t)

	c, err := New()
	require.NoError(err)
	defer c.Close()

	s := c.State()
	require.Equal(2, s.Count)
	require.False(s.Dnd)
	require.False(s.ControlCenterOpen)
}

func TestPublishesOnPropertyChange(t *testing.T) {
	require := require.New(t)
	obj := setupTestService(t)

	c, err := New()
	require.NoError(err)
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Unsubscribe()

	obj.SetPropertyForTest("Count", uint32(5), dbus.SignalTypeChanged)

	select {
	case s := <-sub.Recv():
		require.Equal(5, s.Count)
	case <-time.After(2 * time.Second):
		require.Fail("did not receive updated snapshot")
	}
}
