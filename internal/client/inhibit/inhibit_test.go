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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	inhibited int
	released  *os.File
}

func (f *fakeConn) Inhibit(what, who, why, mode string) (*os.File, error) {
	f.inhibited++
	r, w, _ := os.Pipe()
	w.Close()
	return r, nil
}

func withFakeConn(f *fakeConn) func() {
	orig := newConn
	newConn = func() (conn, error) { return f, nil }
	return func() { newConn = orig }
}

func TestToggleAcquiresAndReleasesLock(t *testing.T) {
	require := require.New(t)
	fc := &fakeConn{}
	defer withFakeConn(fc)()

	c, err := New([]time.Duration{30 * time.Minute, time.Hour}, 30*time.Minute)
	require.NoError(err)
	defer c.Close()

	require.False(c.State().Active)

	require.NoError(c.Toggle())
	require.True(c.State().Active)
	require.Equal(1, fc.inhibited)

	require.NoError(c.Toggle())
	require.False(c.State().Active)
}

func TestCycleAdvancesDuration(t *testing.T) {
	require := require.New(t)
	fc := &fakeConn{}
	defer withFakeConn(fc)()

	durations := []time.Duration{30 * time.Minute, time.Hour, 0}
	c, err := New(durations, 30*time.Minute)
	require.NoError(err)
	defer c.Close()

	require.Equal(30*time.Minute, c.State().Duration)
	c.Cycle()
	require.Equal(time.Hour, c.State().Duration)
	c.Cycle()
	require.Equal(time.Duration(0), c.State().Duration)
	c.Cycle()
	require.Equal(30*time.Minute, c.State().Duration)
}

func TestSubscribeReceivesToggleUpdates(t *testing.T) {
	require := require.New(t)
	fc := &fakeConn{}
	defer withFakeConn(fc)()

	c, err := New([]time.Duration{time.Minute}, time.Minute)
	require.NoError(err)
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Unsubscribe()

	require.NoError(c.Toggle())

	select {
	case s := <-sub.Recv():
		require.True(s.Active)
	case <-time.After(2 * time.Second):
		require.Fail("did not receive toggle update")
	}
}
