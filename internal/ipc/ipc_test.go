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

package ipc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	vars map[string]string
}

func (h *fakeHandler) Ping() Response    { return Response{Kind: Ok} }
func (h *fakeHandler) Inspect() Response { return Response{Kind: Ok} }
func (h *fakeHandler) Reload() Response  { return Response{Kind: Ok} }
func (h *fakeHandler) LoadCSS(path string) Response {
	return Response{Kind: Ok}
}
func (h *fakeHandler) Set(key, value string) Response {
	h.vars[key] = value
	return Response{Kind: Ok}
}
func (h *fakeHandler) Get(key string) Response {
	if v, ok := h.vars[key]; ok {
		return OkValueResponse(v)
	}
	return Error("variable not found")
}
func (h *fakeHandler) List() Response {
	names := make([]string, 0, len(h.vars))
	for k := range h.vars {
		names = append(names, k)
	}
	return SortedList(names)
}
func (h *fakeHandler) Bar(cmd BarCommand) Response {
	if cmd.Name == "missing" {
		return Error("invalid bar name")
	}
	return Response{Kind: Ok}
}

func TestPingSetGetRoundTrip(t *testing.T) {
	require := require.New(t)
	sockPath := filepath.Join(t.TempDir(), "ferrobar.sock")
	h := &fakeHandler{vars: map[string]string{}}

	s, err := Serve(sockPath, h)
	require.NoError(err)
	defer s.Close()

	resp, err := Send(sockPath, Command{Kind: "ping"})
	require.NoError(err)
	require.Equal(Ok, resp.Kind)

	resp, err = Send(sockPath, Command{Kind: "set", Key: "focused", Value: "1"})
	require.NoError(err)
	require.Equal(Ok, resp.Kind)

	resp, err = Send(sockPath, Command{Kind: "get", Key: "focused"})
	require.NoError(err)
	require.Equal(OkValue, resp.Kind)
	require.Equal("1", resp.Value)

	resp, err = Send(sockPath, Command{Kind: "get", Key: "missing"})
	require.NoError(err)
	require.Equal(Err, resp.Kind)
}

func TestServeRefusesWhenLiveInstanceExists(t *testing.T) {
	require := require.New(t)
	sockPath := filepath.Join(t.TempDir(), "ferrobar.sock")
	h := &fakeHandler{vars: map[string]string{}}

	s1, err := Serve(sockPath, h)
	require.NoError(err)
	defer s1.Close()

	_, err = Serve(sockPath, h)
	require.Error(err)
}

func TestReduceAllOkCollapses(t *testing.T) {
	require := require.New(t)
	r := Reduce([]Response{{Kind: Ok}, {Kind: Ok}})
	require.Equal(Ok, r.Kind)
}

func TestReduceValuesCollectIntoMulti(t *testing.T) {
	require := require.New(t)
	r := Reduce([]Response{OkValueResponse("a"), OkValueResponse("b")})
	require.Equal(Multi, r.Kind)
	require.Equal([]string{"a", "b"}, r.Values)
}

func TestBarCommandReductionAcrossSameNamedBars(t *testing.T) {
	require := require.New(t)
	// spec.md §8 scenario S6: a bar command matching several same-named
	// bars across monitors reduces their individual responses.
	h := &fakeHandler{vars: map[string]string{}}
	responses := []Response{h.Bar(BarCommand{Name: "main"}), h.Bar(BarCommand{Name: "main"})}
	require.Equal(Ok, Reduce(responses).Kind)
}
