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

// Package ipc implements the control IPC from spec.md §4.M: a
// Unix-socket, newline-terminated JSON request/response server, one
// request per connection. Grounded on ipc/server.rs's accept loop and
// ipc/server/bar.rs's bar-subcommand reduction, rewritten around
// net.Listen("unix", ...) and a Handler interface instead of a channel
// bridge back to a GTK main loop, since this package has no UI thread
// of its own to hop onto - callers (the supervisor) run Serve from
// wherever commands are safe to execute.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/ferrobar/ferrobar/internal/log"
)

// Command is one decoded request (spec.md §4.M "Commands").
type Command struct {
	Kind  string `json:"command"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Path  string `json:"path,omitempty"`

	Bar *BarCommand `json:"bar,omitempty"`
}

// BarCommand is the payload of the `bar` command (spec.md §4.M "Bar
// sub-commands").
type BarCommand struct {
	Name       string `json:"name"`
	Subcommand string `json:"subcommand"`
	WidgetName string `json:"widget_name,omitempty"`
	Visible    bool   `json:"visible,omitempty"`
	Exclusive  bool   `json:"exclusive,omitempty"`
}

// ResponseKind distinguishes the four response shapes (spec.md §4.M
// "All responses are either Ok, OkValue(string), Multi([strings]), or
// Error(message_opt)").
type ResponseKind string

const (
	Ok      ResponseKind = "ok"
	OkValue ResponseKind = "ok_value"
	Multi   ResponseKind = "multi"
	Err     ResponseKind = "error"
)

// Response is the wire response object.
type Response struct {
	Kind    ResponseKind `json:"kind"`
	Value   string       `json:"value,omitempty"`
	Values  []string     `json:"values,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Error builds an Error response. An empty message matches spec.md's
// "Unknown errors produce Error(nil)".
func Error(message string) Response { return Response{Kind: Err, Message: message} }

// OkValueResponse builds an OkValue response.
func OkValueResponse(value string) Response { return Response{Kind: OkValue, Value: value} }

// MultiResponse builds a Multi response.
func MultiResponse(values []string) Response { return Response{Kind: Multi, Values: values} }

// Handler executes decoded commands. The supervisor implements this,
// routing each case to config/ironvar/style/bar state.
type Handler interface {
	Ping() Response
	Inspect() Response
	Reload() Response
	LoadCSS(path string) Response
	Set(key, value string) Response
	Get(key string) Response
	List() Response
	Bar(cmd BarCommand) Response
}

// Dispatch runs cmd against h, the single switch every connection goes
// through (spec.md §4.M "Commands").
func Dispatch(h Handler, cmd Command) Response {
	switch cmd.Kind {
	case "ping":
		return h.Ping()
	case "inspect":
		return h.Inspect()
	case "reload":
		return h.Reload()
	case "load_css":
		return h.LoadCSS(cmd.Path)
	case "set":
		return h.Set(cmd.Key, cmd.Value)
	case "get":
		return h.Get(cmd.Key)
	case "list":
		return h.List()
	case "bar":
		if cmd.Bar == nil {
			return Error("missing bar command")
		}
		return h.Bar(*cmd.Bar)
	default:
		return Error(fmt.Sprintf("unknown command %q", cmd.Kind))
	}
}

// Reduce combines the per-bar responses of a `bar` command that
// matched more than one bar (spec.md §4.M "When a bar command matches
// multiple bars ... responses are reduced: all-Ok → Ok; otherwise
// values are collected into Multi"), mirroring ipc/server/bar.rs's
// reduce.
func Reduce(responses []Response) Response {
	if len(responses) == 0 {
		return Error("invalid bar name")
	}
	allOk := true
	var values []string
	for _, r := range responses {
		if r.Kind != Ok {
			allOk = false
		}
		if r.Kind == OkValue {
			values = append(values, r.Value)
		} else if r.Kind == Multi {
			values = append(values, r.Values...)
		}
	}
	if allOk {
		return Response{Kind: Ok}
	}
	return MultiResponse(values)
}

// SortedList builds the List response's value: a newline-joined,
// sorted list of names (spec.md §4.M "OkValue(sorted newline-joined
// names)"). It sorts a copy of its input itself, so the response is
// sorted whatever order the caller passes the names in.
func SortedList(names []string) Response {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return OkValueResponse(strings.Join(sorted, "\n"))
}

// Server listens on a Unix socket and dispatches one Command per
// connection to Handler.
type Server struct {
	path     string
	handler  Handler
	listener net.Listener
}

// Serve binds path, first checking for and pinging a possibly-live
// prior instance (spec.md §4.M "If the socket path already exists on
// startup, the server first sends a ping to it; on successful reply it
// refuses to start; on failure it unlinks and binds").
func Serve(path string, handler Handler) (*Server, error) {
	if _, err := os.Stat(path); err == nil {
		if pingExisting(path) {
			return nil, fmt.Errorf("ipc: another instance is already listening on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("ipc: removing stale socket %s: %w", path, err)
		}
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: binding %s: %w", path, err)
	}
	s := &Server{path: path, handler: handler, listener: l}
	log.Register(s, "ipc")
	go s.run()
	return s, nil
}

// pingExisting dials path and sends a ping command, reporting whether
// a live server answered.
func pingExisting(path string) bool {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return false
	}
	defer conn.Close()
	resp, err := roundTrip(conn, Command{Kind: "ping"})
	return err == nil && resp.Kind == Ok
}

func (s *Server) run() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			log.Log("ipc: accept: %v", err)
			return
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		log.Log("ipc: read: %v", err)
		return
	}

	var cmd Command
	resp := Error("invalid command")
	if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(line)), &cmd); jsonErr == nil {
		resp = Dispatch(s.handler, cmd)
	}

	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	conn.Write(data)
}

// Close unbinds the socket and removes it from disk.
func (s *Server) Close() {
	s.listener.Close()
	os.Remove(s.path)
}

// roundTrip writes cmd newline-terminated and reads back one response
// line; used both by pingExisting and by a CLI one-shot client.
func roundTrip(conn net.Conn, cmd Command) (Response, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, err
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return Response{}, err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Send dials path and performs a single request/response round trip,
// the client side used for one-shot CLI invocations (spec.md §4.N step
// 1 "run a one-shot IPC command (connect and exit)").
func Send(path string, cmd Command) (Response, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Response{}, fmt.Errorf("ipc: connecting to %s: %w", path, err)
	}
	defer conn.Close()
	return roundTrip(conn, cmd)
}
