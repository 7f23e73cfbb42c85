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

// Package ironvar implements the process-wide named-variable registry from
// spec.md §3/§4.G: a map of name to an optional string value, where
// subscribing always yields an immediate synthetic emission of the current
// value followed by every subsequent Set, including a Set that doesn't
// change the value (deliberate, so dynamic-string composition can observe
// "refresh" events).
package ironvar

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/log"
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrInvalidName is returned by Set/Subscribe for a name outside
// [A-Za-z0-9_-]+.
type ErrInvalidName struct{ Name string }

func (e ErrInvalidName) Error() string {
	return fmt.Sprintf("ironvar: invalid name %q", e.Name)
}

// Value is an optional string: the "absent" state is distinct from "".
type Value struct {
	Set bool
	Str string
}

func present(s string) Value { return Value{Set: true, Str: s} }

type entry struct {
	current Value
	broad   *chanx.Broadcaster[Value]
}

// Store is the process-wide ironvar registry. Construct with New; it is
// designed to be created once by the supervisor (spec.md §9 "Global
// state") and passed explicitly through the shared context, not accessed
// as an ambient global.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty store.
func New() *Store {
	s := &Store{entries: map[string]*entry{}}
	log.Register(s, "ironvar")
	return s
}

func (s *Store) entryFor(name string) *entry {
	e, ok := s.entries[name]
	if !ok {
		e = &entry{broad: chanx.NewBroadcaster[Value]()}
		s.entries[name] = e
	}
	return e
}

// Set updates name's value (or clears it, if value is nil) and broadcasts
// the change to every subscriber, even if the new value equals the old one.
func (s *Store) Set(name string, value *string) error {
	if !nameRE.MatchString(name) {
		return ErrInvalidName{name}
	}
	s.mu.Lock()
	e := s.entryFor(name)
	if value == nil {
		e.current = Value{}
	} else {
		e.current = present(*value)
	}
	cur := e.current
	broad := e.broad
	s.mu.Unlock()
	log.Fine("ironvar", "%s: set %q -> %+v", log.ID(s), name, cur)
	broad.Publish(cur)
	return nil
}

// Get returns the current value for name, or an absent Value if it was
// never set.
func (s *Store) Get(name string) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		return e.current
	}
	return Value{}
}

// List returns the sorted names of every ironvar that currently has a
// subscription or value, matching the IPC `list` command (spec.md §4.M).
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscription observes a single ironvar's value over time.
type Subscription struct {
	ch   chan Value
	sub  *chanx.Subscription[Value]
	quit chan struct{}
}

// Recv delivers the current value immediately (the synthetic initial
// emission required by spec.md §3/§8 invariant 5), then every subsequent
// Set.
func (s *Subscription) Recv() <-chan Value { return s.ch }

// Unsubscribe stops delivery and frees resources.
func (s *Subscription) Unsubscribe() {
	s.sub.Unsubscribe()
	close(s.quit)
}

// Subscribe returns a Subscription for name. It is invalid to subscribe to
// a name outside [A-Za-z0-9_-]+.
func (s *Store) Subscribe(name string) (*Subscription, error) {
	if !nameRE.MatchString(name) {
		return nil, ErrInvalidName{name}
	}
	s.mu.Lock()
	e := s.entryFor(name)
	cur := e.current
	sub := e.broad.Subscribe(8)
	s.mu.Unlock()

	out := make(chan Value, 1)
	out <- cur // synthetic initial emission, ahead of anything from sub.
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case v, ok := <-sub.Recv():
				if !ok {
					close(out)
					return
				}
				select {
				case out <- v:
				case <-quit:
					return
				}
			case <-quit:
				return
			}
		}
	}()
	return &Subscription{ch: out, sub: sub, quit: quit}, nil
}
