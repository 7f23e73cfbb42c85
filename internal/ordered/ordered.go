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

// Package ordered provides an insertion-order-preserving map (spec.md
// §4.B), used by the tray client for icon ordering.
package ordered

// Map is an insertion-ordered key/value collection. The zero value is
// ready to use.
type Map[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// New constructs an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{values: map[K]V{}}
}

// Insert adds or replaces the value for key. A new key is appended to the
// end of the iteration order; replacing an existing key keeps its original
// position.
func (m *Map[K, V]) Insert(key K, value V) {
	if m.values == nil {
		m.values = map[K]V{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key, and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.values[key]
	return ok
}

// Remove deletes key, returning the removed value if it was present.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	v, ok := m.values[key]
	if !ok {
		return v, false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.keys) }

// First returns the first-inserted value still present, if any.
func (m *Map[K, V]) First() (V, bool) {
	var zero V
	if len(m.keys) == 0 {
		return zero, false
	}
	return m.values[m.keys[0]], true
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *Map[K, V]) Keys() []K { return m.keys }

// Each calls fn for every entry in insertion order.
func (m *Map[K, V]) Each(fn func(key K, value V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}
