// SPDX-License-Identifier: MPL-2.0

package cfgtree

import (
	"slices"
	"sort"
)

// Map is a string-keyed mapping that remembers insertion order.
// The zero value is not usable; create maps with NewMap.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Kind implements Value.
func (*Map) Kind() Kind { return KindMap }

func (*Map) sealed() {}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. A new key is appended to the iteration order;
// replacing an existing key keeps its position.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// SortedKeys returns the keys in lexicographic order.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, Clone(m.values[k]))
	}
	return out
}

// GetString returns the string stored under key. ok is false when the key is
// missing or holds another kind.
func (m *Map) GetString(key string) (s string, ok bool) {
	v, found := m.Get(key)
	if !found {
		return "", false
	}
	str, isStr := v.(String)
	return string(str), isStr
}

// GetBool returns the boolean stored under key. ok is false when the key is
// missing or holds another kind.
func (m *Map) GetBool(key string) (b, ok bool) {
	v, found := m.Get(key)
	if !found {
		return false, false
	}
	bv, isBool := v.(Bool)
	return bool(bv), isBool
}

// GetMap returns the mapping stored under key. ok is false when the key is
// missing or holds another kind.
func (m *Map) GetMap(key string) (*Map, bool) {
	v, found := m.Get(key)
	if !found {
		return nil, false
	}
	mv, isMap := v.(*Map)
	return mv, isMap
}
