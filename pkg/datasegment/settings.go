package datasegment

import (
	"strings"

	"github.com/backkem/iscsi/pkg/textkey"
)

// SettingsMap is an insertion ordered mapping of operational text keys to
// values.
type SettingsMap struct {
	keys   []textkey.Key
	values map[textkey.Key]string
}

// NewSettingsMap returns an empty map.
func NewSettingsMap() *SettingsMap {
	return &SettingsMap{values: make(map[textkey.Key]string)}
}

// Add sets the value of key. A new key is appended to the iteration order;
// an existing key keeps its position.
func (m *SettingsMap) Add(key textkey.Key, value string) {
	if m.values == nil {
		m.values = make(map[textkey.Key]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value of key.
func (m *SettingsMap) Get(key textkey.Key) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Remove deletes key and returns its former value.
func (m *SettingsMap) Remove(key textkey.Key) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return v, nil
}

// Update combines the stored value of key with value through fn. A key
// without a stored value takes value unchanged.
func (m *SettingsMap) Update(key textkey.Key, value string, fn textkey.ResultFunction) {
	old, ok := m.values[key]
	if !ok || fn == nil {
		m.Add(key, value)
		return
	}
	m.Add(key, fn(old, value))
}

// Len returns the number of keys.
func (m *SettingsMap) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *SettingsMap) Keys() []textkey.Key {
	return append([]textkey.Key(nil), m.keys...)
}

// Equal reports whether both maps hold the same keys with the same values.
// Order is not compared.
func (m *SettingsMap) Equal(other *SettingsMap) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil || len(m.keys) != len(other.keys) {
		return false
	}
	for k, v := range m.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clear removes all keys.
func (m *SettingsMap) Clear() {
	m.keys = m.keys[:0]
	clear(m.values)
}

// KeyValuePairs returns the entries as "key=value" strings in insertion
// order.
func (m *SettingsMap) KeyValuePairs() []string {
	pairs := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		pairs = append(pairs, textkey.ToKeyValuePair(k.String(), m.values[k]))
	}
	return pairs
}

// Encode returns the text payload for the map.
func (m *SettingsMap) Encode() []byte {
	return []byte(textkey.JoinKeyValuePairs(m.KeyValuePairs()))
}

// String returns the pairs separated by commas.
func (m *SettingsMap) String() string {
	return strings.Join(m.KeyValuePairs(), ",")
}
