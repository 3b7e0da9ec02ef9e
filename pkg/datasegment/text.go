package datasegment

import (
	"fmt"
	"unicode/utf8"

	"github.com/backkem/iscsi/pkg/textkey"
)

// Text is a text parameter data segment. The parsed SettingsMap is cached
// and rebuilt on the first access after the payload changes.
type Text struct {
	buffer
	settings *SettingsMap
	dirty    bool
}

// NewText returns a text data segment holding the given pairs.
func NewText(pairs []string) *Text {
	t := &Text{}
	t.AddPairs(pairs)
	return t
}

// Format returns FormatText.
func (*Text) Format() Format { return FormatText }

// SetBytes replaces the payload.
func (t *Text) SetBytes(b []byte) error {
	t.set(b)
	t.dirty = true
	return nil
}

// Append adds raw payload bytes, e.g. the next PDU of a continued sequence.
func (t *Text) Append(b []byte) error {
	t.append(b)
	t.dirty = true
	return nil
}

// Clear removes the payload and the cached settings.
func (t *Text) Clear() {
	t.reset()
	t.settings = nil
	t.dirty = false
}

// Add appends "key=value" for a catalog key.
func (t *Text) Add(key textkey.Key, value string) {
	t.AddPair(textkey.ToKeyValuePair(key.String(), value))
}

// AddPair appends one preformatted "key=value" string.
func (t *Text) AddPair(pair string) {
	t.append([]byte(pair))
	t.append([]byte{textkey.PairSeparator})
	t.dirty = true
}

// AddPairs appends preformatted "key=value" strings.
func (t *Text) AddPairs(pairs []string) {
	for _, p := range pairs {
		t.AddPair(p)
	}
}

// AddSettings appends every entry of m in order.
func (t *Text) AddSettings(m *SettingsMap) {
	t.AddPairs(m.KeyValuePairs())
}

// KeyValuePairs returns the raw "key=value" strings, including keys that
// are not part of the catalog.
func (t *Text) KeyValuePairs() []string {
	return textkey.TokenizeKeyValuePairs(string(t.data))
}

// Settings returns the payload parsed into a SettingsMap. Every pair must
// be well formed and name a catalog key.
func (t *Text) Settings() (*SettingsMap, error) {
	if t.settings != nil && !t.dirty {
		return t.settings, nil
	}
	if !utf8.Valid(t.data) {
		return nil, fmt.Errorf("%w: payload is not UTF-8", ErrMalformedText)
	}
	m := NewSettingsMap()
	for _, pair := range t.KeyValuePairs() {
		k, v, err := textkey.SplitKeyValuePair(pair)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedText, err)
		}
		key, ok := textkey.LookupKey(k)
		if !ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrMalformedText, textkey.ErrUnknownKey, k)
		}
		m.Add(key, v)
	}
	t.settings = m
	t.dirty = false
	return m, nil
}
