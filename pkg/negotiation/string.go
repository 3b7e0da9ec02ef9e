package negotiation

import (
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
)

// StringEntry handles keys with string values. A negotiated entry picks
// the first offered value it supports. A declared entry accepts exactly
// one value, restricted to the supported values when any are configured.
type StringEntry struct {
	entry
	supported []string
	value     optional[string]
}

// StringEntryConfig configures a StringEntry.
type StringEntryConfig struct {
	Key    textkey.Key
	Type   NegotiationType
	Use    Use
	Status NegotiationStatus

	// Supported lists the acceptable values. Empty accepts any value for
	// declared keys.
	Supported []string

	// Default is the initial value, if any.
	Default *string
	Logger  logging.LeveledLogger
}

// NewStringEntry creates a string entry.
func NewStringEntry(cfg StringEntryConfig) *StringEntry {
	e := &StringEntry{
		entry:     newEntry(cfg.Key, cfg.Type, cfg.Use, cfg.Status, cfg.Logger),
		supported: append([]string(nil), cfg.Supported...),
	}
	if cfg.Default != nil {
		e.value = some(*cfg.Default)
	}
	return e
}

// Value returns the current value.
func (e *StringEntry) Value() (string, error) {
	return e.value.orMissing()
}

// Supported returns the supported values.
func (e *StringEntry) Supported() []string {
	return append([]string(nil), e.supported...)
}

// Copy returns a deep copy.
func (e *StringEntry) Copy() Entry {
	c := *e
	c.supported = append([]string(nil), e.supported...)
	return &c
}

func (e *StringEntry) negotiate(r Round, key, values string, response *[]string) bool {
	return e.run(e, r, key, values, response)
}

func (e *StringEntry) snapshot() (any, bool) {
	v, ok := e.value.get()
	return v, ok
}

func (e *StringEntry) parseOffer(values string) (any, bool) {
	split := textkey.SplitValues(values)
	if len(split) == 0 || (e.typ == Declared && len(split) > 1) {
		return nil, false
	}
	return split, true
}

func (e *StringEntry) inProtocolRange(offer any) bool {
	for _, v := range offer.([]string) {
		if !textkey.IsValidTextValue(v) {
			return false
		}
	}
	return true
}

func (e *StringEntry) declare(offer any) bool {
	v := offer.([]string)[0]
	if len(e.supported) > 0 {
		if _, ok := textkey.IntersectValues([]string{v}, e.supported); !ok {
			return false
		}
	}
	e.value = some(v)
	return true
}

func (e *StringEntry) combine(offer any) (string, bool) {
	v, ok := textkey.IntersectValues(offer.([]string), e.supported)
	if !ok {
		return "", false
	}
	e.value = some(v)
	return v, true
}
