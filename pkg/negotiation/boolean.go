package negotiation

import (
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
)

// BooleanEntry negotiates a Yes/No key with an And or Or result function.
type BooleanEntry struct {
	entry
	negotiationValue bool
	result           BooleanResultFunction
	value            optional[bool]
}

// BooleanEntryConfig configures a BooleanEntry.
type BooleanEntryConfig struct {
	Key              textkey.Key
	Use              Use
	Status           NegotiationStatus
	NegotiationValue bool
	Result           BooleanResultFunction
	Default          bool
	Logger           logging.LeveledLogger
}

// NewBooleanEntry creates a negotiated boolean entry.
func NewBooleanEntry(cfg BooleanEntryConfig) *BooleanEntry {
	return &BooleanEntry{
		entry:            newEntry(cfg.Key, Negotiated, cfg.Use, cfg.Status, cfg.Logger),
		negotiationValue: cfg.NegotiationValue,
		result:           cfg.Result,
		value:            some(cfg.Default),
	}
}

// Value returns the current value.
func (e *BooleanEntry) Value() (bool, error) {
	return e.value.orMissing()
}

// Copy returns a deep copy.
func (e *BooleanEntry) Copy() Entry {
	c := *e
	return &c
}

func (e *BooleanEntry) negotiate(r Round, key, values string, response *[]string) bool {
	return e.run(e, r, key, values, response)
}

func (e *BooleanEntry) snapshot() (any, bool) {
	v, ok := e.value.get()
	return v, ok
}

func (e *BooleanEntry) parseOffer(values string) (any, bool) {
	b, err := textkey.ParseBoolean(values)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (e *BooleanEntry) inProtocolRange(any) bool { return true }

func (e *BooleanEntry) declare(offer any) bool {
	e.value = some(offer.(bool))
	return true
}

func (e *BooleanEntry) combine(offer any) (string, bool) {
	v := e.result.Apply(e.negotiationValue, offer.(bool))
	e.value = some(v)
	return textkey.FormatBoolean(v), true
}
