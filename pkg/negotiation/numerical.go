package negotiation

import (
	"strconv"
	"strings"

	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
)

// NumericalEntry negotiates or declares a single number.
//
// With ZeroMeansDontCare an offer of 0 is outside the protocol range but
// legal: the target picks its negotiation value, or the default when the
// negotiation value is itself 0.
type NumericalEntry struct {
	entry
	protocolRange     textkey.NumericalValue
	negotiationValue  int
	defaultValue      optional[int]
	result            NumericalResultFunction
	zeroMeansDontCare bool
	value             optional[int]
}

// NumericalEntryConfig configures a NumericalEntry.
type NumericalEntryConfig struct {
	Key               textkey.Key
	Type              NegotiationType
	Use               Use
	Status            NegotiationStatus
	NegotiationValue  int
	Min, Max          int
	Result            NumericalResultFunction
	Default           int
	ZeroMeansDontCare bool
	Logger            logging.LeveledLogger
}

// NewNumericalEntry creates a numerical entry. It panics if Min > Max.
func NewNumericalEntry(cfg NumericalEntryConfig) *NumericalEntry {
	return &NumericalEntry{
		entry:             newEntry(cfg.Key, cfg.Type, cfg.Use, cfg.Status, cfg.Logger),
		protocolRange:     mustRange(cfg.Min, cfg.Max),
		negotiationValue:  cfg.NegotiationValue,
		defaultValue:      some(cfg.Default),
		result:            cfg.Result,
		zeroMeansDontCare: cfg.ZeroMeansDontCare,
		value:             some(cfg.Default),
	}
}

// Value returns the current value.
func (e *NumericalEntry) Value() (int, error) {
	return e.value.orMissing()
}

// Copy returns a deep copy.
func (e *NumericalEntry) Copy() Entry {
	c := *e
	return &c
}

func (e *NumericalEntry) negotiate(r Round, key, values string, response *[]string) bool {
	return e.run(e, r, key, values, response)
}

func (e *NumericalEntry) snapshot() (any, bool) {
	v, ok := e.value.get()
	return v, ok
}

func (e *NumericalEntry) parseOffer(values string) (any, bool) {
	v, err := textkey.ParseNumber(values)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (e *NumericalEntry) inProtocolRange(offer any) bool {
	v := offer.(int)
	if e.zeroMeansDontCare && v == 0 {
		return true
	}
	return e.protocolRange.Contains(v)
}

// dontCare returns the value picked for an offer of 0.
func (e *NumericalEntry) dontCare() int {
	if e.negotiationValue != 0 {
		return e.negotiationValue
	}
	v, _ := e.defaultValue.get()
	return v
}

func (e *NumericalEntry) declare(offer any) bool {
	v := offer.(int)
	if e.zeroMeansDontCare && v == 0 {
		v = e.dontCare()
	}
	e.value = some(v)
	return true
}

func (e *NumericalEntry) combine(offer any) (string, bool) {
	v := offer.(int)
	if e.zeroMeansDontCare && v == 0 {
		v = e.dontCare()
	} else {
		v = e.result.Apply(e.negotiationValue, v)
	}
	e.value = some(v)
	return strconv.Itoa(v), true
}

// NumericalRangeEntry negotiates a value the initiator offers as a range.
// The target answers with its negotiation value if the range contains it.
type NumericalRangeEntry struct {
	entry
	protocolRange    textkey.NumericalValue
	negotiationValue int
	allowSloppy      bool
	value            optional[int]
}

// NumericalRangeEntryConfig configures a NumericalRangeEntry.
type NumericalRangeEntryConfig struct {
	Key              textkey.Key
	Use              Use
	Status           NegotiationStatus
	NegotiationValue int
	Min, Max         int
	Default          int

	// AllowSloppy accepts a single number where a range is expected.
	AllowSloppy bool
	Logger      logging.LeveledLogger
}

// NewNumericalRangeEntry creates a negotiated range entry. It panics if
// Min > Max.
func NewNumericalRangeEntry(cfg NumericalRangeEntryConfig) *NumericalRangeEntry {
	return &NumericalRangeEntry{
		entry:            newEntry(cfg.Key, Negotiated, cfg.Use, cfg.Status, cfg.Logger),
		protocolRange:    mustRange(cfg.Min, cfg.Max),
		negotiationValue: cfg.NegotiationValue,
		allowSloppy:      cfg.AllowSloppy,
		value:            some(cfg.Default),
	}
}

// Value returns the current value.
func (e *NumericalRangeEntry) Value() (int, error) {
	return e.value.orMissing()
}

// Copy returns a deep copy.
func (e *NumericalRangeEntry) Copy() Entry {
	c := *e
	return &c
}

func (e *NumericalRangeEntry) negotiate(r Round, key, values string, response *[]string) bool {
	return e.run(e, r, key, values, response)
}

func (e *NumericalRangeEntry) snapshot() (any, bool) {
	v, ok := e.value.get()
	return v, ok
}

func (e *NumericalRangeEntry) parseOffer(values string) (any, bool) {
	if !e.allowSloppy && !strings.ContainsRune(values, textkey.RangeSeparator) {
		return nil, false
	}
	v, err := textkey.ParseNumericalValue(values)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (e *NumericalRangeEntry) inProtocolRange(offer any) bool {
	v := offer.(textkey.NumericalValue)
	return e.protocolRange.Contains(v.Min()) && e.protocolRange.Contains(v.Max())
}

func (e *NumericalRangeEntry) declare(any) bool { return false }

func (e *NumericalRangeEntry) combine(offer any) (string, bool) {
	if !offer.(textkey.NumericalValue).Contains(e.negotiationValue) {
		e.value = optional[int]{}
		return "", false
	}
	e.value = some(e.negotiationValue)
	return strconv.Itoa(e.negotiationValue), true
}

func mustRange(lo, hi int) textkey.NumericalValue {
	r, err := textkey.NewRange(lo, hi)
	if err != nil {
		panic(err)
	}
	return r
}
