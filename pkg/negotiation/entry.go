package negotiation

import (
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
)

// Entry holds the negotiation state of one text key. The set of entry
// variants is closed: *BooleanEntry, *NumericalEntry, *NumericalRangeEntry
// and *StringEntry.
type Entry interface {
	// Key returns the catalog key the entry handles.
	Key() textkey.Key

	// Matches reports whether key is one of the entry's spellings.
	Matches(key string) bool

	// Type returns whether the key is declared or negotiated.
	Type() NegotiationType

	// Use returns when the key may appear.
	Use() Use

	// Status returns the current negotiation status.
	Status() NegotiationStatus

	// Copy returns a deep copy for rollback snapshots.
	Copy() Entry

	negotiate(r Round, key, values string, response *[]string) bool
	state() *entry
	snapshot() (any, bool)
}

// entry is the state shared by all variants.
type entry struct {
	key    textkey.Key
	keys   textkey.KeySet
	typ    NegotiationType
	use    Use
	status NegotiationStatus

	// alreadyNegotiated is set once the key was processed in the current
	// round. lastOffer and lastReply allow repeating an identical offer.
	alreadyNegotiated bool
	lastOffer         string
	lastReply         string

	log logging.LeveledLogger
}

// offerHandler is implemented by each variant.
type offerHandler interface {
	// parseOffer converts the value string of the pair.
	parseOffer(values string) (any, bool)
	// inProtocolRange reports whether the parsed offer is legal at all.
	inProtocolRange(offer any) bool
	// declare stores a declared value and reports whether it is supported.
	declare(offer any) bool
	// combine computes the reply value. False means no acceptable value.
	combine(offer any) (string, bool)
}

func newEntry(key textkey.Key, typ NegotiationType, use Use, status NegotiationStatus, log logging.LeveledLogger) entry {
	return entry{
		key:    key,
		keys:   key.KeySet(),
		typ:    typ,
		use:    use,
		status: status,
		log:    log,
	}
}

func (e *entry) Key() textkey.Key { return e.key }

func (e *entry) Matches(key string) bool { return e.keys.Matches(key) }

func (e *entry) Type() NegotiationType { return e.typ }

func (e *entry) Use() Use { return e.use }

func (e *entry) Status() NegotiationStatus { return e.status }

func (e *entry) state() *entry { return e }

// resetRound allows the key to be negotiated again in a later round.
func (e *entry) resetRound() {
	e.alreadyNegotiated = false
	e.lastOffer = ""
	e.lastReply = ""
}

func (e *entry) fail(format string, args ...any) bool {
	if e.status != StatusIrrelevant {
		e.status = StatusRejected
	}
	if e.log != nil {
		e.log.Debugf("negotiation of %s failed: "+format, append([]any{e.keys}, args...)...)
	}
	return false
}

func (e *entry) reply(key, value string, response *[]string) {
	e.lastReply = textkey.ToKeyValuePair(key, value)
	*response = append(*response, e.lastReply)
}

// run is the negotiation flow common to all variants.
func (e *entry) run(h offerHandler, r Round, key, values string, response *[]string) bool {
	if !e.keys.Matches(key) {
		return e.fail("key %q does not match", key)
	}

	if e.alreadyNegotiated {
		repeatable := e.status == StatusAccepted || e.status == StatusIrrelevant
		if repeatable && values == e.lastOffer {
			if e.lastReply != "" {
				*response = append(*response, e.lastReply)
			}
			return true
		}
		return e.fail("illegal renegotiation with %q", values)
	}
	e.alreadyNegotiated = true
	e.lastOffer = values
	e.lastReply = ""

	if !e.use.Check(r.Stage, r.Leading, r.InitialPDU) {
		return e.fail("use %v not allowed in %v (leading=%t, initial=%t)", e.use, r.Stage, r.Leading, r.InitialPDU)
	}

	offer, ok := h.parseOffer(values)
	if !ok {
		return e.fail("value format error: %q", values)
	}
	if !h.inProtocolRange(offer) {
		return e.fail("illegal value offered: %q", values)
	}

	if e.typ == Declared {
		if !h.declare(offer) {
			return e.fail("unsupported value declared: %q", values)
		}
		e.status = StatusAccepted
		return true
	}

	if e.status == StatusIrrelevant {
		e.reply(key, textkey.Irrelevant, response)
		return true
	}

	result, ok := h.combine(offer)
	if !ok {
		e.reply(key, textkey.Reject, response)
		return e.fail("rejected value(s): %q", values)
	}
	e.status = StatusAccepted
	e.reply(key, result, response)
	return true
}

// findEntry returns the first entry matching key.
func findEntry(entries []Entry, key string) Entry {
	for _, e := range entries {
		if e.Matches(key) {
			return e
		}
	}
	return nil
}

// copyEntries deep copies a list of entries.
func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Copy()
	}
	return out
}
