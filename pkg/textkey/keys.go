// Package textkey defines the iSCSI operational text keys and the helpers
// used to read and write text parameters (RFC 3720 Sections 5 and 12).
//
// Text parameters travel in Login and Text PDU data segments as a sequence
// of "key=value" strings terminated by a null byte. Values are UTF-8 and
// may be lists (comma separated), numbers or numerical ranges.
package textkey

// Key identifies an operational text key from the closed RFC 3720 catalog.
type Key uint8

// Operational text keys (RFC 3720 Section 12).
const (
	KeyAuthMethod Key = iota + 1
	KeyHeaderDigest
	KeyDataDigest
	KeyMaxConnections
	KeySendTargets
	KeyTargetName
	KeyInitiatorName
	KeyTargetAlias
	KeyInitiatorAlias
	KeyTargetAddress
	KeyTargetPortalGroupTag
	KeyInitialR2T
	KeyImmediateData
	KeyMaxRecvDataSegmentLength
	KeyMaxBurstLength
	KeyFirstBurstLength
	KeyDefaultTime2Wait
	KeyDefaultTime2Retain
	KeyMaxOutstandingR2T
	KeyDataPDUInOrder
	KeyDataSequenceInOrder
	KeyErrorRecoveryLevel
	KeySessionType
	KeyIFMarker
	KeyOFMarker
	KeyOFMarkInt
	KeyIFMarkInt

	keyCount = KeyIFMarkInt
)

// spellings holds the wire spellings per key. The first spelling is the
// canonical one; further entries are accepted on input only.
var spellings = [...][]string{
	KeyAuthMethod:               {"AuthMethod"},
	KeyHeaderDigest:             {"HeaderDigest"},
	KeyDataDigest:               {"DataDigest"},
	KeyMaxConnections:           {"MaxConnections"},
	KeySendTargets:              {"SendTargets"},
	KeyTargetName:               {"TargetName"},
	KeyInitiatorName:            {"InitiatorName"},
	KeyTargetAlias:              {"TargetAlias"},
	KeyInitiatorAlias:           {"InitiatorAlias"},
	KeyTargetAddress:            {"TargetAddress"},
	KeyTargetPortalGroupTag:     {"TargetPortalGroupTag"},
	KeyInitialR2T:               {"InitialR2T"},
	KeyImmediateData:            {"ImmediateData"},
	KeyMaxRecvDataSegmentLength: {"MaxRecvDataSegmentLength"},
	KeyMaxBurstLength:           {"MaxBurstLength"},
	KeyFirstBurstLength:         {"FirstBurstLength"},
	KeyDefaultTime2Wait:         {"DefaultTime2Wait", "Time2Wait"},
	KeyDefaultTime2Retain:       {"DefaultTime2Retain", "Time2Retain"},
	KeyMaxOutstandingR2T:        {"MaxOutstandingR2T"},
	KeyDataPDUInOrder:           {"DataPDUInOrder"},
	KeyDataSequenceInOrder:      {"DataSequenceInOrder"},
	KeyErrorRecoveryLevel:       {"ErrorRecoveryLevel"},
	KeySessionType:              {"SessionType"},
	KeyIFMarker:                 {"IFMarker"},
	KeyOFMarker:                 {"OFMarker"},
	KeyOFMarkInt:                {"OFMarkInt"},
	KeyIFMarkInt:                {"IFMarkInt"},
}

var lookup = func() map[string]Key {
	m := make(map[string]Key)
	for k := Key(1); k <= keyCount; k++ {
		for _, s := range spellings[k] {
			m[s] = k
		}
	}
	return m
}()

// String returns the canonical wire spelling of the key.
func (k Key) String() string {
	if !k.IsValid() {
		return "Unknown"
	}
	return spellings[k][0]
}

// IsValid returns true if the key is part of the catalog.
func (k Key) IsValid() bool {
	return k >= 1 && k <= keyCount
}

// Spellings returns every accepted wire spelling, canonical first.
func (k Key) Spellings() []string {
	if !k.IsValid() {
		return nil
	}
	return append([]string(nil), spellings[k]...)
}

// KeySet returns the set of spellings for the key.
func (k Key) KeySet() KeySet {
	return NewKeySet(k.Spellings()...)
}

// LookupKey resolves a wire spelling to its Key. Spellings are case
// sensitive.
func LookupKey(s string) (Key, bool) {
	k, ok := lookup[s]
	return k, ok
}

// AllKeys returns the catalog in declaration order.
func AllKeys() []Key {
	keys := make([]Key, 0, keyCount)
	for k := Key(1); k <= keyCount; k++ {
		keys = append(keys, k)
	}
	return keys
}

// KeySet is a non-empty set of equivalent key spellings. The first
// spelling is used when the key is written.
type KeySet struct {
	values []string
}

// NewKeySet creates a KeySet. It panics if no spelling is given.
func NewKeySet(values ...string) KeySet {
	if len(values) == 0 {
		panic("textkey: empty key set")
	}
	return KeySet{values: append([]string(nil), values...)}
}

// Primary returns the spelling used on output.
func (s KeySet) Primary() string {
	if len(s.values) == 0 {
		return ""
	}
	return s.values[0]
}

// Matches reports whether key is one of the set's spellings.
func (s KeySet) Matches(key string) bool {
	for _, v := range s.values {
		if v == key {
			return true
		}
	}
	return false
}

// MatchesAny reports whether any of keys belongs to the set.
func (s KeySet) MatchesAny(keys []string) bool {
	for _, k := range keys {
		if s.Matches(k) {
			return true
		}
	}
	return false
}

// Values returns a copy of all spellings.
func (s KeySet) Values() []string {
	return append([]string(nil), s.values...)
}

// String returns the primary spelling.
func (s KeySet) String() string {
	return s.Primary()
}
