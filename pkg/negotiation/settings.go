package negotiation

import (
	"github.com/backkem/iscsi/pkg/textkey"
)

// Settings is an immutable snapshot of the values of all connection and
// session entries after a negotiation round.
type Settings struct {
	id     uint64
	values map[textkey.Key]any
}

func newSettings(id uint64, sources ...map[textkey.Key]any) *Settings {
	s := &Settings{id: id, values: make(map[textkey.Key]any)}
	for _, src := range sources {
		for k, v := range src {
			s.values[k] = v
		}
	}
	return s
}

// snapshotValues reads the current value of every entry that has one.
func snapshotValues(entries []Entry) map[textkey.Key]any {
	values := make(map[textkey.Key]any, len(entries))
	for _, e := range entries {
		if v, ok := e.snapshot(); ok {
			values[e.Key()] = v
		}
	}
	return values
}

// ID returns the session settings generation the snapshot was built from.
func (s *Settings) ID() uint64 {
	return s.id
}

func lookup[T any](s *Settings, key textkey.Key) (T, error) {
	v, ok := s.values[key].(T)
	if !ok {
		var zero T
		return zero, ErrMissingValue
	}
	return v, nil
}

// Connection parameters.

func (s *Settings) HeaderDigest() (string, error) {
	return lookup[string](s, textkey.KeyHeaderDigest)
}

func (s *Settings) DataDigest() (string, error) {
	return lookup[string](s, textkey.KeyDataDigest)
}

func (s *Settings) IFMarker() (bool, error) {
	return lookup[bool](s, textkey.KeyIFMarker)
}

func (s *Settings) OFMarker() (bool, error) {
	return lookup[bool](s, textkey.KeyOFMarker)
}

func (s *Settings) IFMarkInt() (int, error) {
	return lookup[int](s, textkey.KeyIFMarkInt)
}

func (s *Settings) OFMarkInt() (int, error) {
	return lookup[int](s, textkey.KeyOFMarkInt)
}

// MaxRecvDataSegmentLength is the largest data segment the initiator
// accepts.
func (s *Settings) MaxRecvDataSegmentLength() (int, error) {
	return lookup[int](s, textkey.KeyMaxRecvDataSegmentLength)
}

func (s *Settings) TargetName() (string, error) {
	return lookup[string](s, textkey.KeyTargetName)
}

// Session parameters.

func (s *Settings) DataPDUInOrder() (bool, error) {
	return lookup[bool](s, textkey.KeyDataPDUInOrder)
}

func (s *Settings) DataSequenceInOrder() (bool, error) {
	return lookup[bool](s, textkey.KeyDataSequenceInOrder)
}

func (s *Settings) DefaultTime2Retain() (int, error) {
	return lookup[int](s, textkey.KeyDefaultTime2Retain)
}

func (s *Settings) DefaultTime2Wait() (int, error) {
	return lookup[int](s, textkey.KeyDefaultTime2Wait)
}

func (s *Settings) ErrorRecoveryLevel() (int, error) {
	return lookup[int](s, textkey.KeyErrorRecoveryLevel)
}

func (s *Settings) FirstBurstLength() (int, error) {
	return lookup[int](s, textkey.KeyFirstBurstLength)
}

func (s *Settings) ImmediateData() (bool, error) {
	return lookup[bool](s, textkey.KeyImmediateData)
}

func (s *Settings) InitialR2T() (bool, error) {
	return lookup[bool](s, textkey.KeyInitialR2T)
}

func (s *Settings) InitiatorAlias() (string, error) {
	return lookup[string](s, textkey.KeyInitiatorAlias)
}

func (s *Settings) InitiatorName() (string, error) {
	return lookup[string](s, textkey.KeyInitiatorName)
}

func (s *Settings) MaxBurstLength() (int, error) {
	return lookup[int](s, textkey.KeyMaxBurstLength)
}

func (s *Settings) MaxConnections() (int, error) {
	return lookup[int](s, textkey.KeyMaxConnections)
}

func (s *Settings) MaxOutstandingR2T() (int, error) {
	return lookup[int](s, textkey.KeyMaxOutstandingR2T)
}

// SessionType is "Normal" or "Discovery".
func (s *Settings) SessionType() (string, error) {
	return lookup[string](s, textkey.KeySessionType)
}
