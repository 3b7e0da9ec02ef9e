package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
	"go.uber.org/atomic"
)

// Default values of session wide parameters (RFC 3720 Section 12).
const (
	DefaultMaxBurstLength     = 262144
	DefaultFirstBurstLength   = 65536
	DefaultTime2Wait          = 2
	DefaultTime2Retain        = 20
	DefaultMaxConnections     = 1
	DefaultMaxOutstandingR2T  = 1
	DefaultErrorRecoveryLevel = 0

	minBurstLength = 512
	maxBurstLength = 1<<24 - 1
	maxTime2       = 3600
	maxShort       = 65535
)

// SessionNegotiator holds the session wide entries. Connections of the
// same session negotiate one at a time: BeginNegotiation takes a single
// permit that FinishNegotiation returns.
type SessionNegotiator struct {
	config Config
	log    logging.LeveledLogger

	// lock is a semaphore with one permit.
	lock chan struct{}

	// entries and backup are only touched while holding lock.
	entries []Entry
	backup  []Entry

	generation *atomic.Uint64

	valuesMu sync.RWMutex
	values   map[textkey.Key]any
}

// NewSessionNegotiator creates the session entries from cfg.
func NewSessionNegotiator(cfg Config) (*SessionNegotiator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &SessionNegotiator{
		config:     cfg,
		lock:       make(chan struct{}, 1),
		generation: atomic.NewUint64(0),
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("negotiation")
	}
	s.entries = s.newEntries()
	s.rebuild()
	return s, nil
}

func (s *SessionNegotiator) newEntries() []Entry {
	normal := textkey.Normal
	maxConns := s.config.MaxConnections
	if maxConns == 0 {
		maxConns = DefaultMaxConnections
	}
	numerical := func(key textkey.Key, lo, hi int, fn NumericalResultFunction, value, def int, zeroDontCare bool) Entry {
		return NewNumericalEntry(NumericalEntryConfig{
			Key:               key,
			Type:              Negotiated,
			Use:               UseLeadingLoginOperational,
			Status:            StatusDefault,
			NegotiationValue:  value,
			Min:               lo,
			Max:               hi,
			Result:            fn,
			Default:           def,
			ZeroMeansDontCare: zeroDontCare,
			Logger:            s.log,
		})
	}
	boolean := func(key textkey.Key, fn BooleanResultFunction, value bool) Entry {
		return NewBooleanEntry(BooleanEntryConfig{
			Key:              key,
			Use:              UseLeadingLoginOperational,
			Status:           StatusDefault,
			NegotiationValue: value,
			Result:           fn,
			Default:          value,
			Logger:           s.log,
		})
	}

	return []Entry{
		boolean(textkey.KeyDataPDUInOrder, ResultOr, true),
		boolean(textkey.KeyDataSequenceInOrder, ResultOr, true),
		numerical(textkey.KeyDefaultTime2Retain, 0, maxTime2, ResultMin, 0, DefaultTime2Retain, false),
		numerical(textkey.KeyDefaultTime2Wait, 0, maxTime2, ResultMax, DefaultTime2Wait, DefaultTime2Wait, false),
		numerical(textkey.KeyErrorRecoveryLevel, 0, 2, ResultMin, DefaultErrorRecoveryLevel, DefaultErrorRecoveryLevel, false),
		numerical(textkey.KeyFirstBurstLength, minBurstLength, maxBurstLength, ResultMin, DefaultFirstBurstLength, DefaultFirstBurstLength, true),
		boolean(textkey.KeyImmediateData, ResultAnd, true),
		boolean(textkey.KeyInitialR2T, ResultOr, true),
		NewStringEntry(StringEntryConfig{
			Key:    textkey.KeyInitiatorAlias,
			Type:   Declared,
			Use:    UseInitialAndFullFeature,
			Status: StatusNotNegotiated,
			Logger: s.log,
		}),
		NewStringEntry(StringEntryConfig{
			Key:    textkey.KeyInitiatorName,
			Type:   Declared,
			Use:    UseInitial,
			Status: StatusNotNegotiated,
			Logger: s.log,
		}),
		numerical(textkey.KeyMaxBurstLength, minBurstLength, maxBurstLength, ResultMin, DefaultMaxBurstLength, DefaultMaxBurstLength, true),
		numerical(textkey.KeyMaxConnections, 1, maxShort, ResultMin, maxConns, DefaultMaxConnections, false),
		numerical(textkey.KeyMaxOutstandingR2T, 1, maxShort, ResultMin, DefaultMaxOutstandingR2T, DefaultMaxOutstandingR2T, false),
		NewStringEntry(StringEntryConfig{
			Key:       textkey.KeySessionType,
			Type:      Declared,
			Use:       UseInitial,
			Status:    StatusDefault,
			Supported: []string{textkey.Discovery, textkey.Normal},
			Default:   &normal,
			Logger:    s.log,
		}),
	}
}

// Config returns the configuration the negotiator was created with.
func (s *SessionNegotiator) Config() Config {
	return s.config
}

// Generation returns the number of completed negotiation rounds plus one.
func (s *SessionNegotiator) Generation() uint64 {
	return s.generation.Load()
}

// Entry returns the session entry matching key, or nil. Entries must only
// be inspected while no other connection negotiates.
func (s *SessionNegotiator) Entry(key string) Entry {
	return findEntry(s.entries, key)
}

// CheckConstraints validates rules spanning several session keys.
func (s *SessionNegotiator) CheckConstraints() error {
	first, err := s.intValue(textkey.KeyFirstBurstLength)
	if err != nil {
		return err
	}
	burst, err := s.intValue(textkey.KeyMaxBurstLength)
	if err != nil {
		return err
	}
	if first > burst {
		return fmt.Errorf("%w: FirstBurstLength %d > MaxBurstLength %d", ErrConstraintViolation, first, burst)
	}
	return nil
}

func (s *SessionNegotiator) intValue(key textkey.Key) (int, error) {
	e, ok := findEntry(s.entries, key.String()).(*NumericalEntry)
	if !ok {
		return 0, ErrMissingValue
	}
	return e.Value()
}

func (s *SessionNegotiator) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionNegotiator) release() {
	<-s.lock
}

func (s *SessionNegotiator) backUp() {
	s.backup = copyEntries(s.entries)
}

func (s *SessionNegotiator) commitOrRollBack(commit bool) {
	if commit {
		for _, e := range s.entries {
			e.state().resetRound()
		}
	} else if s.backup != nil {
		s.entries = s.backup
	}
	s.backup = nil
}

// rebuild publishes the current entry values and bumps the generation.
func (s *SessionNegotiator) rebuild() {
	values := snapshotValues(s.entries)
	s.valuesMu.Lock()
	s.values = values
	s.generation.Inc()
	s.valuesMu.Unlock()
}

// settingsValues returns the published values and their generation.
func (s *SessionNegotiator) settingsValues() (uint64, map[textkey.Key]any) {
	s.valuesMu.RLock()
	defer s.valuesMu.RUnlock()
	return s.generation.Load(), s.values
}

// Settings returns a snapshot of the session wide values only.
func (s *SessionNegotiator) Settings() *Settings {
	id, values := s.settingsValues()
	return newSettings(id, values)
}
