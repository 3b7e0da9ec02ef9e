package session

import (
	"sync"

	"github.com/backkem/iscsi/pkg/pdu"
)

// TSIH constants.
const (
	// MinTSIH is the minimum valid target session identifying handle.
	// TSIH 0 is used by the initiator to request a new session.
	MinTSIH uint16 = 1

	// MaxTSIH is the maximum valid TSIH.
	MaxTSIH uint16 = 0xFFFF

	// DefaultMaxSessions is the default maximum number of concurrent sessions.
	DefaultMaxSessions = 16
)

// Table manages sessions by TSIH.
//
// TSIHs are allocated sequentially, wrapping around when reaching MaxTSIH.
// The table ensures TSIHs are unique among active sessions.
type Table struct {
	sessions    map[uint16]*Session
	maxSessions int
	nextTSIH    uint16 // Next TSIH to try allocating

	mu sync.RWMutex
}

// NewTable creates a new session table.
// maxSessions limits the number of concurrent sessions (0 uses DefaultMaxSessions).
func NewTable(maxSessions int) *Table {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	return &Table{
		sessions:    make(map[uint16]*Session),
		maxSessions: maxSessions,
		nextTSIH:    MinTSIH,
	}
}

// AllocateTSIH generates a unique TSIH in the range [1, 65535].
// Returns ErrSessionTableFull if the table is at capacity.
func (t *Table) AllocateTSIH() (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sessions) >= t.maxSessions {
		return 0, ErrSessionTableFull
	}

	start := t.nextTSIH
	for {
		tsih := t.nextTSIH

		// Wrap around, skip 0
		t.nextTSIH++
		if t.nextTSIH == 0 {
			t.nextTSIH = MinTSIH
		}

		if _, exists := t.sessions[tsih]; !exists {
			return tsih, nil
		}

		if t.nextTSIH == start {
			return 0, ErrTSIHExhausted
		}
	}
}

// Add adds a session to the table.
// The session's TSIH must be unique and non-zero.
func (t *Table) Add(s *Session) error {
	if s == nil || s.TSIH() == 0 {
		return ErrInvalidTSIH
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sessions) >= t.maxSessions {
		return ErrSessionTableFull
	}
	if _, exists := t.sessions[s.TSIH()]; exists {
		return ErrDuplicateSession
	}

	t.sessions[s.TSIH()] = s
	return nil
}

// Remove removes a session from the table.
// No error is returned if the session doesn't exist.
func (t *Table) Remove(tsih uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, tsih)
}

// Find looks up a session by TSIH.
// Returns nil if not found.
func (t *Table) Find(tsih uint16) *Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessions[tsih]
}

// FindByISID finds the session an initiator opened with isid.
// Returns nil if not found.
func (t *Table) FindByISID(initiatorName string, isid pdu.ISID) *Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.sessions {
		if s.ISID() == isid && s.InitiatorName() == initiatorName {
			return s
		}
	}
	return nil
}

// Count returns the number of active sessions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// IsFull returns true if no more sessions can be added.
func (t *Table) IsFull() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions) >= t.maxSessions
}

// MaxSessions returns the maximum number of sessions allowed.
func (t *Table) MaxSessions() int {
	return t.maxSessions
}

// Clear removes all sessions from the table.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = make(map[uint16]*Session)
}

// ForEach calls fn for each session in the table.
// The callback should not modify the table.
func (t *Table) ForEach(fn func(*Session) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.sessions {
		if !fn(s) {
			return
		}
	}
}
