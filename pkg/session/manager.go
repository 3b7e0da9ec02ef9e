package session

import (
	"fmt"

	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/pion/logging"
)

// Manager creates sessions for leading logins and finds them again for
// connections joining an existing session.
type Manager struct {
	table         *Table
	negotiation   negotiation.Config
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// MaxSessions limits the number of concurrent sessions.
	// Default: DefaultMaxSessions (16)
	MaxSessions int

	// Negotiation is the negotiation config of every new session.
	Negotiation negotiation.Config

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewManager creates a new session manager.
func NewManager(config ManagerConfig) *Manager {
	m := &Manager{
		table:         NewTable(config.MaxSessions),
		negotiation:   config.Negotiation,
		loggerFactory: config.LoggerFactory,
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("session")
	}
	return m
}

// Create allocates a TSIH and adds a new session for isid.
func (m *Manager) Create(isid pdu.ISID) (*Session, error) {
	tsih, err := m.table.AllocateTSIH()
	if err != nil {
		return nil, err
	}
	s, err := New(Config{
		ISID:          isid,
		TSIH:          tsih,
		Negotiation:   m.negotiation,
		LoggerFactory: m.loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	if err := m.table.Add(s); err != nil {
		return nil, err
	}
	if m.log != nil {
		m.log.Infof("created %s", s)
	}
	return s, nil
}

// Join returns the session tsih for a connection logging in with isid.
func (m *Manager) Join(isid pdu.ISID, tsih uint16) (*Session, error) {
	s := m.table.Find(tsih)
	if s == nil {
		return nil, fmt.Errorf("%w: TSIH %d", ErrSessionNotFound, tsih)
	}
	if s.ISID() != isid {
		return nil, fmt.Errorf("%w: %s != %s", ErrISIDMismatch, isid, s.ISID())
	}
	return s, nil
}

// Find finds a session by TSIH. Returns nil if not found.
func (m *Manager) Find(tsih uint16) *Session {
	return m.table.Find(tsih)
}

// FindByISID finds the session of an initiator by ISID.
func (m *Manager) FindByISID(initiatorName string, isid pdu.ISID) *Session {
	return m.table.FindByISID(initiatorName, isid)
}

// Remove removes a session.
func (m *Manager) Remove(tsih uint16) {
	if m.log != nil {
		m.log.Infof("removed session %d", tsih)
	}
	m.table.Remove(tsih)
}

// Release closes the connection and removes its session once the last
// connection is gone.
func (m *Manager) Release(c *Connection) {
	if c.Close() == 0 {
		m.Remove(c.Session().TSIH())
	}
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	return m.table.Count()
}

// ForEach calls fn for each session.
// The callback receives the session and should return true to continue.
func (m *Manager) ForEach(fn func(*Session) bool) {
	m.table.ForEach(fn)
}

// Clear removes all sessions.
func (m *Manager) Clear() {
	m.table.Clear()
}
