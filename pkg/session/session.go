// Package session tracks iSCSI sessions and their connections.
//
// A Session is identified by the ISID the initiator chose and the TSIH
// the target assigned on the leading login. It owns the session wide
// negotiator; every Connection owns a connection negotiator bound to it.
package session

import (
	"fmt"
	"sync"

	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
	"go.uber.org/atomic"
)

// Session is an iSCSI session: the ISID chosen by the initiator, the TSIH
// assigned by the target, the session wide negotiator and the connections
// logged in to it.
type Session struct {
	isid       pdu.ISID
	tsih       uint16
	negotiator *negotiation.SessionNegotiator
	log        logging.LeveledLogger

	// Sequence state shared by all connections.
	targetTransferTag *atomic.Uint32
	expCmdSN          *atomic.Uint32

	mu          sync.Mutex
	connections map[uint16]*Connection
	leadingCID  uint16
	hasLeading  bool
}

// Config configures a Session.
type Config struct {
	ISID pdu.ISID
	TSIH uint16

	// Negotiation configures the session negotiator.
	Negotiation negotiation.Config

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// New creates a session without connections.
func New(cfg Config) (*Session, error) {
	if cfg.TSIH == 0 {
		return nil, ErrInvalidTSIH
	}
	if cfg.Negotiation.LoggerFactory == nil {
		cfg.Negotiation.LoggerFactory = cfg.LoggerFactory
	}
	negotiator, err := negotiation.NewSessionNegotiator(cfg.Negotiation)
	if err != nil {
		return nil, err
	}

	s := &Session{
		isid:              cfg.ISID,
		tsih:              cfg.TSIH,
		negotiator:        negotiator,
		targetTransferTag: atomic.NewUint32(0),
		expCmdSN:          atomic.NewUint32(0),
		connections:       make(map[uint16]*Connection),
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("session")
	}
	return s, nil
}

// ISID returns the initiator part of the session identifier.
func (s *Session) ISID() pdu.ISID {
	return s.isid
}

// TSIH returns the target session identifying handle.
func (s *Session) TSIH() uint16 {
	return s.tsih
}

// Negotiator returns the session wide negotiator.
func (s *Session) Negotiator() *negotiation.SessionNegotiator {
	return s.negotiator
}

// InitiatorName returns the declared initiator name, or "" before login.
func (s *Session) InitiatorName() string {
	name, _ := s.negotiator.Settings().InitiatorName()
	return name
}

// Discovery reports whether the session was opened with
// SessionType=Discovery.
func (s *Session) Discovery() bool {
	t, _ := s.negotiator.Settings().SessionType()
	return t == textkey.Discovery
}

// NextTargetTransferTag returns a new target transfer tag. The reserved
// value 0xffffffff is never returned.
func (s *Session) NextTargetTransferTag() uint32 {
	for {
		if tag := s.targetTransferTag.Inc(); tag != pdu.ReservedTag {
			return tag
		}
	}
}

// ExpectedCmdSN returns the next expected command sequence number.
func (s *Session) ExpectedCmdSN() uint32 {
	return s.expCmdSN.Load()
}

// SetExpectedCmdSN sets the expected command sequence number, typically
// from the CmdSN of the leading login request.
func (s *Session) SetExpectedCmdSN(sn uint32) {
	s.expCmdSN.Store(sn)
}

// AcceptCommand advances ExpectedCmdSN if sn is the expected number.
// Immediate commands do not advance it.
func (s *Session) AcceptCommand(sn uint32, immediate bool) bool {
	if immediate {
		return true
	}
	return s.expCmdSN.CompareAndSwap(sn, sn+1)
}

// LeadingCID returns the CID of the leading connection.
func (s *Session) LeadingCID() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leadingCID, s.hasLeading
}

// AddConnection creates the connection cid on the session. The first
// connection becomes the leading connection. Further connections are
// limited by the negotiated MaxConnections.
func (s *Session) AddConnection(cid uint16) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.connections[cid]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateConnection, cid)
	}
	if maxConns, err := s.negotiator.Settings().MaxConnections(); err == nil && len(s.connections) >= maxConns {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyConnections, maxConns)
	}

	negotiator, err := negotiation.NewConnectionNegotiator(s.negotiator)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		session:    s,
		cid:        cid,
		negotiator: negotiator,
		leading:    !s.hasLeading,
		statSN:     atomic.NewUint32(0),
	}
	if c.leading {
		s.leadingCID = cid
		s.hasLeading = true
	}
	s.connections[cid] = c

	if s.log != nil {
		s.log.Debugf("session %d: added connection %d (leading=%t)", s.tsih, cid, c.leading)
	}
	return c, nil
}

// Connection returns the connection cid, or nil.
func (s *Session) Connection(cid uint16) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[cid]
}

// ConnectionCount returns the number of connections.
func (s *Session) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *Session) removeConnection(cid uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, cid)
	return len(s.connections)
}

// String returns a short description for logging.
func (s *Session) String() string {
	return fmt.Sprintf("Session{ISID: %s, TSIH: %d}", s.isid, s.tsih)
}

// Connection is one TCP connection of a session.
type Connection struct {
	session    *Session
	cid        uint16
	negotiator *negotiation.ConnectionNegotiator
	leading    bool
	statSN     *atomic.Uint32
}

// Session returns the session the connection belongs to.
func (c *Connection) Session() *Session {
	return c.session
}

// CID returns the connection ID.
func (c *Connection) CID() uint16 {
	return c.cid
}

// Leading reports whether this is the first connection of the session.
func (c *Connection) Leading() bool {
	return c.leading
}

// Negotiator returns the connection negotiator.
func (c *Connection) Negotiator() *negotiation.ConnectionNegotiator {
	return c.negotiator
}

// SetStatSN sets the next status sequence number.
func (c *Connection) SetStatSN(sn uint32) {
	c.statSN.Store(sn)
}

// StatSN returns the next status sequence number without consuming it.
func (c *Connection) StatSN() uint32 {
	return c.statSN.Load()
}

// NextStatSN returns the next status sequence number and advances it.
func (c *Connection) NextStatSN() uint32 {
	return c.statSN.Inc() - 1
}

// Close removes the connection from its session and returns the number of
// connections left.
func (c *Connection) Close() int {
	return c.session.removeConnection(c.cid)
}
