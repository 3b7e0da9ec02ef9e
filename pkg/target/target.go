// Package target runs an iSCSI target portal: it accepts connections,
// drives their login phase and serves the session-level PDUs of the full
// feature phase, including SendTargets discovery and text negotiation.
// SCSI commands are rejected; command execution belongs to a storage layer
// on top.
package target

import (
	"net"
	"sync"

	"github.com/backkem/iscsi/pkg/config"
	"github.com/backkem/iscsi/pkg/login"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/transport"
	"github.com/pion/logging"
)

// Config configures a Target.
type Config struct {
	// Portal is the validated portal configuration. Required.
	Portal *config.Config

	// Listener is an optional pre-existing listener. If nil, the target
	// listens on Portal.ListenAddr().
	Listener net.Listener

	// Login callbacks, called for every connection.
	Callbacks login.Callbacks

	// OnStateChanged is called after Start and Stop.
	OnStateChanged func(state State)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Target is an iSCSI target portal.
type Target struct {
	config   Config
	log      logging.LeveledLogger
	sessions *session.Manager

	mu    sync.Mutex
	state State
	tcp   *transport.TCP
}

// NewTarget creates a target from config.
func NewTarget(config Config) (*Target, error) {
	if config.Portal == nil {
		return nil, ErrNoConfig
	}
	if err := config.Portal.Validate(); err != nil {
		return nil, err
	}

	t := &Target{
		config:   config,
		sessions: session.NewManager(config.Portal.ManagerConfig(config.LoggerFactory)),
		state:    StateInitialized,
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("target")
	}
	return t, nil
}

// Start opens the portal.
func (t *Target) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrAlreadyStopped
	}

	tcp, err := transport.NewTCP(transport.TCPConfig{
		Listener:      t.config.Listener,
		ListenAddr:    t.config.Portal.ListenAddr(),
		Handler:       t.serveConn,
		LoggerFactory: t.config.LoggerFactory,
	})
	if err != nil {
		return err
	}
	if err := tcp.Start(); err != nil {
		return err
	}
	t.tcp = tcp
	t.state = StateRunning

	if t.log != nil {
		t.log.Infof("target started on %s with %d targets", tcp.LocalAddr(), len(t.config.Portal.Targets))
	}
	if t.config.OnStateChanged != nil {
		t.config.OnStateChanged(t.state)
	}
	return nil
}

// Stop closes the portal and every connection, and drops all sessions.
func (t *Target) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateInitialized:
		return ErrNotStarted
	case StateStopped:
		return ErrAlreadyStopped
	}

	if err := t.tcp.Stop(); err != nil && t.log != nil {
		t.log.Warnf("stop portal: %v", err)
	}
	t.sessions.Clear()
	t.state = StateStopped

	if t.log != nil {
		t.log.Info("target stopped")
	}
	if t.config.OnStateChanged != nil {
		t.config.OnStateChanged(t.state)
	}
	return nil
}

// State returns the lifecycle state.
func (t *Target) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Addr returns the portal address, or nil before Start.
func (t *Target) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tcp == nil {
		return nil
	}
	return t.tcp.LocalAddr()
}

// Sessions returns the session manager.
func (t *Target) Sessions() *session.Manager {
	return t.sessions
}

// AddConnection serves an existing connection, for example one end of
// a net.Pipe. It returns false if the target is not running.
func (t *Target) AddConnection(conn net.Conn) bool {
	t.mu.Lock()
	tcp := t.tcp
	running := t.state == StateRunning
	t.mu.Unlock()
	if !running {
		return false
	}
	return tcp.AddConnection(conn)
}
