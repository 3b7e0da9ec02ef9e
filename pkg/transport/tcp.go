package transport

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pion/logging"
)

// DefaultPort is the well-known iSCSI TCP port.
const DefaultPort = 3260

// ConnHandler serves one accepted connection. The context is canceled
// when the portal stops; the connection is closed when the handler
// returns.
type ConnHandler func(ctx context.Context, c *Conn)

// TCP is an iSCSI portal. It accepts TCP connections and hands each one
// to the ConnHandler in its own goroutine.
type TCP struct {
	listener      net.Listener
	handler       ConnHandler
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Connection tracking
	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// TCPConfig configures the TCP portal.
type TCPConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":3260").
	// Ignored if Listener is provided.
	ListenAddr string

	// Handler is called for each accepted connection.
	// Required.
	Handler ConnHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTCP creates a new TCP portal with the given configuration.
func NewTCP(config TCPConfig) (*TCP, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &TCP{
		listener:      config.Listener,
		handler:       config.Handler,
		loggerFactory: config.LoggerFactory,
		ctx:           ctx,
		cancel:        cancel,
		conns:         make(map[*Conn]struct{}),
	}

	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("transport")
	}

	if t.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = net.JoinHostPort("", strconv.Itoa(DefaultPort))
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			return nil, err
		}
		t.listener = listener
	}

	return t, nil
}

// Start begins accepting connections.
func (t *TCP) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("listening on %s", t.listener.Addr())
	}

	t.wg.Add(1)
	go t.acceptLoop()

	return nil
}

// Stop closes the listener and all connections, and waits for the
// handlers to return.
func (t *TCP) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("stopping portal")
	}

	t.cancel()
	t.listener.Close()

	t.connsMu.Lock()
	for c := range t.conns {
		c.Close()
	}
	t.connsMu.Unlock()

	t.wg.Wait()
	return nil
}

// LocalAddr returns the local address the portal is listening on.
func (t *TCP) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// ConnectionCount returns the number of open connections.
func (t *TCP) ConnectionCount() int {
	t.connsMu.Lock()
	defer t.connsMu.Unlock()
	return len(t.conns)
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
			}
			if t.log != nil {
				t.log.Warnf("accept: %v", err)
			}
			continue
		}

		if !t.AddConnection(conn) {
			conn.Close()
			return
		}
	}
}

// AddConnection serves an existing connection as if it had been
// accepted. It returns false if the portal is stopped. This is useful
// for testing with net.Pipe().
func (t *TCP) AddConnection(conn net.Conn) bool {
	c := NewConn(conn, t.loggerFactory)

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return false
	}

	t.connsMu.Lock()
	t.conns[c] = struct{}{}
	t.connsMu.Unlock()

	t.wg.Add(1)
	go t.handleConn(c)
	return true
}

func (t *TCP) handleConn(c *Conn) {
	defer t.wg.Done()
	defer func() {
		c.Close()
		t.connsMu.Lock()
		delete(t.conns, c)
		t.connsMu.Unlock()
	}()

	if t.log != nil {
		t.log.Debugf("connection from %s", c.RemoteAddr())
	}
	t.handler(t.ctx, c)
}
