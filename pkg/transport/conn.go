package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/backkem/iscsi/pkg/digest"
	"github.com/backkem/iscsi/pkg/login"
	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/pion/logging"
)

// Conn carries PDUs over one TCP connection (RFC 3720 Section 5).
// Reads must come from a single goroutine; writes may be concurrent.
type Conn struct {
	conn   net.Conn
	reader *pdu.Reader
	writer *pdu.Writer
	log    logging.LeveledLogger

	mu      sync.RWMutex
	maxSend int
	closed  bool
}

// NewConn wraps c. Until SetDigests is called no digests are used, and
// incoming data segments are limited to the login default of 8192 bytes.
func NewConn(c net.Conn, loggerFactory logging.LoggerFactory) *Conn {
	conn := &Conn{
		conn:    c,
		reader:  pdu.NewReader(c),
		writer:  pdu.NewWriter(c),
		maxSend: negotiation.DefaultMaxRecvDataSegmentLength,
	}
	conn.reader.SetMaxDataSegmentLength(negotiation.DefaultMaxRecvDataSegmentLength)
	if loggerFactory != nil {
		conn.log = loggerFactory.NewLogger("transport")
	}
	return conn
}

// ReadPDU reads the next PDU. io.EOF is returned when the peer closed
// the connection between PDUs.
func (c *Conn) ReadPDU() (*pdu.ProtocolDataUnit, error) {
	p, err := c.reader.Read()
	if err != nil {
		return nil, err
	}
	if c.log != nil {
		c.log.Tracef("%s: read %v", c.conn.RemoteAddr(), p.OperationCode())
	}
	return p, nil
}

// WritePDU writes p. Data segments longer than the peer's
// MaxRecvDataSegmentLength are refused.
func (c *Conn) WritePDU(p *pdu.ProtocolDataUnit) error {
	c.mu.RLock()
	closed, maxSend := c.closed, c.maxSend
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if maxSend > 0 && len(p.Data) > maxSend {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(p.Data), maxSend)
	}
	if err := c.writer.Write(p); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if c.log != nil {
		c.log.Tracef("%s: wrote %v", c.conn.RemoteAddr(), p.OperationCode())
	}
	return nil
}

// SetDigests switches both directions to the given digests.
func (c *Conn) SetDigests(header, data digest.Digest) {
	c.reader.SetDigests(header, data)
	c.writer.SetDigests(header, data)
}

// SetMaxRecvDataSegmentLength sets the largest data segment the peer
// accepts.
func (c *Conn) SetMaxRecvDataSegmentLength(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSend = n
}

// LocalAddr returns the local address the peer connected to.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Login runs the login phase on the connection. On success the
// connection is switched to the negotiated digests and data segment
// limit. On failure the failure response has been sent and the error
// describes the cause.
func (c *Conn) Login(ctx context.Context, phase *login.Phase) (*session.Connection, error) {
	for !phase.Done() {
		if err := ctx.Err(); err != nil {
			phase.Abort(ctx, err)
			return nil, err
		}
		req, err := c.ReadPDU()
		if err != nil {
			phase.Abort(ctx, err)
			return nil, err
		}
		resp, loginErr := phase.Handle(ctx, req)
		if resp != nil {
			if err := c.WritePDU(resp); err != nil {
				phase.Abort(ctx, err)
				return nil, errors.Join(loginErr, err)
			}
		}
		if loginErr != nil {
			return nil, loginErr
		}
	}

	header, data, err := phase.Digests()
	if err != nil {
		return nil, err
	}
	conn := phase.Connection()
	maxSend, err := conn.Negotiator().Settings().MaxRecvDataSegmentLength()
	if err != nil {
		return nil, err
	}
	c.SetDigests(header, data)
	c.SetMaxRecvDataSegmentLength(maxSend)

	if c.log != nil {
		c.log.Debugf("%s: logged in to %s, digests %s/%s", c.conn.RemoteAddr(), conn.Session(), header.Name(), data.Name())
	}
	return conn, nil
}
