package target

import (
	"context"
	"errors"
	"io"

	"github.com/backkem/iscsi/pkg/login"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/transport"
)

// serveConn runs the login phase and then the full feature phase of one
// connection until logout, a read error or portal shutdown.
func (t *Target) serveConn(ctx context.Context, c *transport.Conn) {
	phase := login.NewPhase(login.Config{
		Sessions:      t.sessions,
		Callbacks:     t.config.Callbacks,
		LoggerFactory: t.config.LoggerFactory,
	})
	conn, err := c.Login(ctx, phase)
	if err != nil {
		if t.log != nil {
			t.log.Infof("%s: login: %v", c.RemoteAddr(), err)
		}
		return
	}
	defer t.sessions.Release(conn)

	texts := newTextHandler(t, conn, c)
	for ctx.Err() == nil {
		req, err := c.ReadPDU()
		if err != nil {
			if !errors.Is(err, io.EOF) && t.log != nil {
				t.log.Debugf("%s: read: %v", c.RemoteAddr(), err)
			}
			return
		}
		done, err := t.handle(ctx, conn, c, texts, req)
		if err != nil {
			if t.log != nil {
				t.log.Warnf("%s: %v", c.RemoteAddr(), err)
			}
			return
		}
		if done {
			return
		}
	}
}

// handle answers one full feature PDU and reports whether the connection
// is logged out.
func (t *Target) handle(ctx context.Context, conn *session.Connection, c *transport.Conn, texts *textHandler, req *pdu.ProtocolDataUnit) (bool, error) {
	s := conn.Session()
	switch p := req.Parser().(type) {
	case *pdu.NOPOutParser:
		s.AcceptCommand(p.CmdSN, req.BHS.Immediate)
		// A NOP-Out answering a NOP-In needs no response.
		if req.BHS.InitiatorTaskTag == pdu.ReservedTag {
			return false, nil
		}
		parser := &pdu.NOPInParser{
			TargetSequence:    sequence(conn),
			LogicalUnitNumber: p.LogicalUnitNumber,
			TargetTransferTag: pdu.ReservedTag,
		}
		resp := pdu.New(parser)
		resp.BHS.Final = true
		resp.BHS.InitiatorTaskTag = req.BHS.InitiatorTaskTag
		resp.SetData(req.Data)
		return false, c.WritePDU(resp)

	case *pdu.TextRequestParser:
		s.AcceptCommand(p.CmdSN, req.BHS.Immediate)
		return false, texts.handle(ctx, req, p)

	case *pdu.LogoutRequestParser:
		s.AcceptCommand(p.CmdSN, req.BHS.Immediate)
		parser := &pdu.LogoutResponseParser{Response: pdu.LogoutConnectionClosed}
		switch {
		case p.Reason == pdu.LogoutRemoveConnectionForRecovery:
			parser.Response = pdu.LogoutConnectionRecoveryNotSupport
		case p.Reason == pdu.LogoutCloseConnection && p.ConnectionID != conn.CID():
			parser.Response = pdu.LogoutCIDNotFound
		}
		parser.TargetSequence = sequence(conn)
		resp := pdu.New(parser)
		resp.BHS.Final = true
		resp.BHS.InitiatorTaskTag = req.BHS.InitiatorTaskTag
		if err := c.WritePDU(resp); err != nil {
			return true, err
		}
		if parser.Response != pdu.LogoutConnectionClosed {
			return false, nil
		}
		if t.log != nil {
			t.log.Infof("%s: connection %d logged out, reason %d", s, conn.CID(), p.Reason)
		}
		return true, nil

	default:
		if sn, ok := commandSequence(req); ok {
			s.AcceptCommand(sn, req.BHS.Immediate)
		}
		return false, t.reject(conn, c, req, pdu.RejectCommandNotSupported)
	}
}

// reject answers req with a Reject PDU carrying its header.
func (t *Target) reject(conn *session.Connection, c *transport.Conn, req *pdu.ProtocolDataUnit, reason pdu.RejectReason) error {
	header := make([]byte, pdu.BHSSize)
	if _, err := req.BHS.EncodeTo(header); err != nil {
		return err
	}
	if t.log != nil {
		t.log.Debugf("%s: reject %v: %v", c.RemoteAddr(), req.OperationCode(), reason)
	}

	resp := pdu.New(&pdu.RejectParser{TargetSequence: sequence(conn), Reason: reason})
	resp.BHS.Final = true
	resp.BHS.InitiatorTaskTag = pdu.ReservedTag
	resp.SetData(header)
	return c.WritePDU(resp)
}

// sequence returns the numbers of the next status PDU on conn.
func sequence(conn *session.Connection) pdu.TargetSequence {
	s := conn.Session()
	return pdu.TargetSequence{
		StatSN:   conn.NextStatSN(),
		ExpCmdSN: s.ExpectedCmdSN(),
		MaxCmdSN: s.ExpectedCmdSN(),
	}
}

// commandSequence returns the CmdSN of the commands that carry one.
func commandSequence(req *pdu.ProtocolDataUnit) (uint32, bool) {
	switch p := req.Parser().(type) {
	case *pdu.SCSICommandParser:
		return p.CmdSN, true
	case *pdu.TaskManagementRequestParser:
		return p.CmdSN, true
	}
	return 0, false
}
