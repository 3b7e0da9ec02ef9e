package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/backkem/iscsi/pkg/digest"
	"github.com/backkem/iscsi/pkg/login"
	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/transport/v3/test"
)

const (
	testInitiator = "iqn.2024-01.com.example:host"
	testTarget    = "iqn.2024-01.com.example:disk1"
	testITT       = 0x2000
)

func newTestManager() *session.Manager {
	return session.NewManager(session.ManagerConfig{
		Negotiation: negotiation.Config{
			Targets:        negotiation.NewStaticTargets(negotiation.TargetInfo{Name: testTarget}),
			PortalGroupTag: 1,
			HeaderDigests:  []string{digest.NameCRC32C, digest.NameNone},
		},
	})
}

// loginRequest builds a single request logging in from the operational
// stage straight to full feature.
func loginRequest(pairs ...string) *pdu.ProtocolDataUnit {
	parser := &pdu.LoginRequestParser{ConnectionID: 1}
	parser.CSG = pdu.LoginStageOperationalNegotiation
	parser.NSG = pdu.LoginStageFullFeature
	parser.ISID = pdu.ISID{0x80, 0, 0, 0, 0, 1}
	parser.CmdSN = 1

	req := pdu.New(parser)
	req.BHS.Immediate = true
	req.BHS.Final = true
	req.BHS.InitiatorTaskTag = testITT
	pairs = append([]string{"InitiatorName=" + testInitiator, "SessionType=Normal"}, pairs...)
	req.SetData([]byte(textkey.JoinKeyValuePairs(pairs)))
	return req
}

func TestConnLogin(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()
	report := test.CheckRoutines(t)
	defer report()

	manager := newTestManager()
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		c := NewConn(server, nil)
		defer c.Close()

		conn, err := c.Login(context.Background(), login.NewPhase(login.Config{Sessions: manager}))
		if err != nil {
			done <- err
			return
		}
		// Answer one ping in the full feature phase.
		req, err := c.ReadPDU()
		if err != nil {
			done <- err
			return
		}
		nopOut, ok := req.Parser().(*pdu.NOPOutParser)
		if !ok {
			done <- fmt.Errorf("read %v, want NOP-Out", req.OperationCode())
			return
		}
		parser := &pdu.NOPInParser{TargetTransferTag: pdu.ReservedTag}
		parser.StatSN = conn.NextStatSN()
		parser.ExpCmdSN = nopOut.CmdSN
		parser.MaxCmdSN = nopOut.CmdSN
		resp := pdu.New(parser)
		resp.BHS.Final = true
		resp.BHS.InitiatorTaskTag = req.BHS.InitiatorTaskTag
		resp.SetData(req.Data)
		done <- c.WritePDU(resp)
	}()

	w := pdu.NewWriter(client)
	r := pdu.NewReader(client)

	if err := w.Write(loginRequest("TargetName="+testTarget, "HeaderDigest=CRC32C")); err != nil {
		t.Fatalf("Write() login error = %v", err)
	}
	resp, err := r.Read()
	if err != nil {
		t.Fatalf("Read() login response error = %v", err)
	}
	parser, ok := resp.Parser().(*pdu.LoginResponseParser)
	if !ok {
		t.Fatalf("Parser() = %T, want *pdu.LoginResponseParser", resp.Parser())
	}
	if parser.Status != pdu.LoginStatusSuccess || !resp.BHS.Final || parser.NSG != pdu.LoginStageFullFeature {
		t.Fatalf("login response status %v, transit %t, NSG %v", parser.Status, resp.BHS.Final, parser.NSG)
	}
	pairs := textkey.TokenizeKeyValuePairs(string(resp.Data))
	if len(pairs) == 0 || pairs[0] != "HeaderDigest=CRC32C" {
		t.Errorf("login response pairs = %v, want HeaderDigest=CRC32C first", pairs)
	}

	// Both sides switch to header digests after login.
	w.SetDigests(digest.CRC32C{}, digest.None{})
	r.SetDigests(digest.CRC32C{}, digest.None{})

	ping := []byte("ping")
	nopParser := &pdu.NOPOutParser{TargetTransferTag: pdu.ReservedTag}
	nopParser.CmdSN = 2
	nop := pdu.New(nopParser)
	nop.BHS.Immediate = true
	nop.BHS.Final = true
	nop.BHS.InitiatorTaskTag = testITT + 1
	nop.SetData(ping)
	if err := w.Write(nop); err != nil {
		t.Fatalf("Write() NOP-Out error = %v", err)
	}

	resp, err = r.Read()
	if err != nil {
		t.Fatalf("Read() NOP-In error = %v", err)
	}
	if resp.OperationCode() != pdu.OpNOPIn {
		t.Errorf("OperationCode() = %v, want NOP-In", resp.OperationCode())
	}
	if !bytes.Equal(resp.Data, ping) {
		t.Errorf("NOP-In data = %q, want %q", resp.Data, ping)
	}
	if resp.BHS.InitiatorTaskTag != testITT+1 {
		t.Errorf("InitiatorTaskTag = %#x, want %#x", resp.BHS.InitiatorTaskTag, testITT+1)
	}

	if err := <-done; err != nil {
		t.Fatalf("server error = %v", err)
	}
	if manager.Count() != 1 {
		t.Errorf("Count() = %d, want 1", manager.Count())
	}
}

func TestConnWriteLimit(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn(server, nil)
	defer c.Close()

	c.SetMaxRecvDataSegmentLength(512)

	p := pdu.New(&pdu.NOPInParser{TargetTransferTag: pdu.ReservedTag})
	p.BHS.Final = true
	p.SetData(make([]byte, 513))
	if err := c.WritePDU(p); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("WritePDU() error = %v, want ErrMessageTooLarge", err)
	}
}

func TestConnClose(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn(server, nil)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != ErrClosed {
		t.Errorf("Close() second call error = %v, want %v", err, ErrClosed)
	}

	p := pdu.New(&pdu.NOPInParser{TargetTransferTag: pdu.ReservedTag})
	p.BHS.Final = true
	if err := c.WritePDU(p); err != ErrClosed {
		t.Errorf("WritePDU() after Close() error = %v, want %v", err, ErrClosed)
	}

	if _, err := NewConn(client, nil).ReadPDU(); err != io.EOF {
		t.Errorf("ReadPDU() from closed peer error = %v, want EOF", err)
	}
}
