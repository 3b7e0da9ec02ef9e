package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
)

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err != ErrInvalidTSIH {
		t.Errorf("New() with TSIH 0 error = %v, want ErrInvalidTSIH", err)
	}
	_, err := New(Config{TSIH: 1, Negotiation: negotiation.Config{HeaderDigests: []string{"MD5"}}})
	if !errors.Is(err, negotiation.ErrUnsupportedDigest) {
		t.Errorf("New() with bad digest error = %v, want ErrUnsupportedDigest", err)
	}
}

func TestSession_NextTargetTransferTag(t *testing.T) {
	s := createTestSession(t, 1, pdu.ISID{})

	t.Run("increments", func(t *testing.T) {
		a := s.NextTargetTransferTag()
		b := s.NextTargetTransferTag()
		if b != a+1 {
			t.Errorf("NextTargetTransferTag() = %d after %d, want %d", b, a, a+1)
		}
	})

	t.Run("skips reserved tag", func(t *testing.T) {
		s.targetTransferTag.Store(pdu.ReservedTag - 1)
		if got := s.NextTargetTransferTag(); got != 0 {
			t.Errorf("NextTargetTransferTag() = %#x, want 0", got)
		}
	})

	t.Run("unique under concurrency", func(t *testing.T) {
		s := createTestSession(t, 2, pdu.ISID{})
		const n = 8
		const per = 100
		tags := make(chan uint32, n*per)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < per; j++ {
					tags <- s.NextTargetTransferTag()
				}
			}()
		}
		wg.Wait()
		close(tags)

		seen := make(map[uint32]bool)
		for tag := range tags {
			if seen[tag] {
				t.Fatalf("duplicate tag %d", tag)
			}
			seen[tag] = true
		}
	})
}

func TestSession_AcceptCommand(t *testing.T) {
	s := createTestSession(t, 1, pdu.ISID{})
	s.SetExpectedCmdSN(10)

	tests := []struct {
		name      string
		sn        uint32
		immediate bool
		want      bool
		wantExp   uint32
	}{
		{"expected", 10, false, true, 11},
		{"stale", 10, false, false, 11},
		{"immediate", 5, true, true, 11},
		{"next", 11, false, true, 12},
	}
	for _, tc := range tests {
		got := s.AcceptCommand(tc.sn, tc.immediate)
		if got != tc.want {
			t.Errorf("%s: AcceptCommand(%d) = %t, want %t", tc.name, tc.sn, got, tc.want)
		}
		if s.ExpectedCmdSN() != tc.wantExp {
			t.Errorf("%s: ExpectedCmdSN() = %d, want %d", tc.name, s.ExpectedCmdSN(), tc.wantExp)
		}
	}
}

func TestSession_AddConnection(t *testing.T) {
	s := createTestSession(t, 1, pdu.ISID{})

	leading, err := s.AddConnection(3)
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}
	if !leading.Leading() {
		t.Error("first connection should be leading")
	}
	if cid, ok := s.LeadingCID(); !ok || cid != 3 {
		t.Errorf("LeadingCID() = %d, %t, want 3, true", cid, ok)
	}
	if leading.Negotiator().Session() != s.Negotiator() {
		t.Error("connection negotiator is not bound to the session negotiator")
	}

	if _, err := s.AddConnection(3); !errors.Is(err, ErrDuplicateConnection) {
		t.Errorf("AddConnection() duplicate error = %v, want ErrDuplicateConnection", err)
	}

	// MaxConnections defaults to 1.
	if _, err := s.AddConnection(4); !errors.Is(err, ErrTooManyConnections) {
		t.Errorf("AddConnection() error = %v, want ErrTooManyConnections", err)
	}

	if left := leading.Close(); left != 0 {
		t.Errorf("Close() = %d, want 0", left)
	}
	if s.Connection(3) != nil {
		t.Error("Connection() should return nil after Close()")
	}
}

func TestSession_MaxConnectionsNegotiated(t *testing.T) {
	s, err := New(Config{TSIH: 1, Negotiation: negotiation.Config{MaxConnections: 4}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c, err := s.AddConnection(1)
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}

	round := negotiation.Round{Stage: pdu.LoginStageOperationalNegotiation, Leading: true}
	ok, err := c.Negotiator().WithNegotiation(context.Background(), func() bool {
		var response []string
		return c.Negotiator().Negotiate(round, []string{"MaxConnections=4"}, &response)
	})
	if err != nil || !ok {
		t.Fatalf("WithNegotiation() = %t, %v", ok, err)
	}

	second, err := s.AddConnection(2)
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}
	if second.Leading() {
		t.Error("second connection should not be leading")
	}
	if s.ConnectionCount() != 2 {
		t.Errorf("ConnectionCount() = %d, want 2", s.ConnectionCount())
	}
}

func TestConnection_StatSN(t *testing.T) {
	s := createTestSession(t, 1, pdu.ISID{})
	c, err := s.AddConnection(1)
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}

	c.SetStatSN(100)
	if got := c.NextStatSN(); got != 100 {
		t.Errorf("NextStatSN() = %d, want 100", got)
	}
	if got := c.StatSN(); got != 101 {
		t.Errorf("StatSN() = %d, want 101", got)
	}
}
