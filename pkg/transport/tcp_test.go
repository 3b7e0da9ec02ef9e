package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/backkem/iscsi/pkg/login"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/pion/transport/v3/test"
)

func TestNewTCP(t *testing.T) {
	handler := func(context.Context, *Conn) {}

	t.Run("with handler", func(t *testing.T) {
		tcp, err := NewTCP(TCPConfig{
			ListenAddr: "127.0.0.1:0",
			Handler:    handler,
		})
		if err != nil {
			t.Fatalf("NewTCP() error = %v", err)
		}
		defer tcp.Stop()

		if tcp.listener == nil {
			t.Error("NewTCP() listener is nil")
		}
	})

	t.Run("without handler", func(t *testing.T) {
		_, err := NewTCP(TCPConfig{
			ListenAddr: "127.0.0.1:0",
		})
		if err != ErrNoHandler {
			t.Errorf("NewTCP() error = %v, want %v", err, ErrNoHandler)
		}
	})

	t.Run("with injected listener", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}

		tcp, err := NewTCP(TCPConfig{
			Listener: listener,
			Handler:  handler,
		})
		if err != nil {
			t.Fatalf("NewTCP() error = %v", err)
		}
		defer tcp.Stop()

		if tcp.listener != listener {
			t.Error("NewTCP() did not use injected listener")
		}
		if tcp.LocalAddr().String() != listener.Addr().String() {
			t.Errorf("LocalAddr() = %v, want %v", tcp.LocalAddr(), listener.Addr())
		}
	})
}

func TestTCPStartStop(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	tcp, err := NewTCP(TCPConfig{
		ListenAddr: "127.0.0.1:0",
		Handler:    func(context.Context, *Conn) {},
	})
	if err != nil {
		t.Fatalf("NewTCP() error = %v", err)
	}

	if err := tcp.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}

	// Double start should fail
	if err := tcp.Start(); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := tcp.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	// Double stop should fail
	if err := tcp.Stop(); err != ErrClosed {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrClosed)
	}

	if err := tcp.Start(); err != ErrClosed {
		t.Errorf("Start() after Stop() error = %v, want %v", err, ErrClosed)
	}
}

func TestTCPStopCancelsHandlers(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()
	report := test.CheckRoutines(t)
	defer report()

	started := make(chan struct{})
	tcp, err := NewTCP(TCPConfig{
		ListenAddr: "127.0.0.1:0",
		Handler: func(ctx context.Context, c *Conn) {
			close(started)
			// Blocks until Stop closes the connection.
			if _, err := c.ReadPDU(); err == nil {
				t.Error("ReadPDU() succeeded on an idle connection")
			}
			<-ctx.Done()
		},
	})
	if err != nil {
		t.Fatalf("NewTCP() error = %v", err)
	}
	if err := tcp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client, err := net.Dial("tcp", tcp.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	<-started
	if n := tcp.ConnectionCount(); n != 1 {
		t.Errorf("ConnectionCount() = %d, want 1", n)
	}

	if err := tcp.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n := tcp.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount() after Stop() = %d, want 0", n)
	}
	if tcp.AddConnection(client) {
		t.Error("AddConnection() after Stop() = true, want false")
	}
}

func TestTCPLoginRejected(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()
	report := test.CheckRoutines(t)
	defer report()

	manager := newTestManager()
	loginErr := make(chan error, 1)
	tcp, err := NewTCP(TCPConfig{
		ListenAddr: "127.0.0.1:0",
		Handler: func(ctx context.Context, c *Conn) {
			_, err := c.Login(ctx, login.NewPhase(login.Config{Sessions: manager}))
			loginErr <- err
		},
	})
	if err != nil {
		t.Fatalf("NewTCP() error = %v", err)
	}
	if err := tcp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer tcp.Stop()

	client, err := net.Dial("tcp", tcp.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	w := pdu.NewWriter(client)
	r := pdu.NewReader(client)
	if err := w.Write(loginRequest("TargetName=iqn.2024-01.com.example:missing")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	resp, err := r.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	parser, ok := resp.Parser().(*pdu.LoginResponseParser)
	if !ok {
		t.Fatalf("Parser() = %T, want *pdu.LoginResponseParser", resp.Parser())
	}
	if parser.Status != pdu.LoginStatusInitiatorError {
		t.Errorf("Status = %v, want InitiatorError", parser.Status)
	}

	if err := <-loginErr; !errors.Is(err, login.ErrNegotiationFailed) {
		t.Errorf("Login() error = %v, want ErrNegotiationFailed", err)
	}

	// The portal closes the connection after a failed login.
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("Read() after rejection error = %v, want EOF", err)
	}
	if manager.Count() != 0 {
		t.Errorf("sessions after failed login = %d, want 0", manager.Count())
	}
}
