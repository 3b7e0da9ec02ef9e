// Package login drives the login phase of one iSCSI connection.
//
// A Phase consumes Login Requests and produces Login Responses. It tracks
// the login stage in a state machine, gathers text continued across
// several PDUs and splits response text to the initiator's
// MaxRecvDataSegmentLength. All requests of a login negotiate in a single
// round, committed on the transit to the full feature phase and rolled
// back on failure.
//
// See RFC 3720 Section 5.3.
package login

import (
	"context"
	"fmt"

	"github.com/backkem/iscsi/pkg/datasegment"
	"github.com/backkem/iscsi/pkg/digest"
	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/looplab/fsm"
	"github.com/pion/logging"
)

// Login phase states.
const (
	StateSecurity    = "security"
	StateOperational = "operational"
	StateFullFeature = "full-feature"
	StateFailed      = "failed"
)

const (
	eventOperational = "to-operational"
	eventFullFeature = "to-full-feature"
	eventFail        = "fail"
)

// Callbacks provides callback functions for Phase events.
type Callbacks struct {
	// OnLoggedIn is called when the connection enters the full feature
	// phase.
	OnLoggedIn func(c *session.Connection)

	// OnLoginError is called when the login fails.
	OnLoginError func(err error)
}

// Config configures a Phase.
type Config struct {
	// Sessions creates and finds the sessions connections log in to.
	Sessions *session.Manager

	// Callbacks for Phase events.
	Callbacks Callbacks

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Phase is the login phase of one connection. It is not safe for
// concurrent use; requests of a connection arrive in order.
type Phase struct {
	config Config
	log    logging.LeveledLogger
	fsm    *fsm.FSM

	conn *session.Connection

	// Identity of the login, fixed by the first request.
	started bool
	itt     uint32
	isid    pdu.ISID
	tsih    uint16
	cid     uint16

	// text gathers request text across continued PDUs.
	text       *datasegment.Text
	negotiated bool

	// pending holds the rest of a continued response.
	pending        *datasegment.ChunkIterator
	pendingTransit bool
	pendingNSG     pdu.LoginStage
}

// NewPhase creates the login phase of a new connection.
func NewPhase(config Config) *Phase {
	p := &Phase{
		config: config,
		text:   datasegment.NewText(nil),
	}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("login")
	}

	p.fsm = fsm.NewFSM(
		StateSecurity,
		fsm.Events{
			{Name: eventOperational, Src: []string{StateSecurity}, Dst: StateOperational},
			{Name: eventFullFeature, Src: []string{StateSecurity, StateOperational}, Dst: StateFullFeature},
			{Name: eventFail, Src: []string{StateSecurity, StateOperational}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if p.log != nil {
					p.log.Debugf("login stage %s -> %s", e.Src, e.Dst)
				}
			},
			"enter_" + StateFullFeature: p.onFullFeature,
		},
	)
	return p
}

// State returns the current state name.
func (p *Phase) State() string {
	return p.fsm.Current()
}

// Stage returns the current login stage.
func (p *Phase) Stage() pdu.LoginStage {
	switch p.fsm.Current() {
	case StateOperational:
		return pdu.LoginStageOperationalNegotiation
	case StateFullFeature:
		return pdu.LoginStageFullFeature
	default:
		return pdu.LoginStageSecurityNegotiation
	}
}

// Done reports whether the connection reached the full feature phase.
func (p *Phase) Done() bool {
	return p.fsm.Is(StateFullFeature)
}

// Connection returns the session connection, or nil before the first
// request and after a failure.
func (p *Phase) Connection() *session.Connection {
	return p.conn
}

// Digests returns the negotiated header and data digests.
func (p *Phase) Digests() (digest.Digest, digest.Digest, error) {
	if p.conn == nil {
		return nil, nil, ErrLoginFailed
	}
	settings := p.conn.Negotiator().Settings()
	headerName, err := settings.HeaderDigest()
	if err != nil {
		return nil, nil, err
	}
	dataName, err := settings.DataDigest()
	if err != nil {
		return nil, nil, err
	}
	header, err := digest.ByName(headerName)
	if err != nil {
		return nil, nil, err
	}
	data, err := digest.ByName(dataName)
	if err != nil {
		return nil, nil, err
	}
	return header, data, nil
}

// Handle processes one Login Request and returns the Login Response to
// send. On failure the returned response carries the failure status and
// the error describes the cause; the connection should be closed after
// sending it.
func (p *Phase) Handle(ctx context.Context, req *pdu.ProtocolDataUnit) (*pdu.ProtocolDataUnit, error) {
	switch p.fsm.Current() {
	case StateFailed:
		return nil, ErrLoginFailed
	case StateFullFeature:
		return nil, ErrLoginComplete
	}

	lr, ok := req.Parser().(*pdu.LoginRequestParser)
	if !ok {
		err := fmt.Errorf("%w: %v", ErrNotLoginRequest, req.OperationCode())
		p.fail(ctx, err)
		return nil, err
	}

	if err := p.start(ctx, req, lr); err != nil {
		return p.reject(ctx, req, lr, err)
	}
	resp, err := p.handle(ctx, req, lr)
	if err != nil {
		return p.reject(ctx, req, lr, err)
	}
	return resp, nil
}

// Abort ends an unfinished login, for example when the connection drops,
// and releases its session resources. It does nothing after the login
// completed or failed.
func (p *Phase) Abort(ctx context.Context, cause error) {
	if p.fsm.Is(StateFullFeature) || p.fsm.Is(StateFailed) {
		return
	}
	p.fail(ctx, cause)
}

// start binds the login to a session on the first request and checks the
// identity of later requests.
func (p *Phase) start(ctx context.Context, req *pdu.ProtocolDataUnit, lr *pdu.LoginRequestParser) error {
	if p.started {
		if req.BHS.InitiatorTaskTag != p.itt {
			return fmt.Errorf("%w: %#x != %#x", ErrTaskTagMismatch, req.BHS.InitiatorTaskTag, p.itt)
		}
		if lr.ISID != p.isid || lr.TSIH != p.tsih || lr.ConnectionID != p.cid {
			return ErrIdentityMismatch
		}
		return nil
	}
	p.started = true
	p.itt = req.BHS.InitiatorTaskTag
	p.isid = lr.ISID
	p.tsih = lr.TSIH
	p.cid = lr.ConnectionID

	var (
		s   *session.Session
		err error
	)
	if lr.TSIH == 0 {
		s, err = p.config.Sessions.Create(lr.ISID)
	} else {
		s, err = p.config.Sessions.Join(lr.ISID, lr.TSIH)
	}
	if err != nil {
		return err
	}

	conn, err := s.AddConnection(lr.ConnectionID)
	if err != nil {
		if lr.TSIH == 0 {
			p.config.Sessions.Remove(s.TSIH())
		}
		return err
	}
	p.conn = conn
	conn.SetStatSN(lr.ExpStatSN)
	if conn.Leading() {
		s.SetExpectedCmdSN(lr.CmdSN)
	}

	// One round spans the whole login. It holds the session lock until
	// the transit to the full feature phase or a failure.
	if err := conn.Negotiator().BeginNegotiation(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNegotiationFailed, err)
	}

	// The initiator may skip the security stage.
	if lr.CSG == pdu.LoginStageOperationalNegotiation {
		return p.fsm.Event(ctx, eventOperational)
	}
	return nil
}

func (p *Phase) handle(ctx context.Context, req *pdu.ProtocolDataUnit, lr *pdu.LoginRequestParser) (*pdu.ProtocolDataUnit, error) {
	if lr.CSG != p.Stage() {
		return nil, fmt.Errorf("%w: %v, current %v", ErrStageMismatch, lr.CSG, p.Stage())
	}

	if p.pending != nil {
		if len(req.Data) > 0 || lr.Continue {
			return nil, ErrUnexpectedData
		}
		return p.nextChunk(ctx, lr)
	}

	if err := p.text.Append(req.Data); err != nil {
		return nil, err
	}
	if lr.Continue {
		return p.response(lr, false, 0, false, nil), nil
	}
	pairs := p.text.KeyValuePairs()
	p.text.Clear()

	var response []string
	if lr.CSG == pdu.LoginStageSecurityNegotiation {
		var err error
		if pairs, err = authenticate(pairs, &response); err != nil {
			return nil, err
		}
	}

	negotiator := p.conn.Negotiator()
	round := negotiation.Round{
		Stage:      lr.CSG,
		Leading:    p.conn.Leading(),
		InitialPDU: !p.negotiated,
	}
	p.negotiated = true
	if round.InitialPDU && !round.Leading {
		if err := negotiator.CheckSessionIdentity(pairs); err != nil {
			return nil, err
		}
	}
	if !negotiator.Negotiate(round, pairs, &response) {
		return nil, ErrNegotiationFailed
	}
	if req.BHS.Final && lr.NSG == pdu.LoginStageFullFeature {
		if err := negotiator.CheckConstraints(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNegotiationFailed, err)
		}
	}

	maxLen, err := p.maxRecvDataSegmentLength()
	if err != nil {
		return nil, err
	}
	chunks, err := datasegment.NewText(response).Chunks(maxLen)
	if err != nil {
		return nil, err
	}
	p.pending = chunks
	p.pendingTransit = req.BHS.Final
	p.pendingNSG = lr.NSG
	return p.nextChunk(ctx, lr)
}

// maxRecvDataSegmentLength returns the initiator's receive limit as
// declared so far in the open round.
func (p *Phase) maxRecvDataSegmentLength() (int, error) {
	e, ok := p.conn.Negotiator().Entry(textkey.KeyMaxRecvDataSegmentLength.String()).(*negotiation.NumericalEntry)
	if !ok {
		return 0, negotiation.ErrMissingValue
	}
	return e.Value()
}

// nextChunk returns the next piece of the pending response text. Only the
// last piece carries the transit flag.
func (p *Phase) nextChunk(ctx context.Context, lr *pdu.LoginRequestParser) (*pdu.ProtocolDataUnit, error) {
	c := p.pending.Next()
	if !c.Last {
		return p.response(lr, false, 0, true, c.Data), nil
	}
	p.pending = nil

	resp := p.response(lr, p.pendingTransit, p.pendingNSG, false, c.Data)
	if p.pendingTransit {
		event := eventOperational
		if p.pendingNSG == pdu.LoginStageFullFeature {
			event = eventFullFeature
			p.conn.Negotiator().FinishNegotiation(true)
		}
		if err := p.fsm.Event(ctx, event); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (p *Phase) response(lr *pdu.LoginRequestParser, transit bool, nsg pdu.LoginStage, cont bool, data []byte) *pdu.ProtocolDataUnit {
	s := p.conn.Session()
	parser := &pdu.LoginResponseParser{Status: pdu.LoginStatusSuccess}
	parser.Continue = cont
	parser.CSG = lr.CSG
	parser.ISID = lr.ISID
	parser.TSIH = lr.TSIH
	if transit {
		parser.NSG = nsg
		if nsg == pdu.LoginStageFullFeature {
			parser.TSIH = s.TSIH()
		}
	}
	parser.StatSN = p.conn.NextStatSN()
	parser.ExpCmdSN = s.ExpectedCmdSN()
	parser.MaxCmdSN = s.ExpectedCmdSN()

	resp := pdu.New(parser)
	resp.BHS.Final = transit
	resp.BHS.InitiatorTaskTag = p.itt
	resp.SetData(data)
	return resp
}

// reject builds the failure response for cause and fails the phase.
func (p *Phase) reject(ctx context.Context, req *pdu.ProtocolDataUnit, lr *pdu.LoginRequestParser, cause error) (*pdu.ProtocolDataUnit, error) {
	status := statusFor(cause)
	parser := &pdu.LoginResponseParser{Status: status}
	parser.CSG = lr.CSG
	parser.ISID = lr.ISID
	parser.TSIH = lr.TSIH
	if p.conn != nil {
		parser.StatSN = p.conn.NextStatSN()
		parser.ExpCmdSN = p.conn.Session().ExpectedCmdSN()
		parser.MaxCmdSN = parser.ExpCmdSN
	}
	resp := pdu.New(parser)
	resp.BHS.InitiatorTaskTag = req.BHS.InitiatorTaskTag

	p.fail(ctx, cause)
	return resp, fmt.Errorf("login rejected with %v: %w", status, cause)
}

func (p *Phase) fail(ctx context.Context, cause error) {
	if err := p.fsm.Event(ctx, eventFail); err != nil && p.log != nil {
		p.log.Warnf("login fail transition: %v", err)
	}
	if p.conn != nil {
		p.conn.Negotiator().FinishNegotiation(false)
		p.config.Sessions.Release(p.conn)
		p.conn = nil
	}
	if p.log != nil {
		p.log.Infof("login failed: %v", cause)
	}
	if p.config.Callbacks.OnLoginError != nil {
		p.config.Callbacks.OnLoginError(cause)
	}
}

func (p *Phase) onFullFeature(_ context.Context, _ *fsm.Event) {
	if p.log != nil {
		p.log.Infof("%s: connection %d logged in", p.conn.Session(), p.conn.CID())
	}
	if p.config.Callbacks.OnLoggedIn != nil {
		p.config.Callbacks.OnLoggedIn(p.conn)
	}
}
