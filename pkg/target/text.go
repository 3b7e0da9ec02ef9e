package target

import (
	"context"

	"github.com/backkem/iscsi/pkg/datasegment"
	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/backkem/iscsi/pkg/transport"
)

// textExchange is one Text Request/Response exchange, identified by the
// initiator task tag.
type textExchange struct {
	itt uint32
	// ttt is the transfer tag the initiator must echo, or the reserved tag
	// before the target answered with F=0.
	ttt     uint32
	request *datasegment.Text
	pending *datasegment.ChunkIterator
}

// textHandler answers the Text Requests of one full feature connection:
// SendTargets and parameter negotiation (RFC 3720 Section 10.10).
type textHandler struct {
	t    *Target
	conn *session.Connection
	c    *transport.Conn

	exchange *textExchange
	answered bool
}

func newTextHandler(t *Target, conn *session.Connection, c *transport.Conn) *textHandler {
	return &textHandler{t: t, conn: conn, c: c}
}

func (h *textHandler) handle(ctx context.Context, req *pdu.ProtocolDataUnit, p *pdu.TextRequestParser) error {
	ex := h.exchange
	if ex == nil || ex.itt != req.BHS.InitiatorTaskTag {
		// A new task tag abandons the previous exchange.
		ex = &textExchange{
			itt:     req.BHS.InitiatorTaskTag,
			ttt:     pdu.ReservedTag,
			request: datasegment.NewText(nil),
		}
		h.exchange = ex
	}
	if p.TargetTransferTag != ex.ttt {
		h.exchange = nil
		return h.t.reject(h.conn, h.c, req, pdu.RejectProtocolError)
	}

	if ex.pending != nil {
		if len(req.Data) > 0 || p.Continue {
			h.exchange = nil
			return h.t.reject(h.conn, h.c, req, pdu.RejectProtocolError)
		}
		return h.nextChunk()
	}

	if err := ex.request.Append(req.Data); err != nil {
		h.exchange = nil
		return h.t.reject(h.conn, h.c, req, pdu.RejectProtocolError)
	}
	if p.Continue {
		if ex.ttt == pdu.ReservedTag {
			ex.ttt = h.conn.Session().NextTargetTransferTag()
		}
		return h.respond(ex.itt, ex.ttt, false, false, nil)
	}
	pairs := ex.request.KeyValuePairs()
	ex.request.Clear()

	response := h.answer(ctx, pairs)
	maxLen, err := h.conn.Negotiator().Settings().MaxRecvDataSegmentLength()
	if err != nil {
		return err
	}
	chunks, err := datasegment.NewText(response).Chunks(maxLen)
	if err != nil {
		return err
	}
	ex.pending = chunks
	return h.nextChunk()
}

// nextChunk sends the next piece of the pending response. Only the last
// piece is final.
func (h *textHandler) nextChunk() error {
	ex := h.exchange
	c := ex.pending.Next()
	if c.Last {
		h.exchange = nil
		return h.respond(ex.itt, pdu.ReservedTag, true, false, c.Data)
	}
	if ex.ttt == pdu.ReservedTag {
		ex.ttt = h.conn.Session().NextTargetTransferTag()
	}
	return h.respond(ex.itt, ex.ttt, false, true, c.Data)
}

func (h *textHandler) respond(itt, ttt uint32, final, cont bool, data []byte) error {
	resp := pdu.New(&pdu.TextResponseParser{
		TargetSequence:    sequence(h.conn),
		Continue:          cont,
		TargetTransferTag: ttt,
	})
	resp.BHS.Final = final
	resp.BHS.InitiatorTaskTag = itt
	resp.SetData(data)
	return h.c.WritePDU(resp)
}

// answer returns the response pairs of a complete request.
func (h *textHandler) answer(ctx context.Context, pairs []string) []string {
	if len(pairs) == 1 {
		key, value, err := textkey.SplitKeyValuePair(pairs[0])
		if err == nil && textkey.KeySendTargets.KeySet().Matches(key) {
			return h.t.sendTargets(value, h.conn, h.c)
		}
	}

	negotiator := h.conn.Negotiator()
	round := negotiation.Round{
		Stage:      pdu.LoginStageFullFeature,
		Leading:    h.conn.Leading(),
		InitialPDU: !h.answered,
	}
	h.answered = true

	var response []string
	ok, err := negotiator.WithNegotiation(ctx, func() bool {
		return negotiator.Negotiate(round, pairs, &response)
	})
	if err != nil || !ok {
		if h.t.log != nil {
			h.t.log.Debugf("%s: text negotiation failed: %v", h.c.RemoteAddr(), err)
		}
		return response
	}
	if n, err := negotiator.Settings().MaxRecvDataSegmentLength(); err == nil {
		h.c.SetMaxRecvDataSegmentLength(n)
	}
	return response
}

// sendTargets answers SendTargets=value. A discovery session may ask for
// All or a target name; a normal session may ask for its own target with
// an empty value or for a target name. Anything else is answered with no
// records.
func (t *Target) sendTargets(value string, conn *session.Connection, c *transport.Conn) []string {
	portal := t.config.Portal
	address := textkey.ToKeyValuePair(textkey.KeyTargetAddress.String(), portal.PortalAddress(c.LocalAddr()))
	record := func(name string) []string {
		return []string{textkey.ToKeyValuePair(textkey.KeyTargetName.String(), name), address}
	}
	discovery := conn.Session().Discovery()

	switch {
	case value == textkey.All:
		if !discovery {
			return nil
		}
		var pairs []string
		for _, target := range portal.Targets {
			pairs = append(pairs, record(target.Name)...)
		}
		return pairs

	case value == "":
		if discovery {
			return nil
		}
		name, err := conn.Negotiator().Settings().TargetName()
		if err != nil {
			return nil
		}
		return record(name)
	}

	if _, ok := portal.Target(value); ok {
		return record(value)
	}
	return nil
}
