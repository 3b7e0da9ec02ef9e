package target

import (
	"fmt"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/backkem/iscsi/pkg/config"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/transport/v3/test"
)

const otherTarget = "iqn.2024-01.com.example:disk2"

func textRequest(itt, ttt, cmdSN uint32, cont bool, pairs ...string) *pdu.ProtocolDataUnit {
	parser := &pdu.TextRequestParser{Continue: cont, TargetTransferTag: ttt}
	parser.CmdSN = cmdSN
	req := pdu.New(parser)
	req.BHS.Final = !cont
	req.BHS.InitiatorTaskTag = itt
	if len(pairs) > 0 {
		req.SetData([]byte(textkey.JoinKeyValuePairs(pairs)))
	}
	return req
}

func textResponse(t *testing.T, resp *pdu.ProtocolDataUnit) (*pdu.TextResponseParser, []string) {
	t.Helper()
	parser, ok := resp.Parser().(*pdu.TextResponseParser)
	if !ok {
		t.Fatalf("Parser() = %T, want *pdu.TextResponseParser", resp.Parser())
	}
	return parser, textkey.TokenizeKeyValuePairs(string(resp.Data))
}

// startTextTarget starts a target with two targets and returns an
// initiator connected over a pipe.
func startTextTarget(t *testing.T, loggedIn chan *session.Connection) (*Target, *initiator, net.Conn) {
	t.Helper()
	portal := testPortal()
	portal.TargetAddress = "10.0.0.5"
	portal.Targets = append(portal.Targets, config.Target{Name: otherTarget})

	tgt := newTestTarget(t, Config{Portal: portal})
	if loggedIn != nil {
		tgt.config.Callbacks.OnLoggedIn = func(c *session.Connection) { loggedIn <- c }
	}
	if err := tgt.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	client, server := net.Pipe()
	if !tgt.AddConnection(server) {
		t.Fatal("AddConnection() = false")
	}
	return tgt, &initiator{t: t, w: pdu.NewWriter(client), r: pdu.NewReader(client)}, client
}

func TestTargetSendTargets(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	address := "TargetAddress=10.0.0.5:3260,1"
	tests := []struct {
		name      string
		discovery bool
		value     string
		want      []string
	}{
		{
			name:      "discovery all",
			discovery: true,
			value:     textkey.All,
			want:      []string{"TargetName=" + testTarget, address, "TargetName=" + otherTarget, address},
		},
		{
			name:      "discovery named target",
			discovery: true,
			value:     otherTarget,
			want:      []string{"TargetName=" + otherTarget, address},
		},
		{name: "discovery empty value", discovery: true},
		{name: "discovery unknown target", discovery: true, value: "iqn.2024-01.com.example:nope"},
		{
			name: "normal session own target",
			want: []string{"TargetName=" + testTarget, address},
		},
		{name: "normal session all", value: textkey.All},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tgt, i, client := startTextTarget(t, nil)
			defer tgt.Stop()
			defer client.Close()

			if tc.discovery {
				i.loginWith("InitiatorName="+testInitiator, "SessionType=Discovery")
			} else {
				i.login()
			}

			resp := i.exchange(textRequest(5, pdu.ReservedTag, 1, false, "SendTargets="+tc.value))
			parser, pairs := textResponse(t, resp)
			if !resp.BHS.Final || parser.Continue {
				t.Errorf("final = %t, continue = %t, want true, false", resp.BHS.Final, parser.Continue)
			}
			if parser.TargetTransferTag != pdu.ReservedTag {
				t.Errorf("TargetTransferTag = %#x, want reserved", parser.TargetTransferTag)
			}
			if resp.BHS.InitiatorTaskTag != 5 {
				t.Errorf("InitiatorTaskTag = %d, want 5", resp.BHS.InitiatorTaskTag)
			}
			if len(pairs) != 0 || len(tc.want) != 0 {
				if !reflect.DeepEqual(pairs, tc.want) {
					t.Errorf("SendTargets pairs = %v, want %v", pairs, tc.want)
				}
			}
		})
	}
}

func TestTargetTextNegotiation(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()
	report := test.CheckRoutines(t)
	defer report()

	loggedIn := make(chan *session.Connection, 1)
	tgt, i, client := startTextTarget(t, loggedIn)
	defer tgt.Stop()
	defer client.Close()
	i.login()
	conn := <-loggedIn

	resp := i.exchange(textRequest(6, pdu.ReservedTag, 1, false,
		"MaxRecvDataSegmentLength=512", "InitiatorAlias=host", "MaxBurstLength=4096"))
	_, pairs := textResponse(t, resp)
	// MaxBurstLength may only be negotiated during login.
	if len(pairs) != 0 {
		t.Errorf("response pairs = %v, want none", pairs)
	}
	if n, _ := conn.Negotiator().Settings().MaxBurstLength(); n == 4096 {
		t.Error("MaxBurstLength changed in the full feature phase")
	}

	resp = i.exchange(textRequest(7, pdu.ReservedTag, 1, false, "MaxRecvDataSegmentLength=512"))
	if _, pairs = textResponse(t, resp); len(pairs) != 0 {
		t.Errorf("response pairs = %v, want none", pairs)
	}
	n, err := conn.Negotiator().Settings().MaxRecvDataSegmentLength()
	if err != nil || n != 512 {
		t.Fatalf("MaxRecvDataSegmentLength() = %d, %v, want 512", n, err)
	}

	// A long answer is split and continued on empty requests.
	var request, want []string
	for k := 0; k < 30; k++ {
		key := fmt.Sprintf("X-com.example.key%02d", k)
		request = append(request, key+"=1")
		want = append(want, key+"=NotUnderstood")
	}
	req := textRequest(8, pdu.ReservedTag, 2, false, request...)
	var data []byte
	for n := 0; ; n++ {
		if n > 10 {
			t.Fatal("text response never completed")
		}
		resp := i.exchange(req)
		parser, _ := textResponse(t, resp)
		if len(resp.Data) > 512 {
			t.Errorf("text response of %d bytes exceeds MaxRecvDataSegmentLength", len(resp.Data))
		}
		data = append(data, resp.Data...)
		if resp.BHS.Final {
			if parser.TargetTransferTag != pdu.ReservedTag {
				t.Errorf("final TargetTransferTag = %#x, want reserved", parser.TargetTransferTag)
			}
			break
		}
		if !parser.Continue || parser.TargetTransferTag == pdu.ReservedTag {
			t.Fatalf("continued response: continue = %t, TargetTransferTag = %#x", parser.Continue, parser.TargetTransferTag)
		}
		req = textRequest(8, parser.TargetTransferTag, 3, false)
	}
	if got := textkey.TokenizeKeyValuePairs(string(data)); !reflect.DeepEqual(got, want) {
		t.Errorf("reassembled pairs = %v, want %v", got, want)
	}

	// A transfer tag the target never issued is a protocol error.
	resp = i.exchange(textRequest(9, 0x1234, 3, false, "X-com.example.key=1"))
	reject, ok := resp.Parser().(*pdu.RejectParser)
	if !ok {
		t.Fatalf("Parser() = %T, want *pdu.RejectParser", resp.Parser())
	}
	if reject.Reason != pdu.RejectProtocolError {
		t.Errorf("Reason = %v, want %v", reject.Reason, pdu.RejectProtocolError)
	}
}

func TestTargetContinuedTextRequest(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	tgt, i, client := startTextTarget(t, nil)
	defer tgt.Stop()
	defer client.Close()
	i.loginWith("InitiatorName="+testInitiator, "SessionType=Discovery")

	payload := []byte(textkey.JoinKeyValuePairs([]string{"SendTargets=" + textkey.All}))
	first := textRequest(10, pdu.ReservedTag, 1, true)
	first.SetData(payload[:5])
	resp := i.exchange(first)
	parser, pairs := textResponse(t, resp)
	if resp.BHS.Final || parser.Continue || len(pairs) != 0 {
		t.Fatalf("continued request acknowledgement = final %t, continue %t, pairs %v", resp.BHS.Final, parser.Continue, pairs)
	}
	if parser.TargetTransferTag == pdu.ReservedTag {
		t.Fatal("acknowledgement without a TargetTransferTag")
	}

	second := textRequest(10, parser.TargetTransferTag, 1, false)
	second.SetData(payload[5:])
	resp = i.exchange(second)
	_, pairs = textResponse(t, resp)
	if !resp.BHS.Final || len(pairs) != 4 {
		t.Errorf("final = %t, pairs = %v, want 4 SendTargets pairs", resp.BHS.Final, pairs)
	}
}
