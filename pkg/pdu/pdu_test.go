package pdu

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/backkem/iscsi/pkg/datasegment"
	"github.com/backkem/iscsi/pkg/digest"
)

func roundtripCases() []struct {
	name      string
	immediate bool
	final     bool
	parser    MessageParser
	data      []byte
} {
	return []struct {
		name      string
		immediate bool
		final     bool
		parser    MessageParser
		data      []byte
	}{
		{
			name:      "NOP-Out ping",
			immediate: true,
			final:     true,
			parser: &NOPOutParser{
				InitiatorSequence: InitiatorSequence{CmdSN: 5, ExpStatSN: 6},
				LogicalUnitNumber: 2,
				TargetTransferTag: ReservedTag,
			},
			data: []byte("ping"),
		},
		{
			name:  "SCSI Command read",
			final: true,
			parser: &SCSICommandParser{
				InitiatorSequence:          InitiatorSequence{CmdSN: 10, ExpStatSN: 3},
				Read:                       true,
				TaskAttributes:             TaskAttributesSimple,
				LogicalUnitNumber:          0x0001000000000000,
				ExpectedDataTransferLength: 4096,
				CDB:                        [16]byte{0x28, 0, 0, 0, 0, 0x10, 0, 0, 0x08, 0},
			},
		},
		{
			name:  "Task Management abort",
			final: true,
			parser: &TaskManagementRequestParser{
				InitiatorSequence: InitiatorSequence{CmdSN: 11, ExpStatSN: 4},
				Function:          TaskManagementAbortTask,
				ReferencedTaskTag: 0x42,
				RefCmdSN:          9,
				ExpDataSN:         1,
			},
		},
		{
			name:  "Login Request",
			final: true,
			parser: &LoginRequestParser{
				InitiatorSequence: InitiatorSequence{CmdSN: 1},
				loginFields: loginFields{
					CSG:  LoginStageSecurityNegotiation,
					NSG:  LoginStageOperationalNegotiation,
					ISID: ISID{0x80, 0x12, 0x34, 0x56, 0x78, 0x9a},
				},
				ConnectionID: 1,
			},
			data: []byte("InitiatorName=iqn.2024-01.org.example:host\x00AuthMethod=None\x00"),
		},
		{
			name:  "Text Request",
			final: true,
			parser: &TextRequestParser{
				InitiatorSequence: InitiatorSequence{CmdSN: 2, ExpStatSN: 2},
				TargetTransferTag: ReservedTag,
			},
			data: []byte("SendTargets=All\x00"),
		},
		{
			name:  "Data-Out",
			final: true,
			parser: &DataOutParser{
				LogicalUnitNumber: 1,
				TargetTransferTag: 7,
				ExpStatSN:         8,
				DataSN:            2,
				BufferOffset:      8192,
			},
			data: bytes.Repeat([]byte{0xab}, 13),
		},
		{
			name:  "Logout Request",
			final: true,
			parser: &LogoutRequestParser{
				InitiatorSequence: InitiatorSequence{CmdSN: 20, ExpStatSN: 19},
				Reason:            LogoutCloseConnection,
				ConnectionID:      3,
			},
		},
		{
			name:  "SNACK Request",
			final: true,
			parser: &SNACKRequestParser{
				Type:              SNACKStatus,
				TargetTransferTag: ReservedTag,
				ExpStatSN:         5,
				BegRun:            2,
				RunLength:         1,
			},
		},
		{
			name:  "NOP-In",
			final: true,
			parser: &NOPInParser{
				TargetSequence:    TargetSequence{StatSN: 1, ExpCmdSN: 2, MaxCmdSN: 33},
				TargetTransferTag: ReservedTag,
			},
			data: []byte("pong!"),
		},
		{
			name:  "SCSI Response with sense",
			final: true,
			parser: &SCSIResponseParser{
				TargetSequence:    TargetSequence{StatSN: 4, ExpCmdSN: 11, MaxCmdSN: 42},
				ResidualUnderflow: true,
				Status:            SCSIStatusCheckCondition,
				ResidualCount:     512,
			},
			data: []byte{0x00, 0x03, 0x70, 0x00, 0x05},
		},
		{
			name:  "Task Management Response",
			final: true,
			parser: &TaskManagementResponseParser{
				TargetSequence: TargetSequence{StatSN: 5, ExpCmdSN: 12, MaxCmdSN: 43},
				Response:       TaskManagementTaskDoesNotExist,
			},
		},
		{
			name:  "Login Response",
			final: true,
			parser: &LoginResponseParser{
				TargetSequence: TargetSequence{StatSN: 1, ExpCmdSN: 1, MaxCmdSN: 1},
				loginFields: loginFields{
					CSG:  LoginStageOperationalNegotiation,
					NSG:  LoginStageFullFeature,
					ISID: ISID{0x80, 0x12, 0x34, 0x56, 0x78, 0x9a},
					TSIH: 1,
				},
				Status: LoginStatusSuccess,
			},
			data: []byte("MaxBurstLength=1000\x00"),
		},
		{
			name: "Text Response continued",
			parser: &TextResponseParser{
				TargetSequence:    TargetSequence{StatSN: 2, ExpCmdSN: 3, MaxCmdSN: 34},
				Continue:          true,
				TargetTransferTag: 0x10,
			},
			data: []byte("TargetName=iqn.example:disk1\x00"),
		},
		{
			name:  "Data-In with status",
			final: true,
			parser: &DataInParser{
				TargetSequence:    TargetSequence{StatSN: 6, ExpCmdSN: 12, MaxCmdSN: 43},
				StatusPresent:     true,
				ResidualOverflow:  true,
				Status:            SCSIStatusGood,
				TargetTransferTag: ReservedTag,
				DataSN:            3,
				BufferOffset:      1024,
				ResidualCount:     16,
			},
			data: bytes.Repeat([]byte{0x5a}, 7),
		},
		{
			name:  "Logout Response",
			final: true,
			parser: &LogoutResponseParser{
				TargetSequence: TargetSequence{StatSN: 7, ExpCmdSN: 21, MaxCmdSN: 52},
				Response:       LogoutConnectionClosed,
				Time2Wait:      2,
				Time2Retain:    20,
			},
		},
		{
			name:  "Ready To Transfer",
			final: true,
			parser: &ReadyToTransferParser{
				TargetSequence:            TargetSequence{StatSN: 8, ExpCmdSN: 12, MaxCmdSN: 43},
				LogicalUnitNumber:         1,
				TargetTransferTag:         0x99,
				R2TSN:                     1,
				BufferOffset:              65536,
				DesiredDataTransferLength: 65536,
			},
		},
		{
			name:  "Asynchronous Message",
			final: true,
			parser: &AsyncMessageParser{
				TargetSequence: TargetSequence{StatSN: 9, ExpCmdSN: 12, MaxCmdSN: 43},
				Event:          AsyncEventLogoutRequest,
				Parameter3:     5,
			},
		},
		{
			name:  "Reject",
			final: true,
			parser: &RejectParser{
				TargetSequence: TargetSequence{StatSN: 10, ExpCmdSN: 12, MaxCmdSN: 43},
				Reason:         RejectProtocolError,
			},
			data: make([]byte, BHSSize),
		},
	}
}

func TestPDURoundtrip(t *testing.T) {
	digests := []struct {
		name         string
		header, data digest.Digest
	}{
		{"No digests", nil, nil},
		{"CRC32C", digest.CRC32C{}, digest.CRC32C{}},
	}

	for _, d := range digests {
		for _, tc := range roundtripCases() {
			t.Run(d.name+"/"+tc.name, func(t *testing.T) {
				p := New(tc.parser)
				p.BHS.Immediate = tc.immediate
				p.BHS.Final = tc.final
				p.BHS.InitiatorTaskTag = 0x1234
				p.SetData(tc.data)
				p.SetDigests(d.header, d.data)

				encoded, err := p.Encode()
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				if len(encoded) != p.Size() {
					t.Errorf("len(Encode()) = %d, want Size() %d", len(encoded), p.Size())
				}
				if len(encoded)%4 != 0 {
					t.Errorf("len(Encode()) = %d, not a multiple of 4", len(encoded))
				}

				decoded := &ProtocolDataUnit{}
				decoded.SetDigests(d.header, d.data)
				n, err := decoded.Decode(encoded)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if n != len(encoded) {
					t.Errorf("Decode() consumed %d, want %d", n, len(encoded))
				}
				if !reflect.DeepEqual(decoded.BHS, p.BHS) {
					t.Errorf("Decode() BHS = %+v, want %+v", decoded.BHS, p.BHS)
				}
				if !bytes.Equal(decoded.Data, p.Data) {
					t.Errorf("Decode() Data = %x, want %x", decoded.Data, p.Data)
				}
			})
		}
	}
}

func TestPDUSize(t *testing.T) {
	tests := []struct {
		name   string
		parser MessageParser
		data   []byte
		digest digest.Digest
		want   int
	}{
		{"Header only", &NOPOutParser{}, nil, nil, 48},
		{"Padded data", &NOPOutParser{}, []byte{1, 2, 3, 4, 5}, nil, 56},
		{"Header digest without data", &NOPOutParser{}, nil, digest.CRC32C{}, 52},
		{"Both digests", &NOPOutParser{}, []byte{1, 2, 3, 4, 5}, digest.CRC32C{}, 64},
		{"Login ignores digests", &LoginRequestParser{}, []byte{1, 2, 3, 4, 5}, digest.CRC32C{}, 56},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := New(tc.parser)
			p.SetData(tc.data)
			p.SetDigests(tc.digest, tc.digest)
			if got := p.Size(); got != tc.want {
				t.Errorf("Size() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPDUDataDigestBitFlip(t *testing.T) {
	p := New(&NOPOutParser{TargetTransferTag: ReservedTag})
	p.BHS.Final = true
	p.SetData([]byte("digest protected payload"))
	p.SetDigests(digest.CRC32C{}, digest.CRC32C{})

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name    string
		offset  int
		wantErr error
	}{
		{"Data bit", BHSSize + digest.CRC32CSize + 3, ErrDataDigest},
		{"Header bit", 16, ErrHeaderDigest},
		{"Data digest bit", len(encoded) - 1, ErrDataDigest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			corrupted := append([]byte(nil), encoded...)
			corrupted[tc.offset] ^= 0x01

			decoded := &ProtocolDataUnit{}
			decoded.SetDigests(digest.CRC32C{}, digest.CRC32C{})
			_, err := decoded.Decode(corrupted)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tc.wantErr)
			}
			if !errors.Is(err, ErrIntegrityFailure) {
				t.Errorf("Decode() error = %v, want an integrity failure", err)
			}
		})
	}
}

func TestPDUAdditionalHeaderSegments(t *testing.T) {
	p := New(&SCSICommandParser{
		Read:           true,
		Write:          true,
		TaskAttributes: TaskAttributesSimple,
	})
	p.BHS.Final = true
	if err := p.AddAHS(NewExtendedCDB(bytes.Repeat([]byte{0x11}, 16))); err != nil {
		t.Fatalf("AddAHS(ExtendedCDB) error = %v", err)
	}
	if err := p.AddAHS(NewBidirectionalReadDataLength(8192)); err != nil {
		t.Fatalf("AddAHS(BidirectionalReadDataLength) error = %v", err)
	}
	// 3 + 17 = 20 bytes, plus 3 + 5 padded to 8.
	if p.BHS.TotalAHSLength != 7 {
		t.Errorf("TotalAHSLength = %d, want 7", p.BHS.TotalAHSLength)
	}

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(encoded) != BHSSize+28 {
		t.Errorf("len(Encode()) = %d, want %d", len(encoded), BHSSize+28)
	}

	var decoded ProtocolDataUnit
	if _, err := decoded.Decode(encoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(decoded.AHS, p.AHS) {
		t.Errorf("Decode() AHS = %+v, want %+v", decoded.AHS, p.AHS)
	}
	n, err := decoded.AHS[1].BidirectionalReadDataLength()
	if err != nil || n != 8192 {
		t.Errorf("BidirectionalReadDataLength() = %d, %v, want 8192, nil", n, err)
	}
}

func TestPDUAHSErrors(t *testing.T) {
	withAHS := func(op MessageParser, ahs []byte, total uint8) []byte {
		p := New(op)
		p.BHS.Final = true
		encoded, err := p.Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		encoded[4] = total
		return append(encoded, ahs...)
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "AHS on NOP-Out",
			data:    withAHS(&NOPOutParser{}, []byte{0x00, 0x02, 0x01, 0x00}, 1),
			wantErr: ErrUnexpectedAHS,
		},
		{
			name:    "AHS overruns TotalAHSLength",
			data:    withAHS(&SCSICommandParser{}, []byte{0x00, 0x05, 0x02, 0x00}, 1),
			wantErr: ErrAHSLengthMismatch,
		},
		{
			name:    "Unknown AHS type",
			data:    withAHS(&SCSICommandParser{}, []byte{0x00, 0x01, 0x09, 0x00}, 1),
			wantErr: ErrMalformedAHS,
		},
		{
			name:    "Short bidirectional AHS",
			data:    withAHS(&SCSICommandParser{}, []byte{0x00, 0x01, 0x02, 0x00}, 1),
			wantErr: ErrMalformedAHS,
		},
		{
			name:    "AHS truncated",
			data:    withAHS(&SCSICommandParser{}, []byte{0x00, 0x05, 0x02, 0x00}, 2),
			wantErr: ErrTooShort,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var p ProtocolDataUnit
			_, err := p.Decode(tc.data)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tc.wantErr)
			}
			if !errors.Is(err, ErrProtocolViolation) {
				t.Errorf("Decode() error = %v, want a protocol violation", err)
			}
		})
	}

	p := New(&NOPOutParser{})
	if err := p.AddAHS(NewBidirectionalReadDataLength(1)); !errors.Is(err, ErrUnexpectedAHS) {
		t.Errorf("AddAHS() error = %v, want %v", err, ErrUnexpectedAHS)
	}
}

func TestPDUAHSTooLong(t *testing.T) {
	p := New(&SCSICommandParser{Read: true, TaskAttributes: TaskAttributesSimple})
	p.BHS.Final = true
	if err := p.AddAHS(NewExtendedCDB(bytes.Repeat([]byte{0x11}, 600))); err != nil {
		t.Fatalf("AddAHS() error = %v", err)
	}
	words := p.BHS.TotalAHSLength

	// A second segment would push TotalAHSLength past 255 words.
	if err := p.AddAHS(NewExtendedCDB(bytes.Repeat([]byte{0x22}, 600))); !errors.Is(err, ErrMalformedAHS) {
		t.Errorf("AddAHS() error = %v, want %v", err, ErrMalformedAHS)
	}
	if len(p.AHS) != 1 || p.BHS.TotalAHSLength != words {
		t.Errorf("AHS count = %d, TotalAHSLength = %d, want 1, %d", len(p.AHS), p.BHS.TotalAHSLength, words)
	}
	if _, err := p.Encode(); err != nil {
		t.Errorf("Encode() error = %v", err)
	}
}

func TestPDUUnexpectedData(t *testing.T) {
	p := New(&LogoutRequestParser{})
	p.BHS.Final = true
	p.SetData([]byte{1})
	if _, err := p.Encode(); !errors.Is(err, ErrUnexpectedData) {
		t.Errorf("Encode() error = %v, want %v", err, ErrUnexpectedData)
	}

	p.SetData(nil)
	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	encoded[7] = 4
	encoded = append(encoded, 1, 2, 3, 4)

	var decoded ProtocolDataUnit
	if _, err := decoded.Decode(encoded); !errors.Is(err, ErrUnexpectedData) {
		t.Errorf("Decode() error = %v, want %v", err, ErrUnexpectedData)
	}
}

func TestPDUDataSegment(t *testing.T) {
	p := New(&TextResponseParser{TargetTransferTag: ReservedTag})
	p.BHS.Final = true
	p.SetDataSegment(datasegment.NewText([]string{"TargetName=iqn.example:disk1"}))

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var decoded ProtocolDataUnit
	if _, err := decoded.Decode(encoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	ds, err := decoded.DataSegment()
	if err != nil {
		t.Fatalf("DataSegment() error = %v", err)
	}
	text, ok := ds.(*datasegment.Text)
	if !ok {
		t.Fatalf("DataSegment() = %T, want *datasegment.Text", ds)
	}
	if got := text.KeyValuePairs(); !reflect.DeepEqual(got, []string{"TargetName=iqn.example:disk1"}) {
		t.Errorf("KeyValuePairs() = %q", got)
	}
}

func TestPDUIncrementsSequenceNumber(t *testing.T) {
	tests := []struct {
		name      string
		parser    MessageParser
		immediate bool
		want      bool
	}{
		{"Command", &SCSICommandParser{}, false, true},
		{"Immediate command", &SCSICommandParser{}, true, false},
		{"Data-Out", &DataOutParser{}, false, false},
		{"SNACK", &SNACKRequestParser{}, false, false},
		{"SCSI Response", &SCSIResponseParser{}, false, true},
		{"Data-In without status", &DataInParser{}, false, false},
		{"Data-In with status", &DataInParser{StatusPresent: true}, false, true},
		{"R2T", &ReadyToTransferParser{}, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.parser.IncrementsSequenceNumber(tc.immediate); got != tc.want {
				t.Errorf("IncrementsSequenceNumber(%v) = %v, want %v", tc.immediate, got, tc.want)
			}
		})
	}
}
