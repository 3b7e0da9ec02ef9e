package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/backkem/iscsi/pkg/digest"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/textkey"
	"github.com/pion/logging"
)

func testCapture(t *testing.T, header digest.Digest) []byte {
	t.Helper()

	parser := &pdu.LoginRequestParser{ConnectionID: 1}
	parser.CSG = pdu.LoginStageOperationalNegotiation
	parser.NSG = pdu.LoginStageFullFeature
	parser.ISID = pdu.ISID{0x80, 0, 0, 0, 0, 1}
	login := pdu.New(parser)
	login.BHS.Immediate = true
	login.BHS.Final = true
	login.BHS.InitiatorTaskTag = 7
	login.SetData([]byte(textkey.JoinKeyValuePairs([]string{"InitiatorName=iqn.2024-01.com.example:host"})))
	first, err := login.Encode()
	if err != nil {
		t.Fatalf("Encode() login error = %v", err)
	}

	nop := pdu.New(&pdu.NOPOutParser{TargetTransferTag: pdu.ReservedTag})
	nop.BHS.Immediate = true
	nop.BHS.Final = true
	nop.BHS.InitiatorTaskTag = 8
	nop.SetData([]byte("ping"))
	nop.SetDigests(header, digest.None{})
	second, err := nop.Encode()
	if err != nil {
		t.Fatalf("Encode() NOP-Out error = %v", err)
	}
	return append(first, second...)
}

func TestDump(t *testing.T) {
	log := logging.NewDefaultLoggerFactory().NewLogger("pdudump")
	capture := testCapture(t, digest.None{})

	// Spread the hex over lines the way captures are usually pasted.
	var text strings.Builder
	encoded := hex.EncodeToString(capture)
	for i := 0; i < len(encoded); i += 32 {
		end := min(i+32, len(encoded))
		text.WriteString(encoded[i:end])
		text.WriteString("\n  ")
	}

	tests := []struct {
		name  string
		input []byte
		hex   bool
	}{
		{name: "binary", input: capture},
		{name: "hex", input: []byte(text.String()), hex: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := newOptions(tc.hex, digest.NameNone, digest.NameNone)
			if err != nil {
				t.Fatalf("newOptions() error = %v", err)
			}
			var out bytes.Buffer
			n, err := dump(&out, bytes.NewReader(tc.input), opts, log)
			if err != nil {
				t.Fatalf("dump() error = %v", err)
			}
			if n != 2 {
				t.Errorf("dump() = %d PDUs, want 2", n)
			}
			for _, want := range []string{
				"#1 Login Request",
				"InitiatorName=iqn.2024-01.com.example:host",
				"#2 NOP-Out",
				"Binary data, 4 bytes",
			} {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestDumpHeaderDigest(t *testing.T) {
	log := logging.NewDefaultLoggerFactory().NewLogger("pdudump")
	capture := testCapture(t, digest.CRC32C{})

	opts, err := newOptions(false, digest.NameCRC32C, digest.NameNone)
	if err != nil {
		t.Fatalf("newOptions() error = %v", err)
	}
	var out bytes.Buffer
	if n, err := dump(&out, bytes.NewReader(capture), opts, log); err != nil || n != 2 {
		t.Fatalf("dump() = %d, %v, want 2, nil", n, err)
	}

	// Flip a bit of the NOP-Out task tag. The NOP-Out is the last 56
	// bytes: header, header digest and padded data.
	corrupt := append([]byte(nil), capture...)
	corrupt[len(corrupt)-56+19] ^= 0x01
	n, err := dump(&out, bytes.NewReader(corrupt), opts, log)
	if !errors.Is(err, pdu.ErrIntegrityFailure) {
		t.Errorf("dump() error = %v, want ErrIntegrityFailure", err)
	}
	if n != 1 {
		t.Errorf("dump() = %d PDUs before the failure, want 1", n)
	}
}

func TestNewOptions(t *testing.T) {
	if _, err := newOptions(false, "MD5", digest.NameNone); err == nil {
		t.Error("newOptions() accepted an unknown header digest")
	}
	if _, err := newOptions(false, digest.NameNone, "MD5"); err == nil {
		t.Error("newOptions() accepted an unknown data digest")
	}
}

func TestDecodeHex(t *testing.T) {
	got, err := decodeHex([]byte("01 02\n\t0a ff"))
	if err != nil {
		t.Fatalf("decodeHex() error = %v", err)
	}
	if want := []byte{0x01, 0x02, 0x0a, 0xff}; !bytes.Equal(got, want) {
		t.Errorf("decodeHex() = %x, want %x", got, want)
	}
	if _, err := decodeHex([]byte("0g")); err == nil {
		t.Error("decodeHex() accepted invalid hex")
	}
}
