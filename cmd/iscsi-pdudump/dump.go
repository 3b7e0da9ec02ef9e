package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/backkem/iscsi/pkg/datasegment"
	"github.com/backkem/iscsi/pkg/digest"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/pion/logging"
)

type options struct {
	hex          bool
	headerDigest digest.Digest
	dataDigest   digest.Digest
}

func newOptions(hexInput bool, headerDigest, dataDigest string) (options, error) {
	header, err := digest.ByName(headerDigest)
	if err != nil {
		return options{}, fmt.Errorf("header digest: %w", err)
	}
	data, err := digest.ByName(dataDigest)
	if err != nil {
		return options{}, fmt.Errorf("data digest: %w", err)
	}
	return options{hex: hexInput, headerDigest: header, dataDigest: data}, nil
}

// decodeHex decodes hex text, ignoring whitespace.
func decodeHex(text []byte) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(text))
	return hex.DecodeString(clean)
}

// dump decodes every PDU of in and prints it to w. It returns the number
// of PDUs decoded.
func dump(w io.Writer, in io.Reader, opts options, log logging.LeveledLogger) (int, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return 0, err
	}
	if opts.hex {
		if raw, err = decodeHex(raw); err != nil {
			return 0, fmt.Errorf("hex input: %w", err)
		}
	}
	log.Debugf("read %d bytes", len(raw))

	r := pdu.NewReader(bytes.NewReader(raw))
	r.SetDigests(opts.headerDigest, opts.dataDigest)

	n := 0
	for {
		p, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("PDU %d: %w", n, err)
		}
		n++
		printPDU(w, n, p)
	}
}

func printPDU(w io.Writer, n int, p *pdu.ProtocolDataUnit) {
	fmt.Fprintf(w, "#%d %s\n", n, &p.BHS)
	fmt.Fprintf(w, "    %+v\n", p.Parser())
	for _, a := range p.AHS {
		fmt.Fprintf(w, "    AHS %v (%d bytes)\n", a.Type, len(a.Data))
	}
	if len(p.Data) == 0 {
		return
	}

	ds, err := p.DataSegment()
	if err != nil {
		fmt.Fprintf(w, "    data: %v\n", err)
		return
	}
	switch d := ds.(type) {
	case *datasegment.Text:
		for _, pair := range d.KeyValuePairs() {
			fmt.Fprintf(w, "    %s\n", pair)
		}
	default:
		fmt.Fprintf(w, "    %s data, %d bytes\n", ds.Format(), ds.Len())
		fmt.Fprint(w, indent(hex.Dump(p.Data)))
	}
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString("    ")
		b.WriteString(line)
	}
	return b.String()
}
