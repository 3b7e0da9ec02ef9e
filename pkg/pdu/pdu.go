package pdu

import (
	"fmt"

	"github.com/backkem/iscsi/pkg/datasegment"
	"github.com/backkem/iscsi/pkg/digest"
)

// ProtocolDataUnit is a complete iSCSI PDU (RFC 3720 Section 10.2):
//
//	BHS | AHS* | HeaderDigest? | Data + padding | DataDigest?
//
// HeaderDigest and DataDigest select the negotiated digests. They are
// ignored for opcodes that never carry digests and a nil digest means
// none.
type ProtocolDataUnit struct {
	BHS          BasicHeaderSegment
	AHS          []AdditionalHeaderSegment
	Data         []byte
	HeaderDigest digest.Digest
	DataDigest   digest.Digest
}

// New creates a PDU for the given parser with no data and no digests.
func New(parser MessageParser) *ProtocolDataUnit {
	return &ProtocolDataUnit{BHS: BasicHeaderSegment{Parser: parser}}
}

// Parser returns the opcode specific parser.
func (p *ProtocolDataUnit) Parser() MessageParser {
	return p.BHS.Parser
}

// OperationCode returns the opcode of the PDU.
func (p *ProtocolDataUnit) OperationCode() OperationCode {
	return p.BHS.OperationCode()
}

// SetDigests selects the header and data digests.
func (p *ProtocolDataUnit) SetDigests(header, data digest.Digest) {
	p.HeaderDigest = header
	p.DataDigest = data
}

// SetData replaces the data segment and updates DataSegmentLength.
func (p *ProtocolDataUnit) SetData(b []byte) {
	p.Data = b
	p.BHS.DataSegmentLength = uint32(len(b))
}

// SetDataSegment replaces the data segment with the encoding of ds.
func (p *ProtocolDataUnit) SetDataSegment(ds datasegment.DataSegment) {
	p.SetData(ds.Bytes())
}

// DataSegment returns the data as the variant the opcode carries.
func (p *ProtocolDataUnit) DataSegment() (datasegment.DataSegment, error) {
	if p.BHS.Parser == nil {
		return nil, ErrNoParser
	}
	return datasegment.Decode(p.BHS.Parser.DataSegmentFormat(), p.Data)
}

// maxTotalAHSLength is the largest TotalAHSLength, in 4-byte words.
const maxTotalAHSLength = 255

// AddAHS appends an AHS and updates TotalAHSLength.
func (p *ProtocolDataUnit) AddAHS(a AdditionalHeaderSegment) error {
	if p.BHS.Parser == nil {
		return ErrNoParser
	}
	if !p.BHS.Parser.CanContainAHS() {
		return fmt.Errorf("%w: %v", ErrUnexpectedAHS, p.OperationCode())
	}
	if err := a.validate(); err != nil {
		return err
	}
	words := (p.ahsLength() + a.Size()) / 4
	if words > maxTotalAHSLength {
		return fmt.Errorf("%w: TotalAHSLength %d words exceeds %d", ErrMalformedAHS, words, maxTotalAHSLength)
	}
	p.AHS = append(p.AHS, a)
	p.BHS.TotalAHSLength = uint8(words)
	return nil
}

// Clear removes all AHS and data.
func (p *ProtocolDataUnit) Clear() {
	p.AHS = nil
	p.Data = nil
	p.BHS.TotalAHSLength = 0
	p.BHS.DataSegmentLength = 0
}

// Size returns the encoded size of the PDU.
func (p *ProtocolDataUnit) Size() int {
	header, data := p.digests(p.HeaderDigest, p.DataDigest)
	return p.size(header, data)
}

// Encode serializes the PDU with its configured digests.
func (p *ProtocolDataUnit) Encode() ([]byte, error) {
	header, data := p.digests(p.HeaderDigest, p.DataDigest)
	buf := make([]byte, p.size(header, data))
	if _, err := p.encodeTo(buf, header, data); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeTo serializes the PDU into buf, which must be at least Size()
// bytes long. Returns the number of bytes written.
func (p *ProtocolDataUnit) EncodeTo(buf []byte) (int, error) {
	header, data := p.digests(p.HeaderDigest, p.DataDigest)
	return p.encodeTo(buf, header, data)
}

// Decode deserializes a PDU from data using the configured digests.
// Returns the number of bytes consumed.
func (p *ProtocolDataUnit) Decode(data []byte) (int, error) {
	return p.decode(data, p.HeaderDigest, p.DataDigest)
}

// digests returns the digests that apply to this opcode.
func (p *ProtocolDataUnit) digests(header, data digest.Digest) (digest.Digest, digest.Digest) {
	if p.BHS.Parser == nil || !p.BHS.Parser.CanHaveDigests() {
		return digest.None{}, digest.None{}
	}
	if header == nil {
		header = digest.None{}
	}
	if data == nil {
		data = digest.None{}
	}
	return header, data
}

func (p *ProtocolDataUnit) ahsLength() int {
	n := 0
	for i := range p.AHS {
		n += p.AHS[i].Size()
	}
	return n
}

func (p *ProtocolDataUnit) size(header, data digest.Digest) int {
	n := BHSSize + p.ahsLength() + header.Size() + datasegment.PaddedLength(len(p.Data))
	if len(p.Data) > 0 {
		n += data.Size()
	}
	return n
}

func (p *ProtocolDataUnit) encodeTo(buf []byte, header, data digest.Digest) (int, error) {
	if p.BHS.Parser == nil {
		return 0, ErrNoParser
	}
	if len(p.AHS) > 0 && !p.BHS.Parser.CanContainAHS() {
		return 0, fmt.Errorf("%w: %v", ErrUnexpectedAHS, p.OperationCode())
	}
	if len(p.Data) > MaxDataSegmentLength {
		return 0, fmt.Errorf("%w: %d bytes", ErrDataSegmentTooLong, len(p.Data))
	}
	if len(p.Data) > 0 && p.BHS.Parser.DataSegmentFormat() == datasegment.FormatNone {
		return 0, fmt.Errorf("%w: %v", ErrUnexpectedData, p.OperationCode())
	}
	size := p.size(header, data)
	if len(buf) < size {
		return 0, ErrBufferTooSmall
	}

	ahsLen := p.ahsLength()
	if ahsLen/4 > 0xff {
		return 0, fmt.Errorf("%w: %d AHS bytes", ErrMalformedAHS, ahsLen)
	}
	p.BHS.TotalAHSLength = uint8(ahsLen / 4)
	p.BHS.DataSegmentLength = uint32(len(p.Data))

	offset, err := p.BHS.EncodeTo(buf)
	if err != nil {
		return 0, err
	}
	for i := range p.AHS {
		n, err := p.AHS[i].EncodeTo(buf[offset:])
		if err != nil {
			return 0, err
		}
		offset += n
	}

	// Header digest covers BHS and AHS.
	digested := header.Append(buf[offset:offset], buf[:offset])
	offset += len(digested)

	if len(p.Data) > 0 {
		start := offset
		n, err := datasegment.NewBinary(p.Data).EncodeTo(buf[offset:])
		if err != nil {
			return 0, err
		}
		offset += n
		digested = data.Append(buf[offset:offset], buf[start:offset])
		offset += len(digested)
	}
	return offset, nil
}

func (p *ProtocolDataUnit) decode(b []byte, header, data digest.Digest) (int, error) {
	var bhs BasicHeaderSegment
	offset, err := bhs.Decode(b)
	if err != nil {
		return 0, err
	}
	p.BHS = bhs
	p.AHS = nil
	p.Data = nil
	header, data = p.digests(header, data)

	ahsLen := bhs.AHSLength()
	if ahsLen > 0 && !bhs.Parser.CanContainAHS() {
		return 0, fmt.Errorf("%w: %v", ErrUnexpectedAHS, bhs.OperationCode())
	}
	if len(b) < BHSSize+ahsLen {
		return 0, fmt.Errorf("%w: AHS truncated", ErrTooShort)
	}
	end := BHSSize + ahsLen
	for offset < end {
		if size := ahsSize(b[offset:end]); size == 0 || offset+size > end {
			return 0, fmt.Errorf("%w: AHS at byte %d overruns %d bytes", ErrAHSLengthMismatch, offset, ahsLen)
		}
		var a AdditionalHeaderSegment
		n, err := a.Decode(b[offset:end])
		if err != nil {
			return 0, err
		}
		p.AHS = append(p.AHS, a)
		offset += n
	}

	if hs := header.Size(); hs > 0 {
		if len(b) < offset+hs {
			return 0, fmt.Errorf("%w: header digest truncated", ErrTooShort)
		}
		if err := header.Verify(b[offset:offset+hs], b[:offset]); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrHeaderDigest, err)
		}
		offset += hs
	}

	dsl := int(bhs.DataSegmentLength)
	if dsl == 0 {
		return offset, nil
	}
	if bhs.Parser.DataSegmentFormat() == datasegment.FormatNone {
		return 0, fmt.Errorf("%w: %v with %d data bytes", ErrUnexpectedData, bhs.OperationCode(), dsl)
	}
	padded := datasegment.PaddedLength(dsl)
	if len(b) < offset+padded {
		return 0, fmt.Errorf("%w: data segment truncated", ErrTooShort)
	}
	segment := b[offset : offset+padded]
	p.Data = append([]byte(nil), segment[:dsl]...)
	offset += padded

	if ds := data.Size(); ds > 0 {
		if len(b) < offset+ds {
			return 0, fmt.Errorf("%w: data digest truncated", ErrTooShort)
		}
		if err := data.Verify(b[offset:offset+ds], segment); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrDataDigest, err)
		}
		offset += ds
	}
	return offset, nil
}

// String returns a one-line summary for logging.
func (p *ProtocolDataUnit) String() string {
	return fmt.Sprintf("%s AHS#=%d", p.BHS.String(), len(p.AHS))
}
