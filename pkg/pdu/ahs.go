package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/iscsi/pkg/datasegment"
)

// AHSType identifies an Additional Header Segment (RFC 3720 Section 10.2.2).
type AHSType uint8

const (
	// AHSExtendedCDB carries CDB bytes beyond the first 16.
	AHSExtendedCDB AHSType = 1

	// AHSBidirectionalReadDataLength carries the expected read length of
	// a bidirectional command.
	AHSBidirectionalReadDataLength AHSType = 2
)

// ahsHeaderSize covers AHSLength (2 bytes) and AHSType (1 byte).
const ahsHeaderSize = 3

// bidiReadLength is the AHSLength of a bidirectional read AHS: one
// reserved byte plus four bytes of length.
const bidiReadLength = 5

// String returns the name of the AHS type.
func (t AHSType) String() string {
	switch t {
	case AHSExtendedCDB:
		return "ExtendedCDB"
	case AHSBidirectionalReadDataLength:
		return "ExpectedBidirectionalReadDataLength"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// IsValid returns true for the defined AHS types.
func (t AHSType) IsValid() bool {
	return t == AHSExtendedCDB || t == AHSBidirectionalReadDataLength
}

// AdditionalHeaderSegment is one AHS. Data holds the type specific bytes
// that follow the reserved byte.
type AdditionalHeaderSegment struct {
	Type AHSType
	Data []byte
}

// NewExtendedCDB returns an ExtendedCDB AHS holding the CDB bytes past the
// first 16.
func NewExtendedCDB(rest []byte) AdditionalHeaderSegment {
	return AdditionalHeaderSegment{Type: AHSExtendedCDB, Data: append([]byte(nil), rest...)}
}

// NewBidirectionalReadDataLength returns an AHS carrying the expected
// bidirectional read data length.
func NewBidirectionalReadDataLength(n uint32) AdditionalHeaderSegment {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, n)
	return AdditionalHeaderSegment{Type: AHSBidirectionalReadDataLength, Data: data}
}

// Length returns the AHSLength field: the reserved byte plus Data.
func (a *AdditionalHeaderSegment) Length() int {
	return len(a.Data) + 1
}

// Size returns the encoded size including padding.
func (a *AdditionalHeaderSegment) Size() int {
	return datasegment.PaddedLength(ahsHeaderSize + a.Length())
}

// BidirectionalReadDataLength returns the length carried by a
// bidirectional read AHS.
func (a *AdditionalHeaderSegment) BidirectionalReadDataLength() (uint32, error) {
	if a.Type != AHSBidirectionalReadDataLength || len(a.Data) != 4 {
		return 0, fmt.Errorf("%w: %v is not a bidirectional read length", ErrMalformedAHS, a.Type)
	}
	return binary.BigEndian.Uint32(a.Data), nil
}

func (a *AdditionalHeaderSegment) validate() error {
	switch a.Type {
	case AHSExtendedCDB:
		if a.Length() < 2 {
			return fmt.Errorf("%w: empty extended CDB", ErrMalformedAHS)
		}
	case AHSBidirectionalReadDataLength:
		if a.Length() != bidiReadLength {
			return fmt.Errorf("%w: bidirectional read AHS length %d", ErrMalformedAHS, a.Length())
		}
	default:
		return fmt.Errorf("%w: type %d", ErrMalformedAHS, uint8(a.Type))
	}
	return nil
}

// EncodeTo serializes the AHS with its padding into buf.
// Returns the number of bytes written.
func (a *AdditionalHeaderSegment) EncodeTo(buf []byte) (int, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	size := a.Size()
	if len(buf) < size {
		return 0, ErrBufferTooSmall
	}
	b := buf[:size]
	clear(b)
	binary.BigEndian.PutUint16(b, uint16(a.Length()))
	b[2] = byte(a.Type)
	copy(b[ahsHeaderSize+1:], a.Data)
	return size, nil
}

// ahsSize returns the padded size announced by the AHS at the start of b,
// or 0 if b is too short to hold an AHS header.
func ahsSize(b []byte) int {
	if len(b) < ahsHeaderSize+1 {
		return 0
	}
	return datasegment.PaddedLength(ahsHeaderSize + int(binary.BigEndian.Uint16(b)))
}

// Decode deserializes one AHS from data. Returns the number of bytes
// consumed, padding included.
func (a *AdditionalHeaderSegment) Decode(data []byte) (int, error) {
	if len(data) < ahsHeaderSize+1 {
		return 0, fmt.Errorf("%w: AHS header truncated", ErrMalformedAHS)
	}
	length := int(binary.BigEndian.Uint16(data))
	if length == 0 {
		return 0, fmt.Errorf("%w: zero AHS length", ErrMalformedAHS)
	}
	size := ahsSize(data)
	if len(data) < size {
		return 0, fmt.Errorf("%w: AHS of %d bytes exceeds remaining %d", ErrMalformedAHS, size, len(data))
	}
	if data[ahsHeaderSize] != 0 {
		return 0, fmt.Errorf("%w: AHS byte %d", ErrReservedBits, ahsHeaderSize)
	}

	a.Type = AHSType(data[2])
	a.Data = append([]byte(nil), data[ahsHeaderSize+1:ahsHeaderSize+length]...)
	if err := a.validate(); err != nil {
		return 0, err
	}
	return size, nil
}
