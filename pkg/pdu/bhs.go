package pdu

import (
	"encoding/binary"
	"fmt"
)

// Sizes and limits of the Basic Header Segment.
const (
	// BHSSize is the fixed size of a Basic Header Segment.
	BHSSize = 48

	// MaxDataSegmentLength is the largest value the 3-byte
	// DataSegmentLength field can hold.
	MaxDataSegmentLength = 1<<24 - 1
)

const (
	bhsImmediate     byte = 0x40
	bhsByte0Reserved byte = 0x80
	bhsFinal         byte = 0x80
)

// BasicHeaderSegment is the 48-byte header every PDU starts with
// (RFC 3720 Section 10.2.1). Fields common to all opcodes are held here;
// the opcode specific remainder lives in Parser.
type BasicHeaderSegment struct {
	// Immediate marks an initiator PDU for immediate delivery.
	Immediate bool

	// Final is the F bit. For Login PDUs it is the transit (T) bit.
	Final bool

	// TotalAHSLength is the length of all AHS in 4-byte words.
	TotalAHSLength uint8

	// DataSegmentLength is the data segment length without padding.
	DataSegmentLength uint32

	InitiatorTaskTag uint32

	// Parser handles the opcode specific fields.
	Parser MessageParser
}

// OperationCode returns the opcode of the parser, or an invalid opcode if
// no parser is set.
func (h *BasicHeaderSegment) OperationCode() OperationCode {
	if h.Parser == nil {
		return opcodeInvalid
	}
	return h.Parser.OperationCode()
}

// LogicalUnitNumber returns the LUN for opcodes that carry one.
func (h *BasicHeaderSegment) LogicalUnitNumber() (uint64, bool) {
	switch p := h.Parser.(type) {
	case *NOPOutParser:
		return p.LogicalUnitNumber, true
	case *SCSICommandParser:
		return p.LogicalUnitNumber, true
	case *TaskManagementRequestParser:
		return p.LogicalUnitNumber, true
	case *TextRequestParser:
		return p.LogicalUnitNumber, true
	case *DataOutParser:
		return p.LogicalUnitNumber, true
	case *SNACKRequestParser:
		return p.LogicalUnitNumber, true
	case *NOPInParser:
		return p.LogicalUnitNumber, true
	case *TextResponseParser:
		return p.LogicalUnitNumber, true
	case *DataInParser:
		return p.LogicalUnitNumber, true
	case *ReadyToTransferParser:
		return p.LogicalUnitNumber, true
	case *AsyncMessageParser:
		return p.LogicalUnitNumber, true
	default:
		return 0, false
	}
}

// AHSLength returns TotalAHSLength in bytes.
func (h *BasicHeaderSegment) AHSLength() int {
	return int(h.TotalAHSLength) * 4
}

// Decode deserializes a BHS from the first BHSSize bytes of data and
// checks its integrity. Returns the number of bytes consumed.
func (h *BasicHeaderSegment) Decode(data []byte) (int, error) {
	if len(data) < BHSSize {
		return 0, fmt.Errorf("%w: BHS needs %d bytes, got %d", ErrTooShort, BHSSize, len(data))
	}
	if err := reservedBits(data, 0, bhsByte0Reserved); err != nil {
		return 0, err
	}

	op := OperationCode(data[0] & opcodeMask)
	parser, err := NewParser(op)
	if err != nil {
		return 0, err
	}

	immediate := data[0]&bhsImmediate != 0
	if immediate && op.IsTarget() {
		return 0, fmt.Errorf("%w: immediate flag on %v", ErrReservedBits, op)
	}

	h.Immediate = immediate
	h.Final = data[1]&bhsFinal != 0
	h.TotalAHSLength = data[4]
	h.DataSegmentLength = uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7])
	h.InitiatorTaskTag = binary.BigEndian.Uint32(data[16:])

	if err := parser.decode(data[:BHSSize]); err != nil {
		return 0, err
	}
	h.Parser = parser

	if err := parser.CheckIntegrity(h); err != nil {
		return 0, err
	}
	return BHSSize, nil
}

// EncodeTo serializes the BHS into the first BHSSize bytes of buf.
// Returns the number of bytes written.
func (h *BasicHeaderSegment) EncodeTo(buf []byte) (int, error) {
	if h.Parser == nil {
		return 0, ErrNoParser
	}
	if len(buf) < BHSSize {
		return 0, ErrBufferTooSmall
	}
	if h.DataSegmentLength > MaxDataSegmentLength {
		return 0, fmt.Errorf("%w: %d bytes", ErrDataSegmentTooLong, h.DataSegmentLength)
	}
	op := h.Parser.OperationCode()
	if h.Immediate && op.IsTarget() {
		return 0, invalidField("immediate flag on %v", op)
	}
	if err := h.Parser.CheckIntegrity(h); err != nil {
		return 0, err
	}

	b := buf[:BHSSize]
	clear(b)

	b[0] = byte(op) & opcodeMask
	setFlag(&b[0], bhsImmediate, h.Immediate)
	setFlag(&b[1], bhsFinal, h.Final)
	b[4] = h.TotalAHSLength
	b[5] = byte(h.DataSegmentLength >> 16)
	b[6] = byte(h.DataSegmentLength >> 8)
	b[7] = byte(h.DataSegmentLength)
	binary.BigEndian.PutUint32(b[16:], h.InitiatorTaskTag)

	h.Parser.encode(b)
	return BHSSize, nil
}

// String returns a one-line summary for logging.
func (h *BasicHeaderSegment) String() string {
	return fmt.Sprintf("%v I=%t F=%t ITT=0x%08x AHS=%d DSL=%d",
		h.OperationCode(), h.Immediate, h.Final, h.InitiatorTaskTag, h.AHSLength(), h.DataSegmentLength)
}
