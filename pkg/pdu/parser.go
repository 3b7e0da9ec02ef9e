package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/iscsi/pkg/datasegment"
)

// MessageParser handles the operation code specific fields of a Basic
// Header Segment: the low seven bits of byte 1, bytes 2-3, 8-15 and 20-47.
//
// The set of parsers is closed; every implementation lives in this package
// and newParser selects one per operation code.
type MessageParser interface {
	// OperationCode returns the opcode the parser handles.
	OperationCode() OperationCode

	// CanContainAHS reports whether the PDU may carry additional header
	// segments.
	CanContainAHS() bool

	// CanHaveDigests reports whether negotiated digests apply to the PDU.
	CanHaveDigests() bool

	// IncrementsSequenceNumber reports whether receiving the PDU advances
	// CmdSN (initiator PDUs) or StatSN (target PDUs).
	IncrementsSequenceNumber(immediate bool) bool

	// DataSegmentFormat returns the data segment variant the PDU carries.
	DataSegmentFormat() datasegment.Format

	// CheckIntegrity validates field combinations that depend on the BHS.
	CheckIntegrity(bhs *BasicHeaderSegment) error

	decode(h []byte) error
	encode(h []byte)
}

// NewParser returns an empty parser for op.
func NewParser(op OperationCode) (MessageParser, error) {
	switch op {
	case OpNOPOut:
		return &NOPOutParser{}, nil
	case OpSCSICommand:
		return &SCSICommandParser{}, nil
	case OpTaskManagementRequest:
		return &TaskManagementRequestParser{}, nil
	case OpLoginRequest:
		return &LoginRequestParser{}, nil
	case OpTextRequest:
		return &TextRequestParser{}, nil
	case OpDataOut:
		return &DataOutParser{}, nil
	case OpLogoutRequest:
		return &LogoutRequestParser{}, nil
	case OpSNACKRequest:
		return &SNACKRequestParser{}, nil
	case OpNOPIn:
		return &NOPInParser{}, nil
	case OpSCSIResponse:
		return &SCSIResponseParser{}, nil
	case OpTaskManagementResponse:
		return &TaskManagementResponseParser{}, nil
	case OpLoginResponse:
		return &LoginResponseParser{}, nil
	case OpTextResponse:
		return &TextResponseParser{}, nil
	case OpDataIn:
		return &DataInParser{}, nil
	case OpLogoutResponse:
		return &LogoutResponseParser{}, nil
	case OpReadyToTransfer:
		return &ReadyToTransferParser{}, nil
	case OpAsyncMessage:
		return &AsyncMessageParser{}, nil
	case OpReject:
		return &RejectParser{}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownOperationCode, uint8(op))
	}
}

// InitiatorSequence holds the sequence numbers of initiator PDUs that
// carry a CmdSN (bytes 24-27) and ExpStatSN (bytes 28-31).
type InitiatorSequence struct {
	CmdSN     uint32
	ExpStatSN uint32
}

func (s *InitiatorSequence) decodeSequence(h []byte) {
	s.CmdSN = binary.BigEndian.Uint32(h[24:])
	s.ExpStatSN = binary.BigEndian.Uint32(h[28:])
}

func (s *InitiatorSequence) encodeSequence(h []byte) {
	binary.BigEndian.PutUint32(h[24:], s.CmdSN)
	binary.BigEndian.PutUint32(h[28:], s.ExpStatSN)
}

// CanContainAHS returns false.
func (*InitiatorSequence) CanContainAHS() bool { return false }

// CanHaveDigests returns true.
func (*InitiatorSequence) CanHaveDigests() bool { return true }

// IncrementsSequenceNumber returns true for non-immediate PDUs.
func (*InitiatorSequence) IncrementsSequenceNumber(immediate bool) bool { return !immediate }

// TargetSequence holds the sequence numbers every target PDU carries at
// bytes 24-35.
type TargetSequence struct {
	StatSN   uint32
	ExpCmdSN uint32
	MaxCmdSN uint32
}

func (s *TargetSequence) decodeSequence(h []byte) {
	s.StatSN = binary.BigEndian.Uint32(h[24:])
	s.ExpCmdSN = binary.BigEndian.Uint32(h[28:])
	s.MaxCmdSN = binary.BigEndian.Uint32(h[32:])
}

func (s *TargetSequence) encodeSequence(h []byte) {
	binary.BigEndian.PutUint32(h[24:], s.StatSN)
	binary.BigEndian.PutUint32(h[28:], s.ExpCmdSN)
	binary.BigEndian.PutUint32(h[32:], s.MaxCmdSN)
}

// CanContainAHS returns false.
func (*TargetSequence) CanContainAHS() bool { return false }

// CanHaveDigests returns true.
func (*TargetSequence) CanHaveDigests() bool { return true }

// IncrementsSequenceNumber returns true.
func (*TargetSequence) IncrementsSequenceNumber(bool) bool { return true }

// reserved fails if any byte in h[from:to] is non-zero.
func reserved(h []byte, from, to int) error {
	for i := from; i < to; i++ {
		if h[i] != 0 {
			return fmt.Errorf("%w: byte %d", ErrReservedBits, i)
		}
	}
	return nil
}

// reservedBits fails if any bit of mask is set in h[i].
func reservedBits(h []byte, i int, mask byte) error {
	if h[i]&mask != 0 {
		return fmt.Errorf("%w: byte %d mask 0x%02x", ErrReservedBits, i, mask)
	}
	return nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func flag(b byte, mask byte) bool {
	return b&mask != 0
}

func setFlag(b *byte, mask byte, on bool) {
	if on {
		*b |= mask
	}
}

func invalidField(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidField}, args...)...)
}
