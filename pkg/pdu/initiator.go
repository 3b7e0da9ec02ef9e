package pdu

import (
	"encoding/binary"

	"github.com/backkem/iscsi/pkg/datasegment"
)

// Flag bits of BHS byte 1 shared by several opcodes.
const (
	flagContinue     byte = 0x40 // C: Login, Text
	flagRead         byte = 0x40 // R: SCSI Command
	flagWrite        byte = 0x20 // W: SCSI Command
	flagAcknowledge  byte = 0x40 // A: Data-In
	flagBidiOverflow byte = 0x10 // o: SCSI Response
	flagBidiUnder    byte = 0x08 // u: SCSI Response
	flagOverflow     byte = 0x04 // O: SCSI Response, Data-In
	flagUnderflow    byte = 0x02 // U: SCSI Response, Data-In
	flagStatus       byte = 0x01 // S: Data-In

	attributesMask byte = 0x07
	lowSevenBits   byte = 0x7f
)

// requireFinal checks the F bit for opcodes where RFC 3720 fixes it to 1.
func requireFinal(bhs *BasicHeaderSegment) error {
	if !bhs.Final {
		return invalidField("%v requires the final flag", bhs.OperationCode())
	}
	return nil
}

// NOPOutParser handles NOP-Out PDUs (RFC 3720 Section 10.18).
type NOPOutParser struct {
	InitiatorSequence
	LogicalUnitNumber uint64
	TargetTransferTag uint32
}

func (*NOPOutParser) OperationCode() OperationCode { return OpNOPOut }

func (*NOPOutParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (p *NOPOutParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	return requireFinal(bhs)
}

func (p *NOPOutParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, lowSevenBits), reserved(h, 2, 4), reserved(h, 32, 48)); err != nil {
		return err
	}
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	return nil
}

func (p *NOPOutParser) encode(h []byte) {
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	p.encodeSequence(h)
}

// SCSICommandParser handles SCSI Command PDUs (RFC 3720 Section 10.3).
// CDB holds the first 16 bytes of the command descriptor block; longer
// CDBs continue in an ExtendedCDB AHS.
type SCSICommandParser struct {
	InitiatorSequence
	Read                       bool
	Write                      bool
	TaskAttributes             TaskAttributes
	LogicalUnitNumber          uint64
	ExpectedDataTransferLength uint32
	CDB                        [16]byte
}

func (*SCSICommandParser) OperationCode() OperationCode { return OpSCSICommand }

// CanContainAHS returns true; SCSI Commands may carry extended CDBs and
// bidirectional read lengths.
func (*SCSICommandParser) CanContainAHS() bool { return true }

func (*SCSICommandParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (p *SCSICommandParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	switch {
	case !p.Write && !bhs.Final:
		return invalidField("SCSI Command without W flag must be final")
	case p.ExpectedDataTransferLength != 0 && !p.Read && !p.Write:
		return invalidField("expected data transfer length %d without R or W flag", p.ExpectedDataTransferLength)
	case !p.TaskAttributes.IsValid():
		return invalidField("task attributes %d", p.TaskAttributes)
	}
	return nil
}

func (p *SCSICommandParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, 0x18), reserved(h, 2, 4)); err != nil {
		return err
	}
	p.Read = flag(h[1], flagRead)
	p.Write = flag(h[1], flagWrite)
	p.TaskAttributes = TaskAttributes(h[1] & attributesMask)
	if !p.TaskAttributes.IsValid() {
		return invalidField("task attributes %d", p.TaskAttributes)
	}
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.ExpectedDataTransferLength = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	copy(p.CDB[:], h[32:48])
	return nil
}

func (p *SCSICommandParser) encode(h []byte) {
	setFlag(&h[1], flagRead, p.Read)
	setFlag(&h[1], flagWrite, p.Write)
	h[1] |= byte(p.TaskAttributes) & attributesMask
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.ExpectedDataTransferLength)
	p.encodeSequence(h)
	copy(h[32:48], p.CDB[:])
}

// TaskManagementRequestParser handles Task Management Function Requests
// (RFC 3720 Section 10.5).
type TaskManagementRequestParser struct {
	InitiatorSequence
	Function          TaskManagementFunction
	LogicalUnitNumber uint64
	ReferencedTaskTag uint32
	RefCmdSN          uint32
	ExpDataSN         uint32
}

func (*TaskManagementRequestParser) OperationCode() OperationCode { return OpTaskManagementRequest }

func (*TaskManagementRequestParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatNone }

func (p *TaskManagementRequestParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if !p.Function.IsValid() {
		return invalidField("task management function %d", p.Function)
	}
	return requireFinal(bhs)
}

func (p *TaskManagementRequestParser) decode(h []byte) error {
	if err := firstError(reserved(h, 2, 4), reserved(h, 40, 48)); err != nil {
		return err
	}
	p.Function = TaskManagementFunction(h[1] & lowSevenBits)
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.ReferencedTaskTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	p.RefCmdSN = binary.BigEndian.Uint32(h[32:])
	p.ExpDataSN = binary.BigEndian.Uint32(h[36:])
	return nil
}

func (p *TaskManagementRequestParser) encode(h []byte) {
	h[1] |= byte(p.Function) & lowSevenBits
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.ReferencedTaskTag)
	p.encodeSequence(h)
	binary.BigEndian.PutUint32(h[32:], p.RefCmdSN)
	binary.BigEndian.PutUint32(h[36:], p.ExpDataSN)
}

// TextRequestParser handles Text Request PDUs (RFC 3720 Section 10.10).
type TextRequestParser struct {
	InitiatorSequence
	Continue          bool
	LogicalUnitNumber uint64
	TargetTransferTag uint32
}

func (*TextRequestParser) OperationCode() OperationCode { return OpTextRequest }

func (*TextRequestParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatText }

func (p *TextRequestParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if bhs.Final && p.Continue {
		return invalidField("text request with both final and continue flags")
	}
	return nil
}

func (p *TextRequestParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, 0x3f), reserved(h, 2, 4), reserved(h, 32, 48)); err != nil {
		return err
	}
	p.Continue = flag(h[1], flagContinue)
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	return nil
}

func (p *TextRequestParser) encode(h []byte) {
	setFlag(&h[1], flagContinue, p.Continue)
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	p.encodeSequence(h)
}

// DataOutParser handles SCSI Data-Out PDUs (RFC 3720 Section 10.7).
type DataOutParser struct {
	LogicalUnitNumber uint64
	TargetTransferTag uint32
	ExpStatSN         uint32
	DataSN            uint32
	BufferOffset      uint32
}

func (*DataOutParser) OperationCode() OperationCode { return OpDataOut }

func (*DataOutParser) CanContainAHS() bool { return false }

func (*DataOutParser) CanHaveDigests() bool { return true }

// IncrementsSequenceNumber returns false; Data-Out carries no CmdSN.
func (*DataOutParser) IncrementsSequenceNumber(bool) bool { return false }

func (*DataOutParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (*DataOutParser) CheckIntegrity(*BasicHeaderSegment) error { return nil }

func (p *DataOutParser) decode(h []byte) error {
	err := firstError(
		reservedBits(h, 1, lowSevenBits),
		reserved(h, 2, 4),
		reserved(h, 24, 28),
		reserved(h, 32, 36),
		reserved(h, 44, 48),
	)
	if err != nil {
		return err
	}
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.ExpStatSN = binary.BigEndian.Uint32(h[28:])
	p.DataSN = binary.BigEndian.Uint32(h[36:])
	p.BufferOffset = binary.BigEndian.Uint32(h[40:])
	return nil
}

func (p *DataOutParser) encode(h []byte) {
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	binary.BigEndian.PutUint32(h[28:], p.ExpStatSN)
	binary.BigEndian.PutUint32(h[36:], p.DataSN)
	binary.BigEndian.PutUint32(h[40:], p.BufferOffset)
}

// LogoutRequestParser handles Logout Request PDUs (RFC 3720 Section 10.14).
type LogoutRequestParser struct {
	InitiatorSequence
	Reason       LogoutReason
	ConnectionID uint16
}

func (*LogoutRequestParser) OperationCode() OperationCode { return OpLogoutRequest }

func (*LogoutRequestParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatNone }

func (p *LogoutRequestParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if !p.Reason.IsValid() {
		return invalidField("logout reason %d", p.Reason)
	}
	return requireFinal(bhs)
}

func (p *LogoutRequestParser) decode(h []byte) error {
	if err := firstError(reserved(h, 2, 4), reserved(h, 8, 16), reserved(h, 22, 24), reserved(h, 32, 48)); err != nil {
		return err
	}
	p.Reason = LogoutReason(h[1] & lowSevenBits)
	p.ConnectionID = binary.BigEndian.Uint16(h[20:])
	p.decodeSequence(h)
	return nil
}

func (p *LogoutRequestParser) encode(h []byte) {
	h[1] |= byte(p.Reason) & lowSevenBits
	binary.BigEndian.PutUint16(h[20:], p.ConnectionID)
	p.encodeSequence(h)
}

// SNACKRequestParser handles SNACK Request PDUs (RFC 3720 Section 10.16).
type SNACKRequestParser struct {
	Type              SNACKType
	LogicalUnitNumber uint64
	TargetTransferTag uint32
	ExpStatSN         uint32
	BegRun            uint32
	RunLength         uint32
}

func (*SNACKRequestParser) OperationCode() OperationCode { return OpSNACKRequest }

func (*SNACKRequestParser) CanContainAHS() bool { return false }

func (*SNACKRequestParser) CanHaveDigests() bool { return true }

// IncrementsSequenceNumber returns false; SNACKs carry no CmdSN.
func (*SNACKRequestParser) IncrementsSequenceNumber(bool) bool { return false }

func (*SNACKRequestParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatNone }

func (p *SNACKRequestParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if !p.Type.IsValid() {
		return invalidField("SNACK type %d", p.Type)
	}
	return requireFinal(bhs)
}

func (p *SNACKRequestParser) decode(h []byte) error {
	err := firstError(
		reservedBits(h, 1, 0x70),
		reserved(h, 2, 4),
		reserved(h, 24, 28),
		reserved(h, 32, 36),
		reserved(h, 44, 48),
	)
	if err != nil {
		return err
	}
	p.Type = SNACKType(h[1] & 0x0f)
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.ExpStatSN = binary.BigEndian.Uint32(h[28:])
	p.BegRun = binary.BigEndian.Uint32(h[36:])
	p.RunLength = binary.BigEndian.Uint32(h[40:])
	return nil
}

func (p *SNACKRequestParser) encode(h []byte) {
	h[1] |= byte(p.Type) & 0x0f
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	binary.BigEndian.PutUint32(h[28:], p.ExpStatSN)
	binary.BigEndian.PutUint32(h[36:], p.BegRun)
	binary.BigEndian.PutUint32(h[40:], p.RunLength)
}
