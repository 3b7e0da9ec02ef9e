package pdu

import (
	"encoding/binary"

	"github.com/backkem/iscsi/pkg/datasegment"
)

// NOPInParser handles NOP-In PDUs (RFC 3720 Section 10.19).
type NOPInParser struct {
	TargetSequence
	LogicalUnitNumber uint64
	TargetTransferTag uint32
}

func (*NOPInParser) OperationCode() OperationCode { return OpNOPIn }

func (*NOPInParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (p *NOPInParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	return requireFinal(bhs)
}

func (p *NOPInParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, lowSevenBits), reserved(h, 2, 4), reserved(h, 36, 48)); err != nil {
		return err
	}
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	return nil
}

func (p *NOPInParser) encode(h []byte) {
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	p.encodeSequence(h)
}

// SCSIResponseParser handles SCSI Response PDUs (RFC 3720 Section 10.4).
type SCSIResponseParser struct {
	TargetSequence
	BidiReadResidualOverflow  bool
	BidiReadResidualUnderflow bool
	ResidualOverflow          bool
	ResidualUnderflow         bool
	Response                  uint8
	Status                    uint8
	SNACKTag                  uint32
	ExpDataSN                 uint32
	BidiReadResidualCount     uint32
	ResidualCount             uint32
}

func (*SCSIResponseParser) OperationCode() OperationCode { return OpSCSIResponse }

func (*SCSIResponseParser) DataSegmentFormat() datasegment.Format {
	return datasegment.FormatSCSIResponse
}

func (p *SCSIResponseParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	switch {
	case p.BidiReadResidualOverflow && p.BidiReadResidualUnderflow:
		return invalidField("bidirectional read residual overflow and underflow both set")
	case p.ResidualOverflow && p.ResidualUnderflow:
		return invalidField("residual overflow and underflow both set")
	}
	return requireFinal(bhs)
}

func (p *SCSIResponseParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, 0x61), reserved(h, 8, 16)); err != nil {
		return err
	}
	p.BidiReadResidualOverflow = flag(h[1], flagBidiOverflow)
	p.BidiReadResidualUnderflow = flag(h[1], flagBidiUnder)
	p.ResidualOverflow = flag(h[1], flagOverflow)
	p.ResidualUnderflow = flag(h[1], flagUnderflow)
	p.Response = h[2]
	p.Status = h[3]
	p.SNACKTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	p.ExpDataSN = binary.BigEndian.Uint32(h[36:])
	p.BidiReadResidualCount = binary.BigEndian.Uint32(h[40:])
	p.ResidualCount = binary.BigEndian.Uint32(h[44:])
	return nil
}

func (p *SCSIResponseParser) encode(h []byte) {
	setFlag(&h[1], flagBidiOverflow, p.BidiReadResidualOverflow)
	setFlag(&h[1], flagBidiUnder, p.BidiReadResidualUnderflow)
	setFlag(&h[1], flagOverflow, p.ResidualOverflow)
	setFlag(&h[1], flagUnderflow, p.ResidualUnderflow)
	h[2] = p.Response
	h[3] = p.Status
	binary.BigEndian.PutUint32(h[20:], p.SNACKTag)
	p.encodeSequence(h)
	binary.BigEndian.PutUint32(h[36:], p.ExpDataSN)
	binary.BigEndian.PutUint32(h[40:], p.BidiReadResidualCount)
	binary.BigEndian.PutUint32(h[44:], p.ResidualCount)
}

// TaskManagementResponseParser handles Task Management Function Response
// PDUs (RFC 3720 Section 10.6).
type TaskManagementResponseParser struct {
	TargetSequence
	Response TaskManagementResponseCode
}

func (*TaskManagementResponseParser) OperationCode() OperationCode {
	return OpTaskManagementResponse
}

func (*TaskManagementResponseParser) DataSegmentFormat() datasegment.Format {
	return datasegment.FormatNone
}

func (p *TaskManagementResponseParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	return requireFinal(bhs)
}

func (p *TaskManagementResponseParser) decode(h []byte) error {
	if err := firstError(
		reservedBits(h, 1, lowSevenBits),
		reserved(h, 3, 4),
		reserved(h, 8, 16),
		reserved(h, 20, 24),
		reserved(h, 36, 48),
	); err != nil {
		return err
	}
	p.Response = TaskManagementResponseCode(h[2])
	p.decodeSequence(h)
	return nil
}

func (p *TaskManagementResponseParser) encode(h []byte) {
	h[2] = uint8(p.Response)
	p.encodeSequence(h)
}

// TextResponseParser handles Text Response PDUs (RFC 3720 Section 10.11).
type TextResponseParser struct {
	TargetSequence
	Continue          bool
	LogicalUnitNumber uint64
	TargetTransferTag uint32
}

func (*TextResponseParser) OperationCode() OperationCode { return OpTextResponse }

func (*TextResponseParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatText }

func (p *TextResponseParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if bhs.Final && p.Continue {
		return invalidField("text response with both final and continue flags")
	}
	return nil
}

func (p *TextResponseParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, 0x3f), reserved(h, 2, 4), reserved(h, 36, 48)); err != nil {
		return err
	}
	p.Continue = flag(h[1], flagContinue)
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	return nil
}

func (p *TextResponseParser) encode(h []byte) {
	setFlag(&h[1], flagContinue, p.Continue)
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	p.encodeSequence(h)
}

// DataInParser handles SCSI Data-In PDUs (RFC 3720 Section 10.7). Status
// and residual fields are only meaningful when StatusPresent is set.
type DataInParser struct {
	TargetSequence
	Acknowledge       bool
	ResidualOverflow  bool
	ResidualUnderflow bool
	StatusPresent     bool
	Status            uint8
	LogicalUnitNumber uint64
	TargetTransferTag uint32
	DataSN            uint32
	BufferOffset      uint32
	ResidualCount     uint32
}

func (*DataInParser) OperationCode() OperationCode { return OpDataIn }

// IncrementsSequenceNumber reports whether the PDU carries status.
func (p *DataInParser) IncrementsSequenceNumber(bool) bool { return p.StatusPresent }

func (*DataInParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (p *DataInParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	switch {
	case p.StatusPresent && !bhs.Final:
		return invalidField("data-in status without final flag")
	case p.ResidualOverflow && p.ResidualUnderflow:
		return invalidField("residual overflow and underflow both set")
	}
	return nil
}

func (p *DataInParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, 0x38), reserved(h, 2, 3)); err != nil {
		return err
	}
	p.Acknowledge = flag(h[1], flagAcknowledge)
	p.ResidualOverflow = flag(h[1], flagOverflow)
	p.ResidualUnderflow = flag(h[1], flagUnderflow)
	p.StatusPresent = flag(h[1], flagStatus)
	p.Status = h[3]
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	p.DataSN = binary.BigEndian.Uint32(h[36:])
	p.BufferOffset = binary.BigEndian.Uint32(h[40:])
	p.ResidualCount = binary.BigEndian.Uint32(h[44:])
	return nil
}

func (p *DataInParser) encode(h []byte) {
	setFlag(&h[1], flagAcknowledge, p.Acknowledge)
	setFlag(&h[1], flagOverflow, p.ResidualOverflow)
	setFlag(&h[1], flagUnderflow, p.ResidualUnderflow)
	setFlag(&h[1], flagStatus, p.StatusPresent)
	h[3] = p.Status
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	p.encodeSequence(h)
	binary.BigEndian.PutUint32(h[36:], p.DataSN)
	binary.BigEndian.PutUint32(h[40:], p.BufferOffset)
	binary.BigEndian.PutUint32(h[44:], p.ResidualCount)
}

// LogoutResponseParser handles Logout Response PDUs (RFC 3720 Section 10.15).
type LogoutResponseParser struct {
	TargetSequence
	Response    LogoutResponseCode
	Time2Wait   uint16
	Time2Retain uint16
}

func (*LogoutResponseParser) OperationCode() OperationCode { return OpLogoutResponse }

func (*LogoutResponseParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatNone }

func (p *LogoutResponseParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if !p.Response.IsValid() {
		return invalidField("logout response %d", p.Response)
	}
	return requireFinal(bhs)
}

func (p *LogoutResponseParser) decode(h []byte) error {
	if err := firstError(
		reservedBits(h, 1, lowSevenBits),
		reserved(h, 3, 4),
		reserved(h, 8, 16),
		reserved(h, 20, 24),
		reserved(h, 36, 40),
		reserved(h, 44, 48),
	); err != nil {
		return err
	}
	p.Response = LogoutResponseCode(h[2])
	p.decodeSequence(h)
	p.Time2Wait = binary.BigEndian.Uint16(h[40:])
	p.Time2Retain = binary.BigEndian.Uint16(h[42:])
	return nil
}

func (p *LogoutResponseParser) encode(h []byte) {
	h[2] = uint8(p.Response)
	p.encodeSequence(h)
	binary.BigEndian.PutUint16(h[40:], p.Time2Wait)
	binary.BigEndian.PutUint16(h[42:], p.Time2Retain)
}

// ReadyToTransferParser handles Ready To Transfer PDUs (RFC 3720 Section
// 10.8). StatSN carries the next StatSN without advancing it.
type ReadyToTransferParser struct {
	TargetSequence
	LogicalUnitNumber         uint64
	TargetTransferTag         uint32
	R2TSN                     uint32
	BufferOffset              uint32
	DesiredDataTransferLength uint32
}

func (*ReadyToTransferParser) OperationCode() OperationCode { return OpReadyToTransfer }

// IncrementsSequenceNumber returns false.
func (*ReadyToTransferParser) IncrementsSequenceNumber(bool) bool { return false }

func (*ReadyToTransferParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatNone }

func (p *ReadyToTransferParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if p.TargetTransferTag == ReservedTag {
		return invalidField("R2T with reserved target transfer tag")
	}
	return requireFinal(bhs)
}

func (p *ReadyToTransferParser) decode(h []byte) error {
	if err := firstError(reservedBits(h, 1, lowSevenBits), reserved(h, 2, 4)); err != nil {
		return err
	}
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.TargetTransferTag = binary.BigEndian.Uint32(h[20:])
	p.decodeSequence(h)
	p.R2TSN = binary.BigEndian.Uint32(h[36:])
	p.BufferOffset = binary.BigEndian.Uint32(h[40:])
	p.DesiredDataTransferLength = binary.BigEndian.Uint32(h[44:])
	return nil
}

func (p *ReadyToTransferParser) encode(h []byte) {
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	binary.BigEndian.PutUint32(h[20:], p.TargetTransferTag)
	p.encodeSequence(h)
	binary.BigEndian.PutUint32(h[36:], p.R2TSN)
	binary.BigEndian.PutUint32(h[40:], p.BufferOffset)
	binary.BigEndian.PutUint32(h[44:], p.DesiredDataTransferLength)
}

// AsyncMessageParser handles Asynchronous Message PDUs (RFC 3720 Section
// 10.9). The data segment carries sense or vendor data.
type AsyncMessageParser struct {
	TargetSequence
	LogicalUnitNumber uint64
	Event             AsyncEvent
	VendorCode        uint8
	Parameter1        uint16
	Parameter2        uint16
	Parameter3        uint16
}

func (*AsyncMessageParser) OperationCode() OperationCode { return OpAsyncMessage }

func (*AsyncMessageParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (p *AsyncMessageParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	return requireFinal(bhs)
}

func (p *AsyncMessageParser) decode(h []byte) error {
	if err := firstError(
		reservedBits(h, 1, lowSevenBits),
		reserved(h, 2, 4),
		reserved(h, 20, 24),
		reserved(h, 44, 48),
	); err != nil {
		return err
	}
	p.LogicalUnitNumber = binary.BigEndian.Uint64(h[8:])
	p.decodeSequence(h)
	p.Event = AsyncEvent(h[36])
	p.VendorCode = h[37]
	p.Parameter1 = binary.BigEndian.Uint16(h[38:])
	p.Parameter2 = binary.BigEndian.Uint16(h[40:])
	p.Parameter3 = binary.BigEndian.Uint16(h[42:])
	return nil
}

func (p *AsyncMessageParser) encode(h []byte) {
	binary.BigEndian.PutUint64(h[8:], p.LogicalUnitNumber)
	p.encodeSequence(h)
	h[36] = uint8(p.Event)
	h[37] = p.VendorCode
	binary.BigEndian.PutUint16(h[38:], p.Parameter1)
	binary.BigEndian.PutUint16(h[40:], p.Parameter2)
	binary.BigEndian.PutUint16(h[42:], p.Parameter3)
}

// RejectParser handles Reject PDUs (RFC 3720 Section 10.17). The data
// segment holds the complete header of the rejected PDU.
type RejectParser struct {
	TargetSequence
	Reason RejectReason
	DataSN uint32
}

func (*RejectParser) OperationCode() OperationCode { return OpReject }

func (*RejectParser) DataSegmentFormat() datasegment.Format { return datasegment.FormatBinary }

func (p *RejectParser) CheckIntegrity(bhs *BasicHeaderSegment) error {
	if !p.Reason.IsValid() {
		return invalidField("reject reason 0x%02x", uint8(p.Reason))
	}
	return requireFinal(bhs)
}

func (p *RejectParser) decode(h []byte) error {
	if err := firstError(
		reservedBits(h, 1, lowSevenBits),
		reserved(h, 3, 4),
		reserved(h, 8, 16),
		reserved(h, 20, 24),
		reserved(h, 40, 48),
	); err != nil {
		return err
	}
	p.Reason = RejectReason(h[2])
	p.decodeSequence(h)
	p.DataSN = binary.BigEndian.Uint32(h[36:])
	return nil
}

func (p *RejectParser) encode(h []byte) {
	h[2] = uint8(p.Reason)
	p.encodeSequence(h)
	binary.BigEndian.PutUint32(h[36:], p.DataSN)
}
