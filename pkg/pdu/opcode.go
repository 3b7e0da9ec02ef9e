// Package pdu implements the iSCSI Protocol Data Unit wire format as
// defined in RFC 3720 Section 10.
//
// The package provides:
//   - Basic Header Segment encoding and decoding with operation code dispatch
//   - One MessageParser per operation code for the opcode specific fields
//   - Additional Header Segments (extended CDB, bidirectional read length)
//   - ProtocolDataUnit composition with optional header and data digests
//   - Stream reading and writing over TCP connections
//
// The codec performs no I/O of its own except in Reader and Writer, and is
// safe to use from one goroutine per connection.
package pdu

import "fmt"

// OperationCode identifies the PDU type (RFC 3720 Section 10.2.1.2).
// Initiator opcodes lie in 0x00-0x1f, target opcodes in 0x20-0x3f.
type OperationCode uint8

// Initiator operation codes.
const (
	OpNOPOut                OperationCode = 0x00
	OpSCSICommand           OperationCode = 0x01
	OpTaskManagementRequest OperationCode = 0x02
	OpLoginRequest          OperationCode = 0x03
	OpTextRequest           OperationCode = 0x04
	OpDataOut               OperationCode = 0x05
	OpLogoutRequest         OperationCode = 0x06
	OpSNACKRequest          OperationCode = 0x10
)

// Target operation codes.
const (
	OpNOPIn                  OperationCode = 0x20
	OpSCSIResponse           OperationCode = 0x21
	OpTaskManagementResponse OperationCode = 0x22
	OpLoginResponse          OperationCode = 0x23
	OpTextResponse           OperationCode = 0x24
	OpDataIn                 OperationCode = 0x25
	OpLogoutResponse         OperationCode = 0x26
	OpReadyToTransfer        OperationCode = 0x31
	OpAsyncMessage           OperationCode = 0x32
	OpReject                 OperationCode = 0x3f
)

// opcodeMask selects the operation code bits of BHS byte 0.
const opcodeMask = 0x3f

// opcodeInvalid never appears on the wire.
const opcodeInvalid OperationCode = 0xff

var opcodeNames = map[OperationCode]string{
	OpNOPOut:                 "NOP-Out",
	OpSCSICommand:            "SCSI Command",
	OpTaskManagementRequest:  "Task Management Request",
	OpLoginRequest:           "Login Request",
	OpTextRequest:            "Text Request",
	OpDataOut:                "SCSI Data-Out",
	OpLogoutRequest:          "Logout Request",
	OpSNACKRequest:           "SNACK Request",
	OpNOPIn:                  "NOP-In",
	OpSCSIResponse:           "SCSI Response",
	OpTaskManagementResponse: "Task Management Response",
	OpLoginResponse:          "Login Response",
	OpTextResponse:           "Text Response",
	OpDataIn:                 "SCSI Data-In",
	OpLogoutResponse:         "Logout Response",
	OpReadyToTransfer:        "Ready To Transfer",
	OpAsyncMessage:           "Asynchronous Message",
	OpReject:                 "Reject",
}

// String returns the RFC name of the operation code.
func (op OperationCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint8(op))
}

// IsValid returns true if the operation code is defined.
func (op OperationCode) IsValid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// IsInitiator returns true for opcodes sent by initiators.
func (op OperationCode) IsInitiator() bool {
	return op.IsValid() && op < 0x20
}

// IsTarget returns true for opcodes sent by targets.
func (op OperationCode) IsTarget() bool {
	return op.IsValid() && op >= 0x20
}
