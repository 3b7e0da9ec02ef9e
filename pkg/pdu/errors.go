package pdu

import (
	"errors"
	"fmt"
)

// Error classes. Every decoding error wraps one of them; both are fatal to
// the connection the PDU arrived on.
var (
	// ErrProtocolViolation reports malformed PDUs: reserved bits set,
	// unknown operation codes, bad lengths or invalid field combinations.
	ErrProtocolViolation = errors.New("pdu: protocol violation")

	// ErrIntegrityFailure reports a header or data digest mismatch.
	ErrIntegrityFailure = errors.New("pdu: integrity failure")
)

// Protocol violations.
var (
	ErrTooShort             = fmt.Errorf("%w: data too short", ErrProtocolViolation)
	ErrUnknownOperationCode = fmt.Errorf("%w: unknown operation code", ErrProtocolViolation)
	ErrReservedBits         = fmt.Errorf("%w: reserved field not zero", ErrProtocolViolation)
	ErrInvalidField         = fmt.Errorf("%w: invalid field value", ErrProtocolViolation)
	ErrMalformedAHS         = fmt.Errorf("%w: malformed additional header segment", ErrProtocolViolation)
	ErrUnexpectedAHS        = fmt.Errorf("%w: additional header segment not allowed", ErrProtocolViolation)
	ErrAHSLengthMismatch    = fmt.Errorf("%w: AHS bytes do not match TotalAHSLength", ErrProtocolViolation)
	ErrDataSegmentTooLong   = fmt.Errorf("%w: data segment exceeds limit", ErrProtocolViolation)
	ErrUnexpectedData       = fmt.Errorf("%w: data segment not allowed", ErrProtocolViolation)
)

// Integrity failures.
var (
	ErrDigestMismatch = fmt.Errorf("%w: digest mismatch", ErrIntegrityFailure)
	ErrHeaderDigest   = fmt.Errorf("%w: header", ErrDigestMismatch)
	ErrDataDigest     = fmt.Errorf("%w: data", ErrDigestMismatch)
)

// Usage errors.
var (
	ErrNoParser          = errors.New("pdu: header has no message parser")
	ErrBufferTooSmall    = errors.New("pdu: destination buffer too small")
	ErrStreamReadFailed  = errors.New("pdu: failed to read from stream")
	ErrStreamWriteFailed = errors.New("pdu: failed to write to stream")
)
