package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed
	// portal or connection.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no connection handler is configured.
	ErrNoHandler = errors.New("transport: no connection handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running portal.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrSendFailed is returned when writing a PDU fails.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrMessageTooLarge is returned when a data segment exceeds the peer's
	// MaxRecvDataSegmentLength.
	ErrMessageTooLarge = errors.New("transport: message too large")
)
