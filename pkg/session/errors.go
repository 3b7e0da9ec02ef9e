package session

import "errors"

// Session package errors.
var (
	// ErrInvalidTSIH is returned when adding a session with TSIH 0.
	ErrInvalidTSIH = errors.New("session: invalid TSIH")

	// ErrSessionNotFound is returned when a session lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTableFull is returned when no more sessions can be allocated.
	ErrSessionTableFull = errors.New("session: session table full")

	// ErrTSIHExhausted is returned when no more TSIH values are available.
	ErrTSIHExhausted = errors.New("session: TSIH space exhausted")

	// ErrDuplicateSession is returned when adding a session with an existing TSIH.
	ErrDuplicateSession = errors.New("session: duplicate TSIH")

	// ErrISIDMismatch is returned when a connection joins a session with a
	// different ISID.
	ErrISIDMismatch = errors.New("session: ISID does not match session")

	// ErrTooManyConnections is returned when a connection would exceed the
	// negotiated MaxConnections.
	ErrTooManyConnections = errors.New("session: too many connections")

	// ErrDuplicateConnection is returned when a CID is already in use.
	ErrDuplicateConnection = errors.New("session: duplicate connection ID")
)
