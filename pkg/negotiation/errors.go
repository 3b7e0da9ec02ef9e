package negotiation

import "errors"

var (
	// ErrMissingValue is returned when reading a parameter that was never
	// negotiated and has no default.
	ErrMissingValue = errors.New("negotiation: value not set")

	// ErrNotNegotiating is returned when negotiating outside of a
	// BeginNegotiation/FinishNegotiation round.
	ErrNotNegotiating = errors.New("negotiation: no negotiation in progress")

	// ErrAlreadyNegotiating is returned by BeginNegotiation when the
	// connection already holds the session lock.
	ErrAlreadyNegotiating = errors.New("negotiation: negotiation already in progress")

	// ErrNoSession is returned when a connection negotiator is created
	// without a session negotiator.
	ErrNoSession = errors.New("negotiation: nil session negotiator")

	// ErrUnknownTarget is returned when a target name does not resolve.
	ErrUnknownTarget = errors.New("negotiation: unknown target")

	// ErrInvalidConfig is returned for out of range configuration values.
	ErrInvalidConfig = errors.New("negotiation: invalid config")

	// ErrUnsupportedDigest is returned when a configured digest name is not
	// a valid HeaderDigest or DataDigest value.
	ErrUnsupportedDigest = errors.New("negotiation: unsupported digest")
)

// ErrConstraintViolation is returned when negotiated values break a
// cross-key rule such as FirstBurstLength <= MaxBurstLength.
var ErrConstraintViolation = errors.New("negotiation: constraint violated")

// ErrSessionMismatch is returned when a connection joining a session
// declares an InitiatorName or SessionType other than the session's.
var ErrSessionMismatch = errors.New("negotiation: declaration does not match session")
