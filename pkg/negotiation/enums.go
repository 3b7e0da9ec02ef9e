// Package negotiation implements the iSCSI operational text parameter
// negotiation of RFC 3720 Section 5 from the target's point of view.
//
// Every parameter is held by an Entry that knows how to combine a value
// offered by the initiator with the value the target supports. Entries
// are grouped into a SessionNegotiator (session wide parameters, shared by
// all connections of a session) and one ConnectionNegotiator per
// connection. A negotiation round is a transaction:
//
//	BeginNegotiation  -> snapshot all entries, take the session lock
//	Negotiate (1..n)  -> process the key=value pairs of each PDU
//	CheckConstraints  -> cross-key invariants
//	FinishNegotiation -> commit or roll back, release the lock
//
// WithNegotiation wraps the sequence in a scoped guard.
package negotiation

import (
	"fmt"

	"github.com/backkem/iscsi/pkg/pdu"
)

// NegotiationType distinguishes keys the initiator declares from keys
// both sides negotiate.
type NegotiationType uint8

const (
	// Declared keys are accepted without a reply.
	Declared NegotiationType = iota
	// Negotiated keys are answered with the combined value.
	Negotiated
)

// String returns a human-readable name for the type.
func (t NegotiationType) String() string {
	switch t {
	case Declared:
		return "Declared"
	case Negotiated:
		return "Negotiated"
	default:
		return fmt.Sprintf("NegotiationType(%d)", uint8(t))
	}
}

// NegotiationStatus is the state of one Entry.
//
//	NotNegotiated | Default -> Accepted | Rejected
//	Irrelevant never changes.
type NegotiationStatus uint8

const (
	StatusNotNegotiated NegotiationStatus = iota
	StatusDefault
	StatusAccepted
	StatusRejected
	StatusIrrelevant
)

// String returns a human-readable name for the status.
func (s NegotiationStatus) String() string {
	switch s {
	case StatusNotNegotiated:
		return "NotNegotiated"
	case StatusDefault:
		return "Default"
	case StatusAccepted:
		return "Accepted"
	case StatusRejected:
		return "Rejected"
	case StatusIrrelevant:
		return "Irrelevant"
	default:
		return fmt.Sprintf("NegotiationStatus(%d)", uint8(s))
	}
}

// Use restricts when a key may appear (RFC 3720 Section 12).
type Use uint8

const (
	// UseLeadingLoginOperational keys appear only in the operational stage
	// of the leading connection of a session.
	UseLeadingLoginOperational Use = iota
	// UseLoginOperational keys appear in the operational stage.
	UseLoginOperational
	// UseLoginOperationalAndFullFeature keys appear in the operational
	// stage or the full feature phase.
	UseLoginOperationalAndFullFeature
	// UseFullFeature keys appear only in the full feature phase.
	UseFullFeature
	// UseInitial keys appear only in the first login PDU.
	UseInitial
	// UseInitialAndFullFeature keys appear in the first login PDU or in
	// the first text request of the full feature phase.
	UseInitialAndFullFeature
)

// String returns a human-readable name for the use.
func (u Use) String() string {
	switch u {
	case UseLeadingLoginOperational:
		return "LeadingLoginOperational"
	case UseLoginOperational:
		return "LoginOperational"
	case UseLoginOperationalAndFullFeature:
		return "LoginOperationalAndFullFeature"
	case UseFullFeature:
		return "FullFeature"
	case UseInitial:
		return "Initial"
	case UseInitialAndFullFeature:
		return "InitialAndFullFeature"
	default:
		return fmt.Sprintf("Use(%d)", uint8(u))
	}
}

// Check reports whether a key with this use may be processed in the given
// stage, on a leading connection or not, in the first PDU or not.
func (u Use) Check(stage pdu.LoginStage, leading, initialPDU bool) bool {
	operational := stage == pdu.LoginStageOperationalNegotiation
	fullFeature := stage == pdu.LoginStageFullFeature
	login := stage == pdu.LoginStageSecurityNegotiation || operational

	switch u {
	case UseLeadingLoginOperational:
		return leading && operational
	case UseLoginOperational:
		return operational
	case UseLoginOperationalAndFullFeature:
		return operational || fullFeature
	case UseFullFeature:
		return fullFeature
	case UseInitial:
		return initialPDU && login
	case UseInitialAndFullFeature:
		return initialPDU && (login || fullFeature)
	default:
		return false
	}
}

// BooleanResultFunction combines two boolean values.
type BooleanResultFunction uint8

const (
	ResultAnd BooleanResultFunction = iota
	ResultOr
)

// Apply returns the combined value.
func (f BooleanResultFunction) Apply(a, b bool) bool {
	if f == ResultOr {
		return a || b
	}
	return a && b
}

// String returns "And" or "Or".
func (f BooleanResultFunction) String() string {
	if f == ResultOr {
		return "Or"
	}
	return "And"
}

// NumericalResultFunction combines two numerical values.
type NumericalResultFunction uint8

const (
	ResultMin NumericalResultFunction = iota
	ResultMax
)

// Apply returns the combined value.
func (f NumericalResultFunction) Apply(a, b int) int {
	if f == ResultMax {
		return max(a, b)
	}
	return min(a, b)
}

// String returns "Min" or "Max".
func (f NumericalResultFunction) String() string {
	if f == ResultMax {
		return "Max"
	}
	return "Min"
}

// Round describes where the pairs being negotiated were received.
type Round struct {
	// Stage is the CSG of the login PDU, or LoginStageFullFeature for
	// text requests.
	Stage pdu.LoginStage

	// Leading is set on the first connection of a session.
	Leading bool

	// InitialPDU is set for the first PDU of the login (or of a text
	// negotiation in the full feature phase).
	InitialPDU bool
}
