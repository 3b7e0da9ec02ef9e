package login

import (
	"errors"

	"github.com/backkem/iscsi/pkg/negotiation"
	"github.com/backkem/iscsi/pkg/pdu"
	"github.com/backkem/iscsi/pkg/session"
)

// statusFor maps a login error to the Login Response status.
func statusFor(err error) pdu.LoginStatus {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return pdu.LoginStatusSessionDoesNotExist
	case errors.Is(err, session.ErrTooManyConnections):
		return pdu.LoginStatusTooManyConnections
	case errors.Is(err, session.ErrISIDMismatch),
		errors.Is(err, session.ErrDuplicateConnection),
		errors.Is(err, negotiation.ErrSessionMismatch):
		return pdu.LoginStatusCantIncludeInSession
	case errors.Is(err, session.ErrSessionTableFull),
		errors.Is(err, session.ErrTSIHExhausted):
		return pdu.LoginStatusOutOfResources
	case errors.Is(err, ErrAuthMethodRejected):
		return pdu.LoginStatusAuthenticationFailure
	case errors.Is(err, ErrLoginComplete):
		return pdu.LoginStatusInvalidDuringLogin
	default:
		return pdu.LoginStatusInitiatorError
	}
}
