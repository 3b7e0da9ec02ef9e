package login

import "errors"

// Login package errors.
var (
	// ErrNotLoginRequest is returned for any PDU other than a Login Request
	// during the login phase.
	ErrNotLoginRequest = errors.New("login: not a login request")

	// ErrStageMismatch is returned when the CSG of a request differs from
	// the current login stage.
	ErrStageMismatch = errors.New("login: current stage mismatch")

	// ErrTaskTagMismatch is returned when a request does not carry the
	// initiator task tag of the first login request.
	ErrTaskTagMismatch = errors.New("login: initiator task tag changed")

	// ErrIdentityMismatch is returned when ISID, TSIH or CID change within
	// one login.
	ErrIdentityMismatch = errors.New("login: session identity changed")

	// ErrUnexpectedData is returned when the initiator sends text while
	// the target still has continued response text to deliver.
	ErrUnexpectedData = errors.New("login: unexpected text while response is continued")

	// ErrAuthMethodRejected is returned when the initiator offers no
	// acceptable AuthMethod.
	ErrAuthMethodRejected = errors.New("login: no acceptable AuthMethod")

	// ErrNegotiationFailed is returned when a key was rejected or a
	// mandatory declaration is missing.
	ErrNegotiationFailed = errors.New("login: negotiation failed")

	// ErrLoginFailed is returned for requests after a failed login.
	ErrLoginFailed = errors.New("login: login already failed")

	// ErrLoginComplete is returned for login requests after the connection
	// reached the full feature phase.
	ErrLoginComplete = errors.New("login: login already complete")
)
