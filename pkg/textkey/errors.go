package textkey

import "errors"

// Text parameter errors.
var (
	ErrMalformedPair  = errors.New("textkey: malformed key=value pair")
	ErrUnknownKey     = errors.New("textkey: unknown key")
	ErrInvalidNumber  = errors.New("textkey: invalid numerical value")
	ErrInvalidRange   = errors.New("textkey: invalid numerical range")
	ErrInvalidBoolean = errors.New("textkey: invalid boolean value")
	ErrNegativeNumber = errors.New("textkey: number must not be negative")
)
