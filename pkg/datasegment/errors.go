package datasegment

import "errors"

// Data segment errors.
var (
	ErrUnknownFormat  = errors.New("datasegment: unknown format")
	ErrBufferTooSmall = errors.New("datasegment: destination buffer too small")
	ErrNotSupported   = errors.New("datasegment: operation not supported by this format")
	ErrInvalidChunk   = errors.New("datasegment: chunk size must be positive")
	ErrMalformedText  = errors.New("datasegment: malformed text parameters")
	ErrMalformedSense = errors.New("datasegment: malformed SCSI response data")
	ErrKeyNotFound    = errors.New("datasegment: key not present")
)
