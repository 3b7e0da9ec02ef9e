package digest

import "errors"

// Digest errors.
var (
	ErrMismatch      = errors.New("digest: mismatch")
	ErrInvalidLength = errors.New("digest: invalid digest length")
	ErrUnknownDigest = errors.New("digest: unknown digest algorithm")
)
