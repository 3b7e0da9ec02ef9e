package config

import "errors"

// Configuration errors.
var (
	// ErrInvalidPort is returned for a port outside 1-65535.
	ErrInvalidPort = errors.New("config: invalid port")

	// ErrNoTargets is returned when no target is configured.
	ErrNoTargets = errors.New("config: no targets")

	// ErrInvalidTargetName is returned for an empty or malformed target name.
	ErrInvalidTargetName = errors.New("config: invalid target name")

	// ErrDuplicateTarget is returned when two targets share a name.
	ErrDuplicateTarget = errors.New("config: duplicate target")

	// ErrInvalidTargetAddress is returned for a target_address that cannot
	// be announced in a TargetAddress value.
	ErrInvalidTargetAddress = errors.New("config: invalid target address")

	// ErrInvalidDigest is returned for an unsupported digest name.
	ErrInvalidDigest = errors.New("config: invalid digest")

	// ErrInvalidLimit is returned for an out of range session or
	// connection limit.
	ErrInvalidLimit = errors.New("config: invalid limit")
)
