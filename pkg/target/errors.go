package target

import "errors"

// Target errors.
var (
	// ErrNoConfig is returned when NewTarget is called without a portal
	// configuration.
	ErrNoConfig = errors.New("target: no configuration")

	// ErrAlreadyStarted is returned when Start is called on a running target.
	ErrAlreadyStarted = errors.New("target: already started")

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = errors.New("target: not started")

	// ErrAlreadyStopped is returned when the target was stopped before.
	ErrAlreadyStopped = errors.New("target: already stopped")
)
