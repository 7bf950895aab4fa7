package capture

import "errors"

var (
	// ErrAlreadyStarted is returned when starting a loop or task twice.
	ErrAlreadyStarted = errors.New("capture: already started")

	// ErrStopped is returned when starting a loop that has been stopped.
	ErrStopped = errors.New("capture: stopped")
)
