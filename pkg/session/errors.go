package session

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrTornDown is returned when starting a session after Teardown.
	ErrTornDown = errors.New("session: torn down")

	// ErrConnectionClosed is returned by Run when the inference connection ends.
	ErrConnectionClosed = errors.New("session: inference connection closed")
)
