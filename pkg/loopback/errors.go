package loopback

import "errors"

var (
	// ErrNoRecognizer is returned when the server is configured without a recognizer.
	ErrNoRecognizer = errors.New("loopback: no recognizer configured")

	// ErrNotConnected is returned for an unknown connection ID.
	ErrNotConnected = errors.New("loopback: connection not found")
)
