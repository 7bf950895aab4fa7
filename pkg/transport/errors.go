package transport

import "errors"

var (
	// ErrOpenFailed wraps a dial or handshake failure.
	ErrOpenFailed = errors.New("transport: open failed")

	// ErrClosed is returned when opening a channel that has already closed.
	ErrClosed = errors.New("transport: channel closed")

	// ErrNotOpen is returned by Send when the connection is not Open.
	// The frame is dropped; callers should not retry it.
	ErrNotOpen = errors.New("transport: not open")

	// ErrAlreadyOpened is returned when Open is called twice on one channel.
	ErrAlreadyOpened = errors.New("transport: already opened")

	// ErrEmptyFrame is returned when sending a frame without payload.
	ErrEmptyFrame = errors.New("transport: empty frame")
)
