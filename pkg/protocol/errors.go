package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for decode failures. Match them with errors.Is.
var (
	// ErrMalformedMessage is returned when an inbound body is not valid UTF-8 JSON.
	ErrMalformedMessage = errors.New("protocol: malformed message")

	// ErrInvalidFrame is returned when the frame field is not an even-length hex string.
	ErrInvalidFrame = errors.New("protocol: invalid frame hex")

	// ErrEmptyImage is returned when asked to encode an image with no pixels.
	ErrEmptyImage = errors.New("protocol: empty image")
)

// DecodeKind classifies a DecodeError.
type DecodeKind string

const (
	// KindJSON means the body could not be parsed as a JSON object.
	KindJSON DecodeKind = "json"
	// KindFrame means the frame field was present but not valid hex.
	KindFrame DecodeKind = "frame"
)

// DecodeError reports why an inbound message was rejected.
// The message it describes should be dropped, never treated as fatal.
type DecodeError struct {
	Kind DecodeKind
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel for the error's kind.
func (e *DecodeError) Is(target error) bool {
	switch e.Kind {
	case KindJSON:
		return target == ErrMalformedMessage
	case KindFrame:
		return target == ErrInvalidFrame
	}
	return false
}
