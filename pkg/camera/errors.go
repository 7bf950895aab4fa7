package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrClosed is returned when using a device after Close.
	ErrClosed = errors.New("camera: device closed")

	// ErrTrackEnded is returned when capturing from a stopped track.
	ErrTrackEnded = errors.New("camera: track ended")

	// ErrBufferSize is returned when the capture buffer does not match the
	// device's reported resolution.
	ErrBufferSize = errors.New("camera: buffer size does not match device resolution")

	// ErrNoFrame is returned when the device produced no frame.
	ErrNoFrame = errors.New("camera: no frame available")
)

// Reason classifies an acquisition failure.
type Reason string

const (
	// ReasonPermissionDenied means the OS refused access to the device.
	ReasonPermissionDenied Reason = "permission_denied"
	// ReasonNoDevice means no device exists at the requested index.
	ReasonNoDevice Reason = "no_device"
	// ReasonUnsupported means the backend is not compiled in.
	ReasonUnsupported Reason = "unsupported"
	// ReasonConstraints means the device cannot satisfy the constraints.
	ReasonConstraints Reason = "constraints"
)

// AcquireError is returned by Acquire. It is fatal to session start.
type AcquireError struct {
	Backend Backend
	Reason  Reason
	Err     error
}

// Error implements the error interface.
func (e *AcquireError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera [%s]: acquire failed (%s): %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("camera [%s]: acquire failed (%s)", e.Backend, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AcquireError) Unwrap() error {
	return e.Err
}

// IsAcquireError reports whether err is a device acquisition failure.
func IsAcquireError(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae)
}
