//go:build !gocv

package camera

import (
	"errors"
	"log/slog"
)

const gocvAvailable = false

// newGoCVDevice returns an error when built without the gocv tag.
func newGoCVDevice(cfg Config, logger *slog.Logger) (Device, error) {
	return nil, &AcquireError{
		Backend: BackendGoCV,
		Reason:  ReasonUnsupported,
		Err:     errors.New("built without OpenCV support (rebuild with -tags gocv)"),
	}
}
