//go:build !gocv

package letters

import "fmt"

// NewLandmarkNet returns ErrNoModel when built without the gocv tag.
func NewLandmarkNet(cfg Config) (Detector, error) {
	return nil, fmt.Errorf("%w: built without OpenCV support (rebuild with -tags gocv)", ErrNoModel)
}
