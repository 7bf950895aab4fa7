// Package camera acquires and owns a live video capture device.
//
// This package supports multiple backends:
//   - GoCV (OpenCV VideoCapture) - real webcams, built with -tags gocv
//   - Mock - synthetic frames for CI/testing without hardware
//
// The backend is selected from configuration; BackendAuto picks the best one
// compiled into the binary.
package camera

import (
	"fmt"
)

// Backend represents the capture backend type.
type Backend string

const (
	// BackendAuto selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendGoCV uses OpenCV through gocv.
	BackendGoCV Backend = "gocv"
	// BackendMock generates synthetic frames.
	BackendMock Backend = "mock"
)

// Facing is the requested camera direction.
type Facing string

const (
	// FacingUser is the front camera, pointed at the signer.
	FacingUser Facing = "user"
	// FacingEnvironment is the rear camera.
	FacingEnvironment Facing = "environment"
)

// Range is a capture constraint with an ideal value and optional bounds.
// Zero Min or Max means unbounded.
type Range struct {
	Ideal int `yaml:"ideal" json:"ideal"`
	Min   int `yaml:"min,omitempty" json:"min,omitempty"`
	Max   int `yaml:"max,omitempty" json:"max,omitempty"`
}

// Satisfied reports whether v is within the bounds.
func (r Range) Satisfied(v int) bool {
	if r.Min > 0 && v < r.Min {
		return false
	}
	if r.Max > 0 && v > r.Max {
		return false
	}
	return true
}

// Constraints is the capture request sent to the device subsystem.
type Constraints struct {
	Width     Range  `yaml:"width" json:"width"`
	Height    Range  `yaml:"height" json:"height"`
	FrameRate Range  `yaml:"frame_rate" json:"frame_rate"`
	Facing    Facing `yaml:"facing" json:"facing"`
}

// DefaultConstraints returns 640x480, 30fps ideal (15 minimum), user-facing.
func DefaultConstraints() Constraints {
	return Constraints{
		Width:     Range{Ideal: 640},
		Height:    Range{Ideal: 480},
		FrameRate: Range{Ideal: 30, Min: 15},
		Facing:    FacingUser,
	}
}

// Config holds camera configuration.
type Config struct {
	// Backend specifies which capture backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// DeviceIndex is the OpenCV device index (0 = first camera).
	DeviceIndex int `yaml:"device_index" json:"device_index"`

	// Constraints is the requested capture format.
	Constraints Constraints `yaml:"constraints" json:"constraints"`

	// Mirrored flips frames horizontally so the preview behaves like a mirror.
	Mirrored bool `yaml:"mirrored" json:"mirrored"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendAuto,
		DeviceIndex: 0,
		Constraints: DefaultConstraints(),
		Mirrored:    true,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendGoCV, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("device_index must not be negative, got %d", c.DeviceIndex)
	}
	if c.Constraints.Width.Ideal <= 0 || c.Constraints.Height.Ideal <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d",
			c.Constraints.Width.Ideal, c.Constraints.Height.Ideal)
	}
	if c.Constraints.FrameRate.Ideal <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", c.Constraints.FrameRate.Ideal)
	}
	if !c.Constraints.FrameRate.Satisfied(c.Constraints.FrameRate.Ideal) {
		return fmt.Errorf("frame_rate ideal %d outside [%d, %d]",
			c.Constraints.FrameRate.Ideal, c.Constraints.FrameRate.Min, c.Constraints.FrameRate.Max)
	}
	switch c.Constraints.Facing {
	case "", FacingUser, FacingEnvironment:
	default:
		return fmt.Errorf("unknown facing %q", c.Constraints.Facing)
	}
	return nil
}
