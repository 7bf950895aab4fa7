package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
)

// Settings is what the device actually delivers after negotiation.
type Settings struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frame_rate"`
	Mirrored  bool   `json:"mirrored"`
	Facing    Facing `json:"facing"`
}

// Bounds returns the raster rectangle for one frame.
func (s Settings) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width, s.Height)
}

// NewBuffer allocates an RGBA raster sized to the reported resolution.
func (s Settings) NewBuffer() *image.RGBA {
	return image.NewRGBA(s.Bounds())
}

// Device is a live video source.
type Device interface {
	// Settings returns the negotiated resolution, frame rate and mirroring.
	Settings() Settings

	// Capture copies the current frame into dst, which must match
	// Settings().Bounds(). It blocks until a frame is available or ctx is done.
	Capture(ctx context.Context, dst *image.RGBA) error

	// Tracks returns the device's media tracks.
	Tracks() []Track

	// Name returns the backend name (e.g., "gocv", "mock").
	Name() string

	// Close releases the device handle. Safe to call multiple times.
	io.Closer
}

// Acquire opens a capture device with the given configuration.
// Every failure is returned as an *AcquireError.
func Acquire(ctx context.Context, cfg Config, logger *slog.Logger) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &AcquireError{Backend: cfg.Backend, Reason: ReasonConstraints, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &AcquireError{Backend: cfg.Backend, Reason: ReasonNoDevice, Err: err}
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
		if backend == BackendMock {
			logger.Warn("no camera backend compiled in, using synthetic frames (build with -tags gocv)")
		}
	}

	logger.Info("acquiring camera",
		"backend", backend,
		"device_index", cfg.DeviceIndex,
		"width", cfg.Constraints.Width.Ideal,
		"height", cfg.Constraints.Height.Ideal,
		"fps", cfg.Constraints.FrameRate.Ideal,
		"mirrored", cfg.Mirrored,
	)

	switch backend {
	case BackendMock:
		return NewMockDevice(cfg, logger), nil
	case BackendGoCV:
		return newGoCVDevice(cfg, logger)
	default:
		return nil, &AcquireError{
			Backend: backend,
			Reason:  ReasonUnsupported,
			Err:     fmt.Errorf("unsupported backend: %s", backend),
		}
	}
}

// detectBestBackend returns the best backend compiled into this binary.
func detectBestBackend() Backend {
	if gocvAvailable {
		return BackendGoCV
	}
	return BackendMock
}

// AvailableBackends returns the list of backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if gocvAvailable {
		backends = append(backends, BackendGoCV)
	}
	return backends
}

// Release stops and disables every track and then closes the device.
// It is idempotent and safe on a nil device.
func Release(dev Device) error {
	if dev == nil {
		return nil
	}
	for _, t := range dev.Tracks() {
		t.SetEnabled(false)
		t.Stop()
	}
	return dev.Close()
}

// ActiveTracks counts tracks that are still live.
func ActiveTracks(dev Device) int {
	if dev == nil {
		return 0
	}
	n := 0
	for _, t := range dev.Tracks() {
		if t.State() == TrackLive {
			n++
		}
	}
	return n
}

// mirror flips img horizontally in place.
func mirror(img *image.RGBA) {
	b := img.Bounds()
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Min.X, y)+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			lo, ro := l*4, r*4
			for c := 0; c < 4; c++ {
				row[lo+c], row[ro+c] = row[ro+c], row[lo+c]
			}
		}
	}
}
