package camera

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockDevice is a synthetic capture device for testing.
// It renders a moving gradient so consecutive frames differ.
type MockDevice struct {
	settings Settings
	logger   *slog.Logger
	track    *videoTrack

	mu     sync.Mutex
	closed bool
	phase  int

	captureDelay time.Duration
	captureErr   error

	// Stats
	captures atomic.Int64
}

// MockOption configures a MockDevice.
type MockOption func(*MockDevice)

// WithCaptureDelay makes every Capture block for d, simulating a slow sensor.
func WithCaptureDelay(d time.Duration) MockOption {
	return func(m *MockDevice) { m.captureDelay = d }
}

// WithCaptureError makes every Capture fail with err.
func WithCaptureError(err error) MockOption {
	return func(m *MockDevice) { m.captureErr = err }
}

// NewMockDevice creates a mock device honouring the ideal constraints.
func NewMockDevice(cfg Config, logger *slog.Logger, opts ...MockOption) *MockDevice {
	if logger == nil {
		logger = slog.Default()
	}

	facing := cfg.Constraints.Facing
	if facing == "" {
		facing = FacingUser
	}

	m := &MockDevice{
		settings: Settings{
			Width:     cfg.Constraints.Width.Ideal,
			Height:    cfg.Constraints.Height.Ideal,
			FrameRate: cfg.Constraints.FrameRate.Ideal,
			Mirrored:  cfg.Mirrored,
			Facing:    facing,
		},
		logger: logger,
	}
	m.track = newVideoTrack(nil)

	for _, opt := range opts {
		opt(m)
	}

	logger.Info("mock camera opened",
		"width", m.settings.Width,
		"height", m.settings.Height,
		"fps", m.settings.FrameRate,
	)

	return m
}

// Settings returns the mock's resolution and frame rate.
func (m *MockDevice) Settings() Settings {
	return m.settings
}

// Capture renders the next synthetic frame into dst.
func (m *MockDevice) Capture(ctx context.Context, dst *image.RGBA) error {
	if m.captureDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.captureDelay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.track.live() {
		return ErrTrackEnded
	}
	if m.captureErr != nil {
		return m.captureErr
	}
	if dst == nil || dst.Bounds() != m.settings.Bounds() {
		return ErrBufferSize
	}

	m.phase = (m.phase + 4) % 256
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := dst.PixOffset(x, y)
			dst.Pix[off+0] = uint8((x + m.phase) % 256)
			dst.Pix[off+1] = uint8((y + m.phase) % 256)
			dst.Pix[off+2] = uint8(m.phase)
			dst.Pix[off+3] = 0xff
		}
	}
	if m.settings.Mirrored {
		mirror(dst)
	}

	m.captures.Add(1)
	return nil
}

// Tracks returns the single video track.
func (m *MockDevice) Tracks() []Track {
	return []Track{m.track}
}

// Name returns "mock".
func (m *MockDevice) Name() string {
	return string(BackendMock)
}

// Captures returns the number of successful captures.
func (m *MockDevice) Captures() int64 {
	return m.captures.Load()
}

// Closed reports whether Close was called.
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close releases the device.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.track.Stop()
	m.logger.Info("mock camera closed", "captures", m.captures.Load())
	return nil
}
