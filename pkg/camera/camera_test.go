package camera

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/teslashibe/go-signstream/internal/log"
)

func mockConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.Constraints.Width.Ideal = 32
	cfg.Constraints.Height.Ideal = 24
	return cfg
}

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints()

	if c.Width.Ideal != 640 || c.Height.Ideal != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", c.Width.Ideal, c.Height.Ideal)
	}
	if c.FrameRate.Ideal != 30 || c.FrameRate.Min != 15 {
		t.Errorf("frame rate = %d (min %d), want 30 (min 15)", c.FrameRate.Ideal, c.FrameRate.Min)
	}
	if c.Facing != FacingUser {
		t.Errorf("facing = %q, want %q", c.Facing, FacingUser)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "v4l9" }, wantErr: true},
		{name: "negative index", mutate: func(c *Config) { c.DeviceIndex = -1 }, wantErr: true},
		{name: "zero width", mutate: func(c *Config) { c.Constraints.Width.Ideal = 0 }, wantErr: true},
		{name: "zero fps", mutate: func(c *Config) { c.Constraints.FrameRate.Ideal = 0 }, wantErr: true},
		{name: "fps below min", mutate: func(c *Config) { c.Constraints.FrameRate.Ideal = 10 }, wantErr: true},
		{name: "unknown facing", mutate: func(c *Config) { c.Constraints.Facing = "up" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("GetPreset(%q) = nil", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("GetPreset should return nil for unknown preset")
	}
}

func TestAcquireMock(t *testing.T) {
	dev, err := Acquire(context.Background(), mockConfig(), log.Discard())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer Release(dev)

	s := dev.Settings()
	if s.Width != 32 || s.Height != 24 {
		t.Errorf("settings = %dx%d, want 32x24", s.Width, s.Height)
	}
	if dev.Name() != "mock" {
		t.Errorf("Name() = %q, want mock", dev.Name())
	}
	if ActiveTracks(dev) != 1 {
		t.Errorf("ActiveTracks() = %d, want 1", ActiveTracks(dev))
	}
}

func TestAcquireInvalidConfig(t *testing.T) {
	cfg := mockConfig()
	cfg.Constraints.Width.Ideal = -1

	_, err := Acquire(context.Background(), cfg, log.Discard())
	if !IsAcquireError(err) {
		t.Fatalf("Acquire() error = %v, want *AcquireError", err)
	}
	var ae *AcquireError
	errors.As(err, &ae)
	if ae.Reason != ReasonConstraints {
		t.Errorf("Reason = %q, want %q", ae.Reason, ReasonConstraints)
	}
}

func TestAcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Acquire(ctx, mockConfig(), log.Discard()); !IsAcquireError(err) {
		t.Errorf("Acquire() error = %v, want *AcquireError", err)
	}
}

func TestMockCapture(t *testing.T) {
	dev := NewMockDevice(mockConfig(), log.Discard())
	defer dev.Close()

	buf := dev.Settings().NewBuffer()
	if err := dev.Capture(context.Background(), buf); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	first := append([]byte(nil), buf.Pix...)

	if err := dev.Capture(context.Background(), buf); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if string(first) == string(buf.Pix) {
		t.Error("consecutive frames should differ")
	}
	if dev.Captures() != 2 {
		t.Errorf("Captures() = %d, want 2", dev.Captures())
	}
}

func TestMockCaptureWrongBuffer(t *testing.T) {
	dev := NewMockDevice(mockConfig(), log.Discard())
	defer dev.Close()

	err := dev.Capture(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if !errors.Is(err, ErrBufferSize) {
		t.Errorf("Capture() error = %v, want ErrBufferSize", err)
	}
}

func TestMockMirrored(t *testing.T) {
	cfg := mockConfig()
	cfg.Mirrored = false
	plain := NewMockDevice(cfg, log.Discard())
	cfg.Mirrored = true
	mirrored := NewMockDevice(cfg, log.Discard())

	a := plain.Settings().NewBuffer()
	b := mirrored.Settings().NewBuffer()
	if err := plain.Capture(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if err := mirrored.Capture(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	w := a.Bounds().Dx()
	for y := 0; y < a.Bounds().Dy(); y++ {
		for x := 0; x < w; x++ {
			if a.RGBAAt(x, y) != b.RGBAAt(w-1-x, y) {
				t.Fatalf("pixel (%d,%d) not mirrored", x, y)
			}
		}
	}
}

func TestMockCaptureDelayHonoursContext(t *testing.T) {
	dev := NewMockDevice(mockConfig(), log.Discard(), WithCaptureDelay(time.Second))
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := dev.Capture(ctx, dev.Settings().NewBuffer())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Capture() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Capture() should return promptly on cancellation")
	}
}

func TestReleaseStopsTracks(t *testing.T) {
	dev := NewMockDevice(mockConfig(), log.Discard())

	if err := Release(dev); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ActiveTracks(dev) != 0 {
		t.Errorf("ActiveTracks() = %d after Release, want 0", ActiveTracks(dev))
	}
	for _, tr := range dev.Tracks() {
		if tr.Enabled() {
			t.Error("track should be disabled after Release")
		}
	}
	if !dev.Closed() {
		t.Error("device should be closed after Release")
	}

	// Idempotent.
	if err := Release(dev); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if err := dev.Capture(context.Background(), dev.Settings().NewBuffer()); !errors.Is(err, ErrClosed) {
		t.Errorf("Capture() after Release error = %v, want ErrClosed", err)
	}
}

func TestReleaseNil(t *testing.T) {
	if err := Release(nil); err != nil {
		t.Errorf("Release(nil) error = %v", err)
	}
	if ActiveTracks(nil) != 0 {
		t.Error("ActiveTracks(nil) should be 0")
	}
}

func TestStoppedTrackRefusesCapture(t *testing.T) {
	dev := NewMockDevice(mockConfig(), log.Discard())
	defer dev.Close()

	dev.Tracks()[0].Stop()
	err := dev.Capture(context.Background(), dev.Settings().NewBuffer())
	if !errors.Is(err, ErrTrackEnded) {
		t.Errorf("Capture() error = %v, want ErrTrackEnded", err)
	}
}
