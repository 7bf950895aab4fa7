package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/session"
)

func TestDefaults(t *testing.T) {
	v := New()

	cfg, err := Session(v)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if cfg.Endpoint != session.DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, session.DefaultEndpoint)
	}
	if cfg.Camera.Constraints.Width.Ideal != 640 || cfg.Camera.Constraints.Height.Ideal != 480 {
		t.Errorf("resolution = %dx%d, want 640x480",
			cfg.Camera.Constraints.Width.Ideal, cfg.Camera.Constraints.Height.Ideal)
	}
	if cfg.Camera.Constraints.FrameRate.Min != 15 {
		t.Errorf("min fps = %d, want 15", cfg.Camera.Constraints.FrameRate.Min)
	}
	if cfg.Quality != 0.7 {
		t.Errorf("Quality = %v, want 0.7", cfg.Quality)
	}

	if lb := LoopbackConfig(v); lb.Addr != ":5000" {
		t.Errorf("loopback addr = %q, want :5000", lb.Addr)
	}
	if vw := ViewerConfig(v); !vw.Enabled || vw.Addr != ":8080" {
		t.Errorf("viewer = %+v", vw)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("SIGNSTREAM_ENDPOINT", "wss://signs.example.com")
	t.Setenv("SIGNSTREAM_CAMERA_BACKEND", "mock")
	t.Setenv("SIGNSTREAM_CAPTURE_INTERVAL", "100ms")

	cfg, err := Session(New())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if cfg.Endpoint != "wss://signs.example.com" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Camera.Backend != camera.BackendMock {
		t.Errorf("Backend = %q, want mock", cfg.Camera.Backend)
	}
	if cfg.Interval != 100*time.Millisecond {
		t.Errorf("Interval = %v, want 100ms", cfg.Interval)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signstream.yaml")
	data := []byte(`
endpoint: http://inference.local:5000
camera:
  width: 320
  height: 240
loopback:
  translation: A
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	v := New()
	if err := Load(v, path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg, err := Session(v)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if cfg.Endpoint != "http://inference.local:5000" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Camera.Constraints.Width.Ideal != 320 || cfg.Camera.Constraints.Height.Ideal != 240 {
		t.Errorf("resolution = %dx%d, want 320x240",
			cfg.Camera.Constraints.Width.Ideal, cfg.Camera.Constraints.Height.Ideal)
	}
	if got := LoopbackConfig(v).Translation; got != "A" {
		t.Errorf("loopback translation = %q, want A", got)
	}
}

func TestLoadMissing(t *testing.T) {
	if err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of an explicit missing file should fail")
	}

	chdir(t, t.TempDir())
	if err := Load(New(), ""); err != nil {
		t.Errorf("Load() without a file = %v, want nil", err)
	}
}

func TestFlagsOverride(t *testing.T) {
	t.Setenv("SIGNSTREAM_ENDPOINT", "ws://from-env:5000")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("endpoint", "", "")
	fs.Int("width", 0, "")

	v := New()
	if err := BindFlags(v, fs, map[string]string{"endpoint": KeyEndpoint, "width": KeyCameraWidth}); err != nil {
		t.Fatalf("BindFlags() error = %v", err)
	}
	if err := fs.Parse([]string{"--endpoint", "ws://from-flag:5000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Session(v)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if cfg.Endpoint != "ws://from-flag:5000" {
		t.Errorf("Endpoint = %q, want flag value", cfg.Endpoint)
	}
	// Unset flags fall through to defaults.
	if cfg.Camera.Constraints.Width.Ideal != 640 {
		t.Errorf("width = %d, want default 640", cfg.Camera.Constraints.Width.Ideal)
	}

	if err := BindFlags(v, fs, map[string]string{"missing": KeyEndpoint}); err == nil {
		t.Error("BindFlags() should fail for an unknown flag")
	}
}

func TestInvalid(t *testing.T) {
	t.Setenv("SIGNSTREAM_CAPTURE_QUALITY", "2")
	if _, err := Session(New()); err == nil {
		t.Error("Session() should reject quality 2")
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
