package session

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/capture"
	"github.com/teslashibe/go-signstream/pkg/protocol"
	"github.com/teslashibe/go-signstream/pkg/transport"
)

// DefaultEndpoint is where the inference service listens by default.
const DefaultEndpoint = "ws://localhost:5000/ws"

// Config holds session configuration.
type Config struct {
	// Endpoint is the inference service address. The /ws path is appended
	// when missing.
	Endpoint string `json:"endpoint"`

	// Camera selects the capture device and its constraints.
	Camera camera.Config `json:"camera"`

	// Interval between capture ticks.
	Interval time.Duration `json:"interval"`

	// Quality is the JPEG quality factor for outbound frames (0..1).
	Quality float64 `json:"quality"`

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`

	// Placeholder is shown while the translation is empty.
	Placeholder string `json:"placeholder"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:         DefaultEndpoint,
		Camera:           camera.DefaultConfig(),
		Interval:         capture.DefaultInterval,
		Quality:          protocol.FrameQuality,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := transport.Endpoint(c.Endpoint); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("session: interval must be positive")
	}
	if c.Quality <= 0 || c.Quality > 1 {
		return fmt.Errorf("session: quality must be in (0, 1], got %v", c.Quality)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("session: handshake timeout must be positive")
	}
	return nil
}
