package transport

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadLimit matches the inference service's maximum message size (2^24).
const DefaultReadLimit = 1 << 24

// Config holds channel configuration.
type Config struct {
	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// CloseTimeout bounds the close handshake and the reader drain on Close.
	CloseTimeout time.Duration

	// ReadLimit is the largest inbound message accepted, in bytes.
	ReadLimit int64

	// Dialer overrides the default dialer built from internal/httpc.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		CloseTimeout:     2 * time.Second,
		ReadLimit:        DefaultReadLimit,
		Logger:           slog.Default(),
	}
}

// Option is a functional option for configuring a Channel.
type Option func(*Config)

// WithHandshakeTimeout sets the handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// WithCloseTimeout sets how long Close waits for the peer and the reader.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CloseTimeout = d
	}
}

// WithReadLimit sets the maximum inbound message size.
func WithReadLimit(n int64) Option {
	return func(c *Config) {
		c.ReadLimit = n
	}
}

// WithDialer sets a custom websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Config) {
		c.Dialer = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("transport: handshake timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("transport: write timeout must be positive")
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("transport: read limit must be positive")
	}
	return nil
}
