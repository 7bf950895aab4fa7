package loopback

import (
	"fmt"
	"log/slog"
)

// Defaults match the reference inference service.
const (
	DefaultAddr         = ":5000"
	DefaultReadLimit    = 1 << 24
	DefaultReplyQuality = 0.95
)

// Config holds loopback server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64

	// ReplyQuality is the JPEG quality factor of annotated replies (0..1).
	ReplyQuality float64

	// Annotate draws detected hands and the translation onto replies.
	Annotate bool

	// Recognizer turns frames into translations. Default: StaticRecognizer{}.
	Recognizer Recognizer

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:         DefaultAddr,
		ReadLimit:    DefaultReadLimit,
		ReplyQuality: DefaultReplyQuality,
		Annotate:     true,
		Recognizer:   StaticRecognizer{},
		Logger:       slog.Default(),
	}
}

// Option is a functional option for configuring a Server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithReadLimit sets the inbound frame size limit.
func WithReadLimit(n int64) Option {
	return func(c *Config) {
		c.ReadLimit = n
	}
}

// WithReplyQuality sets the reply JPEG quality.
func WithReplyQuality(q float64) Option {
	return func(c *Config) {
		c.ReplyQuality = q
	}
}

// WithAnnotate toggles annotation of reply frames.
func WithAnnotate(enabled bool) Option {
	return func(c *Config) {
		c.Annotate = enabled
	}
}

// WithRecognizer sets the recognizer.
func WithRecognizer(r Recognizer) Option {
	return func(c *Config) {
		if r != nil {
			c.Recognizer = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ReadLimit <= 0 {
		return fmt.Errorf("loopback: read limit must be positive, got %d", c.ReadLimit)
	}
	if c.ReplyQuality <= 0 || c.ReplyQuality > 1 {
		return fmt.Errorf("loopback: reply quality must be in (0, 1], got %v", c.ReplyQuality)
	}
	if c.Recognizer == nil {
		return ErrNoRecognizer
	}
	return nil
}
