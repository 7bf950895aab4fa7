// Package capture drives the frame cadence: on every tick it grabs one frame
// from the camera, compresses it and hands it to the transport.
//
// At most one capture-to-send attempt is ever in flight. Ticks that arrive
// while an attempt is outstanding are dropped, never queued.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/protocol"
	"github.com/teslashibe/go-signstream/pkg/transport"
)

// DefaultInterval is roughly 15 frames per second.
const DefaultInterval = 66 * time.Millisecond

// FrameSource produces raw frames. *camera.MockDevice and the gocv device
// satisfy it.
type FrameSource interface {
	Settings() camera.Settings
	Capture(ctx context.Context, dst *image.RGBA) error
}

// FrameSender transmits encoded frames. *transport.Channel satisfies it.
type FrameSender interface {
	Send(ctx context.Context, frame protocol.EncodedFrame) error
	State() transport.State
}

// Config holds loop configuration.
type Config struct {
	// Interval between ticks.
	Interval time.Duration

	// Quality is the JPEG quality factor (0..1).
	Quality float64

	// AttemptTimeout bounds one capture-encode-send attempt. Zero disables it.
	AttemptTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: DefaultInterval,
		Quality:  protocol.FrameQuality,
		Logger:   slog.Default(),
	}
}

// Option is a functional option for configuring a Loop.
type Option func(*Config)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

// WithQuality sets the JPEG quality factor.
func WithQuality(q float64) Option {
	return func(c *Config) {
		c.Quality = q
	}
}

// WithAttemptTimeout bounds each attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.AttemptTimeout = d
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

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("capture: interval must be positive")
	}
	if c.Quality <= 0 || c.Quality > 1 {
		return fmt.Errorf("capture: quality must be in (0, 1], got %v", c.Quality)
	}
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("capture: attempt timeout must not be negative")
	}
	return nil
}

// Stats holds loop counters.
type Stats struct {
	Ticks   int64 `json:"ticks"`
	Skipped int64 `json:"skipped"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	NotOpen int64 `json:"not_open"`
}

// Loop is the periodic capture-encode-send chain.
type Loop struct {
	config *Config
	logger *slog.Logger
	src    FrameSource
	dst    FrameSender

	task *Periodic

	// inFlight is the single-flight guard.
	inFlight atomic.Bool
	attempts sync.WaitGroup
	buf      *image.RGBA // only touched by the in-flight attempt

	halted    atomic.Bool
	failures  atomic.Int64 // consecutive, for log throttling
	lastFrame atomic.Int64 // unix nanos of the last successful send

	ticks   atomic.Int64
	skipped atomic.Int64
	sent    atomic.Int64
	failed  atomic.Int64
	notOpen atomic.Int64
}

// New creates a capture loop reading from src and writing to dst.
func New(src FrameSource, dst FrameSender, opts ...Option) *Loop {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	l := &Loop{
		config: cfg,
		logger: cfg.Logger.With("component", "capture"),
		src:    src,
		dst:    dst,
	}
	l.task = NewPeriodic(cfg.Interval, l.tick)
	return l
}

// Start begins the cadence. Attempts inherit ctx, so cancelling it aborts
// both the ticking and any attempt in flight.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.config.Validate(); err != nil {
		return err
	}
	if l.halted.Load() {
		return ErrStopped
	}
	if err := l.task.Start(ctx); err != nil {
		return err
	}
	l.logger.Info("capture loop started",
		"interval", l.config.Interval,
		"quality", l.config.Quality,
	)
	return nil
}

// Halt stops the cadence without waiting. It is safe to call from any
// goroutine, including transport state observers.
func (l *Loop) Halt() {
	if l.halted.CompareAndSwap(false, true) {
		l.logger.Info("capture loop halted", "sent", l.sent.Load(), "skipped", l.skipped.Load())
	}
	l.task.Cancel()
}

// Stop halts the cadence and waits for the ticker to exit. An attempt in
// flight is cancelled but not waited for; use Wait for that.
func (l *Loop) Stop() {
	l.Halt()
	l.task.Stop()
}

// Wait blocks until any in-flight attempt has completed.
func (l *Loop) Wait() {
	l.attempts.Wait()
}

// Done is closed once the cadence has ended.
func (l *Loop) Done() <-chan struct{} {
	return l.task.Done()
}

// InFlight reports whether an attempt is outstanding.
func (l *Loop) InFlight() bool {
	return l.inFlight.Load()
}

// LastFrameAt returns when the last frame was sent, or the zero time.
func (l *Loop) LastFrameAt() time.Time {
	n := l.lastFrame.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:   l.ticks.Load(),
		Skipped: l.skipped.Load(),
		Sent:    l.sent.Load(),
		Failed:  l.failed.Load(),
		NotOpen: l.notOpen.Load(),
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.ticks.Add(1)

	switch l.dst.State() {
	case transport.StateOpen:
	case transport.StateClosed:
		l.Halt()
		return
	default:
		l.notOpen.Add(1)
		return
	}

	if !l.inFlight.CompareAndSwap(false, true) {
		l.skipped.Add(1)
		return
	}

	l.attempts.Add(1)
	go l.attempt(ctx)
}

func (l *Loop) attempt(ctx context.Context) {
	defer l.attempts.Done()
	defer l.inFlight.Store(false)

	if l.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.AttemptTimeout)
		defer cancel()
	}

	settings := l.src.Settings()
	if l.buf == nil || l.buf.Bounds() != settings.Bounds() {
		l.buf = settings.NewBuffer()
	}

	if err := l.src.Capture(ctx, l.buf); err != nil {
		l.fail("capture", err)
		return
	}

	frame, err := protocol.EncodeFrameQuality(l.buf, l.config.Quality)
	if err != nil {
		l.fail("encode", err)
		return
	}

	if err := l.dst.Send(ctx, frame); err != nil {
		if errors.Is(err, transport.ErrNotOpen) {
			l.notOpen.Add(1)
			return
		}
		l.fail("send", err)
		return
	}

	l.sent.Add(1)
	l.lastFrame.Store(time.Now().UnixNano())
	if n := l.failures.Swap(0); n > 0 {
		l.logger.Info("capture recovered", "after_failures", n)
	}
}

func (l *Loop) fail(stage string, err error) {
	l.failed.Add(1)
	if errors.Is(err, context.Canceled) {
		return
	}
	if l.failures.Add(1) == 1 {
		l.logger.Warn("frame dropped", "stage", stage, "error", err)
		return
	}
	l.logger.Debug("frame dropped", "stage", stage, "error", err)
}
