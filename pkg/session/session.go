// Package session wires a camera, the inference connection, the capture loop
// and the renderer into one streaming session.
//
// A Session exclusively owns its device and connection. Teardown releases
// both and may be called at any point, any number of times.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/capture"
	"github.com/teslashibe/go-signstream/pkg/protocol"
	"github.com/teslashibe/go-signstream/pkg/render"
	"github.com/teslashibe/go-signstream/pkg/transport"
)

// AcquireFunc opens a capture device. camera.Acquire is the default.
type AcquireFunc func(ctx context.Context, cfg camera.Config, logger *slog.Logger) (camera.Device, error)

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAcquirer replaces the device acquisition function.
func WithAcquirer(fn AcquireFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.acquire = fn
		}
	}
}

// WithTransportOptions passes extra options to the transport channel.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(s *Session) {
		s.transportOpts = append(s.transportOpts, opts...)
	}
}

// WithCaptureOptions passes extra options to the capture loop.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(s *Session) {
		s.captureOpts = append(s.captureOpts, opts...)
	}
}

// Session is one streaming session.
type Session struct {
	id     string
	config Config
	logger *slog.Logger
	base   *slog.Logger

	acquire       AcquireFunc
	transportOpts []transport.Option
	captureOpts   []capture.Option

	surface  *render.Surface
	text     *render.Text
	renderer *render.Renderer

	mu        sync.Mutex
	started   bool
	tornDown  bool
	startedAt time.Time
	device    camera.Device
	channel   *transport.Channel
	loop      *capture.Loop
	ctx       context.Context
	cancel    context.CancelFunc

	teardownOnce sync.Once
	teardownErr  error
}

// New creates a session. Nothing is acquired until Start.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		config:  cfg,
		logger:  slog.Default(),
		acquire: camera.Acquire,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Children tag their own component.
	s.base = s.logger.With("session_id", s.id)
	s.logger = s.base.With("component", "session")

	s.surface = render.NewSurface()
	s.text = render.NewText(cfg.Placeholder)
	s.renderer = render.New(s.surface, s.text, render.WithLogger(s.base))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Surface returns the annotated frame surface.
func (s *Session) Surface() *render.Surface {
	return s.surface
}

// Text returns the translation element.
func (s *Session) Text() *render.Text {
	return s.text
}

// Device returns the acquired device, or nil.
func (s *Session) Device() camera.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Start acquires the camera, connects to the inference service and starts
// the capture cadence.
//
// Only a device failure is returned, as a *camera.AcquireError. A connection
// failure is logged and leaves the session alive with the cadence stopped;
// Teardown is still required.
func (s *Session) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return ErrTornDown
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.startedAt = time.Now()
	// The session outlives the Start call; Teardown ends it.
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	sctx := s.ctx
	s.mu.Unlock()

	dev, err := s.acquire(ctx, s.config.Camera, s.base.With("component", "camera"))
	if err != nil {
		s.logger.Error("camera unavailable", "error", err)
		return err
	}
	settings := dev.Settings()
	s.logger.Info("camera ready",
		"device", dev.Name(),
		"width", settings.Width,
		"height", settings.Height,
		"fps", settings.FrameRate,
	)

	topts := append([]transport.Option{
		transport.WithLogger(s.base),
		transport.WithHandshakeTimeout(s.config.HandshakeTimeout),
	}, s.transportOpts...)
	ch := transport.New(topts...)

	copts := append([]capture.Option{
		capture.WithLogger(s.base),
		capture.WithInterval(s.config.Interval),
		capture.WithQuality(s.config.Quality),
	}, s.captureOpts...)
	loop := capture.New(dev, ch, copts...)

	ch.OnResult(func(res protocol.Result) {
		s.renderer.Handle(sctx, res)
	})
	ch.OnStateChange(func(st transport.State) {
		if st == transport.StateClosed {
			loop.Halt()
		}
	})

	s.mu.Lock()
	if s.tornDown {
		// Teardown ran while the device was being acquired.
		s.mu.Unlock()
		camera.Release(dev)
		return ErrTornDown
	}
	s.device = dev
	s.channel = ch
	s.loop = loop
	s.mu.Unlock()

	if err := ch.Open(ctx, s.config.Endpoint); err != nil {
		s.logger.Error("inference service unreachable, capture stopped", "error", err)
		loop.Halt()
		return nil
	}

	if err := loop.Start(sctx); err != nil && !errors.Is(err, capture.ErrStopped) {
		s.logger.Warn("capture loop did not start", "error", err)
	}
	return nil
}

// Run starts the session and blocks until ctx is done or the inference
// connection closes, then tears down.
func (s *Session) Run(ctx context.Context) error {
	defer s.Teardown()

	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return ErrTornDown
	}

	select {
	case <-ctx.Done():
		return nil
	case <-ch.Done():
		return ErrConnectionClosed
	}
}

// Teardown stops the capture chain, closes the connection, stops and
// disables every device track and releases the device. It is idempotent
// and safe in any state, including with an attempt in flight.
func (s *Session) Teardown() error {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.tornDown = true
		loop, ch, dev, cancel := s.loop, s.channel, s.device, s.cancel
		s.mu.Unlock()

		if loop != nil {
			loop.Stop()
		}
		if ch != nil {
			ch.Close()
		}
		if cancel != nil {
			cancel()
		}
		if loop != nil {
			loop.Wait()
		}
		s.renderer.Wait()

		s.teardownErr = camera.Release(dev)
		if s.teardownErr != nil {
			s.logger.Warn("device release failed", "error", s.teardownErr)
		}

		if loop != nil && ch != nil {
			cs, ts := loop.Stats(), ch.Stats()
			s.logger.Info("session ended",
				"frames_sent", cs.Sent,
				"skipped", cs.Skipped,
				"results", ts.Results,
				"decode_errors", ts.DecodeErrors,
			)
		}
	})
	return s.teardownErr
}

// SurfaceInfo describes the annotated frame surface.
type SurfaceInfo struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Version uint64 `json:"version"`
}

// Status is a point-in-time view of the session.
type Status struct {
	SessionID   string          `json:"session_id"`
	Active      bool            `json:"active"`
	StartedAt   time.Time       `json:"started_at,omitzero"`
	Uptime      string          `json:"uptime,omitempty"`
	Endpoint    string          `json:"endpoint"`
	Connection  transport.State `json:"connection"`
	Translation string          `json:"translation"`
	Display     string          `json:"display"`
	Device      string          `json:"device,omitempty"`
	Settings    camera.Settings `json:"settings"`
	Tracks      int             `json:"active_tracks"`
	Surface     SurfaceInfo     `json:"surface"`
	LastFrameAt time.Time       `json:"last_frame_at,omitzero"`
	Capture     capture.Stats   `json:"capture"`
	Transport   transport.Stats `json:"transport"`
	Render      render.Stats    `json:"render"`
}

// Status returns a snapshot for dashboards.
func (s *Session) Status() Status {
	s.mu.Lock()
	started, tornDown, startedAt := s.started, s.tornDown, s.startedAt
	dev, ch, loop := s.device, s.channel, s.loop
	s.mu.Unlock()

	w, h := s.surface.Size()
	st := Status{
		SessionID:   s.id,
		Active:      started && !tornDown,
		Endpoint:    s.config.Endpoint,
		Connection:  transport.StateClosed,
		Translation: s.text.Get(),
		Display:     s.text.Display(),
		Surface:     SurfaceInfo{Width: w, Height: h, Version: s.surface.Version()},
		Render:      s.renderer.Stats(),
	}
	if started {
		st.StartedAt = startedAt
		st.Uptime = time.Since(startedAt).Round(time.Second).String()
	}
	if dev != nil {
		st.Device = dev.Name()
		st.Settings = dev.Settings()
		st.Tracks = camera.ActiveTracks(dev)
	}
	if ch != nil {
		st.Connection = ch.State()
		st.Transport = ch.Stats()
		if ep := ch.Endpoint(); ep != "" {
			st.Endpoint = ep
		}
	}
	if loop != nil {
		st.Capture = loop.Stats()
		st.LastFrameAt = loop.LastFrameAt()
	}
	return st
}
