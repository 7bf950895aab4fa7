// Package web serves the viewer: the annotated frame, the translation and
// live session status over HTTP, MJPEG and websockets.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-signstream/pkg/hub"
	"github.com/teslashibe/go-signstream/pkg/render"
	"github.com/teslashibe/go-signstream/pkg/session"
)

//go:embed index.html
var indexHTML []byte

// Source is what the viewer displays. *session.Session satisfies it.
type Source interface {
	Status() session.Status
	Surface() *render.Surface
	Text() *render.Text
}

// Config holds viewer configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// FrameQuality is the JPEG quality factor for served frames (0..1).
	FrameQuality float64

	// FrameInterval is how often the MJPEG stream checks for a new frame.
	FrameInterval time.Duration

	// StatusInterval is how often status is pushed to /ws/status clients.
	StatusInterval time.Duration

	// AccessLog enables the request logger (frame routes excluded).
	AccessLog bool

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		FrameQuality:   0.8,
		FrameInterval:  33 * time.Millisecond,
		StatusInterval: time.Second,
		Logger:         slog.Default(),
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

// WithFrameQuality sets the served JPEG quality.
func WithFrameQuality(q float64) Option {
	return func(c *Config) {
		c.FrameQuality = q
	}
}

// WithFrameInterval sets the MJPEG polling interval.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Config) {
		c.FrameInterval = d
	}
}

// WithStatusInterval sets the status push interval.
func WithStatusInterval(d time.Duration) Option {
	return func(c *Config) {
		c.StatusInterval = d
	}
}

// WithAccessLog enables request logging.
func WithAccessLog(enabled bool) Option {
	return func(c *Config) {
		c.AccessLog = enabled
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
	if c.FrameQuality <= 0 || c.FrameQuality > 1 {
		return fmt.Errorf("web: frame quality must be in (0, 1], got %v", c.FrameQuality)
	}
	if c.FrameInterval <= 0 || c.StatusInterval <= 0 {
		return fmt.Errorf("web: intervals must be positive")
	}
	return nil
}

// Server is the viewer server
type Server struct {
	app    *fiber.App
	config *Config
	logger *slog.Logger
	source Source

	// Hubs for websocket broadcast
	surfaceHub *hub.Hub
	statusHub  *hub.Hub

	startOnce sync.Once
	done      chan struct{}
	stopOnce  sync.Once
}

// NewServer creates a viewer for src.
func NewServer(src Source, opts ...Option) (*Server, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		logger: cfg.Logger.With("component", "web"),
		source: src,
		done:   make(chan struct{}),
	}
	// New viewers get the current frame and status straight away.
	s.surfaceHub = hub.New("surface",
		hub.WithLogger(cfg.Logger),
		hub.WithPolicy(hub.Replace),
		hub.WithQueue(2),
		hub.WithGreeting(s.currentFrame),
	)
	s.statusHub = hub.New("status",
		hub.WithLogger(cfg.Logger),
		hub.WithGreeting(s.currentStatus),
	)

	app := fiber.New(fiber.Config{
		AppName:               "signstream viewer",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Output: os.Stderr,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/video_feed" || c.Path() == "/api/frame.jpg" || strings.HasPrefix(c.Path(), "/ws")
			},
		}))
	}

	app.Get("/", s.handleIndex)
	app.Get("/health", s.handleHealth)
	app.Get("/video_feed", s.handleVideoFeed)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/frame.jpg", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/surface", websocket.New(s.handleSurfaceWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app

	src.Surface().OnDraw(s.onDraw)
	src.Text().OnChange(func(string) { s.pushStatus() })
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// start launches the hubs and the status ticker once.
func (s *Server) start() {
	s.startOnce.Do(func() {
		go s.surfaceHub.Run()
		go s.statusHub.Run()
		go s.statusLoop()
	})
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.start()
	s.logger.Info("viewer listening", "addr", s.config.Addr)
	return s.app.Listen(s.config.Addr)
}

// Serve serves on an existing listener and blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.start()
	s.logger.Info("viewer listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("viewer stopped", "error", err)
		}
	}()
}

// Shutdown stops streaming responses and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.surfaceHub.Stop()
		s.statusHub.Stop()
	})
	return s.app.ShutdownWithContext(ctx)
}

// onDraw pushes each new frame to /ws/surface clients. Encoding is skipped
// when nobody is watching.
func (s *Server) onDraw(uint64) {
	if s.surfaceHub.Clients() == 0 {
		return
	}
	if msg, ok := s.currentFrame(); ok {
		s.surfaceHub.Publish(msg)
	}
}

func (s *Server) currentFrame() (hub.Message, bool) {
	data, err := s.source.Surface().JPEG(s.config.FrameQuality)
	if err != nil {
		if !errors.Is(err, render.ErrNoImage) {
			s.logger.Debug("frame not encoded", "error", err)
		}
		return hub.Message{}, false
	}
	return hub.FrameMessage(data), true
}

func (s *Server) currentStatus() (hub.Message, bool) {
	msg, err := hub.StatusMessage(s.source.Status())
	if err != nil {
		s.logger.Warn("status not encoded", "error", err)
		return hub.Message{}, false
	}
	return msg, true
}

func (s *Server) pushStatus() {
	if s.statusHub.Clients() == 0 {
		return
	}
	if msg, ok := s.currentStatus(); ok {
		s.statusHub.Publish(msg)
	}
}

func (s *Server) statusLoop() {
	ticker := time.NewTicker(s.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.pushStatus()
		}
	}
}
