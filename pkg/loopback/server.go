// Package loopback provides a local inference service that speaks the frame
// wire protocol at /ws: binary JPEG frames in, JSON results with a hex
// encoded annotated frame out.
package loopback

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/teslashibe/go-signstream/pkg/protocol"
)

// Conn is a connected camera client.
type Conn struct {
	ID        string
	Remote    string
	Connected time.Time
	Conn      *websocket.Conn

	mu       sync.Mutex
	lastSeen time.Time
	frames   uint64
}

// send writes one result as a text message.
func (c *Conn) send(res protocol.Result) error {
	data, err := protocol.EncodeResult(res)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.frames++
	c.mu.Unlock()
}

// Server answers frames from camera clients.
type Server struct {
	app        *fiber.App
	config     *Config
	logger     *slog.Logger
	recognizer Recognizer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	conns map[string]*Conn

	// Stats
	messagesReceived atomic.Uint64
	repliesSent      atomic.Uint64
	framesProcessed  atomic.Uint64
	framesSkipped    atomic.Uint64
	failures         atomic.Uint64
}

// NewServer creates a loopback server with its routes registered.
func NewServer(opts ...Option) (*Server, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		logger:     cfg.Logger.With("component", "loopback"),
		recognizer: cfg.Recognizer,
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[string]*Conn),
	}

	app := fiber.New(fiber.Config{
		AppName:               "signstream loopback",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.RegisterRoutes(app)
	s.RegisterAPIRoutes(app.Group("/api"))

	s.app = app
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// RegisterRoutes registers the inference websocket on a Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(s.handle))
}

// handle serves one client connection.
func (s *Server) handle(c *websocket.Conn) {
	c.SetReadLimit(s.config.ReadLimit)

	conn := &Conn{
		ID:        uuid.NewString(),
		Remote:    c.RemoteAddr().String(),
		Connected: time.Now(),
		Conn:      c,
		lastSeen:  time.Now(),
	}

	s.mu.Lock()
	s.conns[conn.ID] = conn
	count := len(s.conns)
	s.mu.Unlock()

	logger := s.logger.With("conn_id", conn.ID)
	logger.Info("client connected", "remote", conn.Remote, "total", count)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn.ID)
		count := len(s.conns)
		s.mu.Unlock()
		logger.Info("client disconnected", "total", count)
	}()

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read error", "error", err)
			}
			return
		}
		s.messagesReceived.Add(1)
		conn.touch()

		res, ok := s.process(s.ctx, logger, mt, data)
		if !ok {
			continue
		}
		if err := conn.send(res); err != nil {
			logger.Warn("write error", "error", err)
			return
		}
		s.repliesSent.Add(1)
	}
}

// process turns one inbound message into a reply. It reports false when the
// message is dropped without a reply, which happens for payloads that are
// not decodable images.
func (s *Server) process(ctx context.Context, logger *slog.Logger, mt int, data []byte) (protocol.Result, bool) {
	if mt != websocket.BinaryMessage {
		s.failures.Add(1)
		logger.Warn("text message is not a frame")
		return protocol.NewFailure(), true
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		s.framesSkipped.Add(1)
		logger.Debug("skipping undecodable frame", "bytes", len(data), "error", err)
		return protocol.Result{}, false
	}

	rec, err := s.recognizer.Recognize(ctx, data, img)
	if err != nil {
		s.failures.Add(1)
		logger.Warn("recognition failed", "error", err)
		return protocol.NewFailure(), true
	}

	var out image.Image = img
	if s.config.Annotate {
		out = Annotate(img, rec)
	}
	frame, err := protocol.EncodeFrameQuality(out, s.config.ReplyQuality)
	if err != nil {
		s.failures.Add(1)
		logger.Warn("reply frame not encoded", "error", err)
		return protocol.NewFailure(), true
	}

	s.framesProcessed.Add(1)
	if rec.Translation != "" {
		logger.Debug("recognised", "translation", rec.Translation)
	}
	return protocol.NewSuccess(rec.Translation, &frame), true
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("loopback listening", "addr", s.config.Addr)
	return s.app.Listen(s.config.Addr)
}

// Serve serves on an existing listener and blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("loopback listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("loopback stopped", "error", err)
		}
	}()
}

// Shutdown closes client connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.Conn.Close()
	}
	return s.app.ShutdownWithContext(ctx)
}

// Disconnect closes one client connection.
func (s *Server) Disconnect(id string) error {
	s.mu.RLock()
	c, ok := s.conns[id]
	s.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}
	return c.Conn.Close()
}

// ConnCount returns the number of connected clients.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Stats contains server statistics
type Stats struct {
	Connections      int    `json:"connections"`
	MessagesReceived uint64 `json:"messages_received"`
	RepliesSent      uint64 `json:"replies_sent"`
	FramesProcessed  uint64 `json:"frames_processed"`
	FramesSkipped    uint64 `json:"frames_skipped"`
	Failures         uint64 `json:"failures"`
}

// Stats returns server statistics.
func (s *Server) Stats() Stats {
	return Stats{
		Connections:      s.ConnCount(),
		MessagesReceived: s.messagesReceived.Load(),
		RepliesSent:      s.repliesSent.Load(),
		FramesProcessed:  s.framesProcessed.Load(),
		FramesSkipped:    s.framesSkipped.Load(),
		Failures:         s.failures.Load(),
	}
}

// ConnInfo contains info about a connected client
type ConnInfo struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Frames    uint64    `json:"frames"`
}

// Connections returns info about all connected clients.
func (s *Server) Connections() []ConnInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		c.mu.Lock()
		infos = append(infos, ConnInfo{
			ID:        c.ID,
			Remote:    c.Remote,
			Connected: c.Connected,
			LastSeen:  c.lastSeen,
			Frames:    c.frames,
		})
		c.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for connection management
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	conns := api.Group("/connections")

	// List connected clients
	conns.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"connections": s.Connections(),
			"count":       s.ConnCount(),
		})
	})

	// Drop a client
	conns.Delete("/:id", func(c *fiber.Ctx) error {
		if err := s.Disconnect(c.Params("id")); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "closed"})
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})
}
