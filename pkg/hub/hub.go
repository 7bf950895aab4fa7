package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Policy decides what happens when a viewer's queue is full.
type Policy int

const (
	// Evict disconnects the viewer.
	Evict Policy = iota
	// Replace discards the oldest queued message to make room.
	Replace
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithPolicy sets the full-queue policy. Default is Evict.
func WithPolicy(p Policy) Option {
	return func(h *Hub) { h.policy = p }
}

// WithQueue sets the per-viewer queue length.
func WithQueue(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queue = n
		}
	}
}

// WithGreeting sets a function producing the message a viewer receives as
// soon as it attaches, so it does not wait for the next update.
func WithGreeting(fn func() (Message, bool)) Option {
	return func(h *Hub) { h.greeting = fn }
}

// Stats counts hub traffic.
type Stats struct {
	Clients   int   `json:"clients"`
	Delivered int64 `json:"delivered"`
	Replaced  int64 `json:"replaced"`
	Evicted   int64 `json:"evicted"`
	Dropped   int64 `json:"dropped"`
}

// Hub owns the attached viewers of one stream and publishes to them.
type Hub struct {
	name     string
	logger   *slog.Logger
	policy   Policy
	queue    int
	greeting func() (Message, bool)

	clients    map[*Client]struct{}
	publish    chan Message
	register   chan *Client
	unregister chan *Client

	// Guards clients for Clients
	mu sync.RWMutex

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once

	delivered atomic.Int64
	replaced  atomic.Int64
	evicted   atomic.Int64
	dropped   atomic.Int64
}

// New creates a Hub named for its stream.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default(),
		queue:      16,
		clients:    make(map[*Client]struct{}),
		publish:    make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub", "hub", name)
	return h
}

// Run is the hub loop. It owns the client set and returns after Stop.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			if h.greeting != nil {
				if msg, ok := h.greeting(); ok {
					select {
					case c.send <- msg:
					default:
					}
				}
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("viewer attached", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("viewer detached", "clients", count)

		case msg := <-h.publish:
			h.mu.Lock()
			for c := range h.clients {
				h.deliver(c, msg)
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues msg for c according to the policy. Called with mu held.
func (h *Hub) deliver(c *Client, msg Message) {
	select {
	case c.send <- msg:
		h.delivered.Add(1)
		return
	default:
	}

	if h.policy == Replace {
		select {
		case <-c.send:
			h.replaced.Add(1)
		default:
		}
		select {
		case c.send <- msg:
			h.delivered.Add(1)
			return
		default:
		}
	}

	close(c.send)
	delete(h.clients, c)
	h.evicted.Add(1)
	h.logger.Warn("evicted slow viewer", "kind", msg.Kind)
}

// Stop ends Run and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Publish queues msg for every attached viewer. It never blocks; when the
// hub is backed up the message is dropped.
func (h *Hub) Publish(msg Message) {
	select {
	case h.publish <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Debug("publish queue full, dropping", "kind", msg.Kind)
	}
}

// PublishStatus encodes and publishes a status document.
func (h *Hub) PublishStatus(v any) error {
	msg, err := StatusMessage(v)
	if err != nil {
		return err
	}
	h.Publish(msg)
	return nil
}

// PublishFrame publishes an encoded JPEG frame.
func (h *Hub) PublishFrame(jpeg []byte) {
	h.Publish(FrameMessage(jpeg))
}

// Clients returns the number of attached viewers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.Clients(),
		Delivered: h.delivered.Load(),
		Replaced:  h.replaced.Load(),
		Evicted:   h.evicted.Load(),
		Dropped:   h.dropped.Load(),
	}
}
