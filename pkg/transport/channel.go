// Package transport carries encoded frames to the inference service and
// delivers its results over a single persistent websocket.
//
// A Channel owns exactly one connection. There is no reconnect: once the
// connection reaches StateClosed the channel is finished and a new one must
// be created.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-signstream/internal/httpc"
	"github.com/teslashibe/go-signstream/pkg/protocol"
)

// State is the lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText lets State appear by name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateConnecting, StateOpen, StateClosing, StateClosed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("transport: unknown state %q", text)
}

// Stats holds channel counters.
type Stats struct {
	FramesSent       int64 `json:"frames_sent"`
	BytesSent        int64 `json:"bytes_sent"`
	SendErrors       int64 `json:"send_errors"`
	NotOpen          int64 `json:"not_open"`
	MessagesReceived int64 `json:"messages_received"`
	Results          int64 `json:"results"`
	DecodeErrors     int64 `json:"decode_errors"`
}

// Channel is a websocket connection to the inference service.
type Channel struct {
	config *Config
	logger *slog.Logger
	dialer *websocket.Dialer

	state atomic.Int32

	mu       sync.Mutex // guards everything below up to writeMu
	conn     *websocket.Conn
	opened   bool
	endpoint string
	onResult []func(protocol.Result)
	onState  []func(State)

	cancelDial     context.CancelFunc
	closeRequested bool

	writeMu sync.Mutex

	closeOnce  sync.Once
	closed     chan struct{}
	readerDone chan struct{}

	framesSent       atomic.Int64
	bytesSent        atomic.Int64
	sendErrors       atomic.Int64
	notOpen          atomic.Int64
	messagesReceived atomic.Int64
	results          atomic.Int64
	decodeErrors     atomic.Int64
}

// New creates a channel. It starts in StateClosed until Open is called.
func New(opts ...Option) *Channel {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = httpc.NewWebSocketDialer(cfg.HandshakeTimeout)
	}

	c := &Channel{
		config:     cfg,
		logger:     cfg.Logger.With("component", "transport"),
		dialer:     dialer,
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	c.state.Store(int32(StateClosed))
	return c
}

// OnResult registers a handler for decoded results. Handlers run on the
// channel's single reader goroutine, in arrival order, one at a time.
// Register handlers before Open.
func (c *Channel) OnResult(fn func(protocol.Result)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.onResult = append(c.onResult, fn)
	c.mu.Unlock()
}

// OnStateChange registers a state observer. Observers run synchronously on
// whichever goroutine caused the transition and must not call Close.
func (c *Channel) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.onState = append(c.onState, fn)
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Endpoint returns the normalised URL passed to Open.
func (c *Channel) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Done is closed once the channel reaches StateClosed.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// Open dials the inference service. A channel can be opened once.
// Failures leave the channel Closed and are wrapped with ErrOpenFailed.
func (c *Channel) Open(ctx context.Context, endpoint string) error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	url, err := Endpoint(endpoint)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closeRequested {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpened
	}
	c.opened = true
	c.endpoint = url
	c.cancelDial = cancel
	c.state.Store(int32(StateConnecting))
	observers := c.onState
	c.mu.Unlock()

	for _, fn := range observers {
		fn(StateConnecting)
	}
	c.logger.Info("connecting", "endpoint", url)

	dialer, stopWatch := interruptible(dialCtx, c.dialer)
	conn, resp, err := dialer.DialContext(dialCtx, url, nil)
	if !stopWatch() && err == nil {
		// Cancelled as the handshake completed; the socket deadline is spent.
		conn.Close()
		conn, resp, err = nil, nil, dialCtx.Err()
	}
	if err != nil {
		c.finish()
		close(c.readerDone)
		if resp != nil {
			return fmt.Errorf("%w (status %d): %w", ErrOpenFailed, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	conn.SetReadLimit(c.config.ReadLimit)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if !c.transition(StateOpen, StateConnecting) {
		// Close ran while the handshake was in flight.
		conn.Close()
		close(c.readerDone)
		return ErrClosed
	}
	c.logger.Info("connected", "endpoint", url)

	go c.readLoop(conn)
	return nil
}

// Send transmits one encoded frame as a single binary message.
// It returns ErrNotOpen without side effects unless the state is Open.
func (c *Channel) Send(ctx context.Context, frame protocol.EncodedFrame) error {
	if c.State() != StateOpen {
		c.notOpen.Add(1)
		return ErrNotOpen
	}
	if frame.Empty() {
		return ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.notOpen.Add(1)
		return ErrNotOpen
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(deadline)
	err := conn.WriteMessage(websocket.BinaryMessage, frame.Data)
	c.writeMu.Unlock()

	if err != nil {
		c.sendErrors.Add(1)
		if c.State() == StateOpen {
			c.logger.Warn("send failed, closing connection", "error", err)
			c.fail()
		}
		return fmt.Errorf("transport: send: %w", err)
	}

	c.framesSent.Add(1)
	c.bytesSent.Add(int64(frame.Len()))
	return nil
}

// Close shuts the connection down. It is safe to call at any time and more
// than once. No result handler runs after Close returns, unless the reader
// fails to drain within the close timeout.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		opened := c.opened
		c.closeRequested = true
		cancelDial := c.cancelDial
		c.mu.Unlock()

		if cancelDial != nil {
			cancelDial()
		}

		if c.State() == StateClosed {
			if !opened {
				// Never opened: nothing to drain.
				c.finish()
				close(c.readerDone)
			}
			return
		}
		c.transition(StateClosing, StateConnecting, StateOpen)

		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.CloseTimeout)); err != nil {
				c.logger.Debug("close frame not sent", "error", err)
			}
			conn.Close()
		}
		c.finish()

		select {
		case <-c.readerDone:
		case <-time.After(c.config.CloseTimeout):
			c.logger.Warn("reader did not drain before close timeout")
		}
	})
	return nil
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	return Stats{
		FramesSent:       c.framesSent.Load(),
		BytesSent:        c.bytesSent.Load(),
		SendErrors:       c.sendErrors.Load(),
		NotOpen:          c.notOpen.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		Results:          c.results.Load(),
		DecodeErrors:     c.decodeErrors.Load(),
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer close(c.readerDone)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			switch {
			case c.State() != StateOpen:
				c.logger.Debug("reader stopped", "error", err)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.Info("connection closed by peer")
			default:
				c.logger.Warn("connection lost", "error", err)
			}
			c.fail()
			return
		}
		c.messagesReceived.Add(1)

		if mt != websocket.TextMessage {
			c.decodeErrors.Add(1)
			c.logger.Warn("dropping unexpected binary message", "bytes", len(data))
			continue
		}

		res, err := protocol.DecodeResult(data)
		if err != nil {
			c.decodeErrors.Add(1)
			var de *protocol.DecodeError
			if errors.As(err, &de) {
				c.logger.Warn("dropping undecodable message", "kind", de.Kind, "error", de.Err)
			} else {
				c.logger.Warn("dropping undecodable message", "error", err)
			}
			continue
		}
		c.results.Add(1)

		// Closing means teardown has begun; results are no longer wanted.
		if c.State() != StateOpen {
			continue
		}
		c.mu.Lock()
		handlers := c.onResult
		c.mu.Unlock()
		for _, fn := range handlers {
			fn(res)
		}
	}
}

// fail moves the channel to Closed after a transport error.
func (c *Channel) fail() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.finish()
}

// finish performs the single transition into StateClosed.
// interruptible returns a copy of base whose connection is interrupted when
// ctx is cancelled. The websocket dialer only honours the context while
// connecting, not while it waits for the upgrade response. stop must be
// called after the dial returns; it reports false if ctx fired first.
func interruptible(ctx context.Context, base *websocket.Dialer) (*websocket.Dialer, func() bool) {
	d := *base
	netDial := d.NetDialContext
	if netDial == nil {
		if nd := d.NetDial; nd != nil {
			netDial = func(_ context.Context, network, addr string) (net.Conn, error) {
				return nd(network, addr)
			}
		} else {
			netDial = (&net.Dialer{}).DialContext
		}
	}

	stop := func() bool { return true }
	d.NetDialContext = func(dctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := netDial(dctx, network, addr)
		if err != nil {
			return nil, err
		}
		stop = context.AfterFunc(ctx, func() {
			conn.SetDeadline(time.Unix(1, 0))
		})
		return conn, nil
	}
	return &d, func() bool { return stop() }
}

func (c *Channel) finish() {
	c.transition(StateClosed)
}

// transition moves to next and notifies observers. When from is non-empty
// the move only happens if the current state is one of them. StateClosed is
// terminal and is entered at most once.
func (c *Channel) transition(next State, from ...State) bool {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return false
	default:
	}
	prev := State(c.state.Load())
	if len(from) > 0 && !slices.Contains(from, prev) {
		c.mu.Unlock()
		return false
	}
	if prev == next && next != StateClosed {
		c.mu.Unlock()
		return false
	}
	if next == StateClosed {
		close(c.closed)
	}
	c.state.Store(int32(next))
	observers := c.onState
	c.mu.Unlock()

	c.logger.Debug("state change", "from", prev, "to", next)
	for _, fn := range observers {
		fn(next)
	}
	return true
}
