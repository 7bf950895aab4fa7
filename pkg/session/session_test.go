package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-signstream/internal/log"
	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/protocol"
	"github.com/teslashibe/go-signstream/pkg/transport"
)

// newInferenceServer echoes every frame back as the annotated image with a
// fixed translation, like a service that recognised a letter.
func newInferenceServer(t *testing.T, translation string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var frames atomic.Int64
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			frames.Add(1)
			body, _ := protocol.EncodeResult(protocol.NewSuccess(translation, &protocol.EncodedFrame{Data: data}))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &frames
}

func testConfig(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.Interval = 5 * time.Millisecond
	cfg.HandshakeTimeout = time.Second
	cfg.Camera.Backend = camera.BackendMock
	cfg.Camera.Constraints.Width.Ideal = 32
	cfg.Camera.Constraints.Height.Ideal = 24
	return cfg
}

func newTestSession(cfg Config, opts ...Option) *Session {
	opts = append([]Option{
		WithLogger(log.Discard()),
		WithTransportOptions(transport.WithCloseTimeout(time.Second)),
	}, opts...)
	return New(cfg, opts...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: true},
		{name: "bad camera", mutate: func(c *Config) { c.Camera.Backend = "nope" }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: true},
		{name: "bad quality", mutate: func(c *Config) { c.Quality = 2 }, wantErr: true},
		{name: "zero handshake", mutate: func(c *Config) { c.HandshakeTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionStreams(t *testing.T) {
	srv, frames := newInferenceServer(t, "A")
	s := newTestSession(testConfig(srv.URL))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Teardown()

	waitFor(t, "translation", func() bool { return s.Text().Get() == "A" })
	waitFor(t, "annotated frame", func() bool { return s.Surface().Version() > 0 })

	if w, h := s.Surface().Size(); w != 32 || h != 24 {
		t.Errorf("surface size = %dx%d, want 32x24", w, h)
	}
	if frames.Load() == 0 {
		t.Error("server received no frames")
	}

	st := s.Status()
	if !st.Active || st.Connection != transport.StateOpen {
		t.Errorf("status = active %v / %v, want active / open", st.Active, st.Connection)
	}
	if st.SessionID != s.ID() || st.SessionID == "" {
		t.Errorf("SessionID = %q, want %q", st.SessionID, s.ID())
	}
	if st.Device != "mock" || st.Tracks != 1 {
		t.Errorf("device = %q with %d tracks, want mock with 1", st.Device, st.Tracks)
	}
	if st.Capture.Sent == 0 || st.Transport.Results == 0 {
		t.Errorf("stats = %+v / %+v, want traffic", st.Capture, st.Transport)
	}
}

func TestEmptyTranslationClearsText(t *testing.T) {
	srv, _ := newInferenceServer(t, "")
	s := newTestSession(testConfig(srv.URL))
	s.Text().Set("stale")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Teardown()

	waitFor(t, "text cleared", func() bool { return s.Text().Get() == "" })
	if s.Status().Display == "" {
		t.Error("Display should show the placeholder for an empty translation")
	}
}

func TestDeviceFailureEscalates(t *testing.T) {
	srv, frames := newInferenceServer(t, "A")
	denied := &camera.AcquireError{Backend: camera.BackendGoCV, Reason: camera.ReasonPermissionDenied}
	s := newTestSession(testConfig(srv.URL), WithAcquirer(
		func(context.Context, camera.Config, *slog.Logger) (camera.Device, error) {
			return nil, denied
		}))

	err := s.Start(context.Background())
	if !camera.IsAcquireError(err) {
		t.Fatalf("Start() error = %v, want *camera.AcquireError", err)
	}
	if err := s.Teardown(); err != nil {
		t.Errorf("Teardown() error = %v", err)
	}
	if frames.Load() != 0 {
		t.Error("no frames should be sent without a device")
	}
	if s.Status().Active {
		t.Error("session should not be active")
	}
}

func TestTransportFailureKeepsSessionAlive(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	addr := dead.URL
	dead.Close()

	s := newTestSession(testConfig(addr))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, transport failure must not escalate", err)
	}

	st := s.Status()
	if st.Connection != transport.StateClosed {
		t.Errorf("Connection = %v, want closed", st.Connection)
	}
	if !st.Active {
		t.Error("session should stay alive until teardown")
	}
	dev := s.Device()
	if camera.ActiveTracks(dev) != 1 {
		t.Error("device should stay acquired until teardown")
	}

	time.Sleep(20 * time.Millisecond)
	if got := s.Status().Capture.Sent; got != 0 {
		t.Errorf("frames sent = %d after connection failure, want 0", got)
	}

	if err := s.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if camera.ActiveTracks(dev) != 0 {
		t.Error("tracks still active after teardown")
	}
}

func TestTeardownReleasesEverything(t *testing.T) {
	srv, frames := newInferenceServer(t, "B")
	s := newTestSession(testConfig(srv.URL))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "traffic", func() bool { return frames.Load() >= 2 })

	dev := s.Device()
	if err := s.Teardown(); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}

	if camera.ActiveTracks(dev) != 0 {
		t.Error("tracks still active after teardown")
	}
	for _, tr := range dev.Tracks() {
		if tr.Enabled() {
			t.Error("track still enabled after teardown")
		}
	}
	if mock, ok := dev.(*camera.MockDevice); ok && !mock.Closed() {
		t.Error("device not closed after teardown")
	}
	if s.Status().Connection != transport.StateClosed {
		t.Errorf("Connection = %v, want closed", s.Status().Connection)
	}

	sent := frames.Load()
	time.Sleep(30 * time.Millisecond)
	if frames.Load() != sent {
		t.Error("frames sent after teardown")
	}
}

func TestTeardownIdempotent(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		s := newTestSession(testConfig("localhost:1"))
		for i := 0; i < 3; i++ {
			if err := s.Teardown(); err != nil {
				t.Fatalf("Teardown() #%d error = %v", i+1, err)
			}
		}
		if err := s.Start(context.Background()); !errors.Is(err, ErrTornDown) {
			t.Errorf("Start() after Teardown error = %v, want ErrTornDown", err)
		}
	})

	t.Run("while open", func(t *testing.T) {
		srv, _ := newInferenceServer(t, "C")
		s := newTestSession(testConfig(srv.URL))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		for i := 0; i < 3; i++ {
			if err := s.Teardown(); err != nil {
				t.Fatalf("Teardown() #%d error = %v", i+1, err)
			}
		}
	})

	t.Run("while connecting", func(t *testing.T) {
		// The server accepts the request but never completes the upgrade.
		arrived := make(chan struct{}, 1)
		hold := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case arrived <- struct{}{}:
			default:
			}
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(hold)

		cfg := testConfig(srv.URL)
		cfg.HandshakeTimeout = time.Minute
		s := newTestSession(cfg)

		started := make(chan error, 1)
		go func() { started <- s.Start(context.Background()) }()
		select {
		case <-arrived:
		case <-time.After(3 * time.Second):
			t.Fatal("handshake never reached the server")
		}
		if st := s.Status().Connection; st != transport.StateConnecting {
			t.Fatalf("Connection = %v, want connecting", st)
		}
		dev := s.Device()

		for i := 0; i < 3; i++ {
			if err := s.Teardown(); err != nil {
				t.Fatalf("Teardown() #%d error = %v", i+1, err)
			}
		}

		select {
		case err := <-started:
			if err != nil {
				t.Errorf("Start() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Start() still blocked in the handshake after Teardown")
		}
		st := s.Status()
		if st.Connection != transport.StateClosed {
			t.Errorf("Connection = %v, want closed", st.Connection)
		}
		if n := camera.ActiveTracks(dev); n != 0 {
			t.Errorf("ActiveTracks() = %d, want 0", n)
		}
		if st.Capture.Sent != 0 {
			t.Errorf("Capture.Sent = %d, want 0", st.Capture.Sent)
		}
	})

	t.Run("server not reading", func(t *testing.T) {
		// The server never reads; teardown must not wait on it.
		upgrader := websocket.Upgrader{}
		hold := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			<-hold
		}))
		defer srv.Close()
		defer close(hold)

		s := newTestSession(testConfig(srv.URL))
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)

		done := make(chan error, 1)
		go func() { done <- s.Teardown() }()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Teardown() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Teardown() hung")
		}
	})
}

func TestStartTwice(t *testing.T) {
	srv, _ := newInferenceServer(t, "A")
	s := newTestSession(testConfig(srv.URL))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Teardown()

	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv, _ := newInferenceServer(t, "A")
	s := newTestSession(testConfig(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, "translation", func() bool { return s.Text().Get() == "A" })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if camera.ActiveTracks(s.Device()) != 0 {
		t.Error("Run() should tear down on exit")
	}
}

func TestRunReturnsWhenConnectionCloses(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
		conn.Close()
	}))
	defer srv.Close()

	s := newTestSession(testConfig(srv.URL))
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("Run() error = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after the connection closed")
	}
}

func TestStatusBeforeStart(t *testing.T) {
	s := newTestSession(testConfig("localhost:1"))
	st := s.Status()

	if st.Active {
		t.Error("Active should be false before Start")
	}
	if st.Connection != transport.StateClosed {
		t.Errorf("Connection = %v, want closed", st.Connection)
	}
	if st.Display == "" {
		t.Error("Display should be the placeholder")
	}
}
