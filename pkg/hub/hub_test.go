package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/teslashibe/go-signstream/internal/log"
)

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := New("test", append([]Option{WithLogger(log.Discard())}, opts...)...)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// attach registers a connectionless client so tests can read its queue.
func attach(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan Message, h.queue)}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return Message{}, false
	}
}

// settle waits until the hub loop has drained its publish queue.
func settle(h *Hub) {
	for len(h.publish) > 0 {
		time.Sleep(time.Millisecond)
	}
	// One round trip through the loop.
	c := &Client{hub: h, send: make(chan Message, 1)}
	h.register <- c
	h.unregister <- c
}

func TestPublishStatus(t *testing.T) {
	h := startHub(t)
	a := attach(h)
	b := attach(h)

	if h.Clients() != 2 {
		t.Fatalf("Clients() = %d, want 2", h.Clients())
	}
	if err := h.PublishStatus(map[string]string{"translation": "A"}); err != nil {
		t.Fatalf("PublishStatus() error = %v", err)
	}

	for _, c := range []*Client{a, b} {
		m, ok := receive(t, c)
		if !ok {
			t.Fatal("client channel closed")
		}
		if m.Kind != KindStatus {
			t.Errorf("Kind = %v, want status", m.Kind)
		}
		var got map[string]string
		if err := json.Unmarshal(m.Data, &got); err != nil || got["translation"] != "A" {
			t.Errorf("payload = %s, err %v", m.Data, err)
		}
	}
}

func TestPublishFrame(t *testing.T) {
	h := startHub(t)
	c := attach(h)

	h.PublishFrame([]byte{0xff, 0xd8})
	m, _ := receive(t, c)
	if m.Kind != KindFrame || len(m.Data) != 2 {
		t.Errorf("message = %+v, want 2-byte frame", m)
	}
}

func TestEvictSlowViewer(t *testing.T) {
	h := startHub(t, WithQueue(1))
	slow := attach(h)

	h.PublishFrame([]byte{1})
	h.PublishFrame([]byte{2})
	settle(h)

	if m, ok := receive(t, slow); !ok || m.Data[0] != 1 {
		t.Fatalf("first message = %v, %v; want frame 1", m, ok)
	}
	if _, ok := receive(t, slow); ok {
		t.Error("slow viewer should have its channel closed")
	}
	if st := h.Stats(); st.Clients != 0 || st.Evicted != 1 {
		t.Errorf("Stats() = %+v, want 0 clients and 1 eviction", st)
	}
}

func TestReplaceKeepsLatest(t *testing.T) {
	h := startHub(t, WithQueue(1), WithPolicy(Replace))
	slow := attach(h)

	for i := byte(1); i <= 3; i++ {
		h.PublishFrame([]byte{i})
	}
	settle(h)

	m, ok := receive(t, slow)
	if !ok || m.Data[0] != 3 {
		t.Fatalf("queued message = %v, %v; want frame 3", m, ok)
	}
	st := h.Stats()
	if st.Clients != 1 || st.Replaced != 2 || st.Evicted != 0 {
		t.Errorf("Stats() = %+v, want 1 client, 2 replaced, 0 evicted", st)
	}
}

func TestGreeting(t *testing.T) {
	greeted := FrameMessage([]byte{0xff})
	h := startHub(t, WithGreeting(func() (Message, bool) { return greeted, true }))
	c := attach(h)

	m, ok := receive(t, c)
	if !ok || m.Kind != KindFrame || m.Data[0] != 0xff {
		t.Errorf("greeting = %+v, %v", m, ok)
	}
}

func TestGreetingSkipped(t *testing.T) {
	h := startHub(t, WithGreeting(func() (Message, bool) { return Message{}, false }))
	c := attach(h)

	h.PublishFrame([]byte{7})
	if m, _ := receive(t, c); m.Data[0] != 7 {
		t.Errorf("first message = %+v, want the published frame", m)
	}
}

func TestStopClosesClients(t *testing.T) {
	h := New("test", WithLogger(log.Discard()))
	go h.Run()
	c := attach(h)

	h.Stop()
	h.Stop()

	if _, ok := receive(t, c); ok {
		t.Error("client channel should be closed after Stop")
	}
	if Attach(h, nil) != nil {
		t.Error("Attach() on a stopped hub should return nil")
	}
}

func TestKindString(t *testing.T) {
	if KindFrame.String() != "frame" || KindStatus.String() != "status" {
		t.Errorf("Kind strings = %q, %q", KindFrame, KindStatus)
	}
}
