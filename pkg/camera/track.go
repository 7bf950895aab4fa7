package camera

import (
	"sync"

	"github.com/google/uuid"
)

// TrackState is the lifecycle state of a media track.
type TrackState string

const (
	// TrackLive means the track is producing frames.
	TrackLive TrackState = "live"
	// TrackEnded means the track was stopped and cannot restart.
	TrackEnded TrackState = "ended"
)

// Track is one media stream of a device.
type Track interface {
	ID() string
	Kind() string
	State() TrackState
	Enabled() bool
	SetEnabled(enabled bool)
	// Stop ends the track. It is safe to call multiple times.
	Stop()
}

// videoTrack is the Track implementation shared by all backends.
type videoTrack struct {
	id     string
	onStop func()

	mu      sync.Mutex
	state   TrackState
	enabled bool
}

func newVideoTrack(onStop func()) *videoTrack {
	return &videoTrack{
		id:      uuid.NewString(),
		onStop:  onStop,
		state:   TrackLive,
		enabled: true,
	}
}

func (t *videoTrack) ID() string   { return t.id }
func (t *videoTrack) Kind() string { return "video" }

func (t *videoTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *videoTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *videoTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *videoTrack) Stop() {
	t.mu.Lock()
	if t.state == TrackEnded {
		t.mu.Unlock()
		return
	}
	t.state = TrackEnded
	onStop := t.onStop
	t.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// live reports whether the track can still deliver frames.
func (t *videoTrack) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TrackLive && t.enabled
}
