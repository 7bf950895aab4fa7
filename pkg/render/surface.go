package render

import (
	"image"
	"image/draw"
	"sync"

	"github.com/teslashibe/go-signstream/pkg/protocol"
)

// Surface is the drawing area that shows the latest annotated frame.
type Surface struct {
	mu        sync.RWMutex
	img       *image.RGBA // nil until the first draw
	version   uint64
	observers []func(version uint64)
}

// NewSurface creates an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Draw resizes the surface to src's intrinsic size, clears it and draws src
// at the origin.
func (s *Surface) Draw(src image.Image) {
	b := src.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())

	s.mu.Lock()
	if s.img == nil || s.img.Bounds() != r {
		s.img = image.NewRGBA(r)
	} else {
		draw.Draw(s.img, r, image.Transparent, image.Point{}, draw.Src)
	}
	draw.Draw(s.img, r, src, b.Min, draw.Over)
	s.version++
	v := s.version
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(v)
	}
}

// Size returns the surface dimensions, zero before the first draw.
func (s *Surface) Size() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return 0, 0
	}
	return s.img.Bounds().Dx(), s.img.Bounds().Dy()
}

// Version counts draws.
func (s *Surface) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a copy of the current contents, or nil before the first draw.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil
	}
	cp := image.NewRGBA(s.img.Bounds())
	copy(cp.Pix, s.img.Pix)
	return cp
}

// JPEG encodes the current contents at the given 0..1 quality.
func (s *Surface) JPEG(quality float64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil, ErrNoImage
	}
	f, err := protocol.EncodeFrameQuality(s.img, quality)
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}

// OnDraw registers an observer called with the new version after every draw.
func (s *Surface) OnDraw(fn func(version uint64)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}
