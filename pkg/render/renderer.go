// Package render applies inference results to the display: the translation
// text and the annotated frame surface.
//
// A success result always replaces the text, even with an empty string, so
// a stale letter never lingers once the service stops recognising it. A
// failure result changes nothing.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-signstream/pkg/protocol"
)

// MaxPixels bounds the dimensions of an annotated frame. Larger frames are
// rejected from their header before any pixel memory is allocated.
const MaxPixels = 1 << 24

// Decoded is the outcome of an asynchronous image decode.
type Decoded struct {
	Image image.Image
	Err   error
}

// Stats holds renderer counters.
type Stats struct {
	Results      int64 `json:"results"`
	Failures     int64 `json:"failures"`
	Drawn        int64 `json:"drawn"`
	DecodeErrors int64 `json:"decode_errors"`
}

// Option is a functional option for configuring a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Renderer routes results to a Surface and a Text.
type Renderer struct {
	surface *Surface
	text    *Text
	logger  *slog.Logger

	pending sync.WaitGroup

	results      atomic.Int64
	failures     atomic.Int64
	drawn        atomic.Int64
	decodeErrors atomic.Int64
}

// New creates a renderer drawing to surface and text.
func New(surface *Surface, text *Text, opts ...Option) *Renderer {
	r := &Renderer{
		surface: surface,
		text:    text,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "render")
	return r
}

// Surface returns the drawing surface.
func (r *Renderer) Surface() *Surface {
	return r.surface
}

// Text returns the translation element.
func (r *Renderer) Text() *Text {
	return r.text
}

// Handle applies one result. The text update is synchronous; an attached
// image is decoded in the background and drawn when ready. Decodes that
// finish out of order draw in completion order.
func (r *Renderer) Handle(ctx context.Context, res protocol.Result) {
	r.results.Add(1)

	if !res.Success() {
		r.failures.Add(1)
		r.logger.Debug("inference reported failure", "status", res.Status)
		return
	}

	r.text.Set(res.Translation)

	if res.Image == nil || res.Image.Empty() {
		return
	}

	r.pending.Add(1)
	go func(ch <-chan Decoded) {
		defer r.pending.Done()

		d := <-ch
		if d.Err != nil {
			r.decodeErrors.Add(1)
			r.logger.Warn("annotated frame not rendered", "error", d.Err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.surface.Draw(d.Image)
		r.drawn.Add(1)
	}(r.DecodeAsync(ctx, *res.Image))
}

// DecodeAsync decodes frame in a new goroutine. The returned channel yields
// exactly one value. Failures wrap ErrImageDecode.
func (r *Renderer) DecodeAsync(ctx context.Context, frame protocol.EncodedFrame) <-chan Decoded {
	out := make(chan Decoded, 1)

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		out <- decode(ctx, frame.Data)
	}()

	return out
}

func decode(ctx context.Context, data []byte) Decoded {
	if err := ctx.Err(); err != nil {
		return Decoded{Err: err}
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Decoded{Err: fmt.Errorf("%w: %w", ErrImageDecode, err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return Decoded{Err: fmt.Errorf("%w: %w: %dx%d", ErrImageDecode, ErrFrameTooLarge, cfg.Width, cfg.Height)}
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{Err: fmt.Errorf("%w: %w", ErrImageDecode, err)}
	}
	return Decoded{Image: img}
}

// Wait blocks until every outstanding decode has finished.
func (r *Renderer) Wait() {
	r.pending.Wait()
}

// Stats returns a snapshot of the renderer counters.
func (r *Renderer) Stats() Stats {
	return Stats{
		Results:      r.results.Load(),
		Failures:     r.failures.Load(),
		Drawn:        r.drawn.Load(),
		DecodeErrors: r.decodeErrors.Load(),
	}
}
