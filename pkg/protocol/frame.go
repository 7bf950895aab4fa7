package protocol

import (
	"image"
	"image/jpeg"

	"github.com/valyala/bytebufferpool"
)

// MIMEJPEG is the only payload type carried on the wire.
const MIMEJPEG = "image/jpeg"

// FrameQuality is the fixed JPEG quality factor for outbound frames (0.7).
const FrameQuality = 0.7

// EncodedFrame is a compressed frame ready for transmission.
// Data must not be modified after creation.
type EncodedFrame struct {
	Data    []byte
	MIME    string
	Quality float64 // 0..1; zero when unknown (inbound frames)
	Width   int
	Height  int
}

// Len returns the payload size in bytes.
func (f EncodedFrame) Len() int {
	return len(f.Data)
}

// Empty reports whether the frame carries no bytes.
func (f EncodedFrame) Empty() bool {
	return len(f.Data) == 0
}

// jpegQuality converts a 0..1 quality factor into image/jpeg's 1..100 scale.
func jpegQuality(q float64) int {
	v := int(q*100 + 0.5)
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// EncodeFrame compresses img as a JPEG at FrameQuality.
// The result is one outbound transport message; no header is added.
func EncodeFrame(img image.Image) (EncodedFrame, error) {
	return EncodeFrameQuality(img, FrameQuality)
}

// EncodeFrameQuality compresses img as a JPEG at the given 0..1 quality.
func EncodeFrameQuality(img image.Image, quality float64) (EncodedFrame, error) {
	if img == nil || img.Bounds().Empty() {
		return EncodedFrame{}, ErrEmptyImage
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return EncodedFrame{}, err
	}

	// The pooled buffer is reused, so the frame owns a private copy.
	data := make([]byte, buf.Len())
	copy(data, buf.B)

	b := img.Bounds()
	return EncodedFrame{
		Data:    data,
		MIME:    MIMEJPEG,
		Quality: quality,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}
