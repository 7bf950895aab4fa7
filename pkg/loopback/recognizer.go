package loopback

import (
	"context"
	"fmt"
	"image"

	"github.com/teslashibe/go-signstream/pkg/letters"
)

// Recognition is what a recognizer found in one frame.
type Recognition struct {
	Translation string
	Hands       []letters.Detection
}

// Recognizer turns one decoded frame into a translation. frame holds the
// original JPEG bytes of img.
type Recognizer interface {
	Recognize(ctx context.Context, frame []byte, img image.Image) (Recognition, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, frame []byte, img image.Image) (Recognition, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, frame []byte, img image.Image) (Recognition, error) {
	return f(ctx, frame, img)
}

// StaticRecognizer reports the same translation for every frame.
type StaticRecognizer struct {
	Translation string
}

// Recognize returns the fixed translation.
func (s StaticRecognizer) Recognize(context.Context, []byte, image.Image) (Recognition, error) {
	return Recognition{Translation: s.Translation}, nil
}

// HandRecognizer detects hand landmarks and classifies them into letters.
type HandRecognizer struct {
	detector   letters.Detector
	classifier *letters.Classifier
}

// NewHandRecognizer creates a recognizer. A nil classifier uses the default
// letter rules.
func NewHandRecognizer(d letters.Detector, c *letters.Classifier) *HandRecognizer {
	if c == nil {
		c = letters.NewClassifier()
	}
	return &HandRecognizer{detector: d, classifier: c}
}

// Recognize runs detection and classification. A frame without hands is a
// success with an empty translation.
func (h *HandRecognizer) Recognize(ctx context.Context, frame []byte, _ image.Image) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}
	dets, err := h.detector.Detect(frame)
	if err != nil {
		return Recognition{}, fmt.Errorf("loopback: detect hands: %w", err)
	}
	return Recognition{
		Translation: h.classifier.ClassifyAll(dets),
		Hands:       dets,
	}, nil
}

// Close releases the detector.
func (h *HandRecognizer) Close() error {
	return h.detector.Close()
}
