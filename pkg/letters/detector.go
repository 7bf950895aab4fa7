package letters

import (
	"errors"
	"slices"
)

// ErrNoModel is returned when the landmark model cannot be used.
var ErrNoModel = errors.New("letters: hand landmark model unavailable")

// Detector finds hands in a frame.
type Detector interface {
	// Detect returns the hands found in a JPEG frame.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds landmark model configuration
type Config struct {
	ModelPath        string  // Path to ONNX hand landmark model
	ConfidenceThresh float64 // Minimum hand presence score (default 0.7)
	InputSize        int     // Square model input (default 224)
	MaxHands         int     // Hands returned per frame (default 1)

	// Output tensor names: landmarks (21x3), presence score, handedness.
	LandmarkOutput   string
	PresenceOutput   string
	HandednessOutput string
}

// DefaultConfig returns defaults for the 224x224 hand landmark model.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/hand_landmark.onnx",
		ConfidenceThresh: 0.7,
		InputSize:        224,
		MaxHands:         1,
		LandmarkOutput:   "Identity",
		PresenceOutput:   "Identity_1",
		HandednessOutput: "Identity_2",
	}
}

// FixedDetector reports the same hands for every frame.
type FixedDetector struct {
	Detections []Detection
}

// Detect returns a copy of the configured detections.
func (f *FixedDetector) Detect([]byte) ([]Detection, error) {
	return slices.Clone(f.Detections), nil
}

// Close does nothing.
func (f *FixedDetector) Close() error {
	return nil
}

// SelectBest keeps the n most confident detections, most confident first.
func SelectBest(dets []Detection, n int) []Detection {
	if n <= 0 || len(dets) <= n {
		return dets
	}
	sorted := slices.Clone(dets)
	slices.SortStableFunc(sorted, func(a, b Detection) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return sorted[:n]
}
