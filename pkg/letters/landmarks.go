// Package letters classifies static fingerspelling handshapes from hand
// landmarks.
//
// Landmarks follow the 21-point hand model: index 0 is the wrist, then four
// joints per digit from thumb to pinky. Coordinates are normalized to the
// image (0-1) with y growing downward; Z is relative depth and may be zero.
package letters

import "fmt"

// NumLandmarks is the number of points in one hand.
const NumLandmarks = 21

// Landmark indices.
const (
	Wrist = iota
	ThumbCMC
	ThumbMCP
	ThumbIP
	ThumbTip
	IndexMCP
	IndexPIP
	IndexDIP
	IndexTip
	MiddleMCP
	MiddlePIP
	MiddleDIP
	MiddleTip
	RingMCP
	RingPIP
	RingDIP
	RingTip
	PinkyMCP
	PinkyPIP
	PinkyDIP
	PinkyTip
)

// Connections are the bone segments drawn between landmarks.
var Connections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
	{Wrist, PinkyMCP},
}

// Point is one landmark.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Hand is the handedness reported by the detector.
type Hand int

const (
	Left Hand = iota
	Right
)

// String returns "Left" or "Right".
func (h Hand) String() string {
	switch h {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return fmt.Sprintf("hand(%d)", int(h))
	}
}

// ParseHand parses a handedness label, case-insensitively.
func ParseHand(s string) (Hand, error) {
	switch s {
	case "Left", "left", "LEFT":
		return Left, nil
	case "Right", "right", "RIGHT":
		return Right, nil
	}
	return 0, fmt.Errorf("letters: unknown hand %q", s)
}

// MarshalText writes the hand label.
func (h Hand) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses the hand label.
func (h *Hand) UnmarshalText(text []byte) error {
	v, err := ParseHand(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Landmarks is one detected hand.
type Landmarks []Point

// Valid reports whether the hand has exactly NumLandmarks points.
func (l Landmarks) Valid() bool {
	return len(l) == NumLandmarks
}

// Mirror flips the hand horizontally so left-hand shapes can be checked with
// right-hand geometry.
func (l Landmarks) Mirror() Landmarks {
	out := make(Landmarks, len(l))
	for i, p := range l {
		out[i] = Point{X: 1 - p.X, Y: p.Y, Z: p.Z}
	}
	return out
}

// Detection is a hand found in a frame.
type Detection struct {
	Hand       Hand      `json:"hand"`
	Landmarks  Landmarks `json:"landmarks"`
	Confidence float64   `json:"confidence,omitempty"`
}
