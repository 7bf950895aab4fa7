//go:build gocv

package letters

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// LandmarkNet runs a single-hand landmark model through OpenCV DNN. The
// whole frame is treated as the hand crop.
type LandmarkNet struct {
	net    gocv.Net
	config Config
	mu     sync.Mutex // Protects inference
}

// NewLandmarkNet loads the ONNX model at cfg.ModelPath.
func NewLandmarkNet(cfg Config) (Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: model file not found: %s", ErrNoModel, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load %s", ErrNoModel, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &LandmarkNet{net: net, config: cfg}, nil
}

// Detect finds the hand in the JPEG frame.
func (d *LandmarkNet) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	size := d.config.InputSize
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers([]string{d.config.LandmarkOutput, d.config.PresenceOutput, d.config.HandednessOutput})
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 3 {
		return nil, fmt.Errorf("letters: expected 3 outputs, got %d", len(outs))
	}

	coords, err := outs[0].DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	if len(coords) < NumLandmarks*3 {
		return nil, fmt.Errorf("letters: landmark tensor has %d values", len(coords))
	}

	presence := float64(outs[1].GetFloatAt(0, 0))
	if presence < d.config.ConfidenceThresh {
		return nil, nil
	}

	hand := Left
	if outs[2].GetFloatAt(0, 0) > 0.5 {
		hand = Right
	}

	// Coordinates are in model input pixels.
	scale := float64(size)
	lm := make(Landmarks, NumLandmarks)
	for i := range lm {
		lm[i] = Point{
			X: float64(coords[i*3]) / scale,
			Y: float64(coords[i*3+1]) / scale,
			Z: float64(coords[i*3+2]) / scale,
		}
	}

	dets := []Detection{{Hand: hand, Landmarks: lm, Confidence: presence}}
	return SelectBest(dets, d.config.MaxHands), nil
}

// Close releases the network.
func (d *LandmarkNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
