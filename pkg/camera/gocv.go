//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

const gocvAvailable = true

// GoCVDevice captures from a local webcam through OpenCV.
type GoCVDevice struct {
	settings Settings
	logger   *slog.Logger
	track    *videoTrack

	mu     sync.Mutex // serializes Read against Close
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	rgba   gocv.Mat
	closed bool

	captures atomic.Int64
	empties  atomic.Int64
}

func newGoCVDevice(cfg Config, logger *slog.Logger) (Device, error) {
	if err := checkDevicePermission(cfg.DeviceIndex); err != nil {
		return nil, &AcquireError{Backend: BackendGoCV, Reason: ReasonPermissionDenied, Err: err}
	}

	vc, err := gocv.OpenVideoCapture(cfg.DeviceIndex)
	if err != nil {
		return nil, &AcquireError{Backend: BackendGoCV, Reason: ReasonNoDevice, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &AcquireError{
			Backend: BackendGoCV,
			Reason:  ReasonNoDevice,
			Err:     fmt.Errorf("device %d did not open", cfg.DeviceIndex),
		}
	}

	c := cfg.Constraints
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width.Ideal))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height.Ideal))
	vc.Set(gocv.VideoCaptureFPS, float64(c.FrameRate.Ideal))

	// The driver may round to the nearest supported mode; trust what it reports.
	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	fps := int(vc.Get(gocv.VideoCaptureFPS))
	if width <= 0 || height <= 0 {
		width, height = c.Width.Ideal, c.Height.Ideal
	}
	if fps > 0 && !c.FrameRate.Satisfied(fps) {
		vc.Close()
		return nil, &AcquireError{
			Backend: BackendGoCV,
			Reason:  ReasonConstraints,
			Err:     fmt.Errorf("device frame rate %d below minimum %d", fps, c.FrameRate.Min),
		}
	}
	if fps <= 0 {
		fps = c.FrameRate.Ideal
	}

	facing := c.Facing
	if facing == "" {
		facing = FacingUser
	}

	d := &GoCVDevice{
		settings: Settings{
			Width:     width,
			Height:    height,
			FrameRate: fps,
			Mirrored:  cfg.Mirrored,
			Facing:    facing,
		},
		logger: logger,
		vc:     vc,
		frame:  gocv.NewMat(),
		rgba:   gocv.NewMat(),
	}
	d.track = newVideoTrack(nil)

	logger.Info("camera opened",
		"backend", BackendGoCV,
		"device_index", cfg.DeviceIndex,
		"width", width,
		"height", height,
		"fps", fps,
	)

	return d, nil
}

// checkDevicePermission surfaces EACCES on Linux video nodes, which OpenCV
// otherwise reports as a generic open failure.
func checkDevicePermission(index int) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	f, err := os.Open(fmt.Sprintf("/dev/video%d", index))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return err
		}
		return nil
	}
	return f.Close()
}

// Settings returns the negotiated capture format.
func (d *GoCVDevice) Settings() Settings {
	return d.settings
}

// Capture reads one frame and converts it to RGBA in dst.
func (d *GoCVDevice) Capture(ctx context.Context, dst *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dst == nil || dst.Bounds() != d.settings.Bounds() {
		return ErrBufferSize
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if !d.track.live() {
		return ErrTrackEnded
	}

	if ok := d.vc.Read(&d.frame); !ok || d.frame.Empty() {
		d.empties.Add(1)
		return ErrNoFrame
	}

	if d.frame.Cols() != d.settings.Width || d.frame.Rows() != d.settings.Height {
		gocv.Resize(d.frame, &d.frame, image.Pt(d.settings.Width, d.settings.Height), 0, 0, gocv.InterpolationLinear)
	}
	if d.settings.Mirrored {
		gocv.Flip(d.frame, &d.frame, 1)
	}
	gocv.CvtColor(d.frame, &d.rgba, gocv.ColorBGRToRGBA)

	pix := d.rgba.ToBytes()
	if len(pix) != len(dst.Pix) {
		return ErrBufferSize
	}
	copy(dst.Pix, pix)

	d.captures.Add(1)
	return ctx.Err()
}

// Tracks returns the single video track.
func (d *GoCVDevice) Tracks() []Track {
	return []Track{d.track}
}

// Name returns "gocv".
func (d *GoCVDevice) Name() string {
	return string(BackendGoCV)
}

// Close releases the OpenCV capture handle and its matrices.
func (d *GoCVDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	err := d.vc.Close()
	d.frame.Close()
	d.rgba.Close()
	d.mu.Unlock()

	d.track.Stop()
	d.logger.Info("camera closed",
		"captures", d.captures.Load(),
		"empty_reads", d.empties.Load(),
	)
	return err
}
