// Package undistort corrects lens distortion with a fixed calibration and
// marks the optical centre of an image.
package undistort

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-mvcam/pkg/camera"
)

// Centre cross geometry.
const (
	crossHalfLength = 20
	crossThickness  = 2
)

// crossColor is pure red; gocv converts RGBA to BGR order.
var crossColor = color.RGBA{R: 255, A: 255}

// Undistorter applies one camera calibration to images.
// The calibration is loaded once and never changes.
type Undistorter struct {
	logger *slog.Logger
	calib  *Calibration

	mu     sync.Mutex
	k, d   gocv.Mat
	ready  bool
	closed bool
}

// New loads the calibration at path. A missing or malformed file is logged
// and leaves the Undistorter without calibration; Undistort then reports
// ErrCalibrationUnavailable.
func New(path string, logger *slog.Logger) *Undistorter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("calibration", path)

	calib, err := LoadCalibration(path)
	if err != nil {
		logger.Error("calibration not loaded", "error", err)
		return &Undistorter{logger: logger}
	}

	fx, fy, cx, cy := calib.Intrinsics()
	logger.Info("calibration loaded",
		"fx", fx, "fy", fy, "cx", cx, "cy", cy,
		"distortion", calib.Distortion.RawVector().Data,
	)
	return NewFromCalibration(calib, logger)
}

// NewFromCalibration wraps an already decoded calibration.
// An invalid calibration is treated as unavailable.
func NewFromCalibration(calib *Calibration, logger *slog.Logger) *Undistorter {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Undistorter{logger: logger}
	if err := calib.Validate(); err != nil {
		logger.Error("calibration rejected", "error", err)
		return u
	}
	u.calib = calib
	u.k, u.d = calib.mats()
	u.ready = true
	return u
}

// Available reports whether a calibration is loaded.
func (u *Undistorter) Available() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ready && !u.closed
}

// Calibration returns the loaded calibration, or nil.
func (u *Undistorter) Calibration() *Calibration {
	return u.calib
}

// Undistort writes the corrected src into dst, reusing the camera matrix as
// the new camera matrix. Without calibration dst is left untouched.
func (u *Undistorter) Undistort(src gocv.Mat, dst *gocv.Mat) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.ready || u.closed {
		u.logger.Warn("undistort skipped", "error", ErrCalibrationUnavailable)
		return ErrCalibrationUnavailable
	}
	if src.Empty() {
		return ErrEmptyImage
	}

	gocv.Undistort(src, dst, u.k, u.d, u.k)
	return nil
}

// Close releases the native matrices. Further Undistort calls report
// ErrCalibrationUnavailable.
func (u *Undistorter) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true
	if u.ready {
		u.k.Close()
		u.d.Close()
	}
	return nil
}

// MarkCenter returns a copy of src with a red cross at its centre.
// The caller closes the result.
func MarkCenter(src gocv.Mat) gocv.Mat {
	out := src.Clone()
	cx, cy := out.Cols()/2, out.Rows()/2

	gocv.Line(&out, image.Pt(cx-crossHalfLength, cy), image.Pt(cx+crossHalfLength, cy), crossColor, crossThickness)
	gocv.Line(&out, image.Pt(cx, cy-crossHalfLength), image.Pt(cx, cy+crossHalfLength), crossColor, crossThickness)
	return out
}

// MatFromFrame copies a BGR frame into a new CV_8UC3 Mat.
// The returned Mat must be closed, even when err is non-nil.
func MatFromFrame(f camera.Frame) (gocv.Mat, error) {
	if !f.Valid() {
		return gocv.NewMat(), fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidFrame, f.Width, f.Height, len(f.Data))
	}

	view, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data[:f.Stride()*f.Height])
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("wrap frame: %w", err)
	}
	defer view.Close()

	// The frame buffer is reused by the next pull.
	return view.Clone(), nil
}
