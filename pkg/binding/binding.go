// Package binding exposes a camera through a flat, boolean-result API for
// embedding in other runtimes. Failures are logged and reported as false;
// the last error is kept for callers that want it.
package binding

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-mvcam/pkg/camera"
)

// Array is a copied, row-major image: shape [height, width, 3],
// strides [width*3, 3, 1] in bytes.
type Array struct {
	Data    []byte
	Shape   [3]int
	Strides [3]int
}

// At returns the byte at row y, column x, channel c.
func (a *Array) At(y, x, c int) byte {
	return a.Data[y*a.Strides[0]+x*a.Strides[1]+c*a.Strides[2]]
}

// Camera is the boolean facade over a camera.Camera.
type Camera struct {
	cam    camera.Camera
	logger *slog.Logger

	mu      sync.Mutex
	lastErr error
}

// New wraps cam.
func New(cam camera.Camera, logger *slog.Logger) *Camera {
	if logger == nil {
		logger = slog.Default()
	}
	return &Camera{cam: cam, logger: logger.With("component", "binding")}
}

// Open creates a session for the named model and wraps it.
func Open(model string, logger *slog.Logger) (*Camera, error) {
	m, err := camera.ParseModel(model)
	if err != nil {
		return nil, err
	}
	sess, err := camera.New(m, camera.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return New(sess, logger), nil
}

func (c *Camera) result(op string, err error) bool {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("binding call failed", "op", op, "error", err)
		return false
	}
	return true
}

// Err returns the error behind the last false result, or nil.
func (c *Camera) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Init initializes the driver and opens the first USB device.
func (c *Camera) Init() bool {
	return c.result("init", c.cam.Initialize())
}

// SetResolution sets the frame width and height.
func (c *Camera) SetResolution(width, height int) bool {
	return c.result("set_resolution", c.cam.SetResolution(width, height))
}

// SetExposureTime sets the exposure in microseconds.
func (c *Camera) SetExposureTime(us float64) bool {
	return c.result("set_exposure_time", c.cam.SetExposureTime(us))
}

// StartGrabbing starts acquisition.
func (c *Camera) StartGrabbing() bool {
	return c.result("start_grabbing", c.cam.StartGrabbing())
}

// StopGrabbing stops acquisition and releases the device handle.
func (c *Camera) StopGrabbing() {
	c.cam.StopGrabbing()
}

// CaptureImage pulls one frame sized for the current resolution.
// It returns false for driver failures, for frames that report
// non-positive dimensions and for frames whose data does not cover them.
func (c *Camera) CaptureImage() (bool, *Array) {
	buf := make([]byte, c.cam.FrameSize())

	frame, err := c.cam.PullFrame(buf)
	if err != nil {
		return c.result("capture_image", err), nil
	}
	if frame.Width <= 0 || frame.Height <= 0 || !frame.Valid() {
		return c.result("capture_image", errDegenerateFrame(frame)), nil
	}

	data := make([]byte, frame.Stride()*frame.Height)
	copy(data, frame.Data)

	c.result("capture_image", nil)
	return true, &Array{
		Data:    data,
		Shape:   [3]int{frame.Height, frame.Width, camera.BytesPerPixel},
		Strides: [3]int{frame.Stride(), camera.BytesPerPixel, 1},
	}
}

// Close releases the device and the driver.
func (c *Camera) Close() bool {
	return c.result("close", c.cam.Close())
}

// GetFPS returns the frame rate reported by the device, or a negative
// sentinel when it cannot be read.
func (c *Camera) GetFPS() float64 {
	return c.cam.FrameRate()
}
