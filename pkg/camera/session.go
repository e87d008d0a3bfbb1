// Package camera drives one industrial camera through the vendor SDK.
//
// A Session owns exactly one device handle and walks it through
//
//	Uninitialized -> Enumerated -> Opened -> Configured -> Streaming -> Stopped -> Closed
//
// Every driver failure is reported once, as an *Error carrying a Kind and the
// raw driver code. Nothing is retried.
package camera

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-mvcam/pkg/mvsdk"
)

// DefaultFrameTimeout is how long PullFrame blocks waiting for a frame.
const DefaultFrameTimeout = 1000 * time.Millisecond

// Frame-rate sentinels. Any negative FrameRate result is a failure.
const (
	FrameRateNoHandle    float64 = -1
	FrameRateUnavailable float64 = -2
)

// State is a Session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateEnumerated
	StateOpened
	StateConfigured
	StateStreaming
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateEnumerated:
		return "enumerated"
	case StateOpened:
		return "opened"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Camera is the capability set every camera model provides.
type Camera interface {
	// Initialize brings up the driver, finds the first USB device and opens it.
	Initialize() error

	// SetResolution sets Width then Height. The driver decides what is valid.
	SetResolution(width, height int) error

	// SetExposureTime sets the exposure in microseconds.
	SetExposureTime(us float64) error

	// StartGrabbing starts acquisition.
	StartGrabbing() error

	// StopGrabbing stops acquisition and releases the device handle.
	// It is safe to call at any time, any number of times.
	StopGrabbing()

	// PullFrame blocks until a frame is copied into buf or the frame
	// timeout elapses. buf must hold at least FrameSize bytes.
	PullFrame(buf []byte) (Frame, error)

	// FrameSize returns the buffer size for the current resolution.
	FrameSize() int

	// FrameRate returns the frame rate reported by the device, or a
	// negative sentinel.
	FrameRate() float64

	// Close stops acquisition and releases the driver.
	// It is safe to call Close multiple times.
	Close() error
}

// Session is the Camera implementation for every model.
//
// A Session is driven from one goroutine. Only LatestFrame and
// LatestFrameStats may be called concurrently with other methods.
type Session struct {
	id      string
	model   Model
	sub     *mvsdk.Subsystem
	driver  mvsdk.Driver
	logger  *slog.Logger
	timeout time.Duration

	state    State
	acquired bool
	devices  []mvsdk.DeviceInfo
	device   mvsdk.DeviceInfo
	handle   mvsdk.Handle
	width    int
	height   int
	pushMode bool

	latest *latestFrame
}

var _ Camera = (*Session)(nil)

// NewSession creates a session on a shared driver subsystem.
// Nothing touches the driver until Initialize.
func NewSession(sub *mvsdk.Subsystem, opts ...Option) *Session {
	o := buildOptions(opts)
	id := uuid.NewString()

	logger := o.logger.With("session_id", id)
	if o.model != "" {
		logger = logger.With("model", string(o.model))
	}

	return &Session{
		id:      id,
		model:   o.model,
		sub:     sub,
		driver:  sub.Driver(),
		logger:  logger,
		timeout: o.timeout,
		state:   StateUninitialized,
		latest:  newLatestFrame(),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Model returns the camera model, if known.
func (s *Session) Model() Model { return s.model }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Device returns the opened device, if any.
func (s *Session) Device() (mvsdk.DeviceInfo, bool) {
	return s.device, s.handle != 0
}

// Resolution returns the frame geometry the session believes is active.
func (s *Session) Resolution() (width, height int) {
	return s.width, s.height
}

// fail logs a driver failure and wraps it.
func (s *Session) fail(kind Kind, op string, code mvsdk.Code) error {
	s.logger.Error("camera operation failed", "op", op, "kind", string(kind), "code", code)
	return &Error{Kind: kind, Op: op, Code: code}
}

func (s *Session) invalid(op string, detail error) error {
	s.logger.Warn("camera operation in invalid state", "op", op, "state", s.state.String(), "error", detail)
	return &Error{Kind: KindInvalidState, Op: op, Err: detail}
}

func (s *Session) requireHandle(op string) error {
	if s.handle == 0 {
		return s.invalid(op, ErrNoHandle)
	}
	return nil
}

// Initialize acquires the driver subsystem, enumerates USB devices and
// opens the first one. It may be retried after a failure and called again
// after StopGrabbing.
func (s *Session) Initialize() error {
	const op = "initialize"

	switch s.state {
	case StateUninitialized, StateEnumerated, StateStopped:
	default:
		return s.invalid(op, ErrInvalidState)
	}

	if !s.acquired {
		if code := s.sub.Acquire(); code.Failed() {
			return s.fail(KindDriverInitFailed, op, code)
		}
		s.acquired = true
	}

	devices, code := s.driver.EnumDevices(mvsdk.TransportUSB)
	s.logger.Info("devices enumerated", "count", len(devices), "code", code)
	if code.Failed() || len(devices) == 0 {
		return s.fail(KindNoDeviceFound, "enumerate devices", code)
	}
	s.devices = devices
	s.state = StateEnumerated

	return s.open()
}

// open selects device 0 and forces BGR8 output. On failure no handle is kept.
func (s *Session) open() error {
	dev := s.devices[0]

	h, code := s.driver.CreateHandle(dev)
	if code.Failed() {
		return s.fail(KindHandleCreateFailed, "create handle", code)
	}

	if code := s.driver.OpenDevice(h); code.Failed() {
		s.driver.DestroyHandle(h)
		return s.fail(KindDeviceOpenFailed, "open device", code)
	}

	if code := s.driver.SetEnumValue(h, mvsdk.NodePixelFormat, uint32(mvsdk.PixelTypeBGR8Packed)); code.Failed() {
		s.driver.CloseDevice(h)
		s.driver.DestroyHandle(h)
		return s.fail(KindConfigureRejected, "set pixel format", code)
	}

	s.handle = h
	s.device = dev
	s.state = StateOpened
	s.refreshGeometry()

	s.logger.Info("camera opened",
		"device_model", dev.ModelName,
		"serial", dev.SerialNumber,
		"width", s.width,
		"height", s.height,
	)
	return nil
}

// refreshGeometry reads Width and Height back from the driver.
func (s *Session) refreshGeometry() {
	w, code := s.driver.GetIntValue(s.handle, mvsdk.NodeWidth)
	if code.Failed() {
		s.logger.Warn("cannot read width", "code", code)
		return
	}
	h, code := s.driver.GetIntValue(s.handle, mvsdk.NodeHeight)
	if code.Failed() {
		s.logger.Warn("cannot read height", "code", code)
		return
	}
	s.width, s.height = int(w), int(h)
}

func (s *Session) markConfigured() {
	if s.state == StateOpened {
		s.state = StateConfigured
	}
}

// SetResolution sets Width then Height. Values are passed to the driver as-is.
func (s *Session) SetResolution(width, height int) error {
	if err := s.requireHandle("set resolution"); err != nil {
		return err
	}

	if code := s.driver.SetIntValue(s.handle, mvsdk.NodeWidth, int64(width)); code.Failed() {
		return s.fail(KindConfigureRejected, "set width", code)
	}
	s.width = width

	if code := s.driver.SetIntValue(s.handle, mvsdk.NodeHeight, int64(height)); code.Failed() {
		return s.fail(KindConfigureRejected, "set height", code)
	}
	s.height = height

	s.markConfigured()
	s.logger.Info("resolution set", "width", width, "height", height)
	return nil
}

// SetExposureTime sets the exposure in microseconds.
func (s *Session) SetExposureTime(us float64) error {
	if err := s.requireHandle("set exposure time"); err != nil {
		return err
	}

	if code := s.driver.SetFloatValue(s.handle, mvsdk.NodeExposureTime, float32(us)); code.Failed() {
		return s.fail(KindConfigureRejected, "set exposure time", code)
	}

	s.markConfigured()
	s.logger.Info("exposure time set", "us", us)
	return nil
}

// EnableLatestFrame switches the device to push delivery. Frames then land
// in a single-slot cache read with LatestFrame; PullFrame stops working.
// Must be called before StartGrabbing.
func (s *Session) EnableLatestFrame() error {
	const op = "register image callback"

	if err := s.requireHandle(op); err != nil {
		return err
	}
	if s.state == StateStreaming {
		return s.invalid(op, ErrAlreadyStreaming)
	}

	if code := s.driver.RegisterImageCallback(s.handle, s.latest.store); code.Failed() {
		return s.fail(KindConfigureRejected, op, code)
	}
	s.pushMode = true
	return nil
}

// StartGrabbing starts acquisition.
func (s *Session) StartGrabbing() error {
	if err := s.requireHandle("start grabbing"); err != nil {
		return err
	}

	if code := s.driver.StartGrabbing(s.handle); code.Failed() {
		return s.fail(KindStreamStartFailed, "start grabbing", code)
	}
	s.refreshGeometry()
	s.state = StateStreaming

	s.logger.Info("grabbing started", "width", s.width, "height", s.height, "push", s.pushMode)
	return nil
}

// FrameSize returns the buffer size for the current resolution.
func (s *Session) FrameSize() int {
	return FrameSize(s.width, s.height)
}

// PullFrame waits up to the frame timeout for the next frame. The returned
// Frame aliases buf. Timeouts and driver errors are not distinguished.
func (s *Session) PullFrame(buf []byte) (Frame, error) {
	const op = "pull frame"

	if err := s.requireHandle(op); err != nil {
		return Frame{}, err
	}
	size := s.FrameSize()
	if size == 0 {
		return Frame{}, s.invalid(op, ErrUnknownGeometry)
	}
	if len(buf) < size {
		return Frame{}, s.invalid(op, ErrBufferTooSmall)
	}

	info, code := s.driver.GetOneFrameTimeout(s.handle, buf[:size], s.timeout)
	if code.Failed() {
		if code == mvsdk.ENoData {
			s.logger.Debug("frame timeout", "timeout", s.timeout, "code", code)
		} else {
			s.logger.Warn("frame pull failed", "code", code)
		}
		return Frame{}, &Error{Kind: KindFrameTimeoutOrError, Op: op, Code: code}
	}

	// A frame larger than the configured geometry did not fit in buf.
	n := FrameSize(info.Width, info.Height)
	if n > size {
		s.logger.Warn("frame larger than configured size",
			"width", info.Width, "height", info.Height, "frame_bytes", n, "buffer_bytes", size)
		return Frame{}, &Error{Kind: KindFrameTimeoutOrError, Op: op, Err: ErrFrameSizeMismatch}
	}
	return Frame{
		Data:      buf[:n],
		Width:     info.Width,
		Height:    info.Height,
		FrameNum:  info.FrameNum,
		Timestamp: time.Now(),
	}, nil
}

// Grab allocates a buffer for the current resolution and pulls one frame.
func (s *Session) Grab() (Frame, error) {
	return s.PullFrame(make([]byte, s.FrameSize()))
}

// LatestFrame returns the most recent pushed frame if it is no older than
// maxAge (maxAge <= 0 accepts any age). Safe for concurrent use.
func (s *Session) LatestFrame(maxAge time.Duration) (Frame, bool) {
	return s.latest.load(maxAge)
}

// LatestFrameStats returns push delivery counters. Safe for concurrent use.
func (s *Session) LatestFrameStats() LatestStats {
	return s.latest.snapshot()
}

// FrameRate reads ResultingFrameRate, falling back to AcquisitionFrameRate
// only when the device does not know the first node.
func (s *Session) FrameRate() float64 {
	if s.handle == 0 {
		return FrameRateNoHandle
	}

	fps, code := s.driver.GetFloatValue(s.handle, mvsdk.NodeResultingFrameRate)
	if code == mvsdk.OK {
		return float64(fps)
	}
	if !code.UnknownProperty() {
		s.logger.Debug("frame rate unreadable", "node", mvsdk.NodeResultingFrameRate, "code", code)
		return FrameRateUnavailable
	}

	fps, code = s.driver.GetFloatValue(s.handle, mvsdk.NodeAcquisitionFrameRate)
	if code.Failed() {
		s.logger.Debug("frame rate unreadable", "node", mvsdk.NodeAcquisitionFrameRate, "code", code)
		return FrameRateUnavailable
	}
	return float64(fps)
}

// StopGrabbing stops acquisition, closes the device and destroys the
// handle, in that order. Without a handle it does nothing.
func (s *Session) StopGrabbing() {
	if s.handle == 0 {
		return
	}
	s.teardown()
	s.state = StateStopped
}

func (s *Session) teardown() {
	h := s.handle
	s.handle = 0
	s.pushMode = false

	if code := s.driver.StopGrabbing(h); code.Failed() {
		s.logger.Debug("stop grabbing", "code", code)
	}
	if code := s.driver.CloseDevice(h); code.Failed() {
		s.logger.Debug("close device", "code", code)
	}
	if code := s.driver.DestroyHandle(h); code.Failed() {
		s.logger.Warn("destroy handle failed", "code", code)
	}
	s.latest.reset()
	s.logger.Info("camera released")
}

// Close releases the device and the driver subsystem. Calling Close again,
// or on a session that was never initialized, is a no-op.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	if s.handle != 0 {
		s.teardown()
	}

	var err error
	if s.acquired {
		s.acquired = false
		err = s.sub.Release()
	}
	s.state = StateClosed
	return err
}
