package mvsdk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Simulator sensor limits, modelled on the SY011 (12 MP, 4024x3036).
const (
	SimMaxWidth      = 4024
	SimMaxHeight     = 3036
	SimMinWidth      = 32
	SimMinHeight     = 32
	SimMinExposure   = 15
	SimMaxExposure   = 10_000_000
	SimDefaultFPS    = 30
	SimDefaultWidth  = 1440
	SimDefaultHeight = 1080
	simDefaultPeriod = 5 * time.Millisecond
	simBytesPerPixel = 3
)

// Simulator is an in-process camera driver for tests and demos.
// It behaves like the vendor SDK closely enough to exercise the session:
// handles must be created and opened, properties have ranges, and frames
// are only delivered while grabbing.
type Simulator struct {
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	devices     int
	handles     map[Handle]*simDevice
	nextHandle  Handle
	calls       map[string]int

	// Behaviour knobs
	failures   map[string]Code
	degenerate bool
	missing    map[string]bool
	frameRate  float32
	period     time.Duration
	maxWidth   int64
	maxHeight  int64
}

type simDevice struct {
	info        DeviceInfo
	open        bool
	grabbing    bool
	pixelFormat uint32
	width       int64
	height      int64
	exposure    float32
	frameNum    uint32
	callback    ImageCallback
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithDevices sets how many USB devices enumeration reports.
func WithDevices(n int) SimulatorOption {
	return func(s *Simulator) {
		s.devices = n
	}
}

// WithFailure makes the named driver method (e.g. "OpenDevice") return code.
func WithFailure(method string, code Code) SimulatorOption {
	return func(s *Simulator) {
		s.failures[method] = code
	}
}

// WithDegenerateFrames makes frame pulls succeed with zero dimensions.
func WithDegenerateFrames() SimulatorOption {
	return func(s *Simulator) {
		s.degenerate = true
	}
}

// WithoutNode makes the driver report the named node as unknown.
func WithoutNode(name string) SimulatorOption {
	return func(s *Simulator) {
		s.missing[name] = true
	}
}

// WithFrameRate sets the frame rate reported by the frame-rate nodes.
func WithFrameRate(fps float32) SimulatorOption {
	return func(s *Simulator) {
		s.frameRate = fps
	}
}

// WithFramePeriod sets the time between generated frames.
func WithFramePeriod(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		s.period = d
	}
}

// WithSensorSize sets the maximum accepted Width and Height.
func WithSensorSize(width, height int64) SimulatorOption {
	return func(s *Simulator) {
		s.maxWidth = width
		s.maxHeight = height
	}
}

// NewSimulator creates a simulated driver with one attached USB camera.
func NewSimulator(logger *slog.Logger, opts ...SimulatorOption) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulator{
		logger:     logger,
		devices:    1,
		handles:    make(map[Handle]*simDevice),
		nextHandle: 1,
		calls:      make(map[string]int),
		failures:   make(map[string]Code),
		missing:    make(map[string]bool),
		frameRate:  SimDefaultFPS,
		period:     simDefaultPeriod,
		maxWidth:   SimMaxWidth,
		maxHeight:  SimMaxHeight,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns "simulator".
func (s *Simulator) Name() string {
	return string(BackendSimulator)
}

// Calls returns how many times the named method has been invoked.
func (s *Simulator) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// LiveHandles returns the number of handles created and not yet destroyed.
func (s *Simulator) LiveHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// enter records a call and returns an injected failure, if any.
// Caller must hold s.mu.
func (s *Simulator) enter(method string) Code {
	s.calls[method]++
	if code, ok := s.failures[method]; ok {
		return code
	}
	return OK
}

// device looks up a live handle. Caller must hold s.mu.
func (s *Simulator) device(h Handle) (*simDevice, Code) {
	d, ok := s.handles[h]
	if !ok {
		return nil, EHandle
	}
	return d, OK
}

// Initialize brings up the simulated SDK.
func (s *Simulator) Initialize() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("Initialize"); code.Failed() {
		return code
	}
	s.initialized = true
	return OK
}

// Finalize tears down the simulated SDK.
func (s *Simulator) Finalize() Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("Finalize"); code.Failed() {
		return code
	}
	s.initialized = false
	return OK
}

// EnumDevices lists the simulated devices. Only USB devices exist.
func (s *Simulator) EnumDevices(transport Transport) ([]DeviceInfo, Code) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("EnumDevices"); code.Failed() {
		return nil, code
	}
	if !s.initialized {
		return nil, ECallOrder
	}
	if transport&TransportUSB == 0 {
		return nil, OK
	}

	devices := make([]DeviceInfo, 0, s.devices)
	for i := 0; i < s.devices; i++ {
		devices = append(devices, DeviceInfo{
			Index:        i,
			Transport:    TransportUSB,
			ModelName:    "SY011-SIM",
			SerialNumber: fmt.Sprintf("SIM%05d", i),
			ref:          uintptr(i),
		})
	}
	return devices, OK
}

// CreateHandle allocates a handle for the device.
func (s *Simulator) CreateHandle(dev DeviceInfo) (Handle, Code) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("CreateHandle"); code.Failed() {
		return 0, code
	}
	if !s.initialized {
		return 0, ECallOrder
	}
	if dev.Index < 0 || dev.Index >= s.devices {
		return 0, EParameter
	}

	h := s.nextHandle
	s.nextHandle++
	s.handles[h] = &simDevice{
		info:        dev,
		pixelFormat: uint32(PixelTypeMono8),
		width:       SimDefaultWidth,
		height:      SimDefaultHeight,
		exposure:    10000,
	}
	return h, OK
}

// DestroyHandle releases the handle. Destroying an unknown handle fails.
func (s *Simulator) DestroyHandle(h Handle) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("DestroyHandle"); code.Failed() {
		return code
	}
	d, code := s.device(h)
	if code.Failed() {
		return code
	}
	if d.stopCh != nil {
		close(d.stopCh)
	}
	delete(s.handles, h)
	return OK
}

// OpenDevice opens the device behind the handle.
func (s *Simulator) OpenDevice(h Handle) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("OpenDevice"); code.Failed() {
		return code
	}
	d, code := s.device(h)
	if code.Failed() {
		return code
	}
	if d.open {
		return ECallOrder
	}
	d.open = true
	return OK
}

// CloseDevice closes the device behind the handle.
func (s *Simulator) CloseDevice(h Handle) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("CloseDevice"); code.Failed() {
		return code
	}
	d, code := s.device(h)
	if code.Failed() {
		return code
	}
	if !d.open {
		return ECallOrder
	}
	d.open = false
	return OK
}

// SetEnumValue sets an enumeration node. Only PixelFormat is known.
func (s *Simulator) SetEnumValue(h Handle, key string, value uint32) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("SetEnumValue"); code.Failed() {
		return code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return code
	}
	if key != NodePixelFormat || s.missing[key] {
		return EGCProperty
	}
	if d.grabbing {
		return EGCAccess
	}
	switch PixelType(value) {
	case PixelTypeMono8, PixelTypeRGB8Packed, PixelTypeBGR8Packed:
		d.pixelFormat = value
		return OK
	default:
		return EGCRange
	}
}

// SetIntValue sets an integer node (Width, Height).
func (s *Simulator) SetIntValue(h Handle, key string, value int64) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("SetIntValue"); code.Failed() {
		return code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return code
	}
	if s.missing[key] {
		return EGCProperty
	}

	switch key {
	case NodeWidth:
		if d.grabbing {
			return EGCAccess
		}
		if value < SimMinWidth || value > s.maxWidth {
			return EGCRange
		}
		d.width = value
	case NodeHeight:
		if d.grabbing {
			return EGCAccess
		}
		if value < SimMinHeight || value > s.maxHeight {
			return EGCRange
		}
		d.height = value
	default:
		return EGCProperty
	}
	return OK
}

// GetIntValue reads an integer node (Width, Height, PayloadSize).
func (s *Simulator) GetIntValue(h Handle, key string) (int64, Code) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("GetIntValue"); code.Failed() {
		return 0, code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return 0, code
	}
	if s.missing[key] {
		return 0, EGCProperty
	}

	switch key {
	case NodeWidth:
		return d.width, OK
	case NodeHeight:
		return d.height, OK
	case "PayloadSize":
		return d.width * d.height * simBytesPerPixel, OK
	default:
		return 0, EGCProperty
	}
}

// SetFloatValue sets a float node. Only ExposureTime is writable.
func (s *Simulator) SetFloatValue(h Handle, key string, value float32) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("SetFloatValue"); code.Failed() {
		return code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return code
	}
	if s.missing[key] {
		return EGCProperty
	}

	switch key {
	case NodeExposureTime:
		if value < SimMinExposure || value > SimMaxExposure {
			return EGCRange
		}
		d.exposure = value
		return OK
	case NodeResultingFrameRate:
		return EGCAccess
	default:
		return EGCProperty
	}
}

// GetFloatValue reads a float node.
func (s *Simulator) GetFloatValue(h Handle, key string) (float32, Code) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("GetFloatValue"); code.Failed() {
		return 0, code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return 0, code
	}
	if s.missing[key] {
		return 0, EGCProperty
	}

	switch key {
	case NodeExposureTime:
		return d.exposure, OK
	case NodeResultingFrameRate, NodeAcquisitionFrameRate:
		return s.frameRate, OK
	default:
		return 0, EGCProperty
	}
}

// openDevice looks up a handle whose device is open. Caller must hold s.mu.
func (s *Simulator) openDevice(h Handle) (*simDevice, Code) {
	d, code := s.device(h)
	if code.Failed() {
		return nil, code
	}
	if !d.open {
		return nil, ECallOrder
	}
	return d, OK
}

// StartGrabbing begins acquisition. With a registered callback a goroutine
// starts pushing frames every frame period.
func (s *Simulator) StartGrabbing(h Handle) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("StartGrabbing"); code.Failed() {
		return code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return code
	}
	if d.grabbing {
		return ECallOrder
	}
	d.grabbing = true

	if d.callback != nil {
		d.stopCh = make(chan struct{})
		d.doneCh = make(chan struct{})
		go s.pushLoop(h, d.callback, d.stopCh, d.doneCh)
	}
	s.logger.Debug("simulator grabbing", "handle", h, "push", d.callback != nil)
	return OK
}

// StopGrabbing ends acquisition and waits for the push goroutine to exit.
func (s *Simulator) StopGrabbing(h Handle) Code {
	s.mu.Lock()

	if code := s.enter("StopGrabbing"); code.Failed() {
		s.mu.Unlock()
		return code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		s.mu.Unlock()
		return code
	}
	if !d.grabbing {
		s.mu.Unlock()
		return ECallOrder
	}
	d.grabbing = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.stopCh, d.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	return OK
}

// GetOneFrameTimeout renders the next test-pattern frame into buf.
func (s *Simulator) GetOneFrameTimeout(h Handle, buf []byte, timeout time.Duration) (FrameInfo, Code) {
	s.mu.Lock()
	if code := s.enter("GetOneFrameTimeout"); code.Failed() {
		s.mu.Unlock()
		return FrameInfo{}, code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		s.mu.Unlock()
		return FrameInfo{}, code
	}
	if !d.grabbing || d.callback != nil {
		s.mu.Unlock()
		return FrameInfo{}, ECallOrder
	}
	period := s.period
	s.mu.Unlock()

	if period > timeout {
		time.Sleep(timeout)
		return FrameInfo{}, ENoData
	}
	time.Sleep(period)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The device may have been stopped while we slept.
	d, code = s.openDevice(h)
	if code.Failed() {
		return FrameInfo{}, code
	}
	if !d.grabbing {
		return FrameInfo{}, ENoData
	}

	size := int(d.width * d.height * simBytesPerPixel)
	if len(buf) < size {
		return FrameInfo{}, ENoEnoughBuf
	}
	d.frameNum++
	info := s.render(d, buf[:size])
	return info, OK
}

// render fills data with a gradient pattern. Caller must hold s.mu.
func (s *Simulator) render(d *simDevice, data []byte) FrameInfo {
	w, h := int(d.width), int(d.height)
	seq := byte(d.frameNum)
	for y := 0; y < h; y++ {
		row := data[y*w*simBytesPerPixel : (y+1)*w*simBytesPerPixel]
		for x := 0; x < w; x++ {
			row[x*3] = byte(x)
			row[x*3+1] = byte(y)
			row[x*3+2] = seq
		}
	}

	info := FrameInfo{
		Width:       w,
		Height:      h,
		PixelType:   PixelType(d.pixelFormat),
		FrameNum:    d.frameNum,
		FrameLength: len(data),
	}
	if s.degenerate {
		info.Width, info.Height = 0, 0
	}
	return info
}

// RegisterImageCallback installs a push callback on the handle.
func (s *Simulator) RegisterImageCallback(h Handle, cb ImageCallback) Code {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.enter("RegisterImageCallback"); code.Failed() {
		return code
	}
	d, code := s.openDevice(h)
	if code.Failed() {
		return code
	}
	if d.grabbing {
		return ECallOrder
	}
	d.callback = cb
	return OK
}

// pushLoop delivers frames to the callback until stopped, the way the
// vendor SDK does from its own acquisition thread.
func (s *Simulator) pushLoop(h Handle, cb ImageCallback, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	var buf []byte
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			d, code := s.openDevice(h)
			if code.Failed() || !d.grabbing {
				s.mu.Unlock()
				continue
			}
			size := int(d.width * d.height * simBytesPerPixel)
			if cap(buf) < size {
				buf = make([]byte, size)
			}
			buf = buf[:size]
			d.frameNum++
			info := s.render(d, buf)
			s.mu.Unlock()

			cb(buf, info)
		}
	}
}
