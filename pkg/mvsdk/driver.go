// Package mvsdk abstracts the vendor machine-vision camera SDK.
//
// The SDK is modelled as a Driver: a set of handle-based primitives that
// return raw result Codes, exactly as the C API does. Two backends exist:
//   - MVS (cgo against MvCameraControl, build tag "mvs") - production hardware
//   - Simulator - CI/Testing without hardware
//
// Callers do not initialize the driver directly; they share a Subsystem,
// which owns the process-wide Initialize/Finalize pair.
package mvsdk

import (
	"fmt"
	"log/slog"
	"time"
)

// Backend selects a driver implementation.
type Backend string

const (
	// BackendMVS talks to real hardware through the vendor C library.
	BackendMVS Backend = "mvs"
	// BackendSimulator is an in-process fake camera.
	BackendSimulator Backend = "simulator"
)

// Transport is a device transport-layer filter for enumeration.
type Transport uint32

const (
	TransportGigE Transport = 0x00000001
	TransportUSB  Transport = 0x00000004
)

func (t Transport) String() string {
	switch t {
	case TransportGigE:
		return "gige"
	case TransportUSB:
		return "usb"
	default:
		return fmt.Sprintf("transport(0x%x)", uint32(t))
	}
}

// PixelType is a GenICam pixel format value.
type PixelType uint32

const (
	PixelTypeMono8      PixelType = 0x01080001
	PixelTypeRGB8Packed PixelType = 0x02180014
	PixelTypeBGR8Packed PixelType = 0x02180015
)

// Node names used by the camera session.
const (
	NodePixelFormat          = "PixelFormat"
	NodeWidth                = "Width"
	NodeHeight               = "Height"
	NodeExposureTime         = "ExposureTime"
	NodeResultingFrameRate   = "ResultingFrameRate"
	NodeAcquisitionFrameRate = "AcquisitionFrameRate"
)

// Handle is an opaque device handle. Zero means no handle.
type Handle uintptr

// DeviceInfo describes one enumerated device.
type DeviceInfo struct {
	Index        int
	Transport    Transport
	ModelName    string
	SerialNumber string

	// ref points at the backend's native device descriptor.
	ref uintptr
}

// FrameInfo is the metadata the driver reports with each frame.
type FrameInfo struct {
	Width       int
	Height      int
	PixelType   PixelType
	FrameNum    uint32
	FrameLength int
}

// ImageCallback receives frames pushed by the driver on its own thread.
// data is only valid for the duration of the call.
type ImageCallback func(data []byte, info FrameInfo)

// Driver is the set of SDK primitives the camera session is built on.
type Driver interface {
	// Name returns the backend name (e.g., "mvs", "simulator").
	Name() string

	Initialize() Code
	Finalize() Code

	// EnumDevices lists devices reachable over the given transport.
	EnumDevices(transport Transport) ([]DeviceInfo, Code)

	CreateHandle(dev DeviceInfo) (Handle, Code)
	DestroyHandle(h Handle) Code
	OpenDevice(h Handle) Code
	CloseDevice(h Handle) Code

	SetEnumValue(h Handle, key string, value uint32) Code
	SetIntValue(h Handle, key string, value int64) Code
	GetIntValue(h Handle, key string) (int64, Code)
	SetFloatValue(h Handle, key string, value float32) Code
	GetFloatValue(h Handle, key string) (float32, Code)

	StartGrabbing(h Handle) Code
	StopGrabbing(h Handle) Code

	// GetOneFrameTimeout blocks until a frame is copied into buf or the
	// timeout elapses. It cannot be interrupted.
	GetOneFrameTimeout(h Handle, buf []byte, timeout time.Duration) (FrameInfo, Code)

	// RegisterImageCallback switches the handle to push delivery.
	// Must be called before StartGrabbing.
	RegisterImageCallback(h Handle, cb ImageCallback) Code
}

// NewDriver creates a driver for the given backend.
func NewDriver(backend Backend, logger *slog.Logger) (Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating camera driver", "backend", backend)

	switch backend {
	case BackendSimulator:
		return NewSimulator(logger), nil
	case BackendMVS:
		return newMVSDriver(logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}
