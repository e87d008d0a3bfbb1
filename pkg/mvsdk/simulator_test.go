package mvsdk

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSim(t *testing.T, opts ...SimulatorOption) (*Simulator, Handle) {
	t.Helper()

	sim := NewSimulator(nil, append([]SimulatorOption{WithFramePeriod(time.Millisecond)}, opts...)...)
	require.Equal(t, OK, sim.Initialize())

	devices, code := sim.EnumDevices(TransportUSB)
	require.Equal(t, OK, code)
	require.NotEmpty(t, devices)

	h, code := sim.CreateHandle(devices[0])
	require.Equal(t, OK, code)
	require.Equal(t, OK, sim.OpenDevice(h))
	return sim, h
}

func TestSimulator_CallOrder(t *testing.T) {
	sim := NewSimulator(nil)

	_, code := sim.EnumDevices(TransportUSB)
	assert.Equal(t, ECallOrder, code, "enumerate before initialize")

	require.Equal(t, OK, sim.Initialize())
	devices, code := sim.EnumDevices(TransportUSB)
	require.Equal(t, OK, code)
	require.Len(t, devices, 1)
	assert.Equal(t, "SY011-SIM", devices[0].ModelName)
	assert.Equal(t, "SIM00000", devices[0].SerialNumber)

	h, code := sim.CreateHandle(devices[0])
	require.Equal(t, OK, code)
	assert.Equal(t, ECallOrder, sim.StartGrabbing(h), "grab before open")

	require.Equal(t, OK, sim.OpenDevice(h))
	assert.Equal(t, ECallOrder, sim.OpenDevice(h), "open twice")

	assert.Equal(t, ECallOrder, sim.StopGrabbing(h), "stop before start")
	assert.Equal(t, OK, sim.CloseDevice(h))
	assert.Equal(t, OK, sim.DestroyHandle(h))
	assert.Equal(t, EHandle, sim.DestroyHandle(h))
	assert.Equal(t, 0, sim.LiveHandles())
}

func TestSimulator_GigEHasNoDevices(t *testing.T) {
	sim := NewSimulator(nil, WithDevices(3))
	require.Equal(t, OK, sim.Initialize())

	devices, code := sim.EnumDevices(TransportGigE)
	assert.Equal(t, OK, code)
	assert.Empty(t, devices)

	devices, _ = sim.EnumDevices(TransportUSB)
	assert.Len(t, devices, 3)
}

func TestSimulator_Properties(t *testing.T) {
	sim, h := openSim(t)

	tests := []struct {
		name string
		set  func() Code
		want Code
	}{
		{"bgr pixel format", func() Code { return sim.SetEnumValue(h, NodePixelFormat, uint32(PixelTypeBGR8Packed)) }, OK},
		{"bogus pixel format", func() Code { return sim.SetEnumValue(h, NodePixelFormat, 0x1234) }, EGCRange},
		{"unknown enum node", func() Code { return sim.SetEnumValue(h, "TriggerMode", 0) }, EGCProperty},
		{"width", func() Code { return sim.SetIntValue(h, NodeWidth, 640) }, OK},
		{"width too large", func() Code { return sim.SetIntValue(h, NodeWidth, SimMaxWidth+1) }, EGCRange},
		{"height too small", func() Code { return sim.SetIntValue(h, NodeHeight, 2) }, EGCRange},
		{"unknown int node", func() Code { return sim.SetIntValue(h, "OffsetX", 0) }, EGCProperty},
		{"exposure", func() Code { return sim.SetFloatValue(h, NodeExposureTime, 5000) }, OK},
		{"exposure too short", func() Code { return sim.SetFloatValue(h, NodeExposureTime, 1) }, EGCRange},
		{"read-only frame rate", func() Code { return sim.SetFloatValue(h, NodeResultingFrameRate, 10) }, EGCAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.set())
		})
	}

	w, code := sim.GetIntValue(h, NodeWidth)
	require.Equal(t, OK, code)
	assert.Equal(t, int64(640), w)

	payload, code := sim.GetIntValue(h, "PayloadSize")
	require.Equal(t, OK, code)
	assert.Equal(t, int64(640*SimDefaultHeight*3), payload)

	exp, code := sim.GetFloatValue(h, NodeExposureTime)
	require.Equal(t, OK, code)
	assert.InDelta(t, 5000, exp, 1e-3)
}

func TestSimulator_GeometryLockedWhileGrabbing(t *testing.T) {
	sim, h := openSim(t)
	require.Equal(t, OK, sim.StartGrabbing(h))
	defer sim.StopGrabbing(h)

	assert.Equal(t, EGCAccess, sim.SetIntValue(h, NodeWidth, 640))
	assert.Equal(t, EGCAccess, sim.SetEnumValue(h, NodePixelFormat, uint32(PixelTypeBGR8Packed)))
	assert.Equal(t, OK, sim.SetFloatValue(h, NodeExposureTime, 2000), "exposure stays writable")
}

func TestSimulator_WithSensorSize(t *testing.T) {
	sim, h := openSim(t, WithSensorSize(1920, 1080))

	assert.Equal(t, OK, sim.SetIntValue(h, NodeWidth, 1920))
	assert.Equal(t, EGCRange, sim.SetIntValue(h, NodeWidth, 2048))
}

func TestSimulator_PullFrame(t *testing.T) {
	sim, h := openSim(t)
	require.Equal(t, OK, sim.SetIntValue(h, NodeWidth, 64))
	require.Equal(t, OK, sim.SetIntValue(h, NodeHeight, 48))
	require.Equal(t, OK, sim.StartGrabbing(h))

	buf := make([]byte, 64*48*3)
	info, code := sim.GetOneFrameTimeout(h, buf, time.Second)
	require.Equal(t, OK, code)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Equal(t, uint32(1), info.FrameNum)
	assert.Equal(t, len(buf), info.FrameLength)

	// Pixel (x=10, y=20) is B=x, G=y, R=frame number.
	px := (20*64 + 10) * 3
	assert.Equal(t, []byte{10, 20, 1}, buf[px:px+3])

	_, code = sim.GetOneFrameTimeout(h, make([]byte, 100), time.Second)
	assert.Equal(t, ENoEnoughBuf, code)

	require.Equal(t, OK, sim.StopGrabbing(h))
	_, code = sim.GetOneFrameTimeout(h, buf, time.Second)
	assert.Equal(t, ECallOrder, code)
}

func TestSimulator_PullTimeout(t *testing.T) {
	sim, h := openSim(t, WithFramePeriod(time.Hour))
	require.Equal(t, OK, sim.StartGrabbing(h))

	start := time.Now()
	_, code := sim.GetOneFrameTimeout(h, make([]byte, SimDefaultWidth*SimDefaultHeight*3), 10*time.Millisecond)
	assert.Equal(t, ENoData, code)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSimulator_DegenerateFrames(t *testing.T) {
	sim, h := openSim(t, WithDegenerateFrames())
	require.Equal(t, OK, sim.StartGrabbing(h))

	info, code := sim.GetOneFrameTimeout(h, make([]byte, SimDefaultWidth*SimDefaultHeight*3), time.Second)
	require.Equal(t, OK, code)
	assert.Zero(t, info.Width)
	assert.Zero(t, info.Height)
}

func TestSimulator_PushDelivery(t *testing.T) {
	sim, h := openSim(t)
	require.Equal(t, OK, sim.SetIntValue(h, NodeWidth, 32))
	require.Equal(t, OK, sim.SetIntValue(h, NodeHeight, 32))

	var frames atomic.Int64
	require.Equal(t, OK, sim.RegisterImageCallback(h, func(data []byte, info FrameInfo) {
		if len(data) == 32*32*3 && info.Width == 32 {
			frames.Add(1)
		}
	}))
	require.Equal(t, OK, sim.StartGrabbing(h))
	assert.Equal(t, ECallOrder, sim.RegisterImageCallback(h, nil), "register while grabbing")

	require.Eventually(t, func() bool { return frames.Load() >= 3 }, 2*time.Second, time.Millisecond)

	_, code := sim.GetOneFrameTimeout(h, make([]byte, 32*32*3), time.Second)
	assert.Equal(t, ECallOrder, code, "no pulls in push mode")

	require.Equal(t, OK, sim.StopGrabbing(h))
	after := frames.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, frames.Load(), "no frames after stop")
}

func TestSimulator_DestroyWhileGrabbing(t *testing.T) {
	sim, h := openSim(t)
	require.Equal(t, OK, sim.RegisterImageCallback(h, func([]byte, FrameInfo) {}))
	require.Equal(t, OK, sim.StartGrabbing(h))

	assert.Equal(t, OK, sim.DestroyHandle(h))
	assert.Equal(t, EHandle, sim.StopGrabbing(h))
	assert.Equal(t, 0, sim.LiveHandles())
}

func TestSimulator_Failures(t *testing.T) {
	sim := NewSimulator(nil, WithFailure("Initialize", EResource))

	assert.Equal(t, EResource, sim.Initialize())
	assert.Equal(t, EResource, sim.Initialize())
	assert.Equal(t, 2, sim.Calls("Initialize"))
	assert.Equal(t, 0, sim.Calls("Finalize"))
}

func TestSimulator_FrameRateNodes(t *testing.T) {
	sim, h := openSim(t, WithFrameRate(12.5), WithoutNode(NodeResultingFrameRate))

	_, code := sim.GetFloatValue(h, NodeResultingFrameRate)
	assert.Equal(t, EGCProperty, code)
	assert.True(t, code.UnknownProperty())

	fps, code := sim.GetFloatValue(h, NodeAcquisitionFrameRate)
	require.Equal(t, OK, code)
	assert.InDelta(t, 12.5, fps, 1e-6)
}
