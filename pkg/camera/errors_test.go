package camera

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/go-mvcam/pkg/mvsdk"
)

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindDeviceOpenFailed, Op: "open device", Code: mvsdk.EUSBDevice}
	assert.Equal(t, "camera: open device: device_open_failed (code 0x80000303)", err.Error())

	err = &Error{Kind: KindInvalidState, Op: "pull frame", Err: ErrBufferTooSmall}
	assert.Equal(t, "camera: pull frame: invalid_state: camera: buffer smaller than frame size", err.Error())
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("grab: %w", &Error{Kind: KindNoDeviceFound, Op: "enumerate devices"})

	assert.True(t, errors.Is(err, ErrNoDeviceFound))
	assert.False(t, errors.Is(err, ErrDeviceOpenFailed))
	assert.Equal(t, KindNoDeviceFound, KindOf(err))
}

func TestError_EveryKindHasSentinel(t *testing.T) {
	kinds := []Kind{
		KindDriverInitFailed,
		KindNoDeviceFound,
		KindHandleCreateFailed,
		KindDeviceOpenFailed,
		KindConfigureRejected,
		KindStreamStartFailed,
		KindFrameTimeoutOrError,
		KindInvalidState,
	}

	seen := make(map[error]Kind)
	for _, k := range kinds {
		sentinel, ok := kindErrors[k]
		if assert.True(t, ok, "kind %s", k) {
			assert.NotContains(t, seen, sentinel)
			seen[sentinel] = k
			assert.ErrorIs(t, &Error{Kind: k}, sentinel)
		}
	}
}

func TestKindOf_Foreign(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
