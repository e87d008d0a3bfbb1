//go:build mvs && cgo

package mvsdk

/*
#cgo CFLAGS: -I/opt/MVS/include
#cgo LDFLAGS: -L/opt/MVS/lib/64 -Wl,-rpath=/opt/MVS/lib/64
#cgo LDFLAGS: -lMvCameraControl
#include <stdlib.h>
#include "MvCameraControl.h"

extern void mvsImageCallback(unsigned char* pData, MV_FRAME_OUT_INFO_EX* pFrameInfo, void* pUser);
*/
import "C"

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"
)

// mvsDriver calls the vendor MvCameraControl library.
// This is the production implementation for USB3 Vision cameras.
type mvsDriver struct {
	logger *slog.Logger

	// list is owned by the SDK between enumerations; the device pointers
	// handed out in DeviceInfo.ref stay valid until the next EnumDevices.
	mu   sync.Mutex
	list C.MV_CC_DEVICE_INFO_LIST
}

// Push callbacks keyed by native handle; the SDK passes the handle back as pUser.
var (
	callbacksMu sync.RWMutex
	callbacks   = make(map[uintptr]ImageCallback)
)

func newMVSDriver(logger *slog.Logger) (Driver, error) {
	d := &mvsDriver{logger: logger}
	logger.Info("MVS driver created", "sdk_version", d.sdkVersion())
	return d, nil
}

func (h Handle) ptr() unsafe.Pointer {
	return unsafe.Pointer(h)
}

func toCode(ret C.int) Code {
	return Code(uint32(ret))
}

func (d *mvsDriver) sdkVersion() string {
	return fmt.Sprintf("0x%08x", uint32(C.MV_CC_GetSDKVersion()))
}

func (d *mvsDriver) Name() string {
	return string(BackendMVS)
}

func (d *mvsDriver) Initialize() Code {
	return toCode(C.MV_CC_Initialize())
}

func (d *mvsDriver) Finalize() Code {
	return toCode(C.MV_CC_Finalize())
}

func (d *mvsDriver) EnumDevices(transport Transport) ([]DeviceInfo, Code) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.list = C.MV_CC_DEVICE_INFO_LIST{}
	ret := toCode(C.MV_CC_EnumDevices(C.uint(transport), &d.list))
	if ret.Failed() {
		return nil, ret
	}

	n := int(d.list.nDeviceNum)
	devices := make([]DeviceInfo, 0, n)
	for i := 0; i < n; i++ {
		info := d.list.pDeviceInfo[i]
		if info == nil {
			continue
		}
		dev := DeviceInfo{
			Index:     i,
			Transport: Transport(info.nTLayerType),
			ref:       uintptr(unsafe.Pointer(info)),
		}
		switch info.nTLayerType {
		case C.MV_USB_DEVICE:
			usb := (*C.MV_USB3_DEVICE_INFO)(unsafe.Pointer(&info.SpecialInfo))
			dev.ModelName = C.GoString((*C.char)(unsafe.Pointer(&usb.chModelName[0])))
			dev.SerialNumber = C.GoString((*C.char)(unsafe.Pointer(&usb.chSerialNumber[0])))
		case C.MV_GIGE_DEVICE:
			gige := (*C.MV_GIGE_DEVICE_INFO)(unsafe.Pointer(&info.SpecialInfo))
			dev.ModelName = C.GoString((*C.char)(unsafe.Pointer(&gige.chModelName[0])))
			dev.SerialNumber = C.GoString((*C.char)(unsafe.Pointer(&gige.chSerialNumber[0])))
		}
		devices = append(devices, dev)
	}
	return devices, OK
}

func (d *mvsDriver) CreateHandle(dev DeviceInfo) (Handle, Code) {
	if dev.ref == 0 {
		return 0, EParameter
	}
	var h unsafe.Pointer
	ret := toCode(C.MV_CC_CreateHandle(&h, (*C.MV_CC_DEVICE_INFO)(unsafe.Pointer(dev.ref))))
	if ret.Failed() {
		return 0, ret
	}
	return Handle(uintptr(h)), OK
}

func (d *mvsDriver) DestroyHandle(h Handle) Code {
	callbacksMu.Lock()
	delete(callbacks, uintptr(h))
	callbacksMu.Unlock()
	return toCode(C.MV_CC_DestroyHandle(h.ptr()))
}

func (d *mvsDriver) OpenDevice(h Handle) Code {
	return toCode(C.MV_CC_OpenDevice(h.ptr(), C.uint(C.MV_ACCESS_Exclusive), C.ushort(0)))
}

func (d *mvsDriver) CloseDevice(h Handle) Code {
	return toCode(C.MV_CC_CloseDevice(h.ptr()))
}

func (d *mvsDriver) SetEnumValue(h Handle, key string, value uint32) Code {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	return toCode(C.MV_CC_SetEnumValue(h.ptr(), ckey, C.uint(value)))
}

func (d *mvsDriver) SetIntValue(h Handle, key string, value int64) Code {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	return toCode(C.MV_CC_SetIntValueEx(h.ptr(), ckey, C.int64_t(value)))
}

func (d *mvsDriver) GetIntValue(h Handle, key string) (int64, Code) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))

	var v C.MVCC_INTVALUE_EX
	ret := toCode(C.MV_CC_GetIntValueEx(h.ptr(), ckey, &v))
	if ret.Failed() {
		return 0, ret
	}
	return int64(v.nCurValue), OK
}

func (d *mvsDriver) SetFloatValue(h Handle, key string, value float32) Code {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	return toCode(C.MV_CC_SetFloatValue(h.ptr(), ckey, C.float(value)))
}

func (d *mvsDriver) GetFloatValue(h Handle, key string) (float32, Code) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))

	var v C.MVCC_FLOATVALUE
	ret := toCode(C.MV_CC_GetFloatValue(h.ptr(), ckey, &v))
	if ret.Failed() {
		return 0, ret
	}
	return float32(v.fCurValue), OK
}

func (d *mvsDriver) StartGrabbing(h Handle) Code {
	return toCode(C.MV_CC_StartGrabbing(h.ptr()))
}

func (d *mvsDriver) StopGrabbing(h Handle) Code {
	return toCode(C.MV_CC_StopGrabbing(h.ptr()))
}

func (d *mvsDriver) GetOneFrameTimeout(h Handle, buf []byte, timeout time.Duration) (FrameInfo, Code) {
	if len(buf) == 0 {
		return FrameInfo{}, ENoEnoughBuf
	}

	var info C.MV_FRAME_OUT_INFO_EX
	ret := toCode(C.MV_CC_GetOneFrameTimeout(
		h.ptr(),
		(*C.uchar)(unsafe.Pointer(&buf[0])),
		C.uint(len(buf)),
		&info,
		C.uint(timeout.Milliseconds()),
	))
	if ret.Failed() {
		return FrameInfo{}, ret
	}
	return frameInfo(&info), OK
}

func (d *mvsDriver) RegisterImageCallback(h Handle, cb ImageCallback) Code {
	callbacksMu.Lock()
	callbacks[uintptr(h)] = cb
	callbacksMu.Unlock()

	ret := toCode(C.MV_CC_RegisterImageCallBackEx(
		h.ptr(),
		(*[0]byte)(unsafe.Pointer(C.mvsImageCallback)),
		h.ptr(),
	))
	if ret.Failed() {
		callbacksMu.Lock()
		delete(callbacks, uintptr(h))
		callbacksMu.Unlock()
	}
	return ret
}

func frameInfo(info *C.MV_FRAME_OUT_INFO_EX) FrameInfo {
	return FrameInfo{
		Width:       int(info.nWidth),
		Height:      int(info.nHeight),
		PixelType:   PixelType(info.enPixelType),
		FrameNum:    uint32(info.nFrameNum),
		FrameLength: int(info.nFrameLen),
	}
}

//export mvsImageCallback
func mvsImageCallback(pData *C.uchar, pFrameInfo *C.MV_FRAME_OUT_INFO_EX, pUser unsafe.Pointer) {
	if pData == nil || pFrameInfo == nil {
		return
	}

	callbacksMu.RLock()
	cb := callbacks[uintptr(pUser)]
	callbacksMu.RUnlock()
	if cb == nil {
		return
	}

	info := frameInfo(pFrameInfo)
	cb(unsafe.Slice((*byte)(unsafe.Pointer(pData)), info.FrameLength), info)
}
