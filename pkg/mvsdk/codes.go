package mvsdk

import "fmt"

// Code is a raw result code returned by the vendor SDK.
// Zero is success; failures have the high bit set.
type Code uint32

// Result codes shared by every backend. Values match MvErrorDefine.h.
const (
	OK Code = 0x00000000

	EHandle       Code = 0x80000000 // invalid or wrong handle
	ESupport      Code = 0x80000001 // function not supported
	EBufOver      Code = 0x80000002 // buffer overflow
	ECallOrder    Code = 0x80000003 // function called in wrong order
	EParameter    Code = 0x80000004 // incorrect parameter
	EResource     Code = 0x80000006 // resource allocation failed
	ENoData       Code = 0x80000007 // no data
	EPrecondition Code = 0x80000008 // precondition error, or environment changed
	ENoEnoughBuf  Code = 0x8000000A // insufficient memory supplied by caller
	EUnknown      Code = 0x800000FF // unknown error

	EGCGeneric  Code = 0x80000100
	EGCArgument Code = 0x80000101
	EGCRange    Code = 0x80000102 // value out of range
	EGCProperty Code = 0x80000103 // unknown node name
	EGCRuntime  Code = 0x80000104
	EGCAccess   Code = 0x80000106 // node not accessible
	EGCTimeout  Code = 0x80000107

	EUSBRead   Code = 0x80000300
	EUSBDevice Code = 0x80000303 // device disconnected
)

// Failed reports whether the code is anything other than OK.
func (c Code) Failed() bool { return c != OK }

// UnknownProperty reports whether the driver rejected a node name it does not know.
func (c Code) UnknownProperty() bool { return c == EGCProperty }

func (c Code) String() string {
	return fmt.Sprintf("0x%08x", uint32(c))
}
